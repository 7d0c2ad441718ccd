package core

import (
	"context"
	"time"

	"github.com/auto-dns/harbinger/internal/domain"
	"github.com/auto-dns/harbinger/internal/pipeline"
)

type eventSource interface {
	Subscribe(ctx context.Context, since time.Time) (<-chan domain.RawEvent, error)
	ListRunning(ctx context.Context) ([]domain.ContainerRef, error)
}

type containerRegistry interface {
	Observe(e domain.RawEvent) domain.ContainerState
	Lookup(id string) (domain.ContainerState, bool)
	Seed(ref domain.ContainerRef, seenAt time.Time)
	EvictIdle(maxAge time.Duration) int
	Len() int
}

type classifier interface {
	Classify(e domain.RawEvent, prior domain.ContainerState) domain.NotificationIntent
}

type dispatcher interface {
	Submit(ctx context.Context, job pipeline.Job) error
	Drain(grace time.Duration) bool
}
