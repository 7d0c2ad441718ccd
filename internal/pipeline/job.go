package pipeline

import (
	"github.com/auto-dns/harbinger/internal/domain"
	"github.com/nrednav/cuid2"
)

// Job is one notification travelling from the watch loop to the sink.
type Job struct {
	ID        string
	Event     domain.RawEvent
	Intent    domain.NotificationIntent
	FetchLogs bool
}

func NewJob(e domain.RawEvent, intent domain.NotificationIntent) Job {
	return Job{
		ID:        cuid2.Generate(),
		Event:     e,
		Intent:    intent,
		FetchLogs: e.Action.WantsLogs(),
	}
}
