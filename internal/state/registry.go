package state

import (
	"maps"
	"sync"
	"time"

	"github.com/auto-dns/harbinger/internal/domain"
)

// Registry stores the last known state of each container safely.
type Registry struct {
	mu         sync.RWMutex
	containers map[string]*domain.ContainerState
	now        func() time.Time
}

type Option func(*Registry)

// WithClock overrides the clock used to stamp LastSeenAt.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		containers: make(map[string]*domain.ContainerState),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Observe applies an event to the container's state, creating the entry if absent, and returns a copy.
func (r *Registry) Observe(e domain.RawEvent) domain.ContainerState {
	r.mu.Lock()
	defer r.mu.Unlock()

	cs := r.entry(e.Container)
	cs.Status = domain.StatusFor(e.Action)
	if e.Restarting && (e.Action == domain.ActionDie || e.Action == domain.ActionKill) {
		cs.Status = domain.StatusRestarting
	}
	if e.ExitCode != nil {
		cs.LastExitCode = domain.IntPtr(*e.ExitCode)
	}
	cs.LastSeenAt = r.now()
	return snapshot(cs)
}

// Seed records a container found running at connect time.
func (r *Registry) Seed(ref domain.ContainerRef, seenAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cs := r.entry(ref)
	cs.Status = domain.StatusRunning
	cs.LastSeenAt = seenAt
}

func (r *Registry) Lookup(id string) (domain.ContainerState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cs, ok := r.containers[id]
	if !ok {
		return domain.ContainerState{}, false
	}
	return snapshot(cs), true
}

// EvictIdle removes containers that are not running and have not been seen for maxAge.
func (r *Registry) EvictIdle(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxAge)
	evicted := 0
	for id, cs := range r.containers {
		if cs.IsRunning() || cs.LastSeenAt.After(cutoff) {
			continue
		}
		delete(r.containers, id)
		evicted++
	}
	return evicted
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.containers)
}

// entry returns the state for ref.ID, merging descriptive metadata. Callers hold the write lock.
func (r *Registry) entry(ref domain.ContainerRef) *domain.ContainerState {
	cs, ok := r.containers[ref.ID]
	if !ok {
		cs = &domain.ContainerState{
			Container: domain.ContainerRef{ID: ref.ID},
			Status:    domain.StatusUnknown,
		}
		r.containers[ref.ID] = cs
	}
	mergeRef(&cs.Container, ref)
	return cs
}

func mergeRef(dst *domain.ContainerRef, src domain.ContainerRef) {
	if src.Name != "" {
		dst.Name = src.Name
	}
	if src.Image != "" {
		dst.Image = src.Image
	}
	if src.ComposeProject != "" {
		dst.ComposeProject = src.ComposeProject
	}
	if src.ComposeService != "" {
		dst.ComposeService = src.ComposeService
	}
	if len(src.Labels) > 0 {
		if dst.Labels == nil {
			dst.Labels = make(map[string]string, len(src.Labels))
		}
		maps.Copy(dst.Labels, src.Labels)
	}
}

func snapshot(cs *domain.ContainerState) domain.ContainerState {
	out := *cs
	out.Container.Labels = maps.Clone(cs.Container.Labels)
	if cs.LastExitCode != nil {
		out.LastExitCode = domain.IntPtr(*cs.LastExitCode)
	}
	return out
}
