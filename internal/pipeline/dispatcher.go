package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/auto-dns/harbinger/internal/delivery"
	"github.com/auto-dns/harbinger/internal/domain"
	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
)

var ErrDispatcherClosed = errors.New("dispatcher closed")

type Handler interface {
	Process(ctx context.Context, job Job) delivery.Result
}

// Dispatcher fans jobs out to a fixed set of FIFO lanes keyed by container ID.
// Jobs for one container always land on the same lane and are handled in submission order.
type Dispatcher struct {
	handler Handler
	lanes   []chan Job
	logger  zerolog.Logger

	mu     sync.RWMutex
	closed bool

	pool   *pool.ContextPool
	cancel context.CancelFunc
}

func NewDispatcher(handler Handler, workers, queueSize int, logger zerolog.Logger) *Dispatcher {
	workers = max(workers, 1)
	queueSize = max(queueSize, 1)

	lanes := make([]chan Job, workers)
	for i := range lanes {
		lanes[i] = make(chan Job, queueSize)
	}
	return &Dispatcher{
		handler: handler,
		lanes:   lanes,
		logger:  logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Start launches one worker per lane. Work runs under its own context, cancelled only by Drain.
func (d *Dispatcher) Start(ctx context.Context) {
	workCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	d.cancel = cancel

	d.pool = pool.New().WithMaxGoroutines(len(d.lanes)).WithContext(workCtx)
	for i, lane := range d.lanes {
		d.pool.Go(func(ctx context.Context) error {
			d.runLane(ctx, i, lane)
			return nil
		})
	}
	d.logger.Info().Int("lanes", len(d.lanes)).Msg("Dispatcher started")
}

func (d *Dispatcher) runLane(ctx context.Context, idx int, lane <-chan Job) {
	for job := range lane {
		if ctx.Err() != nil {
			d.logger.Warn().
				Str("notification_id", job.ID).
				Str("container_id", domain.ShortID(job.Event.Container.ID)).
				Int("lane", idx).
				Msg("Dropping queued notification on shutdown")
			continue
		}
		d.handler.Process(ctx, job)
	}
}

func (d *Dispatcher) lane(containerID string) chan Job {
	return d.lanes[xxhash.Sum64String(containerID)%uint64(len(d.lanes))]
}

// Submit enqueues job, blocking while its lane is full.
func (d *Dispatcher) Submit(ctx context.Context, job Job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case d.lane(job.Event.Container.ID) <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain stops accepting jobs and waits up to grace for queued and in-flight jobs.
// It reports whether everything finished in time; otherwise remaining work is cancelled.
func (d *Dispatcher) Drain(grace time.Duration) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return true
	}
	d.closed = true
	for _, lane := range d.lanes {
		close(lane)
	}
	d.mu.Unlock()

	if d.pool == nil {
		return true
	}

	done := make(chan struct{})
	go func() {
		_ = d.pool.Wait()
		close(done)
	}()

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-done:
		d.cancel()
		d.logger.Info().Msg("Dispatcher drained")
		return true
	case <-timer.C:
		d.logger.Warn().Dur("grace", grace).Msg("Shutdown grace period elapsed, cancelling in-flight notifications")
		d.cancel()
		<-done
		return false
	}
}
