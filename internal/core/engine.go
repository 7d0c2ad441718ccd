package core

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/auto-dns/harbinger/internal/backoff"
	"github.com/auto-dns/harbinger/internal/domain"
	"github.com/auto-dns/harbinger/internal/metrics"
	"github.com/auto-dns/harbinger/internal/pipeline"
	"github.com/auto-dns/harbinger/internal/util"
	"github.com/rs/zerolog"
)

const (
	dedupeCapacity = 4096

	dropDuplicate   = "duplicate"
	dropFiltered    = "filtered"
	dropComposeDown = "compose_down"
	dropShutdown    = "shutdown"
)

type Config struct {
	ReconnectInitial time.Duration
	ReconnectMax     time.Duration
	IdleTTL          time.Duration
	EvictionInterval time.Duration
	ShutdownGrace    time.Duration
	// Actions that produce notifications. Empty means all.
	Actions []domain.Action
}

// Engine is the event watch loop. It is the single consumer of the runtime event stream
// and the only writer to the registry.
type Engine struct {
	logger     zerolog.Logger
	cfg        Config
	source     eventSource
	registry   containerRegistry
	classifier classifier
	dispatcher dispatcher
	now        func() time.Time

	state     atomic.Int32
	watermark time.Time
	seen      *recentKeys
}

func NewEngine(logger zerolog.Logger, cfg Config, source eventSource, reg containerRegistry, c classifier, d dispatcher) *Engine {
	e := &Engine{
		logger:     logger.With().Str("component", "watch_loop").Logger(),
		cfg:        cfg,
		source:     source,
		registry:   reg,
		classifier: c,
		dispatcher: d,
		now:        time.Now,
		seen:       newRecentKeys(dedupeCapacity),
	}
	e.state.Store(int32(StateDisconnected))
	return e
}

func (e *Engine) State() State {
	return State(e.state.Load())
}

// Healthy reports false once shutdown has begun.
func (e *Engine) Healthy() bool {
	return e.State() != StateShuttingDown
}

// Ready reports whether the engine currently holds a live event subscription.
func (e *Engine) Ready() bool {
	return e.State() == StateStreaming
}

func (e *Engine) transition(sig Signal) {
	cur := e.State()
	next, ok := Next(cur, sig)
	if !ok {
		e.logger.Debug().Str("state", cur.String()).Str("signal", sig.String()).Msg("Ignoring invalid watch loop transition")
		return
	}
	if next == cur {
		return
	}
	e.state.Store(int32(next))
	metrics.SetWatchState(next.String(), util.Map(AllStates, State.String))
	e.logger.Debug().Str("from", cur.String()).Str("to", next.String()).Msg("Watch loop transition")
}

// Run consumes events until ctx is cancelled, then drains queued notifications.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info().Msg("Starting watch loop")
	metrics.SetWatchState(e.State().String(), util.Map(AllStates, State.String))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.evictLoop(ctx)
	}()

	bo := backoff.New(e.cfg.ReconnectInitial, e.cfg.ReconnectMax)
	for ctx.Err() == nil {
		e.transition(SignalConnect)
		events, err := e.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			e.transition(SignalConnectFailed)
			delay := bo.Step()
			e.logger.Warn().Err(err).Dur("retry_in", delay).Msg("Failed to subscribe to Docker events")
			if !sleep(ctx, delay) {
				break
			}
			continue
		}

		e.transition(SignalSubscribed)
		e.logger.Info().Time("since", e.watermark).Msg("Subscribed to Docker events")
		received := e.stream(ctx, events)
		if ctx.Err() != nil {
			break
		}

		e.transition(SignalStreamClosed)
		metrics.RecordStreamReconnect()
		if received > 0 {
			bo.Reset()
		}
		delay := bo.Step()
		e.logger.Warn().Int("events", received).Dur("retry_in", delay).Msg("Docker event stream closed, reconnecting")
		if !sleep(ctx, delay) {
			break
		}
	}

	e.transition(SignalShutdown)
	e.logger.Info().Dur("grace", e.cfg.ShutdownGrace).Msg("Stopping watch loop, draining notifications")
	if !e.dispatcher.Drain(e.cfg.ShutdownGrace) {
		e.logger.Warn().Msg("Some notifications were not delivered before shutdown")
	}
	wg.Wait()
	e.logger.Info().Msg("Watch loop stopped")
	return nil
}

// connect subscribes from the watermark and seeds the registry with running containers.
func (e *Engine) connect(ctx context.Context) (<-chan domain.RawEvent, error) {
	if e.watermark.IsZero() {
		e.watermark = e.now()
	}
	events, err := e.source.Subscribe(ctx, e.watermark)
	if err != nil {
		return nil, err
	}

	running, err := e.source.ListRunning(ctx)
	if err != nil {
		e.logger.Warn().Err(err).Msg("Could not list running containers")
		return events, nil
	}
	seenAt := e.now()
	for _, ref := range running {
		e.registry.Seed(ref, seenAt)
	}
	metrics.SetRegistryContainers(e.registry.Len())
	e.logger.Info().Int("containers", len(running)).Msg("Seeded registry with running containers")
	return events, nil
}

func (e *Engine) stream(ctx context.Context, events <-chan domain.RawEvent) int {
	received := 0
	for {
		select {
		case <-ctx.Done():
			return received
		case ev, ok := <-events:
			if !ok {
				return received
			}
			received++
			e.transition(SignalEvent)
			e.handle(ctx, ev)
		}
	}
}

func (e *Engine) handle(ctx context.Context, ev domain.RawEvent) {
	logger := e.logger.With().
		Str("container_id", domain.ShortID(ev.Container.ID)).
		Str("action", string(ev.Action)).
		Logger()

	key := ev.Key()
	if e.seen.Contains(key) {
		metrics.RecordEventDropped(dropDuplicate)
		logger.Debug().Msg("Skipping event already processed before reconnect")
		return
	}
	e.seen.Add(key)
	if ev.Time.After(e.watermark) {
		e.watermark = ev.Time
	}
	metrics.RecordEvent(string(ev.Action))

	prior, _ := e.registry.Lookup(ev.Container.ID)
	current := e.registry.Observe(ev)
	metrics.SetRegistryContainers(e.registry.Len())
	prior.Container = current.Container

	if !e.actionEnabled(ev.Action) {
		metrics.RecordEventDropped(dropFiltered)
		return
	}
	if isCleanComposeDown(ev, current) {
		metrics.RecordEventDropped(dropComposeDown)
		logger.Debug().Str("container_name", current.Container.DisplayName()).Msg("Suppressing removal after clean compose shutdown")
		return
	}

	intent := e.classifier.Classify(ev, prior)
	job := pipeline.NewJob(ev, intent)
	if err := e.dispatcher.Submit(ctx, job); err != nil {
		metrics.RecordEventDropped(dropShutdown)
		logger.Warn().Err(err).Str("notification_id", job.ID).Msg("Notification not queued")
	}
}

func (e *Engine) actionEnabled(a domain.Action) bool {
	return len(e.cfg.Actions) == 0 || slices.Contains(e.cfg.Actions, a)
}

// isCleanComposeDown matches the removal of a compose container that last exited with code 0.
func isCleanComposeDown(ev domain.RawEvent, current domain.ContainerState) bool {
	return ev.Action == domain.ActionDestroy &&
		current.Container.IsCompose() &&
		current.LastExitCode != nil &&
		*current.LastExitCode == 0
}

func (e *Engine) evictLoop(ctx context.Context) {
	if e.cfg.EvictionInterval <= 0 || e.cfg.IdleTTL <= 0 {
		return
	}
	ticker := time.NewTicker(e.cfg.EvictionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := e.registry.EvictIdle(e.cfg.IdleTTL); n > 0 {
				e.logger.Debug().Int("evicted", n).Msg("Evicted idle containers")
			}
			metrics.SetRegistryContainers(e.registry.Len())
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
