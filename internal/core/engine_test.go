package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/auto-dns/harbinger/internal/classify"
	"github.com/auto-dns/harbinger/internal/domain"
	"github.com/auto-dns/harbinger/internal/pipeline"
	"github.com/auto-dns/harbinger/internal/state"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSource serves one scripted subscription per Subscribe call. Once the script
// is exhausted, subscriptions stay open until the context ends.
type scriptedSource struct {
	mu      sync.Mutex
	script  []subscription
	running []domain.ContainerRef
	since   []time.Time
}

type subscription struct {
	err    error
	events []domain.RawEvent
}

func (s *scriptedSource) Subscribe(ctx context.Context, since time.Time) (<-chan domain.RawEvent, error) {
	s.mu.Lock()
	s.since = append(s.since, since)
	var sub *subscription
	if len(s.script) > 0 {
		sub = &s.script[0]
		s.script = s.script[1:]
	}
	s.mu.Unlock()

	if sub != nil && sub.err != nil {
		return nil, sub.err
	}

	ch := make(chan domain.RawEvent, 16)
	if sub != nil {
		for _, ev := range sub.events {
			ch <- ev
		}
		close(ch)
		return ch, nil
	}
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (s *scriptedSource) ListRunning(context.Context) ([]domain.ContainerRef, error) {
	return s.running, nil
}

func (s *scriptedSource) Since() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Time(nil), s.since...)
}

type captureDispatcher struct {
	mu      sync.Mutex
	jobs    []pipeline.Job
	drained bool
}

func (d *captureDispatcher) Submit(_ context.Context, job pipeline.Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = append(d.jobs, job)
	return nil
}

func (d *captureDispatcher) Drain(time.Duration) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.drained = true
	return true
}

func (d *captureDispatcher) Jobs() []pipeline.Job {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]pipeline.Job(nil), d.jobs...)
}

func (d *captureDispatcher) Severities() []domain.Severity {
	var out []domain.Severity
	for _, j := range d.Jobs() {
		out = append(out, j.Intent.Severity)
	}
	return out
}

var (
	base     = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	testConf = Config{
		ReconnectInitial: time.Millisecond,
		ReconnectMax:     5 * time.Millisecond,
		ShutdownGrace:    time.Second,
	}
)

func ev(id string, action domain.Action, offset time.Duration, exitCode *int) domain.RawEvent {
	return domain.RawEvent{
		Container: domain.ContainerRef{ID: id, Name: id, Image: "img"},
		Action:    action,
		ExitCode:  exitCode,
		Time:      base.Add(offset),
	}
}

type harness struct {
	engine     *Engine
	source     *scriptedSource
	dispatcher *captureDispatcher
	registry   *state.Registry
	cancel     context.CancelFunc
	done       chan error
}

func startEngine(t *testing.T, cfg Config, source *scriptedSource) *harness {
	t.Helper()

	h := &harness{
		source:     source,
		dispatcher: &captureDispatcher{},
		registry:   state.NewRegistry(),
		done:       make(chan error, 1),
	}
	h.engine = NewEngine(zerolog.Nop(), cfg, source, h.registry, classify.New("node-1", "test"), h.dispatcher)
	h.engine.now = func() time.Time { return base.Add(-time.Minute) }

	ctx, cancel := context.WithCancel(t.Context())
	h.cancel = cancel
	go func() {
		h.done <- h.engine.Run(ctx)
	}()
	return h
}

func (h *harness) stop(t *testing.T) {
	t.Helper()

	h.cancel()
	select {
	case err := <-h.done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop")
	}
}

func (h *harness) waitJobs(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return len(h.dispatcher.Jobs()) >= n }, 5*time.Second, time.Millisecond)
}

func TestEngine_StartThenCleanExit(t *testing.T) {
	t.Parallel()

	h := startEngine(t, testConf, &scriptedSource{script: []subscription{{events: []domain.RawEvent{
		ev("A", domain.ActionStart, 0, nil),
		ev("A", domain.ActionDie, time.Second, domain.IntPtr(0)),
	}}}})
	h.waitJobs(t, 2)
	h.stop(t)

	assert.Equal(t, []domain.Severity{domain.SeverityInfo, domain.SeverityInfo}, h.dispatcher.Severities())
	st, ok := h.registry.Lookup("A")
	require.True(t, ok)
	assert.Equal(t, domain.StatusExited, st.Status)
}

func TestEngine_StartThenOOM(t *testing.T) {
	t.Parallel()

	h := startEngine(t, testConf, &scriptedSource{script: []subscription{{events: []domain.RawEvent{
		ev("B", domain.ActionStart, 0, nil),
		ev("B", domain.ActionOOM, time.Second, nil),
	}}}})
	h.waitJobs(t, 2)
	h.stop(t)

	jobs := h.dispatcher.Jobs()
	assert.Equal(t, []domain.Severity{domain.SeverityInfo, domain.SeverityFatal}, h.dispatcher.Severities())
	assert.False(t, jobs[0].FetchLogs)
	assert.True(t, jobs[1].FetchLogs)
}

func TestEngine_ReconnectDoesNotDuplicate(t *testing.T) {
	t.Parallel()

	e1 := ev("C", domain.ActionStart, 0, nil)
	e2 := ev("C", domain.ActionKill, time.Second, nil)
	e3 := ev("C", domain.ActionDie, 2*time.Second, domain.IntPtr(137))

	source := &scriptedSource{script: []subscription{
		{events: []domain.RawEvent{e1, e2}},
		{events: []domain.RawEvent{e2, e3}},
	}}
	h := startEngine(t, testConf, source)
	h.waitJobs(t, 3)
	h.stop(t)

	jobs := h.dispatcher.Jobs()
	require.Len(t, jobs, 3)
	assert.Equal(t, domain.ActionStart, jobs[0].Event.Action)
	assert.Equal(t, domain.ActionKill, jobs[1].Event.Action)
	assert.Equal(t, domain.ActionDie, jobs[2].Event.Action)

	since := source.Since()
	require.GreaterOrEqual(t, len(since), 2)
	assert.Equal(t, base.Add(-time.Minute), since[0])
	assert.Equal(t, e2.Time, since[1])
}

func TestEngine_RetriesFailedSubscribe(t *testing.T) {
	t.Parallel()

	source := &scriptedSource{script: []subscription{
		{err: errors.New("dial unix /var/run/docker.sock: connect: no such file or directory")},
		{err: errors.New("still down")},
		{events: []domain.RawEvent{ev("D", domain.ActionStart, 0, nil)}},
	}}
	h := startEngine(t, testConf, source)
	h.waitJobs(t, 1)
	h.stop(t)

	assert.GreaterOrEqual(t, len(source.Since()), 3)
}

func TestEngine_ReadyWhileStreaming(t *testing.T) {
	t.Parallel()

	h := startEngine(t, testConf, &scriptedSource{})
	require.Eventually(t, h.engine.Ready, 5*time.Second, time.Millisecond)
	assert.True(t, h.engine.Healthy())

	h.stop(t)

	assert.Equal(t, StateShuttingDown, h.engine.State())
	assert.False(t, h.engine.Healthy())
	assert.False(t, h.engine.Ready())
	assert.True(t, h.dispatcher.drained)
}

func TestEngine_ActionFilter(t *testing.T) {
	t.Parallel()

	cfg := testConf
	cfg.Actions = []domain.Action{domain.ActionDie}
	h := startEngine(t, cfg, &scriptedSource{script: []subscription{{events: []domain.RawEvent{
		ev("E", domain.ActionStart, 0, nil),
		ev("E", domain.ActionDie, time.Second, domain.IntPtr(3)),
	}}}})
	h.waitJobs(t, 1)
	h.stop(t)

	jobs := h.dispatcher.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, domain.ActionDie, jobs[0].Event.Action)
	_, ok := h.registry.Lookup("E")
	assert.True(t, ok)
}

func TestEngine_SuppressesCleanComposeDown(t *testing.T) {
	t.Parallel()

	compose := func(e domain.RawEvent) domain.RawEvent {
		e.Container.ComposeProject = "shop"
		e.Container.ComposeService = "web"
		return e
	}
	h := startEngine(t, testConf, &scriptedSource{script: []subscription{{events: []domain.RawEvent{
		compose(ev("F", domain.ActionDie, 0, domain.IntPtr(0))),
		compose(ev("F", domain.ActionDestroy, time.Second, nil)),
		compose(ev("G", domain.ActionDie, 2*time.Second, domain.IntPtr(1))),
		compose(ev("G", domain.ActionDestroy, 3*time.Second, nil)),
	}}}})
	h.waitJobs(t, 3)
	h.stop(t)

	var got []string
	for _, j := range h.dispatcher.Jobs() {
		got = append(got, j.Event.Container.ID+":"+string(j.Event.Action))
	}
	assert.Equal(t, []string{"F:die", "G:die", "G:destroy"}, got)
}

func TestEngine_SeedsRunningContainers(t *testing.T) {
	t.Parallel()

	source := &scriptedSource{running: []domain.ContainerRef{{ID: "H", Name: "db", ComposeProject: "shop", ComposeService: "db"}}}
	h := startEngine(t, testConf, source)
	require.Eventually(t, h.engine.Ready, 5*time.Second, time.Millisecond)
	h.stop(t)

	st, ok := h.registry.Lookup("H")
	require.True(t, ok)
	assert.Equal(t, domain.StatusRunning, st.Status)
	assert.Empty(t, h.dispatcher.Jobs())
}

func TestEngine_RestartContext(t *testing.T) {
	t.Parallel()

	restarting := func(e domain.RawEvent) domain.RawEvent {
		e.Restarting = true
		return e
	}
	// docker restart, then a policy-driven restart, then an unrelated crash an hour later.
	h := startEngine(t, testConf, &scriptedSource{script: []subscription{{events: []domain.RawEvent{
		ev("I", domain.ActionStart, 0, nil),
		ev("I", domain.ActionKill, time.Second, nil),
		ev("I", domain.ActionDie, 2*time.Second, domain.IntPtr(0)),
		ev("I", domain.ActionStop, 3*time.Second, nil),
		ev("I", domain.ActionStart, 4*time.Second, nil),
		ev("I", domain.ActionRestart, 5*time.Second, nil),
		restarting(ev("I", domain.ActionDie, 10*time.Second, domain.IntPtr(1))),
		ev("I", domain.ActionStart, 11*time.Second, nil),
		ev("I", domain.ActionDie, time.Hour, domain.IntPtr(1)),
	}}}})
	h.waitJobs(t, 9)
	h.stop(t)

	jobs := h.dispatcher.Jobs()
	require.Len(t, jobs, 9)
	var withContext []int
	for i, j := range jobs {
		if v, ok := j.Intent.Field(classify.FieldContext); ok {
			assert.Equal(t, "restart in progress", v)
			withContext = append(withContext, i)
		}
	}
	assert.Equal(t, []int{6}, withContext)

	st, ok := h.registry.Lookup("I")
	require.True(t, ok)
	assert.Equal(t, domain.StatusExited, st.Status)
}
