package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/auto-dns/harbinger/internal/backoff"
	"github.com/auto-dns/harbinger/internal/format"
	"github.com/auto-dns/harbinger/internal/metrics"
	"github.com/rs/zerolog"
)

type Sender interface {
	Send(ctx context.Context, p format.Payload) error
}

type Config struct {
	MaxRetries   int
	RetryInitial time.Duration
	RetryMax     time.Duration
}

// Manager delivers payloads with bounded retries on transient failures.
type Manager struct {
	sender Sender
	cfg    Config
	logger zerolog.Logger
}

func NewManager(sender Sender, cfg Config, logger zerolog.Logger) *Manager {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Manager{
		sender: sender,
		cfg:    cfg,
		logger: logger.With().Str("component", "delivery").Logger(),
	}
}

type step int

const (
	stepDone step = iota
	stepRetry
	stepGiveUp
)

// retryState tracks one Deliver call. next is its transition function.
type retryState struct {
	attempts   int
	maxRetries int
	backoff    *backoff.Backoff
}

// next records the outcome of an attempt and decides what happens after it.
func (s *retryState) next(err error) (step, time.Duration) {
	s.attempts++
	switch {
	case err == nil:
		return stepDone, 0
	case IsPermanent(err):
		return stepGiveUp, 0
	case s.attempts > s.maxRetries:
		return stepGiveUp, 0
	}

	delay := s.backoff.Step()
	var transient *TransientError
	if errors.As(err, &transient) && transient.RetryAfter > delay {
		delay = min(transient.RetryAfter, s.backoff.Max)
	}
	return stepRetry, delay
}

func (m *Manager) Deliver(ctx context.Context, p format.Payload) Result {
	rs := &retryState{
		maxRetries: m.cfg.MaxRetries,
		backoff:    backoff.New(m.cfg.RetryInitial, m.cfg.RetryMax),
	}

	for {
		metrics.RecordDeliveryAttempt()
		err := m.sender.Send(ctx, p)
		next, delay := rs.next(err)

		switch next {
		case stepDone:
			if rs.attempts > 1 {
				m.logger.Info().Int("attempts", rs.attempts).Msg("Notification delivered after retry")
			}
			return Result{Delivered: true, Attempts: rs.attempts}
		case stepGiveUp:
			if IsPermanent(err) {
				m.logger.Error().Err(err).Int("attempts", rs.attempts).Msg("Notification rejected by sink, not retrying")
			} else {
				m.logger.Warn().Err(err).Int("attempts", rs.attempts).Msg("Notification dropped after exhausting retries")
			}
			return Result{Attempts: rs.attempts, Err: err}
		}

		m.logger.Debug().Err(err).Int("attempt", rs.attempts).Dur("delay", delay).Msg("Retrying notification delivery")
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			m.logger.Warn().Err(ctx.Err()).Int("attempts", rs.attempts).Msg("Notification delivery cancelled")
			return Result{Attempts: rs.attempts, Err: errors.Join(err, ctx.Err())}
		case <-timer.C:
		}
	}
}
