// Package backoff computes capped exponential delays for reconnect and retry loops.
package backoff

import "time"

const defaultFactor = 2

// Backoff is a pure exponential schedule. The zero value is unusable; use New.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64

	attempt int
}

func New(initial, maxDelay time.Duration) *Backoff {
	if initial <= 0 {
		initial = time.Second
	}
	if maxDelay < initial {
		maxDelay = initial
	}
	return &Backoff{Initial: initial, Max: maxDelay, Factor: defaultFactor}
}

// Delay returns the delay for the given zero-based attempt without mutating the schedule.
func (b *Backoff) Delay(attempt int) time.Duration {
	d := float64(b.Initial)
	for i := 0; i < attempt; i++ {
		d *= b.Factor
		if d >= float64(b.Max) {
			return b.Max
		}
	}
	return time.Duration(d)
}

// Step returns the next delay and advances the schedule.
func (b *Backoff) Step() time.Duration {
	d := b.Delay(b.attempt)
	b.attempt++
	return d
}

func (b *Backoff) Attempt() int {
	return b.attempt
}

func (b *Backoff) Reset() {
	b.attempt = 0
}
