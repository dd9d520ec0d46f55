package app

import (
	"math/rand"
	"time"
)

// Default storage retry backoff values.
const (
	DefaultBackoffInitial = 30 * time.Second
	DefaultBackoffMax     = 10 * time.Minute
)

// backoff implements exponential backoff with jitter. It hands out delays
// instead of sleeping so the cycle loop keeps its own cadence.
type backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
	rand    func() float64
}

func newBackoff(initial, max time.Duration) *backoff {
	return &backoff{
		initial: initial,
		max:     max,
		current: initial,
		rand:    rand.Float64,
	}
}

// Next returns the current delay with ±20% jitter and doubles it for the
// following call.
func (b *backoff) Next() time.Duration {
	jitter := float64(b.current) * 0.2 * (b.rand()*2 - 1)
	d := time.Duration(float64(b.current) + jitter)

	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return d
}

// Reset resets the backoff to the initial duration.
func (b *backoff) Reset() {
	b.current = b.initial
}

// Current returns the current backoff duration without jitter.
func (b *backoff) Current() time.Duration {
	return b.current
}
