package utils

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff computes the delay before a retry attempt (0-indexed)
type Backoff struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	Jitter     bool
}

// NewBackoff creates an exponential backoff; multiplier <= 0 selects 2
func NewBackoff(baseDelay, maxDelay time.Duration, multiplier float64, jitter bool) *Backoff {
	if multiplier <= 0 {
		multiplier = 2.0
	}
	return &Backoff{
		BaseDelay:  baseDelay,
		MaxDelay:   maxDelay,
		Multiplier: multiplier,
		Jitter:     jitter,
	}
}

// NextDelay returns the delay for attempt, capped at MaxDelay before jitter is applied.
// Jitter scales the delay by a random factor in [0.5, 1.5).
func (b *Backoff) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := float64(b.BaseDelay) * math.Pow(b.Multiplier, float64(attempt))
	if b.MaxDelay > 0 && delay > float64(b.MaxDelay) {
		delay = float64(b.MaxDelay)
	}
	if b.Jitter {
		delay *= 0.5 + rand.Float64()
	}
	return time.Duration(delay)
}
