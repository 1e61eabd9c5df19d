package fetch

import (
	"math/rand"
	"time"
)

const (
	// maxFailureStreak is the consecutive failure count after which a
	// stream reports the failed connection state. Streams keep retrying at
	// the backoff ceiling once failed.
	maxFailureStreak = 5
)

// Backoff defines retry pacing for market data sources.
type Backoff struct {
	// Min is the minimum backoff duration.
	Min time.Duration
	// Max is the maximum backoff duration.
	Max time.Duration
	// Factor multiplies the delay for each retry attempt.
	Factor float64
	// Jitter adds randomization as a fraction of the delay (0-1).
	Jitter float64
}

// DefaultBackoff provides conservative retry defaults.
func DefaultBackoff() Backoff {
	return Backoff{
		Min:    500 * time.Millisecond,
		Max:    30 * time.Second,
		Factor: 2.0,
		Jitter: 0.2,
	}
}

// Next returns the next backoff duration for the given attempt (1-based).
func (b Backoff) Next(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	min := b.Min
	if min <= 0 {
		min = 100 * time.Millisecond
	}
	max := b.Max
	if max <= 0 {
		max = 30 * time.Second
	}
	factor := b.Factor
	if factor <= 1 {
		factor = 2.0
	}

	wait := min
	for i := 1; i < attempt; i++ {
		next := time.Duration(float64(wait) * factor)
		if next > max {
			wait = max
			break
		}
		wait = next
	}

	if b.Jitter <= 0 {
		return wait
	}
	jitter := b.Jitter
	if jitter > 1 {
		jitter = 1
	}
	delta := float64(wait) * jitter
	return wait - time.Duration(delta) + time.Duration(rand.Float64()*2*delta)
}
