package worker

import (
	"math/rand/v2"
	"time"
)

const (
	defaultBaseDelay = 30 * time.Second
	defaultMaxDelay  = 600 * time.Second
	defaultJitter    = 0.2
)

// Backoff computes retry delays: min(base * 2^retryCount, max) plus up to
// Jitter of that delay.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64
	// Rand returns a value in [0, 1). Defaults to math/rand/v2.
	Rand func() float64
}

// DefaultBackoff is 30s doubling, capped at 10 minutes, with 0-20% jitter.
func DefaultBackoff() Backoff {
	return Backoff{Base: defaultBaseDelay, Max: defaultMaxDelay, Jitter: defaultJitter, Rand: rand.Float64}
}

// Delay is the un-jittered delay before the attempt following retryCount failures.
func (b Backoff) Delay(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	delay := b.Base
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay >= b.Max {
			return b.Max
		}
	}
	if delay > b.Max {
		return b.Max
	}
	return delay
}

// Next is Delay plus jitter.
func (b Backoff) Next(retryCount int) time.Duration {
	delay := b.Delay(retryCount)
	random := b.Rand
	if random == nil {
		random = rand.Float64
	}
	return delay + time.Duration(float64(delay)*b.Jitter*random())
}
