package connection

import (
	"math/rand/v2"
	"time"
)

// BackoffPolicy computes reconnection delays.
//
// Delay for attempt n (counted before increment) is min(BaseDelay*2^n, MaxDelay).
// With Jitter enabled the delay is drawn uniformly from [d/2, d].
type BackoffPolicy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int // Automatic attempts before giving up; 0 disables the ceiling
	Jitter      bool
}

// DefaultBackoffPolicy returns the standard 1s doubling to 30s policy with
// a ceiling of 10 attempts.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		BaseDelay:   DefaultReconnectBase,
		MaxDelay:    DefaultReconnectMax,
		MaxAttempts: DefaultMaxAttempts,
	}
}

// Delay returns the wait before the attempt numbered attempt (0-based).
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	wait := p.BaseDelay
	for i := 0; i < attempt && wait < p.MaxDelay; i++ {
		wait *= 2
	}
	if wait > p.MaxDelay {
		wait = p.MaxDelay
	}

	if p.Jitter && wait > 1 {
		half := wait / 2
		wait = half + time.Duration(rand.Int64N(int64(wait-half)+1))
	}

	return wait
}

// Exhausted reports whether no further automatic attempt is allowed.
func (p BackoffPolicy) Exhausted(attempt int) bool {
	return p.MaxAttempts > 0 && attempt >= p.MaxAttempts
}
