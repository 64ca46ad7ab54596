package errs

import (
	"math/rand"
	"time"
)

// Policy is a retry schedule: delay for attempt n (1-indexed) is
// min(initial * mult^(n-1), max) * (1 + (rand-0.5)*jitter), clamped >= 0.
type Policy struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	JitterFactor      float64

	// AllowedKinds restricts retries to these kinds when non-empty.
	AllowedKinds []Kind

	// ShouldRetry, when set, replaces the built-in retryable/attempt check.
	ShouldRetry func(err *Error, attempt int) bool
}

var (
	DefaultPolicy = Policy{MaxAttempts: 3, InitialDelay: time.Second, MaxDelay: 30 * time.Second, BackoffMultiplier: 2, JitterFactor: 0.1}
	NetworkPolicy = Policy{MaxAttempts: 4, InitialDelay: 2 * time.Second, MaxDelay: 60 * time.Second, BackoffMultiplier: 2, JitterFactor: 0.3}
	DatabasePolicy = Policy{MaxAttempts: 3, InitialDelay: 100 * time.Millisecond, MaxDelay: 5 * time.Second, BackoffMultiplier: 2, JitterFactor: 0.1}
	AggressivePolicy = Policy{MaxAttempts: 5, InitialDelay: 500 * time.Millisecond, MaxDelay: 60 * time.Second, BackoffMultiplier: 2, JitterFactor: 0.2}
	ConservativePolicy = Policy{MaxAttempts: 2, InitialDelay: 2 * time.Second, MaxDelay: 10 * time.Second, BackoffMultiplier: 2, JitterFactor: 0.1}
)

// Delay computes the delay before attempt n (1-indexed), using the supplied
// random source so callers (and tests) can make it deterministic.
func (p Policy) Delay(n int, rnd *rand.Rand) time.Duration {
	if n < 1 {
		n = 1
	}
	base := float64(p.InitialDelay) * pow(p.BackoffMultiplier, n-1)
	if max := float64(p.MaxDelay); base > max {
		base = max
	}
	jitter := 1.0
	if p.JitterFactor > 0 {
		r := 0.5
		if rnd != nil {
			r = rnd.Float64()
		}
		jitter = 1 + (r-0.5)*p.JitterFactor
	}
	d := time.Duration(base * jitter)
	if d < 0 {
		d = 0
	}
	return d
}

func pow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}

// Decide decides whether attempt (1-indexed, the attempt about to be
// made) should proceed for err under this policy.
func (p Policy) Decide(err *Error, attempt int) bool {
	if p.ShouldRetry != nil {
		return p.ShouldRetry(err, attempt)
	}
	if attempt > p.MaxAttempts {
		return false
	}
	if len(p.AllowedKinds) > 0 {
		allowed := false
		for _, k := range p.AllowedKinds {
			if k == err.Kind {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}
	return err.Retryable()
}

// NextDelay picks RetryAfter when the error supplies one, else computes the
// policy delay for this attempt.
func (p Policy) NextDelay(err *Error, attempt int, rnd *rand.Rand) time.Duration {
	if err.RetryAfter > 0 {
		return err.RetryAfter
	}
	return p.Delay(attempt, rnd)
}
