package errs

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyDelayMonotonic(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	p := DefaultPolicy
	prev := p.Delay(1, rnd)
	for n := 2; n <= p.MaxAttempts; n++ {
		d := p.Delay(n, rnd)
		minBound := time.Duration(float64(prev) * p.BackoffMultiplier * (1 - p.JitterFactor/2))
		if d > p.MaxDelay {
			d = p.MaxDelay
		}
		assert.GreaterOrEqualf(t, d, minBound, "delay(%d)=%v should be >= delay(%d)*mult*(1-jitter/2)=%v", n, d, n-1, minBound)
		prev = d
	}
}

func TestPolicyDelayClampsToMax(t *testing.T) {
	p := Policy{MaxAttempts: 10, InitialDelay: time.Second, MaxDelay: 5 * time.Second, BackoffMultiplier: 10, JitterFactor: 0}
	d := p.Delay(5, nil)
	assert.Equal(t, 5*time.Second, d)
}

func TestDecideRespectsMaxAttempts(t *testing.T) {
	p := DefaultPolicy
	e := New(KindNetTimeout, "timeout")
	require.True(t, p.Decide(e, 1))
	require.True(t, p.Decide(e, p.MaxAttempts))
	require.False(t, p.Decide(e, p.MaxAttempts+1))
}

func TestDecideNonRetryableKind(t *testing.T) {
	p := DefaultPolicy
	e := New(KindInputInvalid, "bad")
	assert.False(t, p.Decide(e, 1))
}

func TestNextDelayUsesRetryAfterHint(t *testing.T) {
	p := DefaultPolicy
	e := New(KindProviderRateLimit, "rate limited").WithRetryAfter(90 * time.Second)
	d := p.NextDelay(e, 1, nil)
	assert.Equal(t, 90*time.Second, d)
}

func TestProviderServerErrorRetryableByStatus(t *testing.T) {
	retryable := NewProviderServerError(503, "bad gateway")
	assert.True(t, retryable.Retryable())
	notRetryable := NewProviderServerError(422, "unprocessable")
	assert.False(t, notRetryable.Retryable())
}
