package providers

import (
	"context"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/filmvault/curator/internal/errs"
)

// Guard wraps every call to a single named provider with its own circuit
// breaker and rate limiter, so a provider stuck in rate-limit or
// server-error state degrades independently of the others (spec.md §4.D,
// §5 "Shared-resource policy").
type Guard struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
	limiters map[string]*rate.Limiter
}

func NewGuard() *Guard {
	return &Guard{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		limiters: make(map[string]*rate.Limiter),
	}
}

func (g *Guard) breakerFor(name string) *gobreaker.CircuitBreaker {
	g.mu.Lock()
	defer g.mu.Unlock()
	if b, ok := g.breakers[name]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	g.breakers[name] = b
	return b
}

func (g *Guard) limiterFor(name string) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()
	if l, ok := g.limiters[name]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(5), 10) // 5 req/s, burst 10; per-provider budget (spec.md §5)
	g.limiters[name] = l
	return l
}

// Call runs fn through name's limiter and breaker. A breaker trip surfaces
// as provider.unavailable so the caller's retry classification treats it
// the same as the provider itself reporting unavailability.
func (g *Guard) Call(ctx context.Context, name string, fn func() (any, error)) (any, error) {
	if err := g.limiterFor(name).Wait(ctx); err != nil {
		return nil, errs.Wrap(errs.KindTimeout, err, "rate limiter wait cancelled")
	}
	result, err := g.breakerFor(name).Execute(fn)
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, errs.New(errs.KindProviderUnavailable, "circuit open for "+name).WithContext("provider", name)
		}
		return nil, err
	}
	return result, nil
}

// States reports each known provider's current breaker state, surfaced on
// the /providers status endpoint so an operator can see a tripped breaker
// without reading logs.
func (g *Guard) States() map[string]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]string, len(g.breakers))
	for name, b := range g.breakers {
		out[name] = b.State().String()
	}
	return out
}
