package httpx

import (
	"fmt"
	"time"

	"github.com/sony/gobreaker"
)

// CircuitBreaker guards a remote dependency so repeated failures
// short-circuit instead of burning a timeout on every call.
type CircuitBreaker interface {
	Execute(fn func() (interface{}, error)) (interface{}, error)
}

type circuitBreakerWrapper struct {
	breaker *gobreaker.CircuitBreaker
}

func NewCircuitBreaker(name string, timeout time.Duration, maxFailures uint32) CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
	}
	return &circuitBreakerWrapper{breaker: gobreaker.NewCircuitBreaker(settings)}
}

func (g *circuitBreakerWrapper) Execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := g.breaker.Execute(fn)
	if err != nil {
		return nil, fmt.Errorf("breaker (%s): %w", g.breaker.Name(), err)
	}
	return result, nil
}
