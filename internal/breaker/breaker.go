// Package breaker wraps gobreaker for calls to Redis.
package breaker

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// CircuitBreaker wraps gobreaker with defaults tuned for short Redis calls.
type CircuitBreaker struct {
	cb *gobreaker.CircuitBreaker
}

// Config configures the circuit breaker.
type Config struct {
	Name         string
	MaxRequests  uint32        // Requests allowed in half-open state
	Interval     time.Duration // Cyclic period for clearing counters
	Timeout      time.Duration // Time to wait before half-open
	FailureRatio float64       // Ratio of failures to trip
	MinRequests  uint32        // Min requests before evaluating ratio
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(name string) Config {
	return Config{
		Name:         name,
		MaxRequests:  3,
		Interval:     60 * time.Second,
		Timeout:      10 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

// New creates a circuit breaker with the given config.
func New(cfg Config) *CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &CircuitBreaker{
		cb: gobreaker.NewCircuitBreaker(settings),
	}
}

// Execute runs the given function through the circuit breaker.
func (c *CircuitBreaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	return c.cb.Execute(fn)
}

// Do is Execute for calls that only return an error.
func (c *CircuitBreaker) Do(fn func() error) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

// State reports the breaker state name (closed, half-open, open).
func (c *CircuitBreaker) State() string {
	return c.cb.State().String()
}

// IsOpen reports whether err was produced by a breaker refusing the call.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// breakers holds one circuit breaker per Redis endpoint.
var breakers = struct {
	sync.RWMutex
	m map[string]*CircuitBreaker
}{
	m: make(map[string]*CircuitBreaker),
}

// Get returns or creates the circuit breaker for name.
func Get(name string) *CircuitBreaker {
	breakers.RLock()
	if cb, ok := breakers.m[name]; ok {
		breakers.RUnlock()
		return cb
	}
	breakers.RUnlock()

	breakers.Lock()
	defer breakers.Unlock()

	// Double-check after acquiring write lock
	if cb, ok := breakers.m[name]; ok {
		return cb
	}

	cb := New(DefaultConfig(name))
	breakers.m[name] = cb
	return cb
}
