// Package resilience wraps outbound calls to the relational, vector,
// object, and embedding-provider dependencies with a circuit breaker, so a
// flapping store degrades ingestion and search to a fast ErrUpstream
// instead of piling up blocked goroutines against a dependency that isn't
// answering. Ported from the teacher's circuit breaker wrapping LLM provider
// calls, generalized to any (T, error) or error-only call.
package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"cortexdb/internal/domain"
)

// Default circuit breaker settings, same values as the LLM provider breaker
// this package is ported from.
const (
	defaultMaxFailures uint32        = 5
	defaultTimeout     time.Duration = 30 * time.Second
	defaultInterval    time.Duration = 60 * time.Second
)

// Config tunes a Breaker's trip/reset behavior. The zero value uses the
// package defaults.
type Config struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before transitioning to half-open.
	Timeout time.Duration
	// Interval is the cyclic period of the closed state for clearing failure counts.
	Interval time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxFailures == 0 {
		c.MaxFailures = defaultMaxFailures
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.Interval == 0 {
		c.Interval = defaultInterval
	}
	return c
}

// Breaker guards one outbound dependency. It holds a gobreaker.CircuitBreaker
// parameterized over `any` so a single Breaker can protect calls with
// differing result types via the package-level Do/DoErr helpers, since
// gobreaker is generic over exactly one result type per instance.
type Breaker struct {
	cb   *gobreaker.CircuitBreaker[any]
	name string
}

// New creates a named circuit breaker. name identifies the guarded
// dependency in logs (e.g. "relational", "vector", "embedding:openai").
func New(name string, cfg Config, logger *slog.Logger) *Breaker {
	cfg = cfg.withDefaults()
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(breakerName string, from, to gobreaker.State) {
			if logger != nil {
				logger.Warn("circuit breaker state change",
					"breaker", breakerName, "from", from.String(), "to", to.String())
			}
		},
		IsSuccessful: func(err error) bool { return err == nil },
	})
	return &Breaker{cb: cb, name: name}
}

// Do executes fn through b. When the circuit is open or the half-open probe
// quota is exhausted, fn never runs and Do returns a domain.ErrUpstream
// wrapping the breaker's name instead of reaching the dependency.
func Do[T any](b *Breaker, fn func() (T, error)) (T, error) {
	v, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("%w: circuit %q open: %s", domain.ErrUpstream, b.name, err)
		}
		return zero, err
	}
	return v.(T), nil
}

// DoErr is Do for calls that only return an error.
func DoErr(b *Breaker, fn func() error) error {
	_, err := Do(b, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
