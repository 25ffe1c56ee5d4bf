// Package circuitbreaker guards calls to a remote target with sony/gobreaker.
package circuitbreaker

import (
	"context"
	"errors"

	"github.com/sony/gobreaker/v2"

	"github.com/your-org/credguard/internal/config"
	"github.com/your-org/credguard/pkg/logger"
)

// State represents the circuit breaker state.
type State = gobreaker.State

const (
	StateClosed   = gobreaker.StateClosed
	StateHalfOpen = gobreaker.StateHalfOpen
	StateOpen     = gobreaker.StateOpen
)

// ErrOpenState is returned when a call is rejected by an open breaker.
var ErrOpenState = gobreaker.ErrOpenState

const defaultFailureThreshold = 5

// Breaker guards one target. A nil or disabled Breaker runs calls directly.
type Breaker[T any] struct {
	name string
	cb   *gobreaker.CircuitBreaker[T]
}

// New creates a breaker for the named target.
func New[T any](name string, cfg config.CircuitBreakerConfig) *Breaker[T] {
	b := &Breaker[T]{name: name}
	if !cfg.Enabled {
		return b
	}

	threshold := cfg.FailureThreshold
	if threshold <= 0 {
		threshold = defaultFailureThreshold
	}

	b.cb = gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(threshold)
		},
		// Our own cancellation is not a target failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if cfg.LogStateChanges {
				logger.Warn("circuit breaker state changed",
					logger.String("target", name),
					logger.String("from", from.String()),
					logger.String("to", to.String()),
				)
			}
		},
	})
	return b
}

// Execute runs fn under the breaker. A done context returns its error
// without touching the breaker.
func (b *Breaker[T]) Execute(ctx context.Context, fn func() (T, error)) (T, error) {
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}
	if b == nil || b.cb == nil {
		return fn()
	}
	return b.cb.Execute(fn)
}

// Name returns the target name.
func (b *Breaker[T]) Name() string {
	return b.name
}

// State returns the current state. A disabled breaker is always closed.
func (b *Breaker[T]) State() State {
	if b == nil || b.cb == nil {
		return StateClosed
	}
	return b.cb.State()
}

// Counts returns the current counts.
func (b *Breaker[T]) Counts() gobreaker.Counts {
	if b == nil || b.cb == nil {
		return gobreaker.Counts{}
	}
	return b.cb.Counts()
}
