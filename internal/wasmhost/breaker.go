package wasmhost

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/invakid404/cel-playground/internal/common"
)

// Caller is the subset of Host the breaker protects
type Caller interface {
	Call(ctx context.Context, mode string, args map[string]string) (common.Response, error)
}

// BreakerConfig holds circuit breaker configuration
type BreakerConfig struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	ReadyToTrip func(counts gobreaker.Counts) bool
}

// DefaultBreakerConfig returns a default circuit breaker configuration
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:        "wasm-engine",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Open after repeated host failures: traps, timeouts, bad output
			return counts.ConsecutiveFailures >= 5
		},
	}
}

// Breaker stops calling a misbehaving engine module for a while. Only host
// failures count; expressions that fail to evaluate do not.
type Breaker struct {
	caller Caller
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

// NewBreaker wraps caller in a circuit breaker
func NewBreaker(caller Caller, config BreakerConfig, logger *zap.Logger) *Breaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Breaker{caller: caller, logger: logger}
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: config.ReadyToTrip,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return b
}

// Evaluate implements common.Engine
func (b *Breaker) Evaluate(ctx context.Context, mode string, args map[string]string) common.Response {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.caller.Call(ctx, mode, args)
	})
	if err != nil {
		return common.NewResponse("", fmt.Errorf("engine unavailable: %w", err))
	}
	return result.(common.Response)
}

// State returns the current breaker state
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
