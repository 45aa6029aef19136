package intelligence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"geowarden/internal/metrics"

	"github.com/pterm/pterm"
	"github.com/sony/gobreaker/v2"
)

// BreakerSettings tunes the circuit breaker in front of a provider.
type BreakerSettings struct {
	// Consecutive failures that open the circuit
	MaxFailures uint32
	// How long the circuit stays open before probing again
	OpenTimeout time.Duration
}

// Guarded shields callers from a failing provider. While the circuit is open
// lookups fail fast with ErrUnavailable instead of waiting on the timeout.
type Guarded struct {
	name   string
	next   Provider
	cb     *gobreaker.CircuitBreaker[*Result]
	logger *pterm.Logger
}

func NewGuarded(name string, next Provider, settings BreakerSettings, logger *pterm.Logger) *Guarded {
	if settings.MaxFailures == 0 {
		settings.MaxFailures = 5
	}
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = 30 * time.Second
	}

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[*Result](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			shouldTrip := counts.ConsecutiveFailures >= settings.MaxFailures
			if shouldTrip {
				logger.Warn("[CIRCUIT BREAKER] Opening circuit",
					logger.Args("name", name, "consecutive_failures", counts.ConsecutiveFailures))
			}
			return shouldTrip
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !countsAgainstUpstream(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("[CIRCUIT BREAKER] State transition",
				logger.Args("name", name, "from", from.String(), "to", to.String()))
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &Guarded{name: name, next: next, cb: cb, logger: logger}
}

func (g *Guarded) Analyze(ctx context.Context, ip string) (*Result, error) {
	result, err := g.cb.Execute(func() (*Result, error) {
		return g.next.Analyze(ctx, ip)
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(g.name, "rejected").Inc()
		metrics.IntelLookups.WithLabelValues(g.name, "error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	case err != nil && !countsAgainstUpstream(err):
		metrics.CircuitBreakerRequests.WithLabelValues(g.name, "skipped").Inc()
		metrics.IntelLookups.WithLabelValues(g.name, "error").Inc()
		if !errors.Is(err, ErrUnavailable) {
			err = fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return nil, err
	case err != nil:
		metrics.CircuitBreakerRequests.WithLabelValues(g.name, "failure").Inc()
		metrics.IntelLookups.WithLabelValues(g.name, "error").Inc()
		if !errors.Is(err, ErrUnavailable) {
			err = fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, err
	case result == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(g.name, "success").Inc()
		metrics.IntelLookups.WithLabelValues(g.name, "unknown").Inc()
		return nil, nil
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(g.name, "success").Inc()
		metrics.IntelLookups.WithLabelValues(g.name, "hit").Inc()
		return result, nil
	}
}

// countsAgainstUpstream reports whether err says something about the provider's health.
// Local rate limiting and callers giving up do not.
func countsAgainstUpstream(err error) bool {
	return !errors.Is(err, errRateLimited) && !errors.Is(err, context.Canceled)
}

// State returns the breaker state name for status reporting.
func (g *Guarded) State() string {
	return g.cb.State().String()
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
