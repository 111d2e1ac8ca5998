package health

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/jonwraymond/frontctl/guard"
)

// Status represents the health status of a component.
type Status int

const (
	// StatusHealthy indicates the component is functioning normally.
	StatusHealthy Status = iota
	// StatusDegraded indicates the component works with reduced capacity.
	StatusDegraded
	// StatusUnhealthy indicates the component is not functioning.
	StatusUnhealthy
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Result contains the outcome of a health check.
type Result struct {
	Status   Status
	Message  string
	Details  map[string]any
	Duration time.Duration
	Error    error
}

// Healthy creates a healthy result.
func Healthy(message string) Result {
	return Result{Status: StatusHealthy, Message: message}
}

// Degraded creates a degraded result.
func Degraded(message string) Result {
	return Result{Status: StatusDegraded, Message: message}
}

// Unhealthy creates an unhealthy result.
func Unhealthy(message string, err error) Result {
	return Result{Status: StatusUnhealthy, Message: message, Error: err}
}

// WithDetails adds details to a result.
func (r Result) WithDetails(details map[string]any) Result {
	r.Details = details
	return r
}

// Checker is the interface for health checks.
//
// Contract:
//   - Check must honor ctx cancellation.
//   - Failures are reported in the Result, never panicked.
type Checker interface {
	Name() string
	Check(ctx context.Context) Result
}

type checkerFunc struct {
	name string
	fn   func(context.Context) Result
}

// CheckerFunc adapts fn into a named Checker.
func CheckerFunc(name string, fn func(context.Context) Result) Checker {
	return &checkerFunc{name: name, fn: fn}
}

func (f *checkerFunc) Name() string                     { return f.name }
func (f *checkerFunc) Check(ctx context.Context) Result { return f.fn(ctx) }

// Pinger is implemented by backends that can test their connection, such
// as cache.SQLiteCache and observe.SQLiteBackend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker reports p as healthy when Ping succeeds.
func PingChecker(name string, p Pinger) Checker {
	return CheckerFunc(name, func(ctx context.Context) Result {
		if err := p.Ping(ctx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return Unhealthy("ping timed out", fmt.Errorf("%w: %w", ErrCheckTimeout, err))
			}
			return Unhealthy("ping failed", err)
		}
		return Healthy("reachable")
	})
}

// BreakerChecker reports degraded while any circuit breaker in b is not
// closed. The affected keys are listed in the details.
func BreakerChecker(name string, b *guard.Breakers) Checker {
	return CheckerFunc(name, func(context.Context) Result {
		states := b.States()
		details := make(map[string]any, len(states))
		var tripped []string
		for _, key := range slices.Sorted(maps.Keys(states)) {
			st := states[key]
			details[key] = st.String()
			if st != guard.StateClosed {
				tripped = append(tripped, key)
			}
		}
		if len(tripped) > 0 {
			return Degraded("circuit open: " + strings.Join(tripped, ", ")).WithDetails(details)
		}
		return Healthy(fmt.Sprintf("%d circuits closed", len(states))).WithDetails(details)
	})
}
