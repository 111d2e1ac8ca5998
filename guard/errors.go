package guard

import "errors"

// Sentinel errors for guard operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("guard: circuit breaker is open")

	// ErrRateLimited is returned when the rate limit is exceeded.
	ErrRateLimited = errors.New("guard: rate limit exceeded")

	// ErrBulkheadFull is returned when no concurrency slot is available.
	ErrBulkheadFull = errors.New("guard: bulkhead at capacity")

	// ErrTimeout wraps a command failure that happened after its deadline.
	ErrTimeout = errors.New("guard: command timed out")
)
