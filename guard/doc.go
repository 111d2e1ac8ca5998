// Package guard wraps command execution and request handling with
// resilience policies.
//
// Command guards implement chain.Guard and are attached to a descriptor:
//
//   - Retry re-runs a command whose failure is Recoverable. Control-flow
//     signals (aborts, forwards, panics) are never retried.
//   - Timeout gives the command a deadline through its context. The command
//     observes the deadline; no goroutine is spawned.
//   - CircuitBreaker stops calling a command after repeated failures. While
//     open, calls fail with ErrCircuitOpen, which the dispatcher treats as a
//     Recoverable failure.
//
// Breakers are shared across dispatches through Breakers, keyed by
// "request/command".
//
// RateLimiter and Bulkhead protect the dispatcher itself and are used by
// the transport layer.
package guard
