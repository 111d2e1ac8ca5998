package chain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Sentinel errors surfaced to callers of the dispatcher.
var (
	// ErrRequestNotFound indicates an unknown or illegal request name.
	ErrRequestNotFound = errors.New("chain: request not found")

	// ErrConfiguration indicates a malformed command or parameter declaration.
	ErrConfiguration = errors.New("chain: configuration error")

	// ErrForwardLoop indicates forwards nested deeper than the dispatcher allows.
	ErrForwardLoop = errors.New("chain: too many forwards")

	// ErrNilCommand indicates a descriptor without a command instance.
	ErrNilCommand = errors.New("chain: command is nil")
)

var requestNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidRequestName reports whether name may be used as a request name.
// The character set keeps names safe to embed in cache keys.
func ValidRequestName(name string) bool {
	return requestNamePattern.MatchString(name)
}

// NotFound returns an error wrapping ErrRequestNotFound for name.
func NotFound(name string) error {
	return fmt.Errorf("%w: %q", ErrRequestNotFound, name)
}

// ConfigError describes a declaration problem found while resolving a
// command. errors.Is(err, ErrConfiguration) holds for every ConfigError.
type ConfigError struct {
	Command string
	Param   string
	Reason  string
	Err     error
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("chain: configuration error")
	if e.Command != "" {
		fmt.Fprintf(&b, " in command %q", e.Command)
	}
	if e.Param != "" {
		fmt.Fprintf(&b, " param %q", e.Param)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Is matches ErrConfiguration.
func (e *ConfigError) Is(target error) bool { return target == ErrConfiguration }

// AbortError stops the chain. A silent abort is not logged.
type AbortError struct {
	Silent bool
	Cause  error
}

func (e *AbortError) Error() string {
	if e.Silent {
		return "chain: aborted silently"
	}
	if e.Cause == nil {
		return "chain: aborted"
	}
	return "chain: aborted: " + e.Cause.Error()
}

func (e *AbortError) Unwrap() error { return e.Cause }

// ForwardError stops the chain and hands control to another request.
type ForwardError struct {
	Request string

	// Context is carried into the next dispatch. Nil starts a fresh one.
	Context *Context
}

func (e *ForwardError) Error() string {
	return fmt.Sprintf("chain: forward to %q", e.Request)
}

// PanicError records a command that panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("chain: command panicked: %v", e.Value)
}

// StackTrace returns the goroutine stack captured at recovery.
func (e *PanicError) StackTrace() string { return string(e.Stack) }

// Abort returns an error that stops the chain and logs cause.
func Abort(cause error) error {
	return &AbortError{Cause: cause}
}

// Abortf is Abort with a formatted cause.
func Abortf(format string, args ...any) error {
	return &AbortError{Cause: fmt.Errorf(format, args...)}
}

// SilentAbort returns an error that stops the chain without logging.
func SilentAbort() error {
	return &AbortError{Silent: true}
}

// Forward returns an error that reroutes to request, carrying c.
func Forward(request string, c *Context) error {
	return &ForwardError{Request: request, Context: c}
}

// IsSignal reports whether err is a control-flow signal rather than a
// recoverable failure.
func IsSignal(err error) bool {
	var abort *AbortError
	var fwd *ForwardError
	var p *PanicError
	return errors.As(err, &abort) || errors.As(err, &fwd) || errors.As(err, &p)
}
