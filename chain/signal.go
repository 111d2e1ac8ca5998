package chain

import "errors"

// Kind is the control-flow outcome of one command.
type Kind int

const (
	KindContinue Kind = iota
	KindRecoverable
	KindFatalAbort
	KindSilentAbort
	KindForward
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindContinue:
		return "continue"
	case KindRecoverable:
		return "recoverable"
	case KindFatalAbort:
		return "fatal_abort"
	case KindSilentAbort:
		return "silent_abort"
	case KindForward:
		return "forward"
	default:
		return "unknown"
	}
}

// Stops reports whether the kind ends the current chain.
func (k Kind) Stops() bool {
	return k == KindFatalAbort || k == KindSilentAbort || k == KindForward
}

// Signal is the tagged result of running one command.
type Signal struct {
	Kind Kind

	// Command is the descriptor name that produced the signal.
	Command string

	// Cause is set for KindRecoverable and KindFatalAbort.
	Cause error

	// Destination and Context are set for KindForward.
	Destination string
	Context     *Context
}

// Classify maps the error returned by a command to a Signal.
func Classify(command string, err error) Signal {
	if err == nil {
		return Signal{Kind: KindContinue, Command: command}
	}

	var fwd *ForwardError
	if errors.As(err, &fwd) {
		return Signal{Kind: KindForward, Command: command, Destination: fwd.Request, Context: fwd.Context}
	}

	var abort *AbortError
	if errors.As(err, &abort) {
		if abort.Silent {
			return Signal{Kind: KindSilentAbort, Command: command}
		}
		cause := abort.Cause
		if cause == nil {
			cause = err
		}
		return Signal{Kind: KindFatalAbort, Command: command, Cause: cause}
	}

	var p *PanicError
	if errors.As(err, &p) {
		return Signal{Kind: KindFatalAbort, Command: command, Cause: p}
	}

	return Signal{Kind: KindRecoverable, Command: command, Cause: err}
}
