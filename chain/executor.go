package chain

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
)

// ParamResolver produces the arguments of one command.
//
// Contract:
//   - Errors: a malformed declaration is reported as a *ConfigError.
type ParamResolver interface {
	Resolve(ctx context.Context, specs []ParamSpec, c *Context) (Params, error)
}

// Hook observes command executions, typically for tracing and metrics.
// StartCommand returns the context to run the command with and a function
// called once with the resulting signal.
type Hook interface {
	StartCommand(ctx context.Context, request string, d Descriptor) (context.Context, func(Signal))
}

// Executor runs one command at a time.
//
// Contract:
//   - Concurrency: safe for concurrent use if the resolver and hooks are.
//   - Errors: Run returns an error only for caller-visible failures
//     (configuration errors); everything a command does is a Signal.
type Executor struct {
	resolver ParamResolver
	hooks    []Hook
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithHook adds an execution hook. Hooks run in registration order.
func WithHook(h Hook) ExecutorOption {
	return func(e *Executor) {
		if h != nil {
			e.hooks = append(e.hooks, h)
		}
	}
}

// NewExecutor creates an executor resolving parameters with resolver.
func NewExecutor(resolver ParamResolver, opts ...ExecutorOption) *Executor {
	e := &Executor{resolver: resolver}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run resolves the parameters of d, invokes its command and stores the
// result in c under d.Name when the command completes normally.
func (e *Executor) Run(ctx context.Context, request string, d Descriptor, c *Context) (Signal, error) {
	if d.Command == nil {
		return Signal{}, &ConfigError{Command: d.Name, Err: ErrNilCommand}
	}

	var params Params
	if e.resolver != nil {
		resolved, err := e.resolver.Resolve(ctx, d.Params, c)
		if err != nil {
			var cfgErr *ConfigError
			if errors.As(err, &cfgErr) {
				if cfgErr.Command == "" {
					cfgErr.Command = d.Name
				}
				return Signal{}, cfgErr
			}
			return Signal{}, &ConfigError{Command: d.Name, Reason: "resolve parameters", Err: err}
		}
		params = resolved
	}
	if params == nil {
		params = Params{}
	}

	finishers := make([]func(Signal), 0, len(e.hooks))
	for _, h := range e.hooks {
		var done func(Signal)
		ctx, done = h.StartCommand(ctx, request, d)
		if done != nil {
			finishers = append(finishers, done)
		}
	}

	result, err := e.invoke(ctx, d, params, c)
	sig := Classify(d.Name, err)
	if sig.Kind == KindContinue {
		c.Set(d.Name, result)
	}

	for i := len(finishers) - 1; i >= 0; i-- {
		finishers[i](sig)
	}
	return sig, nil
}

func (e *Executor) invoke(ctx context.Context, d Descriptor, params Params, c *Context) (any, error) {
	var result any
	op := func(ctx context.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &PanicError{Value: r, Stack: debug.Stack()}
			}
		}()
		result, err = d.Command.Execute(ctx, params, c)
		return err
	}

	if d.Guard == nil {
		err := op(ctx)
		return result, err
	}
	if err := d.Guard.Execute(ctx, op); err != nil {
		return nil, err
	}
	return result, nil
}

// String is used in log lines.
func (s Signal) String() string {
	switch s.Kind {
	case KindForward:
		return fmt.Sprintf("%s(%s -> %s)", s.Kind, s.Command, s.Destination)
	case KindRecoverable, KindFatalAbort:
		return fmt.Sprintf("%s(%s: %v)", s.Kind, s.Command, s.Cause)
	default:
		return fmt.Sprintf("%s(%s)", s.Kind, s.Command)
	}
}
