package chain

import (
	"context"
	"fmt"
	"strconv"
)

// Command is one unit of work in a request chain.
//
// Contract:
//   - Execute performs side effects and returns the value stored under the
//     descriptor name in the Context. It returns a plain error for a
//     recoverable failure, or an error built by Abort, SilentAbort or Forward
//     to stop the chain.
//   - Cacheable reports whether the command's contributions are safe to
//     serialize into a cache entry. It is informational; eligibility is
//     decided per Request.
//   - Concurrency: a command instance is used by one dispatch at a time.
type Command interface {
	Execute(ctx context.Context, params Params, c *Context) (any, error)
	Cacheable() bool
}

// CommandFunc adapts a function to the Command interface. It is cacheable.
type CommandFunc func(ctx context.Context, params Params, c *Context) (any, error)

// Execute calls f.
func (f CommandFunc) Execute(ctx context.Context, params Params, c *Context) (any, error) {
	return f(ctx, params, c)
}

// Cacheable returns true.
func (f CommandFunc) Cacheable() bool { return true }

// Guard wraps the invocation of a command, for example with retries or a
// deadline. It must return the operation's error unchanged when it gives up.
type Guard interface {
	Execute(ctx context.Context, op func(context.Context) error) error
}

// ParamSpec declares one command parameter: the ordered source locators
// ("kind:key") to try and the default used when none yields a value.
type ParamSpec struct {
	Name    string
	Sources []string
	Default any
}

// Descriptor is one step of a Request.
type Descriptor struct {
	// Name is unique within the request; the command result is stored
	// under it.
	Name string

	// Type is the registry name the command was built from.
	Type string

	Command Command
	Params  []ParamSpec

	// Guard is optional.
	Guard Guard
}

// Cacheable reports the command's own cacheability.
func (d Descriptor) Cacheable() bool {
	return d.Command != nil && d.Command.Cacheable()
}

// Request is a named, ordered chain of commands.
type Request struct {
	Name      string
	Commands  []Descriptor
	Cacheable bool

	// CacheTarget names the cache backend to write to. Empty means the
	// first configured backend.
	CacheTarget string
}

// Params is the resolved argument mapping handed to Command.Execute.
type Params map[string]any

// Get returns the raw parameter value.
func (p Params) Get(name string) (any, bool) {
	v, ok := p[name]
	return v, ok
}

// String returns the parameter formatted as a string. Missing and nil
// parameters yield "".
func (p Params) String(name string) string {
	v, ok := p[name]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// Int returns the parameter as an int, or def when it is missing or not
// numeric.
func (p Params) Int(name string, def int) int {
	switch v := p[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Bool returns the parameter as a bool, or def when it cannot be parsed.
func (p Params) Bool(name string, def bool) bool {
	switch v := p[name].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
