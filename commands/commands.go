package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"

	"github.com/jonwraymond/frontctl/chain"
	"github.com/jonwraymond/frontctl/internal/cfgmap"
	"github.com/jonwraymond/frontctl/param"
)

// ErrNoSession indicates a session command ran without a session source.
var ErrNoSession = errors.New("commands: no session for this dispatch")

func init() {
	if err := Register(chain.DefaultRegistry); err != nil {
		panic(err)
	}
}

// Register adds the built-in command types to r.
func Register(r *chain.Registry) error {
	factories := []struct {
		name    string
		factory chain.Factory
	}{
		{"echo", newEcho},
		{"set", newSet},
		{"redirect", newRedirect},
		{"forward", newForward},
		{"abort", newAbort},
		{"fail", newFail},
		{"session", newSession},
		{"env", newEnv},
		{"dump", newDump},
	}
	var errs []error
	for _, f := range factories {
		errs = append(errs, r.Register(f.name, f.factory))
	}
	return errors.Join(errs...)
}

// stringParam returns the named parameter, or fallback when the parameter
// is absent or nil.
func stringParam(p chain.Params, name, fallback string) string {
	if v, ok := p.Get(name); ok && v != nil {
		return p.String(name)
	}
	return fallback
}

// Echo writes text to the dispatch output.
type Echo struct {
	Text    string `yaml:"text"`
	Newline bool   `yaml:"newline"`
}

func newEcho(cfg map[string]any) (chain.Command, error) {
	var e Echo
	if err := cfgmap.Decode(cfg, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Execute writes the text parameter, or the configured text, and returns it.
func (e *Echo) Execute(_ context.Context, p chain.Params, c *chain.Context) (any, error) {
	text := stringParam(p, "text", e.Text)
	out := text
	if e.Newline {
		out += "\n"
	}
	if _, err := io.WriteString(c.Output(), out); err != nil {
		return nil, fmt.Errorf("write output: %w", err)
	}
	return text, nil
}

// Cacheable implements chain.Command.
func (*Echo) Cacheable() bool { return true }

// Set stores a value in the context.
type Set struct {
	// Key, when set, also stores the value under this context key.
	Key   string `yaml:"key"`
	Value any    `yaml:"value"`
}

func newSet(cfg map[string]any) (chain.Command, error) {
	var s Set
	if err := cfgmap.Decode(cfg, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Execute returns the value parameter, falling back to the configured value.
func (s *Set) Execute(_ context.Context, p chain.Params, c *chain.Context) (any, error) {
	v, ok := p.Get("value")
	if !ok || v == nil {
		v = s.Value
	}
	if s.Key != "" {
		c.Set(s.Key, v)
	}
	return v, nil
}

// Cacheable implements chain.Command.
func (*Set) Cacheable() bool { return true }

// Redirect sends the client elsewhere and stops the chain silently.
type Redirect struct {
	To     string `yaml:"to"`
	Status int    `yaml:"status"`
}

func newRedirect(cfg map[string]any) (chain.Command, error) {
	r := Redirect{Status: http.StatusFound}
	if err := cfgmap.Decode(cfg, &r); err != nil {
		return nil, err
	}
	if r.Status < 300 || r.Status > 399 {
		return nil, fmt.Errorf("status %d is not a redirect", r.Status)
	}
	return &r, nil
}

// Execute redirects to the to parameter. Without a Redirector the target
// is written to the output as a Location line.
func (r *Redirect) Execute(ctx context.Context, p chain.Params, c *chain.Context) (any, error) {
	to := stringParam(p, "to", r.To)
	if to == "" {
		return nil, chain.Abortf("redirect: no target")
	}
	if rd, ok := chain.RedirectorFromContext(ctx); ok {
		if err := rd.Redirect(to, r.Status); err != nil {
			return nil, chain.Abort(fmt.Errorf("redirect: %w", err))
		}
	} else if _, err := fmt.Fprintf(c.Output(), "Location: %s\n", to); err != nil {
		return nil, chain.Abort(err)
	}
	return nil, chain.SilentAbort()
}

// Cacheable implements chain.Command. Redirects depend on the client.
func (*Redirect) Cacheable() bool { return false }

// Forward reroutes the dispatch to another request.
type Forward struct {
	To string `yaml:"to"`

	// Carry hands the current context to the destination. Default: true
	Carry *bool `yaml:"carry"`
}

func newForward(cfg map[string]any) (chain.Command, error) {
	var f Forward
	if err := cfgmap.Decode(cfg, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Execute forwards to the to parameter.
func (f *Forward) Execute(_ context.Context, p chain.Params, c *chain.Context) (any, error) {
	to := stringParam(p, "to", f.To)
	if to == "" {
		return nil, chain.Abortf("forward: no destination")
	}
	if f.Carry != nil && !*f.Carry {
		return nil, chain.Forward(to, nil)
	}
	return nil, chain.Forward(to, c)
}

// Cacheable implements chain.Command.
func (*Forward) Cacheable() bool { return true }

// Abort stops the chain. Unless Silent, the reason is logged.
type Abort struct {
	Reason string `yaml:"reason"`
	Silent bool   `yaml:"silent"`
}

func newAbort(cfg map[string]any) (chain.Command, error) {
	var a Abort
	if err := cfgmap.Decode(cfg, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Execute always stops the chain.
func (a *Abort) Execute(_ context.Context, p chain.Params, _ *chain.Context) (any, error) {
	if a.Silent {
		return nil, chain.SilentAbort()
	}
	reason := stringParam(p, "reason", a.Reason)
	if reason == "" {
		reason = "aborted"
	}
	return nil, chain.Abort(errors.New(reason))
}

// Cacheable implements chain.Command.
func (*Abort) Cacheable() bool { return true }

// Fail reports a recoverable failure; the chain continues.
type Fail struct {
	Reason string `yaml:"reason"`
}

func newFail(cfg map[string]any) (chain.Command, error) {
	var f Fail
	if err := cfgmap.Decode(cfg, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Execute returns the reason as an error.
func (f *Fail) Execute(_ context.Context, p chain.Params, _ *chain.Context) (any, error) {
	reason := stringParam(p, "reason", f.Reason)
	if reason == "" {
		reason = "failed"
	}
	return nil, errors.New(reason)
}

// Cacheable implements chain.Command.
func (*Fail) Cacheable() bool { return true }

// Session reads or writes the dispatch's session.
type Session struct {
	// Action is get, set or delete. Default: get
	Action string `yaml:"action"`
	Key    string `yaml:"key"`
}

func newSession(cfg map[string]any) (chain.Command, error) {
	s := Session{Action: "get"}
	if err := cfgmap.Decode(cfg, &s); err != nil {
		return nil, err
	}
	switch s.Action {
	case "get", "set", "delete":
	default:
		return nil, fmt.Errorf("unknown session action %q", s.Action)
	}
	return &s, nil
}

// Execute applies the action to the key parameter (or configured key).
// Set stores the value parameter. Get returns the stored value or nil.
func (s *Session) Execute(ctx context.Context, p chain.Params, _ *chain.Context) (any, error) {
	sess := param.SessionFromContext(ctx)
	if sess == nil {
		return nil, ErrNoSession
	}
	key := stringParam(p, "key", s.Key)
	if key == "" {
		return nil, errors.New("session: no key")
	}
	switch s.Action {
	case "set":
		v, _ := p.Get("value")
		sess.Set(key, v)
		return v, nil
	case "delete":
		sess.Delete(key)
		return nil, nil
	default:
		v, _ := sess.Lookup(ctx, key)
		return v, nil
	}
}

// Cacheable implements chain.Command. Session data is per client.
func (*Session) Cacheable() bool { return false }

// Env exposes selected environment variables as a map result.
type Env struct {
	Vars []string `yaml:"vars"`
}

func newEnv(cfg map[string]any) (chain.Command, error) {
	var e Env
	if err := cfgmap.Decode(cfg, &e); err != nil {
		return nil, err
	}
	if len(e.Vars) == 0 {
		return nil, errors.New("vars is required")
	}
	return &e, nil
}

// Execute returns the set variables by name. Unset variables are omitted.
func (e *Env) Execute(context.Context, chain.Params, *chain.Context) (any, error) {
	out := make(map[string]any, len(e.Vars))
	for _, name := range e.Vars {
		if v, ok := os.LookupEnv(name); ok {
			out[name] = v
		}
	}
	return out, nil
}

// Cacheable implements chain.Command.
func (*Env) Cacheable() bool { return true }

// Dump writes the context, or the listed keys, as one JSON object whose
// members follow the context's insertion order.
type Dump struct {
	Keys   []string `yaml:"keys"`
	Indent bool     `yaml:"indent"`
}

func newDump(cfg map[string]any) (chain.Command, error) {
	var d Dump
	if err := cfgmap.Decode(cfg, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Execute writes the JSON document.
func (d *Dump) Execute(_ context.Context, _ chain.Params, c *chain.Context) (any, error) {
	var doc bytes.Buffer
	doc.WriteByte('{')
	n := 0
	for k, v := range c.All() {
		if len(d.Keys) > 0 && !slices.Contains(d.Keys, k) {
			continue
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("dump: %w", err)
		}
		value, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("dump %q: %w", k, err)
		}
		if n > 0 {
			doc.WriteByte(',')
		}
		doc.Write(key)
		doc.WriteByte(':')
		doc.Write(value)
		n++
	}
	doc.WriteByte('}')

	out := doc.Bytes()
	if d.Indent {
		var indented bytes.Buffer
		if err := json.Indent(&indented, out, "", "  "); err != nil {
			return nil, fmt.Errorf("dump: %w", err)
		}
		out = indented.Bytes()
	}
	if _, err := c.Output().Write(append(out, '\n')); err != nil {
		return nil, fmt.Errorf("dump: %w", err)
	}
	return nil, nil
}

// Cacheable implements chain.Command.
func (*Dump) Cacheable() bool { return true }
