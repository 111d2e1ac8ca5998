package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/jonwraymond/frontctl/cache"
	"github.com/jonwraymond/frontctl/chain"
	"github.com/jonwraymond/frontctl/observe"
	"github.com/jonwraymond/frontctl/param"
)

// DefaultMaxForwards bounds forward nesting.
const DefaultMaxForwards = 16

// Catalog resolves request names to command chains.
//
// Contract:
//   - Request fails with an error wrapping chain.ErrRequestNotFound for an
//     unknown name and with a *chain.ConfigError for a broken declaration.
//   - Request returns command instances the caller may run without sharing
//     them with a concurrent dispatch.
//   - Settings returns a copy the caller may keep.
type Catalog interface {
	Request(name string) (*chain.Request, error)
	Settings() map[string]any
}

// Outcome describes how a dispatch ended.
type Outcome struct {
	// Request is the request whose chain ended the dispatch; after a
	// forward it is the final destination.
	Request string

	// Kind is the signal that stopped the final chain, or KindContinue
	// when every command ran.
	Kind chain.Kind

	// Cached is true when the response was served from the cache.
	Cached bool

	// Forwards counts the forwards followed.
	Forwards int
}

// Dispatcher is the front controller.
//
// Contract:
//   - Concurrency: safe for concurrent use; each dispatch owns its
//     chain.Context.
//   - Errors: HandleRequest returns an error only for failures the caller
//     must map to a response: chain.ErrRequestNotFound, chain.ErrConfiguration,
//     chain.ErrForwardLoop, or a failed write to the sink. Command failures
//     and aborts are reported through the Outcome and the logger manager.
type Dispatcher struct {
	catalog     Catalog
	caches      *cache.Manager
	loggers     *observe.Manager
	instrument  *observe.Instrument
	resolver    chain.ParamResolver
	executor    *chain.Executor
	maxForwards int
	diagnostics bool
	newID       func() string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithCaches sets the response cache. Without one nothing is cached.
func WithCaches(m *cache.Manager) Option {
	return func(d *Dispatcher) { d.caches = m }
}

// WithLoggers sets the logger manager fresh contexts are bound to.
func WithLoggers(m *observe.Manager) Option {
	return func(d *Dispatcher) { d.loggers = m }
}

// WithInstrument enables dispatch and command telemetry.
func WithInstrument(i *observe.Instrument) Option {
	return func(d *Dispatcher) { d.instrument = i }
}

// WithResolver replaces the parameter resolver. The default resolves from
// the sources carried by the dispatch context only.
func WithResolver(r chain.ParamResolver) Option {
	return func(d *Dispatcher) { d.resolver = r }
}

// WithMaxForwards bounds forward nesting. Values below 1 keep the default.
func WithMaxForwards(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxForwards = n
		}
	}
}

// WithDiagnostics logs cache hits and forwards in the info category.
func WithDiagnostics(enabled bool) Option {
	return func(d *Dispatcher) { d.diagnostics = enabled }
}

// New creates a dispatcher over catalog.
func New(catalog Catalog, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		catalog:     catalog,
		maxForwards: DefaultMaxForwards,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.resolver == nil {
		d.resolver = param.NewResolver(nil)
	}
	var execOpts []chain.ExecutorOption
	if d.instrument != nil {
		execOpts = append(execOpts, chain.WithHook(d.instrument))
	}
	d.executor = chain.NewExecutor(d.resolver, execOpts...)
	return d
}

// HandleRequest dispatches the named request, writing its output to w.
// A nil initial starts a fresh context seeded with the catalog settings.
func (d *Dispatcher) HandleRequest(ctx context.Context, w io.Writer, name string, initial *chain.Context) (Outcome, error) {
	if observe.RequestIDFromContext(ctx) == "" {
		ctx = observe.WithRequestID(ctx, d.newID())
	}
	return d.dispatch(ctx, w, name, initial, 0)
}

// NewContext returns a context seeded with the catalog settings and bound
// to the logger manager.
func (d *Dispatcher) NewContext() *chain.Context {
	var logger chain.Logger
	if d.loggers != nil {
		logger = d.loggers
	}
	c := chain.NewContext(logger)
	c.MergeMap(d.catalog.Settings())
	return c
}

func (d *Dispatcher) dispatch(ctx context.Context, w io.Writer, name string, initial *chain.Context, depth int) (out Outcome, err error) {
	out = Outcome{Request: name, Forwards: depth}
	if !chain.ValidRequestName(name) {
		return out, chain.NotFound(name)
	}
	if depth > d.maxForwards {
		return out, fmt.Errorf("%w: limit is %d", chain.ErrForwardLoop, d.maxForwards)
	}

	// Only declared names reach the instrument.
	req, err := d.catalog.Request(name)
	if err != nil {
		return out, err
	}

	// level and cached describe this depth; out describes the final chain.
	level, cached := chain.KindContinue, false
	ctx, done := d.instrument.StartDispatch(ctx, name, depth)
	defer func() { done(level, cached, err) }()

	key := cache.RequestKey(name)
	if req.Cacheable {
		body, hit := d.caches.Get(ctx, key)
		d.instrument.CacheLookup(ctx, name, hit)
		if hit {
			cached, out.Cached = true, true
			if d.diagnostics {
				_ = d.loggers.Log(ctx, fmt.Sprintf("%s: served from cache", name), observe.CategoryInfo)
			}
			if _, err := w.Write(body); err != nil {
				return out, fmt.Errorf("dispatch: write cached response: %w", err)
			}
			return out, nil
		}
	}

	c := initial
	if c == nil {
		c = d.NewContext()
	} else if c.Logger() == nil && d.loggers != nil {
		c.BindLogger(d.loggers)
	}

	sink := w
	var buf *bytes.Buffer
	if req.Cacheable {
		buf = new(bytes.Buffer)
		sink = buf
		defer func() {
			if _, werr := w.Write(buf.Bytes()); werr != nil && err == nil {
				err = fmt.Errorf("dispatch: write response: %w", werr)
			}
		}()
	}
	prev := c.BindOutput(sink)
	defer c.BindOutput(prev)

	for _, desc := range req.Commands {
		sig, err := d.executor.Run(ctx, name, desc, c)
		if err != nil {
			return out, err
		}

		switch sig.Kind {
		case chain.KindContinue:
			continue
		case chain.KindRecoverable:
			d.logCause(ctx, c, name, sig, observe.CategoryWarning)
			continue
		case chain.KindFatalAbort:
			d.logCause(ctx, c, name, sig, observe.CategoryError)
			level, out.Kind = sig.Kind, sig.Kind
			return out, nil
		case chain.KindSilentAbort:
			level, out.Kind = sig.Kind, sig.Kind
			return out, nil
		case chain.KindForward:
			level = sig.Kind
			next := sig.Context
			if next == nil {
				next = d.NewContext()
			}
			if d.diagnostics {
				_ = c.Log(ctx, fmt.Sprintf("%s/%s: forward to %s", name, sig.Command, sig.Destination), observe.CategoryInfo)
			}
			inner, err := d.dispatch(ctx, sink, sig.Destination, next, depth+1)
			return inner, err
		default:
			return out, fmt.Errorf("dispatch: command %q produced unknown signal %d", sig.Command, sig.Kind)
		}
	}

	if buf != nil {
		if err := d.caches.Set(ctx, key, bytes.Clone(buf.Bytes()), req.CacheTarget); err != nil {
			_ = c.Log(ctx, observe.FormatError(fmt.Errorf("%s: cache write: %w", name, err)), observe.CategoryError)
		}
	}
	return out, nil
}

func (d *Dispatcher) logCause(ctx context.Context, c *chain.Context, request string, sig chain.Signal, category string) {
	cause := sig.Cause
	if cause == nil {
		cause = errors.New(sig.Kind.String())
	}
	// Causes are recorded even when the caller has gone away.
	ctx = context.WithoutCancel(ctx)
	_ = c.Log(ctx, fmt.Sprintf("%s/%s: %s", request, sig.Command, observe.FormatError(cause)), category)
}
