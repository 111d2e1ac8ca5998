package config

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/jonwraymond/frontctl/cache"
	"github.com/jonwraymond/frontctl/chain"
	"github.com/jonwraymond/frontctl/guard"
	"github.com/jonwraymond/frontctl/observe"
)

// Catalog is the dispatcher's configuration collaborator built from a
// routes file.
//
// Contract:
//   - Request builds new command instances on every call.
//   - Caches and Loggers are built once and shared by all dispatches.
//   - Concurrency: safe for concurrent use.
type Catalog struct {
	file     *File
	commands *chain.Registry
	breakers *guard.Breakers
	caches   []cache.Named
	loggers  []observe.NamedBackend
}

type catalogOptions struct {
	commands *chain.Registry
	caches   *cache.Registry
	loggers  *observe.Registry
	breakers *guard.Breakers
}

// CatalogOption configures NewCatalog.
type CatalogOption func(*catalogOptions)

// WithCommandRegistry sets the command registry. Default: chain.DefaultRegistry.
func WithCommandRegistry(r *chain.Registry) CatalogOption {
	return func(o *catalogOptions) { o.commands = r }
}

// WithCacheRegistry sets the cache backend registry. Default: cache.DefaultRegistry.
func WithCacheRegistry(r *cache.Registry) CatalogOption {
	return func(o *catalogOptions) { o.caches = r }
}

// WithLoggerRegistry sets the logger backend registry. Default: observe.DefaultRegistry.
func WithLoggerRegistry(r *observe.Registry) CatalogOption {
	return func(o *catalogOptions) { o.loggers = r }
}

// WithBreakers shares an existing breaker set.
func WithBreakers(b *guard.Breakers) CatalogOption {
	return func(o *catalogOptions) { o.breakers = b }
}

// NewCatalog builds the backends declared in f and checks that every
// command type is registered.
func NewCatalog(f *File, opts ...CatalogOption) (*Catalog, error) {
	o := catalogOptions{
		commands: chain.DefaultRegistry,
		caches:   cache.DefaultRegistry,
		loggers:  observe.DefaultRegistry,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.breakers == nil {
		o.breakers = guard.NewBreakers(f.Breaker)
	}

	var errs []error
	for _, name := range slices.Sorted(maps.Keys(f.Requests)) {
		for _, cmd := range f.Requests[name].Commands {
			if !o.commands.Has(cmd.Type) {
				errs = append(errs, fmt.Errorf("%w: request %q command %q: type %q is not registered",
					ErrInvalidConfig, name, cmd.Name, cmd.Type))
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	c := &Catalog{file: f, commands: o.commands, breakers: o.breakers}
	for _, spec := range f.Caches {
		b, err := o.caches.Create(spec.Type, spec.Config)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("config: cache %q: %w", spec.Name, err)
		}
		c.caches = append(c.caches, cache.Named{Name: spec.Name, Backend: b})
	}
	for _, spec := range f.Loggers {
		b, err := o.loggers.Create(spec.Type, spec.Config)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("config: logger %q: %w", spec.Name, err)
		}
		c.loggers = append(c.loggers, observe.NamedBackend{Name: spec.Name, Backend: b})
	}
	return c, nil
}

// Request builds the named request. Unknown or illegal names fail with
// chain.ErrRequestNotFound; commands that cannot be built fail with a
// *chain.ConfigError.
func (c *Catalog) Request(name string) (*chain.Request, error) {
	if !chain.ValidRequestName(name) {
		return nil, chain.NotFound(name)
	}
	spec, ok := c.file.Requests[name]
	if !ok {
		return nil, chain.NotFound(name)
	}

	req := &chain.Request{
		Name:        name,
		Cacheable:   spec.Cache,
		CacheTarget: spec.CacheTarget,
		Commands:    make([]chain.Descriptor, 0, len(spec.Commands)),
	}
	for _, cs := range spec.Commands {
		cmd, err := c.commands.Create(cs.Type, cs.Config)
		if err != nil {
			return nil, &chain.ConfigError{Command: cs.Name, Reason: "cannot build command", Err: err}
		}
		g, err := guard.New(cs.Guard, c.breakers, guard.BreakerKey(name, cs.Name))
		if err != nil {
			return nil, &chain.ConfigError{Command: cs.Name, Reason: "invalid guard", Err: err}
		}
		params := make([]chain.ParamSpec, len(cs.Params))
		for i, p := range cs.Params {
			params[i] = chain.ParamSpec{Name: p.Name, Sources: slices.Clone(p.Sources), Default: p.Default}
		}
		req.Commands = append(req.Commands, chain.Descriptor{
			Name:    cs.Name,
			Type:    cs.Type,
			Command: cmd,
			Params:  params,
			Guard:   g,
		})
	}
	return req, nil
}

// Names returns the declared request names, sorted.
func (c *Catalog) Names() []string {
	return slices.Sorted(maps.Keys(c.file.Requests))
}

// Spec returns the declaration of the named request.
func (c *Catalog) Spec(name string) (RequestSpec, bool) {
	spec, ok := c.file.Requests[name]
	return spec, ok
}

// Settings returns a copy of the process-level settings.
func (c *Catalog) Settings() map[string]any {
	return maps.Clone(c.file.Settings)
}

// Caches returns the cache backends in declaration order.
func (c *Catalog) Caches() []cache.Named {
	return slices.Clone(c.caches)
}

// Loggers returns the logger backends in declaration order.
func (c *Catalog) Loggers() []observe.NamedBackend {
	return slices.Clone(c.loggers)
}

// Breakers returns the circuit breakers shared by the catalog's guards.
func (c *Catalog) Breakers() *guard.Breakers {
	return c.breakers
}

// Observe returns the telemetry section of the routes file.
func (c *Catalog) Observe() observe.Config {
	return c.file.Observe
}

// Close closes every backend that holds resources.
func (c *Catalog) Close() error {
	var errs []error
	for _, n := range c.caches {
		if closer, ok := n.Backend.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("cache %q: %w", n.Name, err))
			}
		}
	}
	for _, n := range c.loggers {
		if closer, ok := n.Backend.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("logger %q: %w", n.Name, err))
			}
		}
	}
	return errors.Join(errs...)
}
