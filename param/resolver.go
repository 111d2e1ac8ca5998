package param

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonwraymond/frontctl/chain"
)

// Locator is a parsed "kind:key" source reference.
type Locator struct {
	Kind string
	Key  string
}

func (l Locator) String() string { return l.Kind + ":" + l.Key }

// ParseLocator parses a "kind:key" reference. The key may itself contain
// colons. Kinds are case-insensitive.
func ParseLocator(s string) (Locator, error) {
	kind, key, ok := strings.Cut(strings.TrimSpace(s), ":")
	kind = strings.ToLower(strings.TrimSpace(kind))
	key = strings.TrimSpace(key)
	if !ok || kind == "" || key == "" {
		return Locator{}, fmt.Errorf("malformed source locator %q, want kind:key", s)
	}
	return Locator{Kind: kind, Key: key}, nil
}

// Resolver resolves declared parameters against the sources of a dispatch.
//
// Sources are taken from the dispatch context (see WithSources) first, then
// from the resolver's fallback set. The context kind always reads the
// chain.Context the command runs with.
//
// Contract:
//   - Locators are tried in declaration order; the first present value wins,
//     including an empty string.
//   - A kind with no bound source for this dispatch is treated as absent.
//   - An unknown kind or malformed locator fails with a *chain.ConfigError.
type Resolver struct {
	fallback Sources
}

// NewResolver creates a resolver. fallback may be nil.
func NewResolver(fallback Sources) *Resolver {
	return &Resolver{fallback: fallback}
}

var _ chain.ParamResolver = (*Resolver)(nil)

// Resolve implements chain.ParamResolver.
func (r *Resolver) Resolve(ctx context.Context, specs []chain.ParamSpec, c *chain.Context) (chain.Params, error) {
	params := make(chain.Params, len(specs))
	dispatchSources := SourcesFromContext(ctx)

	for _, spec := range specs {
		name := strings.TrimSpace(spec.Name)
		if name == "" {
			return nil, &chain.ConfigError{Reason: "parameter name is required"}
		}
		if _, dup := params[name]; dup {
			return nil, &chain.ConfigError{Param: name, Reason: "duplicate parameter"}
		}

		value, err := r.resolveOne(ctx, spec, dispatchSources, c)
		if err != nil {
			return nil, err
		}
		params[name] = value
	}
	return params, nil
}

func (r *Resolver) resolveOne(ctx context.Context, spec chain.ParamSpec, dispatchSources Sources, c *chain.Context) (any, error) {
	for _, raw := range spec.Sources {
		loc, err := ParseLocator(raw)
		if err != nil {
			return nil, &chain.ConfigError{Param: spec.Name, Reason: err.Error()}
		}

		if loc.Kind == KindContext && c != nil {
			if v, ok := c.Get(loc.Key); ok {
				return v, nil
			}
			continue
		}

		src, known := r.source(loc.Kind, dispatchSources)
		if !known {
			return nil, &chain.ConfigError{Param: spec.Name, Reason: fmt.Sprintf("unknown source kind %q", loc.Kind)}
		}
		if src == nil {
			continue
		}
		if v, ok := src.Lookup(ctx, loc.Key); ok {
			return v, nil
		}
	}
	return spec.Default, nil
}

// source returns the source bound to kind and whether kind is known at all.
// Kinds outside the built-in set are known when some source is bound to them.
func (r *Resolver) source(kind string, dispatchSources Sources) (Source, bool) {
	if src, ok := dispatchSources[kind]; ok {
		return src, true
	}
	if src, ok := r.fallback[kind]; ok {
		return src, true
	}
	_, known := knownKinds[kind]
	return nil, known
}
