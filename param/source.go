package param

import (
	"context"
	"maps"
)

// Source kinds understood by the resolver.
const (
	KindGet     = "get"
	KindPost    = "post"
	KindCookie  = "cookie"
	KindSession = "session"
	KindContext = "context"
	KindEnv     = "env"
	KindServer  = "server"
	KindArg     = "arg"
	KindHeader  = "header"
	KindClaim   = "claim"
)

var knownKinds = map[string]struct{}{
	KindGet: {}, KindPost: {}, KindCookie: {}, KindSession: {}, KindContext: {},
	KindEnv: {}, KindServer: {}, KindArg: {}, KindHeader: {}, KindClaim: {},
}

// Source yields parameter values by key.
//
// Contract:
//   - Lookup distinguishes an absent key (ok == false) from a present empty
//     value (ok == true, value "").
//   - Concurrency: implementations must be safe for concurrent use.
type Source interface {
	Lookup(ctx context.Context, key string) (any, bool)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, key string) (any, bool)

// Lookup calls f.
func (f SourceFunc) Lookup(ctx context.Context, key string) (any, bool) {
	return f(ctx, key)
}

// MapSource is a static Source.
type MapSource map[string]any

// Lookup returns m[key].
func (m MapSource) Lookup(_ context.Context, key string) (any, bool) {
	v, ok := m[key]
	return v, ok
}

// Sources maps a source kind to the Source serving it for one dispatch.
type Sources map[string]Source

// With returns a copy of s with kind bound to src.
func (s Sources) With(kind string, src Source) Sources {
	out := make(Sources, len(s)+1)
	maps.Copy(out, s)
	out[kind] = src
	return out
}

type contextKey int

const sourcesKey contextKey = iota

// WithSources returns a new context carrying the sources of one dispatch.
// Sources already present in ctx are kept unless overridden by kind.
func WithSources(ctx context.Context, sources Sources) context.Context {
	merged := make(Sources)
	maps.Copy(merged, SourcesFromContext(ctx))
	maps.Copy(merged, sources)
	return context.WithValue(ctx, sourcesKey, merged)
}

// SourcesFromContext returns the sources carried by ctx, or nil.
func SourcesFromContext(ctx context.Context) Sources {
	s, _ := ctx.Value(sourcesKey).(Sources)
	return s
}

// SessionFromContext returns the session bound to ctx, or nil.
func SessionFromContext(ctx context.Context) *Session {
	s, _ := SourcesFromContext(ctx)[KindSession].(*Session)
	return s
}
