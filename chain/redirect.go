package chain

import "context"

// Redirector sends a redirect to the client of the current dispatch.
type Redirector interface {
	Redirect(location string, code int) error
}

// RedirectFunc adapts a function into a Redirector.
type RedirectFunc func(location string, code int) error

// Redirect calls f.
func (f RedirectFunc) Redirect(location string, code int) error { return f(location, code) }

type redirectorKey struct{}

// WithRedirector returns a context carrying r.
func WithRedirector(ctx context.Context, r Redirector) context.Context {
	return context.WithValue(ctx, redirectorKey{}, r)
}

// RedirectorFromContext returns the Redirector carried by ctx.
func RedirectorFromContext(ctx context.Context) (Redirector, bool) {
	r, ok := ctx.Value(redirectorKey{}).(Redirector)
	return r, ok && r != nil
}
