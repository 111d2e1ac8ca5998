// Package dispatch implements the front controller: it resolves a request
// name to its command chain, serves cacheable requests from the response
// cache, runs the chain through a chain.Executor and acts on the signal
// each command produces.
//
// A dispatch is synchronous. A forward is a nested dispatch that writes to
// the same sink as its caller; the caller's buffer, if any, is still
// flushed when the nested dispatch returns.
//
// # Example
//
//	d := dispatch.New(catalog,
//		dispatch.WithCaches(cache.NewManager(catalog.Caches()...)),
//		dispatch.WithLoggers(observe.NewManager(catalog.Loggers())),
//	)
//	outcome, err := d.HandleRequest(ctx, os.Stdout, "home", nil)
package dispatch
