// Package transport serves the dispatcher over HTTP.
//
// Requests are addressed as /r/{request} or /?request={request}. Each
// inbound request gets its own parameter sources (get, post, cookie,
// header, server, and optionally session, claim and env) and a fresh
// dispatch context. Dispatcher errors map to status codes:
//
//	chain.ErrRequestNotFound  404
//	chain.ErrConfiguration    500
//	chain.ErrForwardLoop      508
//	guard.ErrRateLimited      429
//	guard.ErrBulkheadFull     503
//
// A chain that ends in a fatal abort before writing anything answers 500.
package transport
