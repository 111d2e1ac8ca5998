// Package health reports whether the dispatcher's storage and logging
// backends are reachable.
//
// Any cache or logger backend with a Ping method becomes a Checker through
// PingChecker. Open circuit breakers degrade the service without making it
// unavailable. An Aggregator runs the checks concurrently and the HTTP
// handlers expose them:
//
//	agg := health.NewAggregator()
//	agg.Register(health.PingChecker("cache:primary", sqliteCache))
//	agg.Register(health.BreakerChecker("breakers", breakers))
//	health.RegisterHandlers(mux, agg)
package health
