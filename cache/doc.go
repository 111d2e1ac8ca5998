// Package cache stores rendered responses of cacheable requests.
//
// A Manager holds an ordered list of named backends. Reads fall through the
// list until one backend hits; writes go to a configured target or to the
// first backend. A cacheable request is stored under RequestKey(name).
//
// Two backends are built in: an in-process MemoryCache and a SQLiteCache
// persisted with modernc.org/sqlite. Both are registered in DefaultRegistry.
package cache
