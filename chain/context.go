package chain

import (
	"context"
	"io"
	"iter"
	"slices"
	"sort"
	"sync"
)

// Logger is the logging sink a Context is bound to.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: failures are reported, never panicked.
type Logger interface {
	Log(ctx context.Context, message, category string) error
	LogError(ctx context.Context, err error, category string) error
}

// Context is the ordered key/value store shared by the commands of one
// request. Iteration follows first-insertion order; overwriting a key keeps
// its position. A stored nil is present: Get distinguishes it from a missing
// key through its second return value.
//
// A Context is owned by one dispatch chain at a time. Forwarding hands it to
// the next dispatch instead of copying it.
type Context struct {
	mu     sync.RWMutex
	keys   []string
	values map[string]any
	logger Logger
	out    io.Writer
}

// NewContext creates an empty context bound to logger. logger may be nil.
func NewContext(logger Logger) *Context {
	return &Context{
		values: make(map[string]any),
		logger: logger,
		out:    io.Discard,
	}
}

// Get returns the value stored under key and whether the key is present.
func (c *Context) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// String returns the value under key when it is a string.
func (c *Context) String(key string) (string, bool) {
	v, ok := c.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Has reports whether key is present, including keys holding nil.
func (c *Context) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Set stores value under key. Last write wins.
func (c *Context) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, value)
}

func (c *Context) setLocked(key string, value any) {
	if _, exists := c.values[key]; !exists {
		c.keys = append(c.keys, key)
	}
	c.values[key] = value
}

// Remove deletes key and reports whether it was present.
func (c *Context) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.values[key]; !ok {
		return false
	}
	delete(c.values, key)
	if i := slices.Index(c.keys, key); i >= 0 {
		c.keys = slices.Delete(c.keys, i, i+1)
	}
	return true
}

// Merge copies every entry of other into c, in other's order.
func (c *Context) Merge(other *Context) {
	if other == nil || other == c {
		return
	}
	entries := other.entries()

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range entries {
		c.setLocked(e.key, e.value)
	}
}

// MergeMap copies values into c. Keys new to c are appended in sorted order
// so the result does not depend on map iteration.
func (c *Context) MergeMap(values map[string]any) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		c.setLocked(k, values[k])
	}
}

// Keys returns the keys in insertion order.
func (c *Context) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.keys)
}

// Len returns the number of entries.
func (c *Context) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.keys)
}

// All iterates entries in insertion order over a snapshot.
func (c *Context) All() iter.Seq2[string, any] {
	entries := c.entries()
	return func(yield func(string, any) bool) {
		for _, e := range entries {
			if !yield(e.key, e.value) {
				return
			}
		}
	}
}

// Snapshot returns a copy of the entries as a map.
func (c *Context) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

type entry struct {
	key   string
	value any
}

func (c *Context) entries() []entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]entry, len(c.keys))
	for i, k := range c.keys {
		out[i] = entry{key: k, value: c.values[k]}
	}
	return out
}

// Logger returns the bound logger, or nil.
func (c *Context) Logger() Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logger
}

// BindLogger replaces the bound logger.
func (c *Context) BindLogger(logger Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

// Log sends message to the bound logger. It is a no-op without one.
func (c *Context) Log(ctx context.Context, message, category string) error {
	logger := c.Logger()
	if logger == nil {
		return nil
	}
	return logger.Log(ctx, message, category)
}

// Output returns the writer commands emit their output to.
func (c *Context) Output() io.Writer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.out
}

// BindOutput points the context at w and returns the previous writer so the
// caller can restore it. A nil w discards output.
func (c *Context) BindOutput(w io.Writer) io.Writer {
	if w == nil {
		w = io.Discard
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.out
	c.out = w
	return prev
}
