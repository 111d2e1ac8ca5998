package cache

import (
	"context"
	"errors"
	"strings"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// RequestKeyPrefix prefixes the cache key of a cacheable request.
const RequestKeyPrefix = "request-"

// Sentinel errors for cache operations.
var (
	ErrNilBackend   = errors.New("cache: backend is nil")
	ErrInvalidKey   = errors.New("cache: key is invalid")
	ErrKeyTooLong   = errors.New("cache: key exceeds max length")
	ErrClosed       = errors.New("cache: backend is closed")
)

// Backend stores opaque response bodies under short ASCII keys.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use; a reader
// never observes a partially written value.
// - Context: methods should honor cancellation/deadlines where applicable.
// - Errors: Get and Has never error; a failing backend reports a miss.
// Delete is idempotent.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte) error
	Has(ctx context.Context, key string) bool
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// Pinger is implemented by backends that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RequestKey returns the cache key of the named request.
func RequestKey(request string) string {
	return RequestKeyPrefix + request
}

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	for i := 0; i < len(key); i++ {
		if key[i] < 0x21 || key[i] > 0x7e {
			return ErrInvalidKey
		}
	}
	return nil
}
