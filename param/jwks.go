package param

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// JWKSKeys fetches RSA verification keys from a JWKS endpoint and caches
// them for TTL. Concurrent refreshes collapse into one fetch; when a refresh
// fails the last good key set keeps serving.
type JWKSKeys struct {
	url    string
	ttl    time.Duration
	client *http.Client

	mu      sync.RWMutex
	keys    map[string]*rsa.PublicKey
	fetched time.Time
	group   singleflight.Group
}

// NewJWKSKeys creates a JWKS key provider. A nil client gets a 10s timeout;
// a non-positive ttl means one hour.
func NewJWKSKeys(url string, ttl time.Duration, client *http.Client) *JWKSKeys {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &JWKSKeys{url: url, ttl: ttl, client: client, keys: map[string]*rsa.PublicKey{}}
}

// Key implements KeyProvider.
func (j *JWKSKeys) Key(ctx context.Context, keyID string) (any, error) {
	j.mu.RLock()
	fresh := time.Since(j.fetched) < j.ttl
	key := j.lookup(keyID)
	j.mu.RUnlock()
	if fresh && key != nil {
		return key, nil
	}

	_, err, _ := j.group.Do("refresh", func() (any, error) {
		return nil, j.refresh(ctx)
	})

	j.mu.RLock()
	key = j.lookup(keyID)
	j.mu.RUnlock()
	if key != nil {
		return key, nil
	}
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: kid %q", ErrKeyNotFound, keyID)
}

// lookup requires j.mu held. An empty keyID matches a single-key set.
func (j *JWKSKeys) lookup(keyID string) *rsa.PublicKey {
	if keyID == "" && len(j.keys) == 1 {
		for _, k := range j.keys {
			return k
		}
	}
	return j.keys[keyID]
}

type jwkSet struct {
	Keys []struct {
		Kty string `json:"kty"`
		Kid string `json:"kid"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

func (j *JWKSKeys) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.url, nil)
	if err != nil {
		return fmt.Errorf("jwks request: %w", err)
	}
	resp, err := j.client.Do(req)
	if err != nil {
		return fmt.Errorf("jwks fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jwks fetch: status %d", resp.StatusCode)
	}

	var set jwkSet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("jwks decode: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pub, err := rsaKey(k.N, k.E)
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}

	j.mu.Lock()
	for kid, k := range keys {
		j.keys[kid] = k
	}
	j.fetched = time.Now()
	j.mu.Unlock()
	return nil
}

func rsaKey(n, e string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil || len(nb) == 0 {
		return nil, fmt.Errorf("invalid modulus")
	}
	eb, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil || len(eb) == 0 {
		return nil, fmt.Errorf("invalid exponent")
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nb),
		E: int(new(big.Int).SetBytes(eb).Int64()),
	}, nil
}
