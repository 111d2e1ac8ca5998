package cache

import "time"

// Policy configures entry lifetime and size for the built-in backends.
type Policy struct {
	// TTL is how long an entry stays readable. Zero keeps entries until they
	// are deleted or evicted.
	TTL time.Duration `yaml:"ttl" toml:"ttl"`

	// MaxTTL clamps TTL when set.
	MaxTTL time.Duration `yaml:"max_ttl" toml:"max_ttl"`

	// MaxEntries bounds the number of entries. Zero is unbounded. When full,
	// the entry closest to expiry (or oldest) is evicted.
	MaxEntries int `yaml:"max_entries" toml:"max_entries"`
}

// DefaultPolicy returns the default policy: no expiry, 10k entries.
func DefaultPolicy() Policy {
	return Policy{MaxEntries: 10_000}
}

// EffectiveTTL returns TTL clamped to MaxTTL.
func (p Policy) EffectiveTTL() time.Duration {
	ttl := p.TTL
	if ttl < 0 {
		ttl = 0
	}
	if p.MaxTTL > 0 && (ttl == 0 || ttl > p.MaxTTL) {
		ttl = p.MaxTTL
	}
	return ttl
}

// Expiry returns the expiry time of an entry written at now, or the zero
// time when entries do not expire.
func (p Policy) Expiry(now time.Time) time.Time {
	ttl := p.EffectiveTTL()
	if ttl == 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

func expired(expiresAt, now time.Time) bool {
	return !expiresAt.IsZero() && !now.Before(expiresAt)
}
