package param

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Errors returned by Verifier.
var (
	ErrNoToken      = errors.New("param: no bearer token")
	ErrInvalidToken = errors.New("param: invalid token")
	ErrKeyNotFound  = errors.New("param: signing key not found")
)

// KeyProvider returns the key verifying tokens signed under keyID.
type KeyProvider interface {
	Key(ctx context.Context, keyID string) (any, error)
}

// StaticKey verifies every token with one HMAC secret.
type StaticKey []byte

// Key implements KeyProvider.
func (k StaticKey) Key(context.Context, string) (any, error) {
	if len(k) == 0 {
		return nil, ErrKeyNotFound
	}
	return []byte(k), nil
}

// VerifierConfig configures token verification.
type VerifierConfig struct {
	// Issuer and Audience are checked when set.
	Issuer   string
	Audience string

	// Methods restricts accepted signing algorithms. Empty accepts HS256
	// and RS256.
	Methods []string

	// Leeway tolerates clock skew on exp/nbf/iat.
	Leeway time.Duration
}

// Verifier validates bearer tokens and exposes their claims as a Source.
type Verifier struct {
	keys   KeyProvider
	parser *jwt.Parser
}

// NewVerifier creates a verifier using keys.
func NewVerifier(cfg VerifierConfig, keys KeyProvider) *Verifier {
	methods := cfg.Methods
	if len(methods) == 0 {
		methods = []string{"HS256", "RS256"}
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods(methods), jwt.WithExpirationRequired()}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	if cfg.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(cfg.Leeway))
	}
	return &Verifier{keys: keys, parser: jwt.NewParser(opts...)}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Verify parses and validates token and returns its claims as a Source.
func (v *Verifier) Verify(ctx context.Context, token string) (ClaimsSource, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	claims := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return v.keys.Key(ctx, kid)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return ClaimsSource(claims), nil
}

// ClaimsSource serves verified token claims. Keys may address nested
// objects with dots, e.g. "realm_access.roles".
type ClaimsSource map[string]any

// Lookup implements Source.
func (c ClaimsSource) Lookup(_ context.Context, key string) (any, bool) {
	var cur any = map[string]any(c)
	for part := range strings.SplitSeq(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Subject returns the sub claim.
func (c ClaimsSource) Subject() string {
	s, _ := c["sub"].(string)
	return s
}
