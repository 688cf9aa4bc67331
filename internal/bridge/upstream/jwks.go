package upstream

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken means the access token failed signature or claim
// validation against the provider's keys.
var ErrInvalidToken = errors.New("upstream: invalid token")

// Claims are the verified claims the bridge cares about.
type Claims struct {
	Subject   string
	Scope     string
	ExpiresAt time.Time
}

type jwksDocument struct {
	Keys []jwksKey `json:"keys"`
}

type jwksKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithIssuer requires the iss claim to match exactly.
func WithIssuer(issuer string) VerifierOption {
	return func(v *Verifier) { v.issuer = issuer }
}

// WithAudience requires the aud claim to contain the given value.
func WithAudience(audience string) VerifierOption {
	return func(v *Verifier) { v.audience = audience }
}

// WithHTTPClient replaces the HTTP client used for JWKS fetches.
func WithHTTPClient(client *http.Client) VerifierOption {
	return func(v *Verifier) { v.http = client }
}

// Verifier validates provider-issued JWT access tokens against the
// provider's published JWKS. Keys are cached and refetched when a token
// names an unknown key id, at most once per minute.
type Verifier struct {
	jwksURL  string
	http     *http.Client
	issuer   string
	audience string

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// NewVerifier builds a Verifier for the given JWKS URL. Keys are fetched
// lazily on first use.
func NewVerifier(jwksURL string, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		jwksURL: jwksURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify parses and validates the token, returning its claims.
func (v *Verifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	claims := jwt.MapClaims{}
	parseOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		parseOpts = append(parseOpts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		parseOpts = append(parseOpts, jwt.WithAudience(v.audience))
	}

	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("%w: missing kid", ErrInvalidToken)
		}
		return v.keyFor(ctx, kid)
	}, parseOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	out := &Claims{}
	if sub, _ := claims["sub"].(string); sub != "" {
		out.Subject = sub
	}
	out.Scope = scopeClaim(claims)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time.UTC()
	}
	return out, nil
}

// Ready fetches the JWKS if it has never been loaded, for readiness
// probing.
func (v *Verifier) Ready(ctx context.Context) error {
	v.mu.RLock()
	loaded := len(v.keys) > 0
	v.mu.RUnlock()
	if loaded {
		return nil
	}
	return v.refresh(ctx)
}

func (v *Verifier) keyFor(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	key, ok := v.keys[kid]
	fetchedAt := v.fetchedAt
	v.mu.RUnlock()
	if ok {
		return key, nil
	}

	// A signing-key rotation looks like an unknown kid. Refetch, but not
	// more than once a minute so bad tokens cannot hammer the provider.
	if time.Since(fetchedAt) >= time.Minute {
		if err := v.refresh(ctx); err != nil {
			return nil, err
		}
		v.mu.RLock()
		key, ok = v.keys[kid]
		v.mu.RUnlock()
		if ok {
			return key, nil
		}
	}
	return nil, fmt.Errorf("%w: unknown key id %q", ErrInvalidToken, kid)
}

func (v *Verifier) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return fmt.Errorf("jwks request: %w", err)
	}

	resp, err := v.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: jwks fetch: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: jwks fetch: status %d", ErrUnavailable, resp.StatusCode)
	}

	var doc jwksDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("decode jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || k.Kid == "" || (k.Use != "" && k.Use != "sig") {
			continue
		}
		pub, err := rsaPublicKey(k)
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}
	if len(keys) == 0 {
		return fmt.Errorf("jwks at %s contains no usable RSA signing keys", v.jwksURL)
	}

	v.mu.Lock()
	v.keys = keys
	v.fetchedAt = time.Now()
	v.mu.Unlock()
	return nil
}

func rsaPublicKey(k jwksKey) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}

	e := 0
	for _, b := range eBytes {
		e = e<<8 | int(b)
	}
	if e == 0 {
		return nil, errors.New("zero exponent")
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: e,
	}, nil
}

// scopeClaim reads the scope from either the standard "scope" claim or
// Azure AD's "scp" claim.
func scopeClaim(claims jwt.MapClaims) string {
	if s, _ := claims["scope"].(string); s != "" {
		return s
	}
	if s, _ := claims["scp"].(string); s != "" {
		return s
	}
	if list, ok := claims["scp"].([]any); ok {
		parts := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	}
	return ""
}
