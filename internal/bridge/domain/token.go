package domain

import (
	"time"

	"github.com/relaygate/authbridge/pkg/idx"
)

// RefreshTokenTTL bounds how long a bridge refresh token stays redeemable.
// The upstream provider may revoke its half earlier; refresh then fails
// with an invalid-grant error.
const RefreshTokenTTL = 30 * 24 * time.Hour

// IssuedToken is the validation-cache record for an upstream access token
// the bridge has handed out. Only a SHA-256 fingerprint of the token is
// stored; the token itself lives with the client.
type IssuedToken struct {
	Fingerprint string
	ClientID    idx.ID
	Subject     string
	Scope       string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Expired reports whether the cached token has lapsed at the given instant.
func (t *IssuedToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// RefreshToken maps a bridge-minted opaque refresh token onto the upstream
// refresh token it wraps. Looked up by fingerprint; the upstream token is
// sealed by the store before it touches disk.
type RefreshToken struct {
	Fingerprint   string
	ClientID      idx.ID
	Subject       string
	Scope         string
	UpstreamToken string
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// Expired reports whether the refresh token has lapsed at the given
// instant.
func (t *RefreshToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
