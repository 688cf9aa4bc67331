package domain

import (
	"time"

	"github.com/relaygate/authbridge/pkg/idx"
)

// ClientCodeTTL bounds how long a minted authorization code stays
// redeemable after the upstream callback.
const ClientCodeTTL = 5 * time.Minute

// ClientCodePayload carries the upstream token material and the client's
// original PKCE challenge from the callback to the token exchange. Sealed
// at rest like TransactionPayload.
type ClientCodePayload struct {
	ClientChallenge       string    `json:"client_challenge"`
	ClientChallengeMethod string    `json:"client_challenge_method"`
	ClientRedirectURI     string    `json:"client_redirect_uri"`
	Subject               string    `json:"subject"`
	Scope                 string    `json:"scope,omitempty"`
	UpstreamAccessToken   string    `json:"upstream_access_token"`
	UpstreamRefreshToken  string    `json:"upstream_refresh_token,omitempty"`
	UpstreamExpiresAt     time.Time `json:"upstream_expires_at"`
	UpstreamIDToken       string    `json:"upstream_id_token,omitempty"`
}

// ClientCode is the authorization code the bridge hands back to its own
// client after a successful upstream exchange. Single use, bound to the
// registering client.
type ClientCode struct {
	Code      string
	ClientID  idx.ID
	Payload   ClientCodePayload
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the code's TTL has lapsed at the given instant.
func (c *ClientCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
