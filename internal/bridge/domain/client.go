// Package domain holds the core types shared by the bridge's services and
// stores. Types here carry no behaviour beyond small helpers; persistence
// and flow logic live in the store and service packages.
package domain

import (
	"time"

	"github.com/relaygate/authbridge/pkg/idx"
)

// Grant and auth-method values every registered client gets. Registration
// requests may not pick anything else; the bridge only brokers the
// authorization-code flow.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"

	ResponseTypeCode = "code"

	AuthMethodClientSecretPost = "client_secret_post"
	AuthMethodNone             = "none"
)

// Client is a dynamically registered OAuth client. The secret is stored
// only as an argon2id hash; the plaintext is returned once at registration
// and never again.
type Client struct {
	ID           idx.ID
	Name         string
	SecretHash   string
	RedirectURIs []string
	Scope        string
	AuthMethod   string
	CreatedAt    time.Time
}

// Public reports whether the client registered without a secret
// (token_endpoint_auth_method "none").
func (c *Client) Public() bool {
	return c.AuthMethod == AuthMethodNone
}
