package domain

import (
	"time"

	"github.com/relaygate/authbridge/pkg/idx"
)

// TransactionTTL bounds how long a pending authorization may sit between
// the initial /authorize redirect and the upstream callback.
const TransactionTTL = 10 * time.Minute

// TransactionPayload is the sensitive half of a pending authorization. It
// is sealed with AES-GCM before persisting; only the service layer ever
// sees it in the clear.
type TransactionPayload struct {
	ClientState           string `json:"client_state"`
	ClientRedirectURI     string `json:"client_redirect_uri"`
	ClientChallenge       string `json:"client_challenge"`
	ClientChallengeMethod string `json:"client_challenge_method"`
	UpstreamVerifier      string `json:"upstream_verifier"`
	Scope                 string `json:"scope,omitempty"`
	Resource              string `json:"resource,omitempty"`
}

// Transaction is a pending authorization bridging one client flow onto the
// upstream provider. Its ID is the `state` value sent upstream, so it must
// be unguessable and is consumed exactly once.
type Transaction struct {
	ID        string
	ClientID  idx.ID
	Payload   TransactionPayload
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the transaction's TTL has lapsed at the given
// instant.
func (t *Transaction) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
