package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/relaygate/authbridge/internal/bridge/domain"
	"github.com/relaygate/authbridge/internal/bridge/store"
	"github.com/relaygate/authbridge/pkg/cryptox"
	"github.com/relaygate/authbridge/pkg/pkcex"
	"github.com/relaygate/authbridge/pkg/redirectx"
)

// AuthorizeURLBuilder produces the upstream authorization URL for one
// bridged flow. Implemented by upstream.Client.
type AuthorizeURLBuilder interface {
	AuthorizeURL(state, challenge, resource string) string
}

// AuthorizeService starts bridged authorization flows: it validates the
// client's request, persists a transaction, and produces the upstream
// redirect.
type AuthorizeService struct {
	store    store.Store
	upstream AuthorizeURLBuilder
	policy   *redirectx.Policy
	clients  *RegistrationService
	logger   *slog.Logger
	audit    AuditSink
	metrics  MetricsSink
	now      func() time.Time
}

// NewAuthorizeService wires an AuthorizeService.
func NewAuthorizeService(
	st store.Store,
	up AuthorizeURLBuilder,
	policy *redirectx.Policy,
	clients *RegistrationService,
	logger *slog.Logger,
	audit AuditSink,
	metrics MetricsSink,
) *AuthorizeService {
	return &AuthorizeService{
		store:    st,
		upstream: up,
		policy:   policy,
		clients:  clients,
		logger:   logger,
		audit:    audit,
		metrics:  metrics,
		now:      time.Now,
	}
}

// AuthorizeInput is a client's parsed authorization request.
type AuthorizeInput struct {
	ClientID            string
	RedirectURI         string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
	Scope               string
	Resource            string
}

// Authorize validates the request and returns the upstream redirect URL.
// Nothing is persisted unless every precondition holds.
func (s *AuthorizeService) Authorize(ctx context.Context, in AuthorizeInput) (string, error) {
	started := s.now()
	defer func() {
		s.metrics.RecordDuration("authorize", s.now().Sub(started))
	}()

	client, err := s.clients.Get(ctx, in.ClientID)
	if err != nil {
		return "", err
	}

	if !s.policy.Validate(client.RedirectURIs, in.RedirectURI) {
		s.audit.Record(ctx, Event{
			Action:   "authorize.redirect_rejected",
			ClientID: in.ClientID,
			Detail:   fmt.Sprintf("redirect_uri %q not in allow list", in.RedirectURI),
			At:       s.now(),
		})
		return "", ErrInvalidRedirectURI
	}

	if in.CodeChallenge == "" {
		return "", ErrMissingPKCE
	}
	method, ok := pkcex.NormalizeMethod(in.CodeChallengeMethod)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedChallengeMethod, in.CodeChallengeMethod)
	}

	// The transaction id is the state sent upstream. Client-chosen state
	// values never reach the provider, so two clients picking the same
	// state cannot collide.
	transactionID, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", fmt.Errorf("generate transaction id: %w", err)
	}

	// The bridge runs its own PKCE pair on the provider leg, independent
	// of the client's pair.
	upstreamVerifier, upstreamChallenge, err := pkcex.GeneratePair()
	if err != nil {
		return "", fmt.Errorf("generate upstream pkce pair: %w", err)
	}

	now := s.now().UTC()
	txn := &domain.Transaction{
		ID:       transactionID,
		ClientID: client.ID,
		Payload: domain.TransactionPayload{
			ClientState:           in.State,
			ClientRedirectURI:     in.RedirectURI,
			ClientChallenge:       in.CodeChallenge,
			ClientChallengeMethod: method,
			UpstreamVerifier:      upstreamVerifier,
			Scope:                 in.Scope,
			Resource:              in.Resource,
		},
		CreatedAt: now,
		ExpiresAt: now.Add(domain.TransactionTTL),
	}
	if err := s.store.Transactions().Create(ctx, txn); err != nil {
		return "", fmt.Errorf("persist transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "authorization started",
		slog.String("client_id", client.ID.String()),
		slog.String("challenge_method", method),
	)
	return s.upstream.AuthorizeURL(transactionID, upstreamChallenge, in.Resource), nil
}
