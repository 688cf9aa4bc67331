package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/relaygate/authbridge/internal/bridge/domain"
	"github.com/relaygate/authbridge/internal/bridge/store"
	"github.com/relaygate/authbridge/internal/bridge/upstream"
	"github.com/relaygate/authbridge/pkg/cryptox"
)

// CodeExchanger redeems an upstream authorization code. Implemented by
// upstream.Client.
type CodeExchanger interface {
	Exchange(ctx context.Context, code, verifier string) (*upstream.TokenSet, error)
}

// TokenVerifier extracts verified claims from an upstream access token.
// Implemented by upstream.Verifier.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*upstream.Claims, error)
}

// CallbackService completes the upstream leg: it consumes the pending
// transaction, exchanges the provider's code, and mints the code handed
// back to the bridge's own client.
type CallbackService struct {
	store    store.Store
	upstream CodeExchanger
	verifier TokenVerifier
	roles    RoleLookup
	logger   *slog.Logger
	audit    AuditSink
	metrics  MetricsSink
	now      func() time.Time
}

// NewCallbackService wires a CallbackService. A nil roles lookup falls
// back to the no-op implementation.
func NewCallbackService(
	st store.Store,
	up CodeExchanger,
	verifier TokenVerifier,
	roles RoleLookup,
	logger *slog.Logger,
	audit AuditSink,
	metrics MetricsSink,
) *CallbackService {
	if roles == nil {
		roles = NopRoleLookup{}
	}
	return &CallbackService{
		store:    st,
		upstream: up,
		verifier: verifier,
		roles:    roles,
		logger:   logger,
		audit:    audit,
		metrics:  metrics,
		now:      time.Now,
	}
}

// HandleCallback processes the provider redirect and returns the URL to
// send the client to. The transaction is consumed whatever happens; a
// replayed state always fails with ErrInvalidState.
func (s *CallbackService) HandleCallback(ctx context.Context, state, code string) (string, error) {
	started := s.now()
	defer func() {
		s.metrics.RecordDuration("callback", s.now().Sub(started))
	}()

	txn, err := s.store.Transactions().Consume(ctx, state, s.now())
	if errors.Is(err, store.ErrNotFound) {
		s.audit.Record(ctx, Event{
			Action: "callback.invalid_state",
			Detail: "state matched no live transaction",
			At:     s.now(),
		})
		return "", ErrInvalidState
	}
	if err != nil {
		return "", fmt.Errorf("consume transaction: %w", err)
	}

	set, err := s.upstream.Exchange(ctx, code, txn.Payload.UpstreamVerifier)
	if err != nil {
		s.audit.Record(ctx, Event{
			Action:   "callback.upstream_exchange_failed",
			ClientID: txn.ClientID.String(),
			Detail:   err.Error(),
			At:       s.now(),
		})
		return "", err
	}

	subject := s.subjectOf(ctx, set)

	clientCode, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", fmt.Errorf("generate client code: %w", err)
	}

	now := s.now().UTC()
	scope := set.Scope
	if scope == "" {
		scope = txn.Payload.Scope
	}
	err = s.store.ClientCodes().Create(ctx, &domain.ClientCode{
		Code:     clientCode,
		ClientID: txn.ClientID,
		Payload: domain.ClientCodePayload{
			ClientChallenge:       txn.Payload.ClientChallenge,
			ClientChallengeMethod: txn.Payload.ClientChallengeMethod,
			ClientRedirectURI:     txn.Payload.ClientRedirectURI,
			Subject:               subject,
			Scope:                 scope,
			UpstreamAccessToken:   set.AccessToken,
			UpstreamRefreshToken:  set.RefreshToken,
			UpstreamExpiresAt:     set.ExpiresAt,
			UpstreamIDToken:       set.IDToken,
		},
		CreatedAt: now,
		ExpiresAt: now.Add(domain.ClientCodeTTL),
	})
	if err != nil {
		return "", fmt.Errorf("persist client code: %w", err)
	}

	// Role resolution is informational here; access control stays with
	// the system behind the lookup.
	role, roleErr := s.roles.GetUserRole(ctx, subject)
	if roleErr != nil {
		s.logger.WarnContext(ctx, "role lookup failed",
			slog.String("subject", subject),
			slog.String("error", roleErr.Error()),
		)
	}

	s.logger.InfoContext(ctx, "callback completed",
		slog.String("client_id", txn.ClientID.String()),
		slog.String("role", string(role)),
	)
	s.audit.Record(ctx, Event{
		Action:   "callback.completed",
		ClientID: txn.ClientID.String(),
		Subject:  subject,
		Detail:   "role=" + string(role),
		At:       s.now(),
	})

	// The client gets its own verbatim state back, never the transaction
	// id. No state parameter at all when the client sent none.
	values := url.Values{"code": {clientCode}}
	if txn.Payload.ClientState != "" {
		values.Set("state", txn.Payload.ClientState)
	}
	return appendQuery(txn.Payload.ClientRedirectURI, values), nil
}

// HandleCallbackError processes a provider error redirect (e.g. the user
// denied consent). The transaction is consumed and the client receives a
// standard OAuth error on its own redirect URI.
func (s *CallbackService) HandleCallbackError(ctx context.Context, state, upstreamErr, description string) (string, error) {
	txn, err := s.store.Transactions().Consume(ctx, state, s.now())
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrInvalidState
	}
	if err != nil {
		return "", fmt.Errorf("consume transaction: %w", err)
	}

	s.audit.Record(ctx, Event{
		Action:   "callback.upstream_error",
		ClientID: txn.ClientID.String(),
		Detail:   fmt.Sprintf("%s: %s", upstreamErr, description),
		At:       s.now(),
	})

	if upstreamErr == "" {
		upstreamErr = "server_error"
	}
	values := url.Values{"error": {upstreamErr}}
	if txn.Payload.ClientState != "" {
		values.Set("state", txn.Payload.ClientState)
	}
	if description != "" {
		values.Set("error_description", description)
	}
	return appendQuery(txn.Payload.ClientRedirectURI, values), nil
}

// subjectOf pulls a stable subject out of the upstream token set. A token
// the verifier cannot parse still completes the flow; validation happens
// again when the token is actually used.
func (s *CallbackService) subjectOf(ctx context.Context, set *upstream.TokenSet) string {
	if claims, err := s.verifier.Verify(ctx, set.AccessToken); err == nil && claims.Subject != "" {
		return claims.Subject
	}
	if set.IDToken != "" {
		if claims, err := s.verifier.Verify(ctx, set.IDToken); err == nil {
			return claims.Subject
		}
	}
	return ""
}

func appendQuery(rawURL string, values url.Values) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		// The redirect URI was validated at authorize time; this cannot
		// happen for stored transactions.
		return rawURL
	}
	q := u.Query()
	for key, vals := range values {
		for _, val := range vals {
			q.Set(key, val)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
