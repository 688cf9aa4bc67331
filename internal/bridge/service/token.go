package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/relaygate/authbridge/internal/bridge/domain"
	"github.com/relaygate/authbridge/internal/bridge/store"
	"github.com/relaygate/authbridge/internal/bridge/upstream"
	"github.com/relaygate/authbridge/pkg/cryptox"
	"github.com/relaygate/authbridge/pkg/idx"
	"github.com/relaygate/authbridge/pkg/pkcex"
)

// TokenRefresher runs the upstream refresh grant. Implemented by
// upstream.Client.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*upstream.TokenSet, error)
}

// TokenService owns the token endpoint: code exchange, refresh,
// validation, introspection, and revocation.
type TokenService struct {
	store    store.Store
	upstream TokenRefresher
	verifier TokenVerifier
	clients  *RegistrationService
	logger   *slog.Logger
	audit    AuditSink
	metrics  MetricsSink
	now      func() time.Time

	// refreshLocks serializes concurrent refreshes of the same
	// (client, subject) pair so only one upstream refresh grant runs at a
	// time for it.
	refreshLocks *keyedMutex
}

// NewTokenService wires a TokenService.
func NewTokenService(
	st store.Store,
	up TokenRefresher,
	verifier TokenVerifier,
	clients *RegistrationService,
	logger *slog.Logger,
	audit AuditSink,
	metrics MetricsSink,
) *TokenService {
	return &TokenService{
		store:        st,
		upstream:     up,
		verifier:     verifier,
		clients:      clients,
		logger:       logger,
		audit:        audit,
		metrics:      metrics,
		now:          time.Now,
		refreshLocks: newKeyedMutex(),
	}
}

// TokenGrant is a successful token endpoint result.
type TokenGrant struct {
	AccessToken  string
	TokenType    string
	ExpiresIn    int64
	RefreshToken string
	Scope        string
}

// ExchangeInput is a parsed authorization_code grant request.
type ExchangeInput struct {
	ClientID     string
	ClientSecret string
	Code         string
	CodeVerifier string
}

// Exchange redeems a bridge-minted code for the upstream access token plus
// a bridge refresh token. Every failure after client authentication maps
// to ErrInvalidGrant so callers cannot distinguish a stolen code from a
// bad verifier; the audit sink records which it was.
func (s *TokenService) Exchange(ctx context.Context, in ExchangeInput) (*TokenGrant, error) {
	started := s.now()
	defer func() {
		s.metrics.RecordDuration("token.exchange", s.now().Sub(started))
	}()

	client, err := s.clients.Authenticate(ctx, in.ClientID, in.ClientSecret)
	if err != nil {
		return nil, err
	}

	code, err := s.store.ClientCodes().Consume(ctx, in.Code, s.now())
	if errors.Is(err, store.ErrNotFound) {
		s.audit.Record(ctx, Event{
			Action:   "token.code_not_found",
			ClientID: in.ClientID,
			Detail:   "code missing, expired, or already redeemed",
			At:       s.now(),
		})
		return nil, ErrInvalidGrant
	}
	if err != nil {
		return nil, fmt.Errorf("consume client code: %w", err)
	}

	if code.ClientID != client.ID {
		s.audit.Record(ctx, Event{
			Action:   "token.code_client_mismatch",
			ClientID: in.ClientID,
			Detail:   fmt.Sprintf("code belongs to client %s", code.ClientID),
			At:       s.now(),
		})
		return nil, ErrInvalidGrant
	}

	if !pkcex.Verify(code.Payload.ClientChallenge, in.CodeVerifier, code.Payload.ClientChallengeMethod) {
		s.audit.Record(ctx, Event{
			Action:   "token.pkce_failed",
			ClientID: in.ClientID,
			Subject:  code.Payload.Subject,
			Detail:   "code_verifier did not match stored challenge",
			At:       s.now(),
		})
		return nil, ErrInvalidGrant
	}

	grant, err := s.persistGrant(ctx, client.ID, code.Payload.Subject, code.Payload.Scope, &upstream.TokenSet{
		AccessToken:  code.Payload.UpstreamAccessToken,
		RefreshToken: code.Payload.UpstreamRefreshToken,
		ExpiresAt:    code.Payload.UpstreamExpiresAt,
	}, "")
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "code exchanged",
		slog.String("client_id", client.ID.String()),
		slog.String("subject", code.Payload.Subject),
	)
	return grant, nil
}

// RefreshInput is a parsed refresh_token grant request.
type RefreshInput struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// Refresh rotates a bridge refresh token through the upstream refresh
// grant. Concurrent refreshes of the same (client, subject) pair are
// serialized; the stored pair is replaced atomically, so the previous
// access token stays valid until the new one is committed.
func (s *TokenService) Refresh(ctx context.Context, in RefreshInput) (*TokenGrant, error) {
	started := s.now()
	defer func() {
		s.metrics.RecordDuration("token.refresh", s.now().Sub(started))
	}()

	client, err := s.clients.Authenticate(ctx, in.ClientID, in.ClientSecret)
	if err != nil {
		return nil, err
	}

	fingerprint := cryptox.FingerprintToken(in.RefreshToken)
	existing, err := s.store.Tokens().GetRefresh(ctx, fingerprint)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidGrant
	}
	if err != nil {
		return nil, fmt.Errorf("load refresh token: %w", err)
	}
	if existing.ClientID != client.ID || existing.Expired(s.now()) {
		return nil, ErrInvalidGrant
	}

	lockKey := client.ID.String() + ":" + existing.Subject
	s.refreshLocks.Lock(lockKey)
	defer s.refreshLocks.Unlock(lockKey)

	// Re-read under the lock; a concurrent refresh may have rotated the
	// token while this caller waited.
	existing, err = s.store.Tokens().GetRefresh(ctx, fingerprint)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidGrant
	}
	if err != nil {
		return nil, fmt.Errorf("load refresh token: %w", err)
	}

	set, err := s.upstream.Refresh(ctx, existing.UpstreamToken)
	if err != nil {
		if errors.Is(err, upstream.ErrRejected) {
			s.audit.Record(ctx, Event{
				Action:   "token.upstream_refresh_rejected",
				ClientID: in.ClientID,
				Subject:  existing.Subject,
				Detail:   err.Error(),
				At:       s.now(),
			})
			return nil, ErrInvalidGrant
		}
		return nil, err
	}
	if set.RefreshToken == "" {
		// Providers may omit a rotated refresh token; the old upstream
		// token stays live in that case.
		set.RefreshToken = existing.UpstreamToken
	}

	grant, err := s.persistGrant(ctx, client.ID, existing.Subject, existing.Scope, set, fingerprint)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "token refreshed",
		slog.String("client_id", client.ID.String()),
		slog.String("subject", existing.Subject),
	)
	return grant, nil
}

// persistGrant mints a bridge refresh token, records the access token
// fingerprint for validation, and commits both in one transaction. A
// non-empty replaceFingerprint drops that refresh token in the same
// transaction.
func (s *TokenService) persistGrant(ctx context.Context, clientID idx.ID, subject, scope string, set *upstream.TokenSet, replaceFingerprint string) (*TokenGrant, error) {
	bridgeRefresh, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	now := s.now().UTC()
	issued := &domain.IssuedToken{
		Fingerprint: cryptox.FingerprintToken(set.AccessToken),
		ClientID:    clientID,
		Subject:     subject,
		Scope:       scope,
		CreatedAt:   now,
		ExpiresAt:   set.ExpiresAt,
	}
	refresh := &domain.RefreshToken{
		Fingerprint:   cryptox.FingerprintToken(bridgeRefresh),
		ClientID:      clientID,
		Subject:       subject,
		Scope:         scope,
		UpstreamToken: set.RefreshToken,
		CreatedAt:     now,
		ExpiresAt:     now.Add(domain.RefreshTokenTTL),
	}

	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		if replaceFingerprint != "" {
			if err := tx.Tokens().DeleteRefresh(ctx, replaceFingerprint); err != nil &&
				!errors.Is(err, store.ErrNotFound) {
				return err
			}
		}
		if err := tx.Tokens().CreateIssued(ctx, issued); err != nil {
			return err
		}
		if set.RefreshToken == "" {
			return nil
		}
		return tx.Tokens().CreateRefresh(ctx, refresh)
	})
	if err != nil {
		return nil, fmt.Errorf("persist grant: %w", err)
	}

	grant := &TokenGrant{
		AccessToken: set.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(set.ExpiresAt).Seconds()),
		Scope:       scope,
	}
	if set.RefreshToken != "" {
		grant.RefreshToken = bridgeRefresh
	}
	return grant, nil
}

// Validate resolves an access token to its cached claims, falling back to
// JWT verification against the provider's keys on a cache miss.
func (s *TokenService) Validate(ctx context.Context, token string) (*domain.IssuedToken, error) {
	started := s.now()
	defer func() {
		s.metrics.RecordDuration("token.validate", s.now().Sub(started))
	}()

	fingerprint := cryptox.FingerprintToken(token)
	cached, err := s.store.Tokens().GetIssued(ctx, fingerprint)
	if err == nil {
		if cached.Expired(s.now()) {
			return nil, ErrTokenInactive
		}
		return cached, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("load issued token: %w", err)
	}

	claims, err := s.verifier.Verify(ctx, token)
	if err != nil {
		return nil, ErrTokenInactive
	}

	issued := &domain.IssuedToken{
		Fingerprint: fingerprint,
		Subject:     claims.Subject,
		Scope:       claims.Scope,
		CreatedAt:   s.now().UTC(),
		ExpiresAt:   claims.ExpiresAt,
	}
	if err := s.store.Tokens().CreateIssued(ctx, issued); err != nil {
		s.logger.WarnContext(ctx, "populate token cache failed", slog.String("error", err.Error()))
	}
	return issued, nil
}

// IntrospectionResult is the RFC 7662 view of a token. Inactive tokens
// reveal nothing else.
type IntrospectionResult struct {
	Active    bool
	ClientID  string
	Subject   string
	Scope     string
	ExpiresAt time.Time
}

// Introspect reports a token's state. It never returns details for a
// token it cannot validate.
func (s *TokenService) Introspect(ctx context.Context, token string) *IntrospectionResult {
	issued, err := s.Validate(ctx, token)
	if err != nil {
		return &IntrospectionResult{}
	}
	return &IntrospectionResult{
		Active:    true,
		ClientID:  issued.ClientID.String(),
		Subject:   issued.Subject,
		Scope:     issued.Scope,
		ExpiresAt: issued.ExpiresAt,
	}
}

// RevokeInput is a parsed RFC 7009 revocation request.
type RevokeInput struct {
	ClientID     string
	ClientSecret string
	Token        string
}

// Revoke drops a bridge refresh token. Unknown tokens succeed silently
// per RFC 7009; a token owned by a different client is left alone.
func (s *TokenService) Revoke(ctx context.Context, in RevokeInput) error {
	client, err := s.clients.Authenticate(ctx, in.ClientID, in.ClientSecret)
	if err != nil {
		return err
	}

	fingerprint := cryptox.FingerprintToken(in.Token)
	existing, err := s.store.Tokens().GetRefresh(ctx, fingerprint)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load refresh token: %w", err)
	}
	if existing.ClientID != client.ID {
		return nil
	}

	if err := s.store.Tokens().DeleteRefresh(ctx, fingerprint); err != nil &&
		!errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("delete refresh token: %w", err)
	}

	s.audit.Record(ctx, Event{
		Action:   "token.revoked",
		ClientID: in.ClientID,
		Subject:  existing.Subject,
		At:       s.now(),
	})
	return nil
}
