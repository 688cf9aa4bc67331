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
	"github.com/relaygate/authbridge/pkg/cryptox"
	"github.com/relaygate/authbridge/pkg/idx"
)

// RegistrationService implements dynamic client registration and the admin
// surface over registered clients.
type RegistrationService struct {
	store  store.Store
	logger *slog.Logger
	audit  AuditSink
	now    func() time.Time
}

// NewRegistrationService wires a RegistrationService.
func NewRegistrationService(st store.Store, logger *slog.Logger, audit AuditSink) *RegistrationService {
	return &RegistrationService{
		store:  st,
		logger: logger,
		audit:  audit,
		now:    time.Now,
	}
}

// RegisterInput is the accepted subset of an RFC 7591 registration
// request. Client-suggested identifiers and grant types are ignored; the
// bridge decides both.
type RegisterInput struct {
	ClientName              string
	RedirectURIs            []string
	Scope                   string
	TokenEndpointAuthMethod string
}

// Register creates a client and returns it with the one-time plaintext
// secret. Public clients (auth method "none") get no secret.
func (s *RegistrationService) Register(ctx context.Context, in RegisterInput) (*domain.Client, string, error) {
	if in.ClientName == "" {
		return nil, "", fmt.Errorf("%w: client_name is required", ErrInvalidClientMetadata)
	}
	if len(in.RedirectURIs) == 0 {
		return nil, "", fmt.Errorf("%w: at least one redirect_uri is required", ErrInvalidClientMetadata)
	}
	for _, raw := range in.RedirectURIs {
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() || u.Host == "" {
			return nil, "", fmt.Errorf("%w: redirect_uri %q is not an absolute URL", ErrInvalidClientMetadata, raw)
		}
		if u.Fragment != "" {
			return nil, "", fmt.Errorf("%w: redirect_uri %q must not contain a fragment", ErrInvalidClientMetadata, raw)
		}
	}

	authMethod := domain.AuthMethodClientSecretPost
	if in.TokenEndpointAuthMethod == domain.AuthMethodNone {
		authMethod = domain.AuthMethodNone
	}

	client := &domain.Client{
		ID:           idx.New(),
		Name:         in.ClientName,
		RedirectURIs: in.RedirectURIs,
		Scope:        in.Scope,
		AuthMethod:   authMethod,
		CreatedAt:    s.now().UTC(),
	}

	var secret string
	if authMethod != domain.AuthMethodNone {
		var err error
		secret, err = cryptox.GenerateToken(cryptox.TokenSize256)
		if err != nil {
			return nil, "", fmt.Errorf("generate client secret: %w", err)
		}
		client.SecretHash, err = cryptox.HashSecret(secret)
		if err != nil {
			return nil, "", fmt.Errorf("hash client secret: %w", err)
		}
	}

	if err := s.store.Clients().Create(ctx, client); err != nil {
		return nil, "", fmt.Errorf("persist client: %w", err)
	}

	s.logger.InfoContext(ctx, "client registered",
		slog.String("client_id", client.ID.String()),
		slog.String("client_name", client.Name),
		slog.Int("redirect_uris", len(client.RedirectURIs)),
	)
	s.audit.Record(ctx, Event{
		Action:   "client.register",
		ClientID: client.ID.String(),
		At:       s.now(),
	})
	return client, secret, nil
}

// Get looks up a client by id.
func (s *RegistrationService) Get(ctx context.Context, clientID string) (*domain.Client, error) {
	id, err := idx.Parse(clientID)
	if err != nil {
		return nil, ErrInvalidClient
	}

	client, err := s.store.Clients().Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidClient
	}
	if err != nil {
		return nil, fmt.Errorf("load client: %w", err)
	}
	return client, nil
}

// List returns all registered clients, newest first.
func (s *RegistrationService) List(ctx context.Context) ([]*domain.Client, error) {
	return s.store.Clients().List(ctx)
}

// Revoke deletes a client and every token issued to it.
func (s *RegistrationService) Revoke(ctx context.Context, clientID string) error {
	id, err := idx.Parse(clientID)
	if err != nil {
		return ErrInvalidClient
	}

	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Clients().Delete(ctx, id); err != nil {
			return err
		}
		return tx.Tokens().DeleteByClient(ctx, id)
	})
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidClient
	}
	if err != nil {
		return fmt.Errorf("revoke client: %w", err)
	}

	s.audit.Record(ctx, Event{
		Action:   "client.revoke",
		ClientID: clientID,
		At:       s.now(),
	})
	return nil
}

// Authenticate verifies the client's credentials for the token endpoint.
// Public clients pass with an empty secret; confidential clients must
// present the one issued at registration.
func (s *RegistrationService) Authenticate(ctx context.Context, clientID, clientSecret string) (*domain.Client, error) {
	client, err := s.Get(ctx, clientID)
	if err != nil {
		return nil, err
	}

	if client.Public() {
		if clientSecret != "" {
			return nil, ErrInvalidClient
		}
		return client, nil
	}

	if err := cryptox.VerifySecret(clientSecret, client.SecretHash); err != nil {
		s.audit.Record(ctx, Event{
			Action:   "client.auth_failed",
			ClientID: clientID,
			Detail:   "secret verification failed",
			At:       s.now(),
		})
		return nil, ErrInvalidClient
	}
	return client, nil
}
