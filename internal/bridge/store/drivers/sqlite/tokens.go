package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/relaygate/authbridge/internal/bridge/domain"
	"github.com/relaygate/authbridge/internal/bridge/store"
	"github.com/relaygate/authbridge/pkg/cryptox"
	"github.com/relaygate/authbridge/pkg/idx"
)

type tokenRepo struct {
	q   querier
	box *cryptox.Sealbox
}

func (r *tokenRepo) CreateIssued(ctx context.Context, token *domain.IssuedToken) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO issued_tokens (fingerprint, client_id, subject, scope, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (fingerprint) DO UPDATE SET expires_at = excluded.expires_at`,
		token.Fingerprint, token.ClientID.String(), token.Subject, token.Scope,
		token.CreatedAt.Unix(), token.ExpiresAt.Unix(),
	)
	return err
}

func (r *tokenRepo) GetIssued(ctx context.Context, fingerprint string) (*domain.IssuedToken, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT fingerprint, client_id, subject, scope, created_at, expires_at
		FROM issued_tokens WHERE fingerprint = ?`, fingerprint)

	var (
		token     domain.IssuedToken
		rawClient string
		createdAt int64
		expiresAt int64
	)
	err := row.Scan(&token.Fingerprint, &rawClient, &token.Subject,
		&token.Scope, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	// Rows populated from JWT verification carry no client binding.
	if rawClient != "" {
		token.ClientID, err = idx.Parse(rawClient)
		if err != nil {
			return nil, fmt.Errorf("parse client id: %w", err)
		}
	}
	token.CreatedAt = time.Unix(createdAt, 0).UTC()
	token.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	return &token, nil
}

func (r *tokenRepo) CreateRefresh(ctx context.Context, token *domain.RefreshToken) error {
	sealed, err := r.box.Seal([]byte(token.UpstreamToken))
	if err != nil {
		return fmt.Errorf("seal upstream token: %w", err)
	}

	_, err = r.q.ExecContext(ctx, `
		INSERT INTO refresh_tokens (fingerprint, client_id, subject, scope, upstream_sealed, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		token.Fingerprint, token.ClientID.String(), token.Subject, token.Scope,
		sealed, token.CreatedAt.Unix(), token.ExpiresAt.Unix(),
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *tokenRepo) GetRefresh(ctx context.Context, fingerprint string) (*domain.RefreshToken, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT fingerprint, client_id, subject, scope, upstream_sealed, created_at, expires_at
		FROM refresh_tokens WHERE fingerprint = ?`, fingerprint)

	var (
		token     domain.RefreshToken
		rawClient string
		sealed    []byte
		createdAt int64
		expiresAt int64
	)
	err := row.Scan(&token.Fingerprint, &rawClient, &token.Subject,
		&token.Scope, &sealed, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	token.ClientID, err = idx.Parse(rawClient)
	if err != nil {
		return nil, fmt.Errorf("parse client id: %w", err)
	}
	upstream, err := r.box.Open(sealed)
	if err != nil {
		return nil, fmt.Errorf("open upstream token: %w", err)
	}
	token.UpstreamToken = string(upstream)
	token.CreatedAt = time.Unix(createdAt, 0).UTC()
	token.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	return &token, nil
}

func (r *tokenRepo) DeleteRefresh(ctx context.Context, fingerprint string) error {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE fingerprint = ?`, fingerprint)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *tokenRepo) DeleteByClient(ctx context.Context, clientID idx.ID) error {
	if _, err := r.q.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE client_id = ?`, clientID.String()); err != nil {
		return err
	}
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM issued_tokens WHERE client_id = ?`, clientID.String())
	return err
}

func (r *tokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM issued_tokens WHERE expires_at <= ?`, now.Unix())
	if err != nil {
		return 0, err
	}
	issued, _ := res.RowsAffected()

	res, err = r.q.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at <= ?`, now.Unix())
	if err != nil {
		return issued, err
	}
	refresh, _ := res.RowsAffected()
	return issued + refresh, nil
}
