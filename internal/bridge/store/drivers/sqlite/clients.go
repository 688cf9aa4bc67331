package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/relaygate/authbridge/internal/bridge/domain"
	"github.com/relaygate/authbridge/internal/bridge/store"
	"github.com/relaygate/authbridge/pkg/idx"
)

type clientRepo struct {
	q querier
}

func (r *clientRepo) Create(ctx context.Context, client *domain.Client) error {
	uris, err := json.Marshal(client.RedirectURIs)
	if err != nil {
		return fmt.Errorf("marshal redirect uris: %w", err)
	}

	_, err = r.q.ExecContext(ctx, `
		INSERT INTO clients (id, name, secret_hash, redirect_uris, scope, auth_method, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		client.ID.String(), client.Name, client.SecretHash, string(uris),
		client.Scope, client.AuthMethod, client.CreatedAt.Unix(),
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *clientRepo) Get(ctx context.Context, id idx.ID) (*domain.Client, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, name, secret_hash, redirect_uris, scope, auth_method, created_at
		FROM clients WHERE id = ?`, id.String())
	return scanClient(row.Scan)
}

func (r *clientRepo) List(ctx context.Context) ([]*domain.Client, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, name, secret_hash, redirect_uris, scope, auth_method, created_at
		FROM clients ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []*domain.Client
	for rows.Next() {
		client, err := scanClient(rows.Scan)
		if err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}
	return clients, rows.Err()
}

func (r *clientRepo) Delete(ctx context.Context, id idx.ID) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, id.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanClient(scan func(dest ...any) error) (*domain.Client, error) {
	var (
		client    domain.Client
		rawID     string
		rawURIs   string
		createdAt int64
	)
	err := scan(&rawID, &client.Name, &client.SecretHash, &rawURIs,
		&client.Scope, &client.AuthMethod, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	client.ID, err = idx.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse client id: %w", err)
	}
	if err := json.Unmarshal([]byte(rawURIs), &client.RedirectURIs); err != nil {
		return nil, fmt.Errorf("unmarshal redirect uris: %w", err)
	}
	client.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &client, nil
}
