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
	"github.com/relaygate/authbridge/pkg/cryptox"
	"github.com/relaygate/authbridge/pkg/idx"
)

type transactionRepo struct {
	q   querier
	box *cryptox.Sealbox
}

func (r *transactionRepo) Create(ctx context.Context, txn *domain.Transaction) error {
	sealed, err := sealJSON(r.box, txn.Payload)
	if err != nil {
		return err
	}

	_, err = r.q.ExecContext(ctx, `
		INSERT INTO transactions (id, client_id, payload, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)`,
		txn.ID, txn.ClientID.String(), sealed,
		txn.CreatedAt.Unix(), txn.ExpiresAt.Unix(),
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

// Consume deletes the transaction and returns it in one statement. An
// expired row is still deleted but reported as not found, so a stale state
// value can never be replayed.
func (r *transactionRepo) Consume(ctx context.Context, id string, now time.Time) (*domain.Transaction, error) {
	row := r.q.QueryRowContext(ctx, `
		DELETE FROM transactions WHERE id = ?
		RETURNING id, client_id, payload, created_at, expires_at`, id)

	var (
		txn       domain.Transaction
		rawClient string
		sealed    []byte
		createdAt int64
		expiresAt int64
	)
	err := row.Scan(&txn.ID, &rawClient, &sealed, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	txn.CreatedAt = time.Unix(createdAt, 0).UTC()
	txn.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	if txn.Expired(now) {
		return nil, store.ErrNotFound
	}

	txn.ClientID, err = idx.Parse(rawClient)
	if err != nil {
		return nil, fmt.Errorf("parse client id: %w", err)
	}
	if err := openJSON(r.box, sealed, &txn.Payload); err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *transactionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM transactions WHERE expires_at <= ?`, now.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func sealJSON(box *cryptox.Sealbox, v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	sealed, err := box.Seal(raw)
	if err != nil {
		return nil, fmt.Errorf("seal payload: %w", err)
	}
	return sealed, nil
}

func openJSON(box *cryptox.Sealbox, sealed []byte, v any) error {
	raw, err := box.Open(sealed)
	if err != nil {
		return fmt.Errorf("open payload: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	return nil
}
