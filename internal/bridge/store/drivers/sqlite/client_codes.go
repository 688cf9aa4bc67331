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

type clientCodeRepo struct {
	q   querier
	box *cryptox.Sealbox
}

func (r *clientCodeRepo) Create(ctx context.Context, code *domain.ClientCode) error {
	sealed, err := sealJSON(r.box, code.Payload)
	if err != nil {
		return err
	}

	_, err = r.q.ExecContext(ctx, `
		INSERT INTO client_codes (code, client_id, payload, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)`,
		code.Code, code.ClientID.String(), sealed,
		code.CreatedAt.Unix(), code.ExpiresAt.Unix(),
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

// Consume has the same semantics as transactionRepo.Consume: the row is
// gone after the first call, winner or not.
func (r *clientCodeRepo) Consume(ctx context.Context, code string, now time.Time) (*domain.ClientCode, error) {
	row := r.q.QueryRowContext(ctx, `
		DELETE FROM client_codes WHERE code = ?
		RETURNING code, client_id, payload, created_at, expires_at`, code)

	var (
		cc        domain.ClientCode
		rawClient string
		sealed    []byte
		createdAt int64
		expiresAt int64
	)
	err := row.Scan(&cc.Code, &rawClient, &sealed, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	cc.CreatedAt = time.Unix(createdAt, 0).UTC()
	cc.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	if cc.Expired(now) {
		return nil, store.ErrNotFound
	}

	cc.ClientID, err = idx.Parse(rawClient)
	if err != nil {
		return nil, fmt.Errorf("parse client id: %w", err)
	}
	if err := openJSON(r.box, sealed, &cc.Payload); err != nil {
		return nil, err
	}
	return &cc, nil
}

func (r *clientCodeRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM client_codes WHERE expires_at <= ?`, now.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
