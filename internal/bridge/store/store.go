// Package store defines the persistence interfaces for the bridge. The
// sqlite driver under drivers/sqlite implements them; services depend only
// on these interfaces.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/relaygate/authbridge/internal/bridge/domain"
	"github.com/relaygate/authbridge/pkg/idx"
)

var (
	// ErrNotFound is returned when a record does not exist, has expired,
	// or has already been consumed.
	ErrNotFound = errors.New("store: not found")

	// ErrAlreadyExists is returned on unique-constraint violations.
	ErrAlreadyExists = errors.New("store: already exists")
)

// ClientRepo persists dynamically registered clients.
type ClientRepo interface {
	Create(ctx context.Context, client *domain.Client) error
	Get(ctx context.Context, id idx.ID) (*domain.Client, error)
	List(ctx context.Context) ([]*domain.Client, error)
	Delete(ctx context.Context, id idx.ID) error
}

// TransactionRepo persists pending authorization transactions. Payloads
// are sealed by the driver before they touch disk.
type TransactionRepo interface {
	Create(ctx context.Context, txn *domain.Transaction) error

	// Consume atomically deletes and returns the transaction. Expired or
	// already-consumed transactions yield ErrNotFound; concurrent callers
	// race and exactly one wins.
	Consume(ctx context.Context, id string, now time.Time) (*domain.Transaction, error)

	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// ClientCodeRepo persists minted authorization codes with the same
// single-use consume semantics as TransactionRepo.
type ClientCodeRepo interface {
	Create(ctx context.Context, code *domain.ClientCode) error
	Consume(ctx context.Context, code string, now time.Time) (*domain.ClientCode, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// TokenRepo persists the access-token validation cache and the refresh
// token mapping.
type TokenRepo interface {
	CreateIssued(ctx context.Context, token *domain.IssuedToken) error
	GetIssued(ctx context.Context, fingerprint string) (*domain.IssuedToken, error)

	CreateRefresh(ctx context.Context, token *domain.RefreshToken) error
	GetRefresh(ctx context.Context, fingerprint string) (*domain.RefreshToken, error)
	DeleteRefresh(ctx context.Context, fingerprint string) error

	// DeleteByClient drops every token record belonging to a client, used
	// when the client itself is revoked.
	DeleteByClient(ctx context.Context, clientID idx.ID) error

	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Tx exposes the repositories inside a single database transaction.
type Tx interface {
	Clients() ClientRepo
	Transactions() TransactionRepo
	ClientCodes() ClientCodeRepo
	Tokens() TokenRepo
}

// Store is the full persistence surface.
type Store interface {
	Tx

	// WithTx runs fn inside a transaction, committing on nil return and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Ping(ctx context.Context) error
	Close() error
}
