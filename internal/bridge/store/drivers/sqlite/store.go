// Package sqlite implements the store interfaces on modernc.org/sqlite.
// Transaction and refresh-token payloads are sealed with AES-GCM before
// they are written.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/relaygate/authbridge/internal/bridge/store"
	"github.com/relaygate/authbridge/pkg/cryptox"
)

// Store is the sqlite-backed implementation of store.Store.
type Store struct {
	db  *sql.DB
	box *cryptox.Sealbox

	clients      *clientRepo
	transactions *transactionRepo
	clientCodes  *clientCodeRepo
	tokens       *tokenRepo
}

var _ store.Store = (*Store)(nil)

// Open opens (or creates) the database at path, applies pending
// migrations, and returns a ready store. Use ":memory:" for tests.
func Open(path string, box *cryptox.Sealbox) (*Store, error) {
	dsn := path
	if dsn != ":memory:" && !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// sqlite allows one writer; a single connection avoids SQLITE_BUSY
	// churn under concurrent handlers.
	db.SetMaxOpenConns(1)

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return New(db, box), nil
}

// New wraps an already-migrated database handle.
func New(db *sql.DB, box *cryptox.Sealbox) *Store {
	return &Store{
		db:           db,
		box:          box,
		clients:      &clientRepo{q: db},
		transactions: &transactionRepo{q: db, box: box},
		clientCodes:  &clientCodeRepo{q: db, box: box},
		tokens:       &tokenRepo{q: db, box: box},
	}
}

func (s *Store) Clients() store.ClientRepo           { return s.clients }
func (s *Store) Transactions() store.TransactionRepo { return s.transactions }
func (s *Store) ClientCodes() store.ClientCodeRepo   { return s.clientCodes }
func (s *Store) Tokens() store.TokenRepo             { return s.tokens }

// WithTx runs fn inside a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(&storeTx{tx: sqlTx, box: s.box}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}

	return sqlTx.Commit()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// querier abstracts *sql.DB and *sql.Tx so repositories serve both.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
