package sqlite

import (
	"database/sql"

	"github.com/relaygate/authbridge/internal/bridge/store"
	"github.com/relaygate/authbridge/pkg/cryptox"
)

// storeTx exposes the repositories over a single sql.Tx.
type storeTx struct {
	tx  *sql.Tx
	box *cryptox.Sealbox
}

var _ store.Tx = (*storeTx)(nil)

func (t *storeTx) Clients() store.ClientRepo { return &clientRepo{q: t.tx} }

func (t *storeTx) Transactions() store.TransactionRepo {
	return &transactionRepo{q: t.tx, box: t.box}
}

func (t *storeTx) ClientCodes() store.ClientCodeRepo {
	return &clientCodeRepo{q: t.tx, box: t.box}
}

func (t *storeTx) Tokens() store.TokenRepo { return &tokenRepo{q: t.tx, box: t.box} }
