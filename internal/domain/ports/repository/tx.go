package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager runs fn inside one database transaction and passes the
// handle on as tx. Repositories take tx as their second argument: nil means
// "use the pool", a pgx.Tx means "join this transaction" and also enables
// SELECT ... FOR UPDATE where a method supports it.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
