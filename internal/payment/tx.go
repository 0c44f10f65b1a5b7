package payment

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/smartlearn/shakeout-gateway/internal/store"
)

// TxBeginner opens database transactions. *pgxpool.Pool satisfies it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PGTxRunner binds the ledger queries to a pgx transaction for the duration
// of fn. A rollback is always issued; it is a no-op after a commit.
type PGTxRunner struct {
	DB TxBeginner
	Q  *store.Queries
}

func (r PGTxRunner) InTx(ctx context.Context, fn func(Querier) error) error {
	if r.DB == nil || r.Q == nil {
		return errors.New("payment: transaction runner not configured")
	}
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(r.Q.WithTx(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
