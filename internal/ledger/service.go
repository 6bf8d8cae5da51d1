package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/eventpass/backend/internal/execution"
	"github.com/eventpass/backend/internal/models"
)

// TxBeginner starts the transaction a commit runs in; *pgxpool.Pool satisfies it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// CommitWriter persists one commit inside a transaction.
type CommitWriter interface {
	InsertCommit(ctx context.Context, tx pgx.Tx, c models.Commit) error
}

// InsertDeliveryTxFunc enqueues a DeliverEvent job within the given transaction.
// Provided by main using river.Client.InsertTx.
type InsertDeliveryTxFunc func(ctx context.Context, tx pgx.Tx, args execution.DeliverEventArgs) error

// Journal writes each engine commit, and the job that delivers its event,
// in one Postgres transaction. Either both land or neither does.
type Journal struct {
	db             TxBeginner
	writer         CommitWriter
	insertDelivery InsertDeliveryTxFunc
}

// NewJournal builds a Journal. insertDelivery may be nil when no publisher is configured.
func NewJournal(db TxBeginner, writer CommitWriter, insertDelivery InsertDeliveryTxFunc) *Journal {
	return &Journal{db: db, writer: writer, insertDelivery: insertDelivery}
}

func (j *Journal) Commit(ctx context.Context, c models.Commit) error {
	tx, err := j.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := j.writer.InsertCommit(ctx, tx, c); err != nil {
		return err
	}
	if j.insertDelivery != nil {
		if err := j.insertDelivery(ctx, tx, execution.DeliverEventArgs{Event: c.Event}); err != nil {
			return fmt.Errorf("enqueue delivery for event %d: %w", c.Event.Seq, err)
		}
	}
	return tx.Commit(ctx)
}
