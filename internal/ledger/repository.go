package ledger

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventpass/backend/internal/execution"
	"github.com/eventpass/backend/internal/models"
)

//go:embed schema.sql
var schemaSQL string

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// Migrate creates the journal and account tables if they do not exist.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply ledger schema: %w", err)
	}
	return nil
}

// InsertCommit runs inside the caller's transaction. It writes the event row
// and one row per transfer; a duplicate seq fails the whole transaction.
func (r *Repository) InsertCommit(ctx context.Context, tx pgx.Tx, c models.Commit) error {
	ev := c.Event
	_, err := tx.Exec(ctx, `
		INSERT INTO ticket_events (seq, kind, at, ticket_id, actor, counterparty, tier, amount, reference)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, ev.Seq, ev.Kind, ev.At, int64(ev.TicketID), string(ev.Actor), string(ev.Counterparty), int16(ev.Tier), int64(ev.Amount), ev.Reference)
	if err != nil {
		return fmt.Errorf("insert event %d: %w", ev.Seq, err)
	}
	for _, t := range c.Transfers {
		_, err := tx.Exec(ctx, `
			INSERT INTO transfers (id, event_seq, entry_type, from_identity, to_identity, amount, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, t.ID, t.EventSeq, t.EntryType, string(t.From), string(t.To), int64(t.Amount), t.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert transfer for event %d: %w", ev.Seq, err)
		}
	}
	return nil
}

var _ execution.Cursors = (*Repository)(nil)

// Delivered returns the last seq handed to sink.
func (r *Repository) Delivered(ctx context.Context, sink string) (int64, bool, error) {
	var seq int64
	err := r.pool.QueryRow(ctx, `SELECT seq FROM delivery_cursors WHERE sink = $1`, sink).Scan(&seq)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read cursor %s: %w", sink, err)
	}
	return seq, true, nil
}

// Advance moves sink's cursor forward to seq. It never moves it back.
func (r *Repository) Advance(ctx context.Context, sink string, seq int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO delivery_cursors (sink, seq) VALUES ($1, $2)
		ON CONFLICT (sink) DO UPDATE
		SET seq = EXCLUDED.seq, updated_at = now()
		WHERE delivery_cursors.seq < EXCLUDED.seq
	`, sink, seq)
	if err != nil {
		return fmt.Errorf("advance cursor %s: %w", sink, err)
	}
	return nil
}

// ListEvents returns every journaled event in seq order.
func (r *Repository) ListEvents(ctx context.Context) ([]models.Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT seq, kind, at, ticket_id, actor, counterparty, tier, amount, reference
		FROM ticket_events ORDER BY seq
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Event
	for rows.Next() {
		var (
			ev                  models.Event
			ticketID, amount    int64
			tier                int16
			actor, counterparty string
		)
		if err := rows.Scan(&ev.Seq, &ev.Kind, &ev.At, &ticketID, &actor, &counterparty, &tier, &amount, &ev.Reference); err != nil {
			return nil, err
		}
		ev.TicketID = models.TicketID(ticketID)
		ev.Actor = models.Identity(actor)
		ev.Counterparty = models.Identity(counterparty)
		ev.Tier = models.Tier(tier)
		ev.Amount = models.Amount(amount)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// ListTransfers returns the transfers touching who, oldest first.
func (r *Repository) ListTransfers(ctx context.Context, who models.Identity) ([]models.Transfer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_seq, entry_type, from_identity, to_identity, amount, created_at
		FROM transfers WHERE from_identity = $1 OR to_identity = $1
		ORDER BY event_seq, created_at
	`, string(who))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Transfer
	for rows.Next() {
		var (
			t        models.Transfer
			from, to string
			amount   int64
		)
		if err := rows.Scan(&t.ID, &t.EventSeq, &t.EntryType, &from, &to, &amount, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.From = models.Identity(from)
		t.To = models.Identity(to)
		t.Amount = models.Amount(amount)
		out = append(out, t)
	}
	return out, rows.Err()
}
