package ledger

import (
	"context"
	"log/slog"
	"sync"

	"github.com/eventpass/backend/internal/events"
	"github.com/eventpass/backend/internal/models"
)

// MemoryJournal keeps commits in process. It backs the server when no
// database is configured and is handy in tests.
type MemoryJournal struct {
	mu        sync.Mutex
	events    []models.Event
	transfers []models.Transfer
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

func (m *MemoryJournal) Commit(_ context.Context, c models.Commit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, c.Event)
	m.transfers = append(m.transfers, c.Transfers...)
	return nil
}

// ListEvents returns a copy of every committed event in seq order.
func (m *MemoryJournal) ListEvents(context.Context) ([]models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Event(nil), m.events...), nil
}

// ListTransfers returns the transfers touching who, oldest first.
func (m *MemoryJournal) ListTransfers(_ context.Context, who models.Identity) ([]models.Transfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Transfer
	for _, t := range m.transfers {
		if t.From == who || t.To == who {
			out = append(out, t)
		}
	}
	return out, nil
}

// PublishingJournal is a MemoryJournal that hands each committed event to a
// publisher before Commit returns. The engine commits under its writer lock,
// so events are published in seq order. Delivery is best effort: a publish
// failure is logged and the commit stands.
type PublishingJournal struct {
	*MemoryJournal
	publisher events.Publisher
	logger    *slog.Logger
}

func NewPublishingJournal(p events.Publisher, logger *slog.Logger) *PublishingJournal {
	if logger == nil {
		logger = slog.Default()
	}
	return &PublishingJournal{MemoryJournal: NewMemoryJournal(), publisher: p, logger: logger}
}

func (j *PublishingJournal) Commit(ctx context.Context, c models.Commit) error {
	if err := j.MemoryJournal.Commit(ctx, c); err != nil {
		return err
	}
	if err := j.publisher.Publish(ctx, c.Event); err != nil {
		j.logger.WarnContext(ctx, "ticket event delivery failed", "seq", c.Event.Seq, "kind", c.Event.Kind, "error", err)
	}
	return nil
}
