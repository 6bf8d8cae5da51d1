package engine

import (
	"fmt"

	"github.com/eventpass/backend/internal/models"
)

// Restore rebuilds state by replaying journaled events in sequence order.
// It must be called on a fresh engine before it serves any call; the price
// table starts from the engine's configuration and is then overridden by any
// journaled price updates.
func (e *Engine) Restore(events []models.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.seq != 0 {
		return fmt.Errorf("engine: restore into an engine at seq %d", e.seq)
	}
	for _, ev := range events {
		if ev.Seq != e.seq+1 {
			return fmt.Errorf("engine: restore: event seq %d follows %d", ev.Seq, e.seq)
		}
		if err := e.apply(ev); err != nil {
			return fmt.Errorf("engine: restore event %d: %w", ev.Seq, err)
		}
	}
	if len(events) > 0 {
		e.log.Info("engine state restored", "events", len(events), "seq", e.seq, "next_ticket", e.tickets.nextID())
	}
	return nil
}
