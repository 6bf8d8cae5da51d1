package engine

import (
	"context"
	"fmt"

	"github.com/eventpass/backend/internal/models"
)

// ValidateAndBurn admits the holder and permanently destroys the ticket.
// The id is never resolvable again.
func (e *Engine) ValidateAndBurn(ctx context.Context, caller models.Identity, id models.TicketID) error {
	ctx, span := e.startSpan(ctx, OpValidate, caller)
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	tk, ok := e.tickets.live(id)
	if !ok {
		return e.reject(span, OpValidate, fmt.Errorf("%w: ticket %d", ErrNotFound, id))
	}
	if tk.Owner != caller {
		return e.reject(span, OpValidate, fmt.Errorf("%w: ticket %d", ErrNotOwner, id))
	}
	if err := e.cooldownCheck(OpValidate, caller, now); err != nil {
		return e.reject(span, OpValidate, err)
	}

	_, err := e.commit(ctx, span, OpValidate, models.Event{
		Kind:     models.EventTicketValidated,
		At:       now,
		TicketID: id,
		Actor:    caller,
		Tier:     tk.Tier,
	}, nil)
	return err
}
