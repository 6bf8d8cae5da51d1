package engine

import (
	"fmt"

	"github.com/eventpass/backend/internal/models"
)

// Price returns the current issuance price of tier.
func (e *Engine) Price(tier models.Tier) models.Amount {
	mustTier(tier)
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.prices.get(tier)
}

// Prices returns the whole price table.
func (e *Engine) Prices() [models.NumTiers]models.Amount {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.prices.prices
}

// CanAct reports whether id is outside its cooldown window right now.
func (e *Engine) CanAct(id models.Identity) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.activity.canAct(id, e.clock.Now(), e.cfg.Cooldown)
}

// CanResell reports whether the ticket's post-issuance lock has elapsed.
func (e *Engine) CanResell(id models.TicketID) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	tk, ok := e.tickets.live(id)
	if !ok {
		return false, fmt.Errorf("%w: ticket %d", ErrNotFound, id)
	}
	return !e.clock.Now().Before(tk.MintedAt.Add(e.cfg.LockPeriod)), nil
}

// Listing returns the most recent listing of a ticket, active or sold.
func (e *Engine) Listing(id models.TicketID) (models.Listing, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	l, ok := e.market.get(id)
	if !ok {
		return models.Listing{}, fmt.Errorf("%w: no listing for ticket %d", ErrNotFound, id)
	}
	return l, nil
}

// Ticket returns a copy of a live ticket.
func (e *Engine) Ticket(id models.TicketID) (models.Ticket, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	tk, ok := e.tickets.live(id)
	if !ok {
		return models.Ticket{}, fmt.Errorf("%w: ticket %d", ErrNotFound, id)
	}
	return *tk, nil
}

// OwnerOf returns the current holder of a live ticket.
func (e *Engine) OwnerOf(id models.TicketID) (models.Identity, error) {
	tk, err := e.Ticket(id)
	if err != nil {
		return "", err
	}
	return tk.Owner, nil
}

// Exists reports whether id was issued and has not been burned.
func (e *Engine) Exists(id models.TicketID) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.tickets.live(id)
	return ok
}

// ReferenceOf returns the opaque metadata reference of a live ticket.
func (e *Engine) ReferenceOf(id models.TicketID) (string, error) {
	tk, err := e.Ticket(id)
	if err != nil {
		return "", err
	}
	return tk.Reference, nil
}

// BalanceOf returns how many live tickets id holds.
func (e *Engine) BalanceOf(id models.Identity) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tickets.balanceOf(id)
}

// TicketsOf returns the live tickets held by id in id order.
func (e *Engine) TicketsOf(id models.Identity) []models.Ticket {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tickets.ownedBy(id)
}

// TreasuryBalance returns the amount available for withdrawal.
func (e *Engine) TreasuryBalance() models.Amount {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.treasury.balance
}

// Seq returns the sequence number of the last committed event.
func (e *Engine) Seq() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.seq
}

// TreasuryWithdrawn returns the total paid out to the administrator so far.
func (e *Engine) TreasuryWithdrawn() models.Amount {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.treasury.withdrawn
}
