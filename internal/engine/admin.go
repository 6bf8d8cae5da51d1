package engine

import (
	"context"
	"fmt"

	"github.com/eventpass/backend/internal/ledger"
	"github.com/eventpass/backend/internal/models"
)

// UpdatePrice sets the price charged for tier on future issuances. Tickets
// already issued keep their own purchase price.
func (e *Engine) UpdatePrice(ctx context.Context, caller models.Identity, tier models.Tier, price models.Amount) error {
	mustTier(tier)
	if price < 0 {
		panic(fmt.Sprintf("engine: negative price %d for %s", price, tier))
	}
	ctx, span := e.startSpan(ctx, OpUpdatePrice, caller)
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.cfg.Admin {
		return e.reject(span, OpUpdatePrice, fmt.Errorf("%w: %s cannot update prices", ErrUnauthorized, caller))
	}
	_, err := e.commit(ctx, span, OpUpdatePrice, models.Event{
		Kind:   models.EventPriceUpdated,
		At:     e.clock.Now(),
		Actor:  caller,
		Tier:   tier,
		Amount: price,
	}, nil)
	return err
}

// Withdraw pays the whole treasury balance out to the administrator and
// returns the amount.
func (e *Engine) Withdraw(ctx context.Context, caller models.Identity) (models.Amount, error) {
	ctx, span := e.startSpan(ctx, OpWithdraw, caller)
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.cfg.Admin {
		return 0, e.reject(span, OpWithdraw, fmt.Errorf("%w: %s cannot withdraw", ErrUnauthorized, caller))
	}
	if !e.treasury.drainable() {
		return 0, e.reject(span, OpWithdraw, fmt.Errorf("%w: withdrawn %d, balance %d", ErrTreasuryOverflow, e.treasury.withdrawn, e.treasury.balance))
	}
	amount := e.treasury.balance
	if _, err := e.commit(ctx, span, OpWithdraw, models.Event{
		Kind:   models.EventWithdrawn,
		At:     e.clock.Now(),
		Actor:  caller,
		Amount: amount,
	}, ledger.Withdrawal(caller, amount)); err != nil {
		return 0, err
	}
	return amount, nil
}
