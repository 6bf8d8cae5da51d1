package engine

import (
	"context"
	"fmt"

	"github.com/eventpass/backend/internal/ledger"
	"github.com/eventpass/backend/internal/models"
)

// Issue mints the next ticket of tier for buyer. The price is read from the
// price table at call time and becomes the ticket's purchase price; any
// overpayment is refunded in the same commit.
func (e *Engine) Issue(ctx context.Context, buyer models.Identity, tier models.Tier, reference string, paid models.Amount) (models.Receipt, error) {
	mustTier(tier)
	ctx, span := e.startSpan(ctx, OpIssue, buyer)
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	price := e.prices.get(tier)
	if paid < price {
		return models.Receipt{}, e.reject(span, OpIssue, fmt.Errorf("%w: paid %d, %s costs %d", ErrInsufficientPayment, paid, tier, price))
	}
	if held := e.tickets.balanceOf(buyer); held >= e.cfg.MaxPerWallet {
		return models.Receipt{}, e.reject(span, OpIssue, fmt.Errorf("%w: %s already holds %d tickets", ErrWalletLimitExceeded, buyer, held))
	}
	if err := e.cooldownCheck(OpIssue, buyer, now); err != nil {
		return models.Receipt{}, e.reject(span, OpIssue, err)
	}
	if !e.treasury.accepts(price) {
		return models.Receipt{}, e.reject(span, OpIssue, fmt.Errorf("%w: balance %d, deposit %d", ErrTreasuryOverflow, e.treasury.balance, price))
	}

	transfers, err := ledger.Purchase(buyer, paid, price)
	if err != nil {
		return models.Receipt{}, e.reject(span, OpIssue, fmt.Errorf("%w: %v", ErrInsufficientPayment, err))
	}
	ev, err := e.commit(ctx, span, OpIssue, models.Event{
		Kind:      models.EventTicketPurchased,
		At:        now,
		TicketID:  e.tickets.nextID(),
		Actor:     buyer,
		Tier:      tier,
		Amount:    price,
		Reference: reference,
	}, transfers)
	if err != nil {
		return models.Receipt{}, err
	}
	return models.Receipt{TicketID: ev.TicketID, Price: price, Refund: ledger.Refunded(transfers, buyer)}, nil
}
