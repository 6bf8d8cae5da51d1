package engine

import (
	"context"
	"fmt"

	"github.com/eventpass/backend/internal/ledger"
	"github.com/eventpass/backend/internal/models"
)

// List offers seller's ticket for resale at price, replacing any earlier
// unsold listing of the same ticket.
func (e *Engine) List(ctx context.Context, seller models.Identity, id models.TicketID, price models.Amount) error {
	ctx, span := e.startSpan(ctx, OpList, seller)
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	tk, ok := e.tickets.live(id)
	if !ok {
		return e.reject(span, OpList, fmt.Errorf("%w: ticket %d", ErrNotFound, id))
	}
	if tk.Owner != seller {
		return e.reject(span, OpList, fmt.Errorf("%w: ticket %d", ErrNotOwner, id))
	}
	if tk.ResaleCount >= MaxResales {
		return e.reject(span, OpList, fmt.Errorf("%w: ticket %d", ErrAlreadyResold, id))
	}
	now := e.clock.Now()
	if unlock := tk.MintedAt.Add(e.cfg.LockPeriod); now.Before(unlock) {
		return e.reject(span, OpList, fmt.Errorf("%w: ticket %d unlocks at %s", ErrStillLocked, id, unlock.UTC().Format("15:04:05")))
	}
	if price < 0 {
		panic(fmt.Sprintf("engine: negative ask price %d", price))
	}
	if limit := maxResalePrice(tk.PurchasePrice); price > limit {
		return e.reject(span, OpList, fmt.Errorf("%w: asked %d, limit %d", ErrMarkupExceeded, price, limit))
	}
	if err := e.cooldownCheck(OpList, seller, now); err != nil {
		return e.reject(span, OpList, err)
	}

	_, err := e.commit(ctx, span, OpList, models.Event{
		Kind:     models.EventTicketListed,
		At:       now,
		TicketID: id,
		Actor:    seller,
		Tier:     tk.Tier,
		Amount:   price,
	}, nil)
	return err
}

// BuyResale transfers a listed ticket to buyer. The asking price is retained
// by the treasury and any overpayment refunded.
func (e *Engine) BuyResale(ctx context.Context, buyer models.Identity, id models.TicketID, paid models.Amount) (models.Receipt, error) {
	ctx, span := e.startSpan(ctx, OpBuyResale, buyer)
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	l, ok := e.market.get(id)
	if !ok || !l.Active {
		return models.Receipt{}, e.reject(span, OpBuyResale, fmt.Errorf("%w: ticket %d", ErrListingNotActive, id))
	}
	tk, ok := e.tickets.live(id)
	if !ok || tk.Owner != l.Seller {
		return models.Receipt{}, e.reject(span, OpBuyResale, fmt.Errorf("%w: ticket %d", ErrListingNotActive, id))
	}
	if paid < l.Price {
		return models.Receipt{}, e.reject(span, OpBuyResale, fmt.Errorf("%w: paid %d, asking %d", ErrInsufficientPayment, paid, l.Price))
	}
	if buyer != l.Seller {
		if held := e.tickets.balanceOf(buyer); held >= e.cfg.MaxPerWallet {
			return models.Receipt{}, e.reject(span, OpBuyResale, fmt.Errorf("%w: %s already holds %d tickets", ErrWalletLimitExceeded, buyer, held))
		}
	}
	if err := e.cooldownCheck(OpBuyResale, buyer, now); err != nil {
		return models.Receipt{}, e.reject(span, OpBuyResale, err)
	}
	if !e.treasury.accepts(l.Price) {
		return models.Receipt{}, e.reject(span, OpBuyResale, fmt.Errorf("%w: balance %d, deposit %d", ErrTreasuryOverflow, e.treasury.balance, l.Price))
	}

	transfers, err := ledger.Purchase(buyer, paid, l.Price)
	if err != nil {
		return models.Receipt{}, e.reject(span, OpBuyResale, fmt.Errorf("%w: %v", ErrInsufficientPayment, err))
	}
	if _, err := e.commit(ctx, span, OpBuyResale, models.Event{
		Kind:         models.EventTicketResold,
		At:           now,
		TicketID:     id,
		Actor:        buyer,
		Counterparty: l.Seller,
		Tier:         tk.Tier,
		Amount:       l.Price,
	}, transfers); err != nil {
		return models.Receipt{}, err
	}
	return models.Receipt{TicketID: id, Price: l.Price, Refund: ledger.Refunded(transfers, buyer)}, nil
}
