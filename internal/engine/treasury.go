package engine

import "github.com/eventpass/backend/internal/models"

// treasury is the running total of retained payments minus withdrawals.
type treasury struct {
	balance   models.Amount
	withdrawn models.Amount
}

func (t *treasury) deposit(a models.Amount) {
	t.balance = addAmount(t.balance, a)
}

func (t *treasury) drain() models.Amount {
	out := t.balance
	t.withdrawn = addAmount(t.withdrawn, out)
	t.balance = 0
	return out
}

// accepts reports whether a deposit of a keeps the balance representable.
func (t *treasury) accepts(a models.Amount) bool {
	_, ok := sumAmount(t.balance, a)
	return ok
}

// drainable reports whether the withdrawn total can absorb the balance.
func (t *treasury) drainable() bool {
	_, ok := sumAmount(t.withdrawn, t.balance)
	return ok
}
