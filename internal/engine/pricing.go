package engine

import (
	"fmt"

	"github.com/eventpass/backend/internal/models"
)

// priceTable maps tier to the price charged on the next issuance.
type priceTable struct {
	prices [models.NumTiers]models.Amount
}

func mustTier(t models.Tier) {
	if !t.Valid() {
		panic(fmt.Sprintf("engine: unknown tier %d", uint8(t)))
	}
}

func (p *priceTable) get(t models.Tier) models.Amount {
	mustTier(t)
	return p.prices[t]
}

func (p *priceTable) set(t models.Tier, price models.Amount) {
	mustTier(t)
	if price < 0 {
		panic(fmt.Sprintf("engine: negative price %d for %s", price, t))
	}
	p.prices[t] = price
}
