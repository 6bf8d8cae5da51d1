package ledger

import (
	"errors"

	"github.com/google/uuid"

	"github.com/eventpass/backend/internal/models"
)

// ErrInsufficientFunds is returned when a tendered payment does not cover the price.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Purchase returns the transfers for a paid acquisition: the full payment
// moves from the payer to the treasury, and the excess over price moves back.
// The treasury therefore retains exactly price. Nothing moves when nothing
// was paid.
func Purchase(payer models.Identity, paid, price models.Amount) ([]models.Transfer, error) {
	if paid < price {
		return nil, ErrInsufficientFunds
	}
	if paid <= 0 {
		return nil, nil
	}
	out := []models.Transfer{{
		ID:        uuid.New(),
		EntryType: models.TransferPayment,
		From:      payer,
		To:        models.TreasuryIdentity,
		Amount:    paid,
	}}
	if refund := paid - price; refund > 0 {
		out = append(out, models.Transfer{
			ID:        uuid.New(),
			EntryType: models.TransferRefund,
			From:      models.TreasuryIdentity,
			To:        payer,
			Amount:    refund,
		})
	}
	return out, nil
}

// Withdrawal moves the whole treasury balance to the administrator.
// A zero balance produces no transfer.
func Withdrawal(admin models.Identity, balance models.Amount) []models.Transfer {
	if balance <= 0 {
		return nil
	}
	return []models.Transfer{{
		ID:        uuid.New(),
		EntryType: models.TransferWithdrawal,
		From:      models.TreasuryIdentity,
		To:        admin,
		Amount:    balance,
	}}
}

// Net returns the signed effect of transfers on one identity's balance.
func Net(transfers []models.Transfer, who models.Identity) models.Amount {
	var n models.Amount
	for _, t := range transfers {
		if t.To == who {
			n += t.Amount
		}
		if t.From == who {
			n -= t.Amount
		}
	}
	return n
}

// Refunded returns the total refunded to payer within transfers.
func Refunded(transfers []models.Transfer, payer models.Identity) models.Amount {
	var n models.Amount
	for _, t := range transfers {
		if t.EntryType == models.TransferRefund && t.To == payer {
			n += t.Amount
		}
	}
	return n
}
