package engine

import "errors"

// Business-rule rejections. Every failed call returns one of these, wrapped
// with detail; callers match with errors.Is. State is unchanged on failure.
var (
	ErrInsufficientPayment = errors.New("insufficient payment")
	ErrWalletLimitExceeded = errors.New("wallet limit exceeded")
	ErrCooldownActive      = errors.New("cooldown active")
	ErrStillLocked         = errors.New("ticket still locked")
	ErrMarkupExceeded      = errors.New("price exceeds markup limit")
	ErrAlreadyResold       = errors.New("ticket already resold")
	ErrNotOwner            = errors.New("not ticket owner")
	ErrNotFound            = errors.New("not found")
	ErrListingNotActive    = errors.New("listing not active")
	ErrUnauthorized        = errors.New("unauthorized")
)

// ErrTreasuryOverflow aborts a call whose deposit or withdrawal would take a
// treasury total past the int64 range. It is not a business rejection.
var ErrTreasuryOverflow = errors.New("treasury amount overflow")

var kinds = []struct {
	err  error
	code string
}{
	{ErrInsufficientPayment, "insufficient_payment"},
	{ErrWalletLimitExceeded, "wallet_limit_exceeded"},
	{ErrCooldownActive, "cooldown_active"},
	{ErrStillLocked, "still_locked"},
	{ErrMarkupExceeded, "markup_exceeded"},
	{ErrAlreadyResold, "already_resold"},
	{ErrNotOwner, "not_owner"},
	{ErrNotFound, "not_found"},
	{ErrListingNotActive, "listing_not_active"},
	{ErrUnauthorized, "unauthorized"},
}

// Kind returns the stable code of a business-rule error, or "" if err is not one.
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.code
		}
	}
	return ""
}
