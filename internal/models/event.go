package models

import (
	"time"

	"github.com/google/uuid"
)

// EventKind enums for the ticket journal.
const (
	EventTicketPurchased = "ticket_purchased"
	EventTicketListed    = "ticket_listed"
	EventTicketResold    = "ticket_resold"
	EventTicketValidated = "ticket_validated"
	EventPriceUpdated    = "price_updated"
	EventWithdrawn       = "withdrawn"
)

// Event is one committed state transition, in commit order. Fields unused by
// a kind are left zero.
type Event struct {
	Seq          int64     `json:"seq"`
	Kind         string    `json:"kind"`
	At           time.Time `json:"at"`
	TicketID     TicketID  `json:"ticket_id,omitempty"`
	Actor        Identity  `json:"actor"`
	Counterparty Identity  `json:"counterparty,omitempty"`
	Tier         Tier      `json:"tier"`
	Amount       Amount    `json:"amount"`
	Reference    string    `json:"reference,omitempty"`
}

// Transfer entry_type enums.
const (
	TransferPayment    = "payment"
	TransferRefund     = "refund"
	TransferWithdrawal = "withdrawal"
)

// Transfer is one money movement implied by a committed event.
type Transfer struct {
	ID        uuid.UUID `json:"id"`
	EventSeq  int64     `json:"event_seq"`
	EntryType string    `json:"entry_type"`
	From      Identity  `json:"from"`
	To        Identity  `json:"to"`
	Amount    Amount    `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// Commit is the atomic unit handed to the journal: an event and its transfers.
type Commit struct {
	Event     Event
	Transfers []Transfer
}
