package models

import "time"

// TicketID is the sequential credential id. Ids start at 1 and are never reused.
type TicketID uint64

// Amount is a monetary value in the smallest denomination.
type Amount int64

// Ticket is a snapshot of one credential as held by the engine.
type Ticket struct {
	ID            TicketID  `json:"id"`
	Tier          Tier      `json:"tier"`
	Owner         Identity  `json:"owner"`
	PurchasePrice Amount    `json:"purchase_price"`
	MintedAt      time.Time `json:"minted_at"`
	ResaleCount   int       `json:"resale_count"`
	Reference     string    `json:"reference"`
	Exists        bool      `json:"exists"`
}

// Listing is the resale offer for a ticket. At most one exists per ticket.
type Listing struct {
	TicketID TicketID `json:"ticket_id"`
	Seller   Identity `json:"seller"`
	Price    Amount   `json:"price"`
	Active   bool     `json:"active"`
}

// Receipt describes the money movement of a paying call.
type Receipt struct {
	TicketID TicketID `json:"ticket_id"`
	Price    Amount   `json:"price"`
	Refund   Amount   `json:"refund"`
}
