package models

import (
	"time"
)

// Identity is the opaque caller identity (a wallet address or account handle).
type Identity string

// TreasuryIdentity is the ledger side of every payment kept by the engine.
const TreasuryIdentity Identity = "treasury"

// Account roles.
const (
	RoleHolder = "holder"
	RoleAdmin  = "admin"
)

type Account struct {
	Identity     Identity  `json:"identity"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}
