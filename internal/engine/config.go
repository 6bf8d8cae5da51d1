package engine

import (
	"fmt"
	"time"

	"github.com/eventpass/backend/internal/models"
)

// Operation names a mutating engine call.
type Operation string

const (
	OpIssue       Operation = "issue"
	OpList        Operation = "list"
	OpBuyResale   Operation = "buy_resale"
	OpValidate    Operation = "validate"
	OpUpdatePrice Operation = "update_price"
	OpWithdraw    Operation = "withdraw"
)

// Fixed anti-scalping rules.
const (
	MaxMarkupPercent = 20
	MaxResales       = 1
)

// Defaults for the configurable limits.
const (
	DefaultCooldown     = 5 * time.Minute
	DefaultLockPeriod   = 10 * time.Minute
	DefaultMaxPerWallet = 4
)

// Config holds the engine's tunables. Zero durations and wallet caps are
// replaced by the defaults in New.
type Config struct {
	Admin        models.Identity
	Prices       [models.NumTiers]models.Amount
	Cooldown     time.Duration
	LockPeriod   time.Duration
	MaxPerWallet int
	// CooldownScope lists the operations gated by, and recorded in, the
	// per-identity cooldown. Nil means DefaultCooldownScope.
	CooldownScope []Operation
}

// DefaultCooldownScope applies the cooldown to every holder operation.
func DefaultCooldownScope() []Operation {
	return []Operation{OpIssue, OpList, OpBuyResale, OpValidate}
}

// DefaultPrices are the launch prices in base units of 9 decimals
// (0.08, 0.10, 0.15, 0.25).
func DefaultPrices() [models.NumTiers]models.Amount {
	return [models.NumTiers]models.Amount{
		models.TierEarlyBird: 80_000_000,
		models.TierStandard:  100_000_000,
		models.TierPremium:   150_000_000,
		models.TierVIP:       250_000_000,
	}
}

// DefaultConfig returns the launch configuration for the given administrator.
func DefaultConfig(admin models.Identity) Config {
	return Config{
		Admin:         admin,
		Prices:        DefaultPrices(),
		Cooldown:      DefaultCooldown,
		LockPeriod:    DefaultLockPeriod,
		MaxPerWallet:  DefaultMaxPerWallet,
		CooldownScope: DefaultCooldownScope(),
	}
}

func (c Config) withDefaults() Config {
	if c.Cooldown == 0 {
		c.Cooldown = DefaultCooldown
	}
	if c.LockPeriod == 0 {
		c.LockPeriod = DefaultLockPeriod
	}
	if c.MaxPerWallet == 0 {
		c.MaxPerWallet = DefaultMaxPerWallet
	}
	if c.CooldownScope == nil {
		c.CooldownScope = DefaultCooldownScope()
	}
	return c
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	if c.Admin == "" {
		return fmt.Errorf("engine: admin identity is required")
	}
	if c.Admin == models.TreasuryIdentity {
		return fmt.Errorf("engine: admin identity %q is reserved", c.Admin)
	}
	for tier, p := range c.Prices {
		if p < 0 {
			return fmt.Errorf("engine: negative price for %s", models.Tier(tier))
		}
	}
	if c.Cooldown < 0 || c.LockPeriod < 0 {
		return fmt.Errorf("engine: cooldown and lock period must not be negative")
	}
	if c.MaxPerWallet < 0 {
		return fmt.Errorf("engine: max per wallet must not be negative")
	}
	for _, op := range c.CooldownScope {
		switch op {
		case OpIssue, OpList, OpBuyResale, OpValidate:
		default:
			return fmt.Errorf("engine: operation %q cannot be cooldown-gated", op)
		}
	}
	return nil
}
