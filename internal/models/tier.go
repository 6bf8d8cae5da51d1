package models

import (
	"fmt"
	"strings"
)

// Tier is a ticket category. The numeric values match the on-wire tier index.
type Tier uint8

const (
	TierEarlyBird Tier = iota
	TierStandard
	TierPremium
	TierVIP
)

// NumTiers is the number of defined tiers.
const NumTiers = 4

var tierNames = [NumTiers]string{"early_bird", "standard", "premium", "vip"}

// Tiers lists every tier in index order.
func Tiers() []Tier {
	return []Tier{TierEarlyBird, TierStandard, TierPremium, TierVIP}
}

// Valid reports whether t is one of the four defined tiers.
func (t Tier) Valid() bool { return t < NumTiers }

func (t Tier) String() string {
	if !t.Valid() {
		return fmt.Sprintf("tier(%d)", uint8(t))
	}
	return tierNames[t]
}

// ParseTier accepts either a tier name ("vip", "early-bird") or its index ("3").
func ParseTier(s string) (Tier, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, "-", "_")
	for i, name := range tierNames {
		if norm == name || norm == fmt.Sprint(i) {
			return Tier(i), nil
		}
	}
	return 0, fmt.Errorf("unknown tier %q", s)
}

func (t Tier) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("unknown tier %d", uint8(t))
	}
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(b []byte) error {
	parsed, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
