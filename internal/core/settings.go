package core

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultHoldTTL applies when Hold is called without a positive ttl.
const DefaultHoldTTL = 30 * time.Minute

// Settings carries the process-wide constants every service is built with.
type Settings struct {
	TaxRate decimal.Decimal
	// HoldTTL is the default lifetime of a held bill.
	HoldTTL time.Duration
	// BaseRate is loyalty points per currency unit before the tier multiplier.
	BaseRate decimal.Decimal
	// Tiers must be sorted ascending by MinPoints, starting at 0.
	Tiers []Tier
	// FlatDiscountCap is the share of the cart subtotal a FLAT_DISCOUNT reward may cover.
	FlatDiscountCap decimal.Decimal
}

// DefaultTiers is the tier table used when none is configured.
func DefaultTiers() []Tier {
	return []Tier{
		{Name: "BRONZE", MinPoints: 0, Multiplier: decimal.NewFromInt(1)},
		{Name: "SILVER", MinPoints: 1000, Multiplier: decimal.RequireFromString("1.25")},
		{Name: "GOLD", MinPoints: 5000, Multiplier: decimal.RequireFromString("1.5")},
		{Name: "PLATINUM", MinPoints: 10000, Multiplier: decimal.NewFromInt(2)},
	}
}

// DefaultSettings matches the shipped configuration defaults.
func DefaultSettings() Settings {
	return Settings{
		TaxRate:         decimal.RequireFromString("0.18"),
		HoldTTL:         DefaultHoldTTL,
		BaseRate:        decimal.RequireFromString("0.1"),
		Tiers:           DefaultTiers(),
		FlatDiscountCap: decimal.RequireFromString("0.5"),
	}
}

// Validate checks the settings and sorts the tier table.
func (s *Settings) Validate() error {
	if s.TaxRate.IsNegative() || s.TaxRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("tax rate must be in [0, 1), got %s", s.TaxRate)
	}
	if s.BaseRate.IsNegative() {
		return fmt.Errorf("loyalty base rate cannot be negative, got %s", s.BaseRate)
	}
	if s.FlatDiscountCap.IsNegative() || s.FlatDiscountCap.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("flat discount cap must be in [0, 1], got %s", s.FlatDiscountCap)
	}
	if s.HoldTTL <= 0 {
		s.HoldTTL = DefaultHoldTTL
	}
	if len(s.Tiers) == 0 {
		return errors.New("loyalty tier table must have at least one tier")
	}
	sort.SliceStable(s.Tiers, func(i, j int) bool { return s.Tiers[i].MinPoints < s.Tiers[j].MinPoints })
	if s.Tiers[0].MinPoints != 0 {
		return fmt.Errorf("lowest loyalty tier must start at 0 points, got %d", s.Tiers[0].MinPoints)
	}
	for i, t := range s.Tiers {
		if t.Multiplier.IsNegative() {
			return fmt.Errorf("tier %s has a negative multiplier", t.Name)
		}
		if i > 0 && t.MinPoints == s.Tiers[i-1].MinPoints {
			return fmt.Errorf("tiers %s and %s share the threshold %d", s.Tiers[i-1].Name, t.Name, t.MinPoints)
		}
	}
	return nil
}
