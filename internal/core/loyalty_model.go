package core

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Tier is one bracket of the loyalty program.
type Tier struct {
	Name       string          `json:"name" yaml:"name"`
	MinPoints  uint64          `json:"min_points" yaml:"min_points"`
	Multiplier decimal.Decimal `json:"multiplier" yaml:"multiplier"`
}

// TierFor returns the highest tier whose MinPoints ≤ points.
// tiers must be sorted ascending; an empty table yields a zero-value tier with multiplier 1.
func TierFor(points uint64, tiers []Tier) Tier {
	best := Tier{Name: "NONE", Multiplier: decimal.NewFromInt(1)}
	for _, t := range tiers {
		if t.MinPoints > points {
			break
		}
		best = t
	}
	return best
}

type RewardValueType string

const (
	RewardFlatDiscount RewardValueType = "FLAT_DISCOUNT"
	RewardStoreCredit  RewardValueType = "STORE_CREDIT"
	RewardFreeShipping RewardValueType = "FREE_SHIPPING"
	RewardProduct      RewardValueType = "PRODUCT"
)

// RewardDefinition is a read-only catalog entry.
type RewardDefinition struct {
	ID             string          `json:"id" yaml:"id"`
	Name           string          `json:"name" yaml:"name"`
	PointsRequired uint64          `json:"points_required" yaml:"points_required"`
	ValueType      RewardValueType `json:"value_type" yaml:"value_type"`
	Value          decimal.Decimal `json:"value" yaml:"value"`
	ValidUntil     time.Time       `json:"valid_until" yaml:"valid_until"`
}

// AppliedDiscount is the monetary reduction a reward gives a cart.
// FLAT_DISCOUNT is capped at capRatio of the subtotal; STORE_CREDIT applies in
// full; FREE_SHIPPING and PRODUCT carry no cart discount.
func AppliedDiscount(r RewardDefinition, cartSubtotal, capRatio decimal.Decimal) decimal.Decimal {
	switch r.ValueType {
	case RewardFlatDiscount:
		return MinMoney(RoundMoney(r.Value), RoundMoney(cartSubtotal.Mul(capRatio)))
	case RewardStoreCredit:
		return RoundMoney(r.Value)
	}
	return decimal.Zero
}

// PointsLedgerEntry is one signed change to a points balance.
type PointsLedgerEntry struct {
	Delta     int64     `json:"delta"`
	Reason    string    `json:"reason"`
	SaleID    string    `json:"sale_id,omitempty"`
	RewardID  string    `json:"reward_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// LoyaltyAccount is append-only over the customer's lifetime.
// PointsBalance always equals the sum of Ledger deltas.
type LoyaltyAccount struct {
	CustomerID    string              `json:"customer_id"`
	PointsBalance uint64              `json:"points_balance"`
	Ledger        []PointsLedgerEntry `json:"ledger"`
	OpenedAt      time.Time           `json:"opened_at"`
}

// append applies an entry and records it. The balance never wraps: a debit
// larger than the balance or a credit past the uint64 range is rejected and
// leaves the account untouched.
func (a *LoyaltyAccount) append(e PointsLedgerEntry) error {
	if e.Delta < 0 {
		debit := uint64(-(e.Delta + 1)) + 1
		if debit > a.PointsBalance {
			return NewError(KindInsufficientPoints, "debit of %d points exceeds balance %d", debit, a.PointsBalance)
		}
		a.PointsBalance -= debit
	} else {
		credit := uint64(e.Delta)
		if a.PointsBalance > math.MaxUint64-credit {
			return NewError(KindInvalidAmount, "credit of %d points overflows balance %d", credit, a.PointsBalance)
		}
		a.PointsBalance += credit
	}
	a.Ledger = append(a.Ledger, e)
	return nil
}

func (a *LoyaltyAccount) Clone() *LoyaltyAccount {
	if a == nil {
		return nil
	}
	c := *a
	c.Ledger = append([]PointsLedgerEntry(nil), a.Ledger...)
	return &c
}
