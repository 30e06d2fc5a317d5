package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// VoucherStatus is derived, never stored. See GiftVoucher.StatusAt.
type VoucherStatus string

const (
	VoucherActive            VoucherStatus = "ACTIVE"
	VoucherPartiallyRedeemed VoucherStatus = "PARTIALLY_REDEEMED"
	VoucherRedeemed          VoucherStatus = "REDEEMED"
	VoucherExpired           VoucherStatus = "EXPIRED"
	VoucherCancelled         VoucherStatus = "CANCELLED"
)

// RedemptionRecord is one draw-down of a voucher balance.
type RedemptionRecord struct {
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
	SaleID    string          `json:"sale_id,omitempty"`
}

// GiftVoucher is a balance-bearing instrument.
// CurrentBalance always equals OriginalAmount minus the sum of Redemptions.
type GiftVoucher struct {
	ID             string             `json:"id"`
	Code           string             `json:"code"`
	RecipientRef   string             `json:"recipient_ref,omitempty"`
	OriginalAmount decimal.Decimal    `json:"original_amount"`
	CurrentBalance decimal.Decimal    `json:"current_balance"`
	ExpiryDate     time.Time          `json:"expiry_date"`
	Redemptions    []RedemptionRecord `json:"redemptions"`
	IssuedAt       time.Time          `json:"issued_at"`
	CancelledAt    *time.Time         `json:"cancelled_at,omitempty"`
	CancelledBy    string             `json:"cancelled_by,omitempty"`
}

// StatusAt evaluates the voucher's status at now.
func (v *GiftVoucher) StatusAt(now time.Time) VoucherStatus {
	switch {
	case v.CancelledAt != nil:
		return VoucherCancelled
	case v.CurrentBalance.Sign() <= 0:
		return VoucherRedeemed
	case now.After(v.ExpiryDate):
		return VoucherExpired
	case len(v.Redemptions) > 0:
		return VoucherPartiallyRedeemed
	default:
		return VoucherActive
	}
}

// RedeemedTotal sums every redemption.
func (v *GiftVoucher) RedeemedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, r := range v.Redemptions {
		total = total.Add(r.Amount)
	}
	return total
}

func (v *GiftVoucher) rebalance() {
	v.CurrentBalance = v.OriginalAmount.Sub(v.RedeemedTotal())
}

func (v *GiftVoucher) Clone() *GiftVoucher {
	if v == nil {
		return nil
	}
	c := *v
	c.Redemptions = append([]RedemptionRecord(nil), v.Redemptions...)
	if v.CancelledAt != nil {
		t := *v.CancelledAt
		c.CancelledAt = &t
	}
	return &c
}
