package app

import (
	"github.com/shopspring/decimal"

	"pos-ledger/internal/core"
)

// SaleResult is returned by sale lifecycle operations.
type SaleResult struct {
	Sale *core.Sale `json:"sale"`
	// Expired is set when a HELD sale's hold has lapsed but it has not been moved to EXPIRED yet.
	Expired bool `json:"expired"`
}

type SaleListResult struct {
	Status core.SaleStatus `json:"status"`
	Sales  []core.Sale     `json:"sales"`
}

// VoucherApplication is one voucher drawn at checkout.
type VoucherApplication struct {
	Code     string          `json:"code"`
	Redeemed decimal.Decimal `json:"redeemed"`
	Balance  decimal.Decimal `json:"balance"`
}

// CheckoutResult is returned by Checkout.
type CheckoutResult struct {
	Sale           *core.Sale              `json:"sale"`
	Vouchers       []VoucherApplication    `json:"vouchers"`
	Reward         *core.RewardDefinition  `json:"reward,omitempty"`
	RewardDiscount decimal.Decimal         `json:"reward_discount"`
	AmountDue      decimal.Decimal         `json:"amount_due"`
	Change         decimal.Decimal         `json:"change"`
	PointsEarned   *core.PointsLedgerEntry `json:"points_earned,omitempty"`
}

type VoucherResult struct {
	Voucher *core.GiftVoucher  `json:"voucher"`
	Status  core.VoucherStatus `json:"status"`
}

type RedemptionResult struct {
	Code       string                 `json:"code"`
	Redemption *core.RedemptionRecord `json:"redemption"`
	// Capped is set when less than the requested amount was redeemed.
	Capped  bool               `json:"capped"`
	Balance decimal.Decimal    `json:"balance"`
	Status  core.VoucherStatus `json:"status"`
}

type LayawayResult struct {
	Plan    *core.LayawayPlan `json:"plan"`
	Overdue bool              `json:"overdue"`
}

type LayawayListResult struct {
	Status core.LayawayStatus `json:"status"`
	Plans  []core.LayawayPlan `json:"plans"`
}

type LayawayPaymentResult struct {
	Payment *core.PaymentRecord `json:"payment"`
	Plan    *core.LayawayPlan   `json:"plan"`
}

type LoyaltyResult struct {
	Account *core.LoyaltyAccount `json:"account"`
	Tier    core.Tier            `json:"tier"`
}

type PointsResult struct {
	Entry   *core.PointsLedgerEntry `json:"entry"`
	Balance uint64                  `json:"balance"`
	Tier    core.Tier               `json:"tier"`
}

type RewardRedemptionResult struct {
	Entry   *core.PointsLedgerEntry `json:"entry"`
	Reward  *core.RewardDefinition  `json:"reward"`
	Balance uint64                  `json:"balance"`
}

type TiersResult struct {
	Tiers []core.Tier `json:"tiers"`
}

type RewardsResult struct {
	Rewards []core.RewardDefinition `json:"rewards"`
}

type RefundResult struct {
	Refund *core.RefundRecord `json:"refund"`
}

type RefundListResult struct {
	SaleID     string                `json:"sale_id"`
	Refunds    []core.RefundRecord   `json:"refunds"`
	Refundable map[int]core.Quantity `json:"refundable"`
}

type TotalsResult struct {
	TaxRate    decimal.Decimal `json:"tax_rate"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Tax        decimal.Decimal `json:"tax"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}
