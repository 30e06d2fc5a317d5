package app

import (
	"time"

	"github.com/shopspring/decimal"

	"pos-ledger/internal/core"
)

// CreateSaleRequest opens a new DRAFT bill.
type CreateSaleRequest struct {
	CustomerID string `json:"customer_id,omitempty"`
	CashierID  string `json:"cashier_id" jsonschema:"required"`
}

// AddItemRequest adds qty units of a product. Adding a product already on the
// bill increases its quantity.
type AddItemRequest struct {
	ProductID string          `json:"product_id" jsonschema:"required"`
	UnitPrice decimal.Decimal `json:"unit_price" jsonschema:"required"`
	Quantity  core.Quantity   `json:"quantity" jsonschema:"required,minimum=1,maximum=1000000"`
}

type SetQuantityRequest struct {
	// Quantity 0 removes the line.
	Quantity core.Quantity `json:"quantity"`
}

// HoldRequest parks a bill. TTL is a Go duration string such as "15m";
// empty uses the configured default.
type HoldRequest struct {
	Reason string `json:"reason,omitempty"`
	TTL    string `json:"ttl,omitempty"`
}

type VoidRequest struct {
	Reason  string `json:"reason" jsonschema:"required"`
	ActorID string `json:"actor_id,omitempty"`
}

// CheckoutRequest settles an ACTIVE bill. The reward is applied first, then the
// vouchers in order, and Payment covers what remains.
type CheckoutRequest struct {
	VoucherCodes []string           `json:"voucher_codes,omitempty"`
	RewardID     string             `json:"reward_id,omitempty"`
	Payment      core.PaymentResult `json:"payment"`
}

type IssueVoucherRequest struct {
	Amount       decimal.Decimal `json:"amount" jsonschema:"required"`
	ExpiryDate   time.Time       `json:"expiry_date" jsonschema:"required"`
	RecipientRef string          `json:"recipient_ref,omitempty"`
}

type RedeemVoucherRequest struct {
	Amount decimal.Decimal `json:"amount" jsonschema:"required"`
	SaleID string          `json:"sale_id,omitempty"`
}

type CancelVoucherRequest struct {
	ActorID string `json:"actor_id,omitempty"`
}

// StartLayawayRequest converts a bill into an installment plan.
type StartLayawayRequest struct {
	Deposit  decimal.Decimal      `json:"deposit" jsonschema:"required"`
	Schedule core.PaymentSchedule `json:"schedule" jsonschema:"required,enum=WEEKLY,enum=BIWEEKLY,enum=MONTHLY,enum=CUSTOM"`
	// DueDate is required for CUSTOM schedules.
	DueDate     *time.Time `json:"due_date,omitempty"`
	Method      string     `json:"method,omitempty"`
	ProcessedBy string     `json:"processed_by,omitempty"`
}

type LayawayPaymentRequest struct {
	Amount  decimal.Decimal `json:"amount" jsonschema:"required"`
	Method  string          `json:"method,omitempty"`
	ActorID string          `json:"actor_id,omitempty"`
}

type CancelLayawayRequest struct {
	Reason string `json:"reason" jsonschema:"required"`
}

type RescheduleRequest struct {
	NextDueDate time.Time `json:"next_due_date" jsonschema:"required"`
}

// AccrueRequest credits points for a purchase. Without Multiplier the
// customer's current tier multiplier applies.
type AccrueRequest struct {
	Subtotal   decimal.Decimal  `json:"subtotal" jsonschema:"required"`
	Multiplier *decimal.Decimal `json:"multiplier,omitempty"`
	Reason     string           `json:"reason,omitempty"`
	SaleID     string           `json:"sale_id,omitempty"`
}

type RedeemRewardRequest struct {
	RewardID string `json:"reward_id" jsonschema:"required"`
}

type RefundRequest struct {
	Lines       []core.RefundLineRequest `json:"lines" jsonschema:"required,minItems=1"`
	ReasonCode  string                   `json:"reason_code" jsonschema:"required"`
	Method      core.RefundMethod        `json:"method,omitempty" jsonschema:"enum=ORIGINAL_PAYMENT_METHOD,enum=CASH,enum=CREDIT_NOTE,enum=EXCHANGE"`
	ProcessedBy string                   `json:"processed_by,omitempty"`
}
