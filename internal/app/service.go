package app

import (
	"context"

	"pos-ledger/internal/core"
)

// ApplicationService is the single interface all adapters (CLI, Web) call.
// It decouples presentation from business logic. Implementations must contain
// no fmt.Println and no display logic of any kind.
type ApplicationService interface {
	// Sales

	CreateSale(ctx context.Context, req CreateSaleRequest) (*SaleResult, error)
	GetSale(ctx context.Context, saleID string) (*SaleResult, error)
	// ListSales returns sales in the given status, oldest first.
	ListSales(ctx context.Context, status core.SaleStatus) (*SaleListResult, error)
	AddItem(ctx context.Context, saleID string, req AddItemRequest) (*SaleResult, error)
	RemoveItem(ctx context.Context, saleID, productID string) (*SaleResult, error)
	SetQuantity(ctx context.Context, saleID, productID string, req SetQuantityRequest) (*SaleResult, error)
	HoldSale(ctx context.Context, saleID string, req HoldRequest) (*SaleResult, error)
	ResumeSale(ctx context.Context, saleID string) (*SaleResult, error)
	// ExpireSale moves a lapsed held bill to EXPIRED.
	ExpireSale(ctx context.Context, saleID string) (*SaleResult, error)
	VoidSale(ctx context.Context, saleID string, req VoidRequest) (*SaleResult, error)

	// Checkout applies a loyalty reward and gift vouchers, then completes the sale
	// with the tendered payment and accrues points for the customer.
	// Every input is validated before the first write.
	Checkout(ctx context.Context, saleID string, req CheckoutRequest) (*CheckoutResult, error)

	// Vouchers

	IssueVoucher(ctx context.Context, req IssueVoucherRequest) (*VoucherResult, error)
	GetVoucher(ctx context.Context, code string) (*VoucherResult, error)
	RedeemVoucher(ctx context.Context, code string, req RedeemVoucherRequest) (*RedemptionResult, error)
	CancelVoucher(ctx context.Context, code string, req CancelVoucherRequest) (*VoucherResult, error)

	// Layaway

	// StartLayaway converts an ACTIVE sale into an installment plan and voids the sale.
	StartLayaway(ctx context.Context, saleID string, req StartLayawayRequest) (*LayawayResult, error)
	GetLayaway(ctx context.Context, planID string) (*LayawayResult, error)
	ListLayaways(ctx context.Context, status core.LayawayStatus) (*LayawayListResult, error)
	PayLayaway(ctx context.Context, planID string, req LayawayPaymentRequest) (*LayawayPaymentResult, error)
	CancelLayaway(ctx context.Context, planID string, req CancelLayawayRequest) (*LayawayResult, error)
	MarkLayawayOverdue(ctx context.Context, planID string) (*LayawayResult, error)
	RescheduleLayaway(ctx context.Context, planID string, req RescheduleRequest) (*LayawayResult, error)

	// Loyalty

	OpenLoyaltyAccount(ctx context.Context, customerID string) (*LoyaltyResult, error)
	GetLoyaltyAccount(ctx context.Context, customerID string) (*LoyaltyResult, error)
	AccruePoints(ctx context.Context, customerID string, req AccrueRequest) (*PointsResult, error)
	RedeemReward(ctx context.Context, customerID string, req RedeemRewardRequest) (*RewardRedemptionResult, error)
	ListTiers(ctx context.Context) (*TiersResult, error)
	ListRewards(ctx context.Context) (*RewardsResult, error)

	// Refunds

	RefundSale(ctx context.Context, saleID string, req RefundRequest) (*RefundResult, error)
	// ListRefunds returns a sale's refunds and the quantities still refundable per line.
	ListRefunds(ctx context.Context, saleID string) (*RefundListResult, error)

	// Totals previews subtotal, tax and grand total for lines at the configured tax rate.
	Totals(ctx context.Context, lines []AddItemRequest) (*TotalsResult, error)
}
