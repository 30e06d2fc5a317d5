package core

import "context"

// The repositories below are the engine's only I/O seam.
//
// Update is the single-writer primitive: the implementation takes an exclusive
// lock on the aggregate, loads it, calls fn on a private copy and saves the copy
// only when fn returns nil. A non-nil error from fn leaves storage untouched.
// Missing aggregates are reported as KindNotFound.

type SaleRepository interface {
	Insert(ctx context.Context, sale *Sale) error
	Get(ctx context.Context, id string) (*Sale, error)
	Update(ctx context.Context, id string, fn func(*Sale) error) (*Sale, error)
	ListByStatus(ctx context.Context, status SaleStatus) ([]Sale, error)
}

type VoucherRepository interface {
	// Insert fails with KindInvalidState when the code is already taken.
	Insert(ctx context.Context, v *GiftVoucher) error
	GetByCode(ctx context.Context, code string) (*GiftVoucher, error)
	UpdateByCode(ctx context.Context, code string, fn func(*GiftVoucher) error) (*GiftVoucher, error)
}

type LayawayRepository interface {
	Insert(ctx context.Context, plan *LayawayPlan) error
	Get(ctx context.Context, id string) (*LayawayPlan, error)
	Update(ctx context.Context, id string, fn func(*LayawayPlan) error) (*LayawayPlan, error)
	ListByStatus(ctx context.Context, status LayawayStatus) ([]LayawayPlan, error)
}

type LoyaltyRepository interface {
	// Insert fails with KindInvalidState when the customer already has an account.
	Insert(ctx context.Context, acct *LoyaltyAccount) error
	Get(ctx context.Context, customerID string) (*LoyaltyAccount, error)
	Update(ctx context.Context, customerID string, fn func(*LoyaltyAccount) error) (*LoyaltyAccount, error)
}

// RefundCommitFunc computes a refund from the completed sale and the quantities
// already refunded per line number.
type RefundCommitFunc func(sale *Sale, refunded map[int]Quantity) (*RefundRecord, error)

type RefundRepository interface {
	// Commit serialises refunds per sale: under one lock/transaction it reads the
	// sale and its refunded-quantity ledger, calls fn, then stores the returned
	// record and the increased ledger together.
	Commit(ctx context.Context, saleID string, fn RefundCommitFunc) (*RefundRecord, error)
	ListBySale(ctx context.Context, saleID string) ([]RefundRecord, error)
	RefundedQuantities(ctx context.Context, saleID string) (map[int]Quantity, error)
}

// RewardCatalog is read-only; the engine never mutates reward definitions.
type RewardCatalog interface {
	Reward(ctx context.Context, id string) (*RewardDefinition, error)
	Rewards(ctx context.Context) ([]RewardDefinition, error)
}
