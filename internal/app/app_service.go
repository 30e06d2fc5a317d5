package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pos-ledger/internal/core"
)

// Repositories is the storage a service set is built on.
type Repositories struct {
	Sales    core.SaleRepository
	Vouchers core.VoucherRepository
	Layaways core.LayawayRepository
	Loyalty  core.LoyaltyRepository
	Refunds  core.RefundRepository
	Rewards  core.RewardCatalog
}

type appService struct {
	clock    core.Clock
	settings core.Settings
	log      *zap.Logger

	sales    core.SaleService
	vouchers core.VoucherService
	layaways core.LayawayService
	loyalty  core.LoyaltyService
	refunds  core.RefundService
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(repos Repositories, clock core.Clock, settings core.Settings, log *zap.Logger) ApplicationService {
	if log == nil {
		log = zap.NewNop()
	}
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &appService{
		clock:    clock,
		settings: settings,
		log:      log,
		sales:    core.NewSaleService(repos.Sales, clock, settings, log),
		vouchers: core.NewVoucherService(repos.Vouchers, clock, log),
		layaways: core.NewLayawayService(repos.Layaways, clock, log),
		loyalty:  core.NewLoyaltyService(repos.Loyalty, repos.Rewards, clock, settings, log),
		refunds:  core.NewRefundService(repos.Refunds, repos.Sales, clock, log),
	}
}

func (s *appService) saleResult(sale *core.Sale) *SaleResult {
	return &SaleResult{Sale: sale, Expired: core.IsExpired(sale, s.clock.Now())}
}

// ── Sales ────────────────────────────────────────────────────────────────────

func (s *appService) CreateSale(ctx context.Context, req CreateSaleRequest) (*SaleResult, error) {
	sale, err := s.sales.CreateDraft(ctx, req.CustomerID, req.CashierID)
	if err != nil {
		return nil, err
	}
	return s.saleResult(sale), nil
}

func (s *appService) GetSale(ctx context.Context, saleID string) (*SaleResult, error) {
	sale, err := s.sales.Get(ctx, saleID)
	if err != nil {
		return nil, err
	}
	return s.saleResult(sale), nil
}

func (s *appService) ListSales(ctx context.Context, status core.SaleStatus) (*SaleListResult, error) {
	sales, err := s.sales.ListByStatus(ctx, status)
	if err != nil {
		return nil, err
	}
	return &SaleListResult{Status: status, Sales: sales}, nil
}

func (s *appService) AddItem(ctx context.Context, saleID string, req AddItemRequest) (*SaleResult, error) {
	sale, err := s.sales.AddItem(ctx, saleID, req.ProductID, req.UnitPrice, req.Quantity)
	if err != nil {
		return nil, err
	}
	return s.saleResult(sale), nil
}

func (s *appService) RemoveItem(ctx context.Context, saleID, productID string) (*SaleResult, error) {
	sale, err := s.sales.RemoveItem(ctx, saleID, productID)
	if err != nil {
		return nil, err
	}
	return s.saleResult(sale), nil
}

func (s *appService) SetQuantity(ctx context.Context, saleID, productID string, req SetQuantityRequest) (*SaleResult, error) {
	sale, err := s.sales.SetQuantity(ctx, saleID, productID, req.Quantity)
	if err != nil {
		return nil, err
	}
	return s.saleResult(sale), nil
}

func (s *appService) HoldSale(ctx context.Context, saleID string, req HoldRequest) (*SaleResult, error) {
	var ttl time.Duration
	if req.TTL != "" {
		d, err := time.ParseDuration(req.TTL)
		if err != nil {
			return nil, core.NewError(core.KindInvalidAmount, "invalid hold ttl %q", req.TTL)
		}
		ttl = d
	}
	sale, err := s.sales.Hold(ctx, saleID, req.Reason, ttl)
	if err != nil {
		return nil, err
	}
	return s.saleResult(sale), nil
}

func (s *appService) ResumeSale(ctx context.Context, saleID string) (*SaleResult, error) {
	sale, err := s.sales.Resume(ctx, saleID)
	if err != nil {
		return nil, err
	}
	return s.saleResult(sale), nil
}

func (s *appService) ExpireSale(ctx context.Context, saleID string) (*SaleResult, error) {
	sale, err := s.sales.ExpireHold(ctx, saleID)
	if err != nil {
		return nil, err
	}
	return s.saleResult(sale), nil
}

func (s *appService) VoidSale(ctx context.Context, saleID string, req VoidRequest) (*SaleResult, error) {
	sale, err := s.sales.Void(ctx, saleID, req.Reason, req.ActorID)
	if err != nil {
		return nil, err
	}
	return s.saleResult(sale), nil
}

// ── Checkout ─────────────────────────────────────────────────────────────────

// plannedVoucher is a voucher draw computed before any write.
type plannedVoucher struct {
	code   string
	amount decimal.Decimal
}

func (s *appService) Checkout(ctx context.Context, saleID string, req CheckoutRequest) (*CheckoutResult, error) {
	sale, err := s.sales.Get(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if sale.Status != core.SaleActive {
		return nil, core.NewError(core.KindInvalidState, "sale %s is %s, only ACTIVE sales can be checked out", sale.ID, sale.Status)
	}
	if sale.IsEmpty() {
		return nil, core.NewError(core.KindEmptyCart, "sale %s has no items", sale.ID)
	}
	if req.Payment.Amount.IsNegative() {
		return nil, core.NewError(core.KindInvalidAmount, "tendered amount cannot be negative")
	}

	now := s.clock.Now()
	due := sale.GrandTotal
	result := &CheckoutResult{RewardDiscount: decimal.Zero}

	// Reward first: it is a discount on the bill, vouchers are a tender.
	var reward *core.RewardDefinition
	if rid := strings.TrimSpace(req.RewardID); rid != "" {
		if sale.CustomerID == "" {
			return nil, core.NewError(core.KindNotFound, "sale %s has no customer to redeem reward %s for", sale.ID, rid)
		}
		acct, err := s.loyalty.Get(ctx, sale.CustomerID)
		if err != nil {
			return nil, err
		}
		reward, err = s.loyalty.Reward(ctx, rid)
		if err != nil {
			return nil, err
		}
		if now.After(reward.ValidUntil) {
			return nil, core.NewError(core.KindExpired, "reward %s expired on %s", reward.ID, reward.ValidUntil.Format(time.RFC3339))
		}
		if acct.PointsBalance < reward.PointsRequired {
			return nil, core.NewError(core.KindInsufficientPoints, "reward %s needs %d points, account has %d", reward.ID, reward.PointsRequired, acct.PointsBalance)
		}
		result.RewardDiscount = core.MinMoney(s.loyalty.AppliedDiscount(*reward, sale.Subtotal), due)
		due = due.Sub(result.RewardDiscount)
	}

	var planned []plannedVoucher
	seen := make(map[string]bool, len(req.VoucherCodes))
	for _, raw := range req.VoucherCodes {
		code := strings.ToUpper(strings.TrimSpace(raw))
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		v, err := s.vouchers.Get(ctx, code)
		if err != nil {
			return nil, err
		}
		switch st := v.StatusAt(now); st {
		case core.VoucherExpired:
			return nil, core.NewError(core.KindExpired, "voucher %s has expired", v.Code)
		case core.VoucherRedeemed, core.VoucherCancelled:
			return nil, core.NewError(core.KindNotActive, "voucher %s is %s", v.Code, st)
		}
		if !due.IsPositive() {
			break
		}
		amt := core.MinMoney(v.CurrentBalance, due)
		planned = append(planned, plannedVoucher{code: v.Code, amount: amt})
		due = due.Sub(amt)
	}
	if req.Payment.Amount.LessThan(due) {
		return nil, core.NewError(core.KindInvalidAmount, "tendered %s does not cover the %s still due", req.Payment.Amount.StringFixed(2), due.StringFixed(2))
	}

	// Writes start here. Each one locks only its own aggregate.
	tendered := req.Payment.Amount
	var debit *core.PointsLedgerEntry
	if reward != nil {
		entry, _, err := s.loyalty.Redeem(ctx, sale.CustomerID, reward.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to redeem reward %s: %w", reward.ID, err)
		}
		debit = entry
		result.Reward = reward
		tendered = tendered.Add(result.RewardDiscount)
	}
	for _, p := range planned {
		rec, err := s.vouchers.Redeem(ctx, p.code, p.amount, sale.ID)
		if err != nil {
			s.abandonCheckout(ctx, sale, debit, result.Vouchers, err)
			return nil, fmt.Errorf("failed to redeem voucher %s: %w", p.code, err)
		}
		result.Vouchers = append(result.Vouchers, VoucherApplication{Code: p.code, Redeemed: rec.Amount})
		tendered = tendered.Add(rec.Amount)
		v, err := s.vouchers.Get(ctx, p.code)
		if err != nil {
			s.abandonCheckout(ctx, sale, debit, result.Vouchers, err)
			return nil, err
		}
		result.Vouchers[len(result.Vouchers)-1].Balance = v.CurrentBalance
	}

	method := strings.TrimSpace(req.Payment.Method)
	if method == "" || req.Payment.Amount.IsZero() {
		method = "VOUCHER"
	}
	completed, err := s.sales.CompleteExpecting(ctx, sale.ID, sale.GrandTotal, core.PaymentResult{
		Method:        method,
		Amount:        tendered,
		TransactionID: req.Payment.TransactionID,
	})
	if err != nil {
		s.abandonCheckout(ctx, sale, debit, result.Vouchers, err)
		return nil, err
	}
	result.Sale = completed
	result.AmountDue = due
	result.Change = req.Payment.Change(due)

	if completed.CustomerID != "" {
		entry, err := s.loyalty.AccrueForPurchase(ctx, completed.CustomerID, completed.Subtotal, completed.ID)
		switch {
		case err == nil:
			result.PointsEarned = entry
		case errors.Is(err, core.ErrNotFound):
			// Customer is not enrolled in the loyalty program.
		default:
			s.log.Warn("points accrual failed", zap.String("sale_id", completed.ID), zap.Error(err))
		}
	}
	return result, nil
}

// abandonCheckout credits back a reward debit and reports the voucher draws
// that stay on the books for a sale that did not complete.
func (s *appService) abandonCheckout(ctx context.Context, sale *core.Sale, debit *core.PointsLedgerEntry, drawn []VoucherApplication, cause error) {
	if debit != nil {
		if _, err := s.loyalty.ReverseRedemption(ctx, sale.CustomerID, *debit, sale.ID); err != nil {
			s.log.Error("reward reversal failed",
				zap.String("sale_id", sale.ID),
				zap.String("customer_id", sale.CustomerID),
				zap.String("reward_id", debit.RewardID),
				zap.Int64("points", -debit.Delta),
				zap.Error(err))
		}
	}
	for _, d := range drawn {
		s.log.Error("voucher drawn for a checkout that did not complete",
			zap.String("sale_id", sale.ID),
			zap.String("code", d.Code),
			zap.String("amount", d.Redeemed.StringFixed(2)),
			zap.Error(cause))
	}
}

// ── Vouchers ─────────────────────────────────────────────────────────────────

func (s *appService) IssueVoucher(ctx context.Context, req IssueVoucherRequest) (*VoucherResult, error) {
	v, err := s.vouchers.Issue(ctx, req.Amount, req.ExpiryDate, req.RecipientRef)
	if err != nil {
		return nil, err
	}
	return &VoucherResult{Voucher: v, Status: s.vouchers.StatusOf(v)}, nil
}

func (s *appService) GetVoucher(ctx context.Context, code string) (*VoucherResult, error) {
	v, err := s.vouchers.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	return &VoucherResult{Voucher: v, Status: s.vouchers.StatusOf(v)}, nil
}

func (s *appService) RedeemVoucher(ctx context.Context, code string, req RedeemVoucherRequest) (*RedemptionResult, error) {
	rec, err := s.vouchers.Redeem(ctx, code, req.Amount, req.SaleID)
	if err != nil {
		return nil, err
	}
	v, err := s.vouchers.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	return &RedemptionResult{
		Code:       v.Code,
		Redemption: rec,
		Capped:     rec.Amount.LessThan(core.RoundMoney(req.Amount)),
		Balance:    v.CurrentBalance,
		Status:     s.vouchers.StatusOf(v),
	}, nil
}

func (s *appService) CancelVoucher(ctx context.Context, code string, req CancelVoucherRequest) (*VoucherResult, error) {
	v, err := s.vouchers.Cancel(ctx, code, req.ActorID)
	if err != nil {
		return nil, err
	}
	return &VoucherResult{Voucher: v, Status: s.vouchers.StatusOf(v)}, nil
}

// ── Layaway ──────────────────────────────────────────────────────────────────

func (s *appService) layawayResult(p *core.LayawayPlan) *LayawayResult {
	return &LayawayResult{Plan: p, Overdue: p.IsOverdue(s.clock.Now())}
}

func (s *appService) StartLayaway(ctx context.Context, saleID string, req StartLayawayRequest) (*LayawayResult, error) {
	sale, err := s.sales.Get(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if sale.Status != core.SaleActive {
		return nil, core.NewError(core.KindInvalidState, "sale %s is %s, only ACTIVE sales can move to layaway", sale.ID, sale.Status)
	}

	lreq := core.LayawayRequest{
		CustomerID:  sale.CustomerID,
		Snapshot:    core.SnapshotOf(sale),
		Deposit:     req.Deposit,
		Schedule:    req.Schedule,
		Method:      req.Method,
		ProcessedBy: req.ProcessedBy,
	}
	if req.DueDate != nil {
		lreq.DueDate = *req.DueDate
	}
	plan, err := s.layaways.Create(ctx, lreq)
	if err != nil {
		return nil, err
	}

	if _, err := s.sales.Void(ctx, sale.ID, "converted to layaway "+plan.ID, req.ProcessedBy); err != nil {
		// The sale changed under us; back the plan out so the goods are not sold twice.
		if _, cerr := s.layaways.Cancel(ctx, plan.ID, "sale "+sale.ID+" could not be converted"); cerr != nil {
			s.log.Error("failed to cancel orphaned layaway", zap.String("plan_id", plan.ID), zap.Error(cerr))
		}
		return nil, fmt.Errorf("failed to convert sale %s to layaway: %w", sale.ID, err)
	}
	return s.layawayResult(plan), nil
}

func (s *appService) GetLayaway(ctx context.Context, planID string) (*LayawayResult, error) {
	p, err := s.layaways.Get(ctx, planID)
	if err != nil {
		return nil, err
	}
	return s.layawayResult(p), nil
}

func (s *appService) ListLayaways(ctx context.Context, status core.LayawayStatus) (*LayawayListResult, error) {
	plans, err := s.layaways.ListByStatus(ctx, status)
	if err != nil {
		return nil, err
	}
	return &LayawayListResult{Status: status, Plans: plans}, nil
}

func (s *appService) PayLayaway(ctx context.Context, planID string, req LayawayPaymentRequest) (*LayawayPaymentResult, error) {
	rec, plan, err := s.layaways.ApplyPayment(ctx, planID, req.Amount, req.Method, req.ActorID)
	if err != nil {
		return nil, err
	}
	return &LayawayPaymentResult{Payment: rec, Plan: plan}, nil
}

func (s *appService) CancelLayaway(ctx context.Context, planID string, req CancelLayawayRequest) (*LayawayResult, error) {
	p, err := s.layaways.Cancel(ctx, planID, req.Reason)
	if err != nil {
		return nil, err
	}
	return s.layawayResult(p), nil
}

func (s *appService) MarkLayawayOverdue(ctx context.Context, planID string) (*LayawayResult, error) {
	p, err := s.layaways.MarkOverdue(ctx, planID)
	if err != nil {
		return nil, err
	}
	return s.layawayResult(p), nil
}

func (s *appService) RescheduleLayaway(ctx context.Context, planID string, req RescheduleRequest) (*LayawayResult, error) {
	p, err := s.layaways.Reschedule(ctx, planID, req.NextDueDate)
	if err != nil {
		return nil, err
	}
	return s.layawayResult(p), nil
}

// ── Loyalty ──────────────────────────────────────────────────────────────────

func (s *appService) OpenLoyaltyAccount(ctx context.Context, customerID string) (*LoyaltyResult, error) {
	acct, err := s.loyalty.OpenAccount(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return &LoyaltyResult{Account: acct, Tier: s.loyalty.TierFor(acct.PointsBalance)}, nil
}

func (s *appService) GetLoyaltyAccount(ctx context.Context, customerID string) (*LoyaltyResult, error) {
	acct, err := s.loyalty.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return &LoyaltyResult{Account: acct, Tier: s.loyalty.TierFor(acct.PointsBalance)}, nil
}

func (s *appService) AccruePoints(ctx context.Context, customerID string, req AccrueRequest) (*PointsResult, error) {
	var (
		entry *core.PointsLedgerEntry
		err   error
	)
	if req.Multiplier != nil {
		entry, err = s.loyalty.Accrue(ctx, customerID, req.Subtotal, *req.Multiplier, req.Reason, req.SaleID)
	} else {
		entry, err = s.loyalty.AccrueForPurchase(ctx, customerID, req.Subtotal, req.SaleID)
	}
	if err != nil {
		return nil, err
	}
	acct, err := s.loyalty.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return &PointsResult{Entry: entry, Balance: acct.PointsBalance, Tier: s.loyalty.TierFor(acct.PointsBalance)}, nil
}

func (s *appService) RedeemReward(ctx context.Context, customerID string, req RedeemRewardRequest) (*RewardRedemptionResult, error) {
	entry, reward, err := s.loyalty.Redeem(ctx, customerID, req.RewardID)
	if err != nil {
		return nil, err
	}
	acct, err := s.loyalty.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return &RewardRedemptionResult{Entry: entry, Reward: reward, Balance: acct.PointsBalance}, nil
}

func (s *appService) ListTiers(_ context.Context) (*TiersResult, error) {
	return &TiersResult{Tiers: s.loyalty.Tiers()}, nil
}

func (s *appService) ListRewards(ctx context.Context) (*RewardsResult, error) {
	rewards, err := s.loyalty.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	return &RewardsResult{Rewards: rewards}, nil
}

// ── Refunds ──────────────────────────────────────────────────────────────────

func (s *appService) RefundSale(ctx context.Context, saleID string, req RefundRequest) (*RefundResult, error) {
	rec, err := s.refunds.Refund(ctx, core.RefundRequest{
		SaleID:      saleID,
		Lines:       req.Lines,
		ReasonCode:  req.ReasonCode,
		Method:      req.Method,
		ProcessedBy: req.ProcessedBy,
	})
	if err != nil {
		return nil, err
	}
	return &RefundResult{Refund: rec}, nil
}

func (s *appService) ListRefunds(ctx context.Context, saleID string) (*RefundListResult, error) {
	recs, err := s.refunds.RefundsForSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	remaining, err := s.refunds.RefundableQuantities(ctx, saleID)
	if err != nil {
		return nil, err
	}
	return &RefundListResult{SaleID: saleID, Refunds: recs, Refundable: remaining}, nil
}

// ── Totals ───────────────────────────────────────────────────────────────────

func (s *appService) Totals(_ context.Context, lines []AddItemRequest) (*TotalsResult, error) {
	items := make([]core.LineItem, 0, len(lines))
	for i, l := range lines {
		if l.UnitPrice.IsNegative() {
			return nil, core.NewError(core.KindInvalidAmount, "line %d: unit price cannot be negative", i+1)
		}
		if err := core.CheckLineQuantity(l.Quantity); err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		items = append(items, core.LineItem{LineNumber: i + 1, ProductID: l.ProductID, UnitPrice: core.RoundMoney(l.UnitPrice), Quantity: l.Quantity})
	}
	sub, tax, grand := core.ComputeTotals(items, s.settings.TaxRate)
	return &TotalsResult{TaxRate: s.settings.TaxRate, Subtotal: sub, Tax: tax, GrandTotal: grand}, nil
}
