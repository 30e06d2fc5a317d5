package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// voucherCodePrefix marks codes issued by this engine.
const voucherCodePrefix = "GV-"

// VoucherService issues and redeems gift vouchers.
type VoucherService interface {
	Issue(ctx context.Context, amount decimal.Decimal, expiryDate time.Time, recipientRef string) (*GiftVoucher, error)
	// Redeem draws min(requested, balance) from the voucher. Callers that need
	// the full amount must compare the returned record against their request.
	Redeem(ctx context.Context, code string, requested decimal.Decimal, saleID string) (*RedemptionRecord, error)
	Cancel(ctx context.Context, code, actorID string) (*GiftVoucher, error)
	Get(ctx context.Context, code string) (*GiftVoucher, error)
	// StatusOf evaluates the voucher status at the service clock's now.
	StatusOf(v *GiftVoucher) VoucherStatus
}

type voucherService struct {
	repo  VoucherRepository
	clock Clock
	log   *zap.Logger
}

func NewVoucherService(repo VoucherRepository, clock Clock, log *zap.Logger) VoucherService {
	if log == nil {
		log = zap.NewNop()
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &voucherService{repo: repo, clock: clock, log: log.Named("vouchers")}
}

// NewVoucherCode returns a fresh code such as GV-3F2A9C0B17D4.
func NewVoucherCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return voucherCodePrefix + strings.ToUpper(raw[:12])
}

// normalizeCode accepts codes typed in any case with stray whitespace.
func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *voucherService) Issue(ctx context.Context, amount decimal.Decimal, expiryDate time.Time, recipientRef string) (*GiftVoucher, error) {
	amount = RoundMoney(amount)
	if !isPositive(amount) {
		return nil, NewError(KindInvalidAmount, "voucher amount must be greater than zero, got %s", amount)
	}
	now := s.clock.Now()
	if !expiryDate.After(now) {
		return nil, NewError(KindInvalidAmount, "voucher expiry %s must be in the future", expiryDate.Format(time.RFC3339))
	}

	v := &GiftVoucher{
		ID:             uuid.NewString(),
		Code:           NewVoucherCode(),
		RecipientRef:   strings.TrimSpace(recipientRef),
		OriginalAmount: amount,
		CurrentBalance: amount,
		ExpiryDate:     expiryDate,
		Redemptions:    []RedemptionRecord{},
		IssuedAt:       now,
	}
	if err := s.repo.Insert(ctx, v); err != nil {
		return nil, fmt.Errorf("failed to issue voucher: %w", err)
	}
	s.log.Info("voucher issued", zap.String("code", v.Code), zap.String("amount", amount.StringFixed(2)))
	return v, nil
}

func (s *voucherService) Redeem(ctx context.Context, code string, requested decimal.Decimal, saleID string) (*RedemptionRecord, error) {
	requested = RoundMoney(requested)
	if !isPositive(requested) {
		return nil, NewError(KindInvalidAmount, "redemption amount must be greater than zero, got %s", requested)
	}

	var rec RedemptionRecord
	v, err := s.repo.UpdateByCode(ctx, normalizeCode(code), func(v *GiftVoucher) error {
		now := s.clock.Now()
		switch v.StatusAt(now) {
		case VoucherRedeemed, VoucherCancelled:
			return NewError(KindNotActive, "voucher %s is %s", v.Code, v.StatusAt(now))
		case VoucherExpired:
			return NewError(KindExpired, "voucher %s expired on %s", v.Code, v.ExpiryDate.Format(time.RFC3339))
		}
		rec = RedemptionRecord{
			Amount:    MinMoney(requested, v.CurrentBalance),
			Timestamp: now,
			SaleID:    strings.TrimSpace(saleID),
		}
		v.Redemptions = append(v.Redemptions, rec)
		v.rebalance()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("voucher redeemed",
		zap.String("code", v.Code),
		zap.String("requested", requested.StringFixed(2)),
		zap.String("redeemed", rec.Amount.StringFixed(2)),
		zap.String("balance", v.CurrentBalance.StringFixed(2)))
	return &rec, nil
}

func (s *voucherService) Cancel(ctx context.Context, code, actorID string) (*GiftVoucher, error) {
	v, err := s.repo.UpdateByCode(ctx, normalizeCode(code), func(v *GiftVoucher) error {
		now := s.clock.Now()
		if st := v.StatusAt(now); st == VoucherRedeemed || st == VoucherCancelled {
			return NewError(KindNotActive, "voucher %s is already %s", v.Code, st)
		}
		v.CancelledAt = &now
		v.CancelledBy = strings.TrimSpace(actorID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("voucher cancelled", zap.String("code", v.Code), zap.String("actor_id", v.CancelledBy))
	return v, nil
}

func (s *voucherService) Get(ctx context.Context, code string) (*GiftVoucher, error) {
	return s.repo.GetByCode(ctx, normalizeCode(code))
}

func (s *voucherService) StatusOf(v *GiftVoucher) VoucherStatus {
	return v.StatusAt(s.clock.Now())
}
