package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	reasonPurchase = "purchase"
	reasonReward   = "reward redemption"
	reasonReversal = "reward reversal"
)

// LoyaltyService accrues and redeems points.
type LoyaltyService interface {
	// OpenAccount returns the existing account when one is already open.
	OpenAccount(ctx context.Context, customerID string) (*LoyaltyAccount, error)
	Get(ctx context.Context, customerID string) (*LoyaltyAccount, error)
	// Accrue credits floor(subtotal * baseRate * multiplier) points.
	Accrue(ctx context.Context, customerID string, subtotal, multiplier decimal.Decimal, reason, saleID string) (*PointsLedgerEntry, error)
	// AccrueForPurchase uses the multiplier of the customer's current tier.
	AccrueForPurchase(ctx context.Context, customerID string, subtotal decimal.Decimal, saleID string) (*PointsLedgerEntry, error)
	// Redeem debits exactly the reward's cost. There is no partial redemption.
	Redeem(ctx context.Context, customerID, rewardID string) (*PointsLedgerEntry, *RewardDefinition, error)
	// ReverseRedemption credits back the points a redemption debited when the
	// sale it was meant for never completed.
	ReverseRedemption(ctx context.Context, customerID string, redeemed PointsLedgerEntry, saleID string) (*PointsLedgerEntry, error)

	TierFor(points uint64) Tier
	Tiers() []Tier
	Catalog(ctx context.Context) ([]RewardDefinition, error)
	Reward(ctx context.Context, rewardID string) (*RewardDefinition, error)
	// AppliedDiscount uses the configured flat-discount cap.
	AppliedDiscount(r RewardDefinition, cartSubtotal decimal.Decimal) decimal.Decimal
}

type loyaltyService struct {
	repo     LoyaltyRepository
	catalog  RewardCatalog
	clock    Clock
	settings Settings
	log      *zap.Logger
}

func NewLoyaltyService(repo LoyaltyRepository, catalog RewardCatalog, clock Clock, settings Settings, log *zap.Logger) LoyaltyService {
	if log == nil {
		log = zap.NewNop()
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &loyaltyService{repo: repo, catalog: catalog, clock: clock, settings: settings, log: log.Named("loyalty")}
}

var maxPoints = decimal.NewFromInt(math.MaxInt64)

// PointsFor computes floor(subtotal * baseRate * multiplier). Results that do
// not fit a ledger delta are rejected with KindInvalidAmount.
func PointsFor(subtotal, baseRate, multiplier decimal.Decimal) (int64, error) {
	pts := subtotal.Mul(baseRate).Mul(multiplier).Floor()
	if pts.IsNegative() {
		return 0, NewError(KindInvalidAmount, "points cannot be negative, got %s", pts)
	}
	if pts.GreaterThan(maxPoints) {
		return 0, NewError(KindInvalidAmount, "points for subtotal %s exceed the ledger limit", subtotal)
	}
	return pts.IntPart(), nil
}

func (s *loyaltyService) OpenAccount(ctx context.Context, customerID string) (*LoyaltyAccount, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, NewError(KindNotFound, "customer id is required")
	}
	acct := &LoyaltyAccount{
		CustomerID: customerID,
		Ledger:     []PointsLedgerEntry{},
		OpenedAt:   s.clock.Now(),
	}
	err := s.repo.Insert(ctx, acct)
	if errors.Is(err, ErrInvalidState) {
		return s.repo.Get(ctx, customerID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open loyalty account: %w", err)
	}
	s.log.Info("loyalty account opened", zap.String("customer_id", customerID))
	return acct, nil
}

func (s *loyaltyService) Get(ctx context.Context, customerID string) (*LoyaltyAccount, error) {
	return s.repo.Get(ctx, strings.TrimSpace(customerID))
}

func (s *loyaltyService) Accrue(ctx context.Context, customerID string, subtotal, multiplier decimal.Decimal, reason, saleID string) (*PointsLedgerEntry, error) {
	if subtotal.IsNegative() {
		return nil, NewError(KindInvalidAmount, "purchase subtotal cannot be negative, got %s", subtotal)
	}
	if multiplier.IsNegative() {
		return nil, NewError(KindInvalidAmount, "tier multiplier cannot be negative, got %s", multiplier)
	}
	if strings.TrimSpace(reason) == "" {
		reason = reasonPurchase
	}
	var entry PointsLedgerEntry
	delta, err := PointsFor(subtotal, s.settings.BaseRate, multiplier)
	if err != nil {
		return nil, err
	}
	acct, err := s.repo.Update(ctx, strings.TrimSpace(customerID), func(a *LoyaltyAccount) error {
		entry = PointsLedgerEntry{
			Delta:     delta,
			Reason:    reason,
			SaleID:    strings.TrimSpace(saleID),
			Timestamp: s.clock.Now(),
		}
		return a.append(entry)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("points accrued",
		zap.String("customer_id", acct.CustomerID),
		zap.Int64("delta", entry.Delta),
		zap.Uint64("balance", acct.PointsBalance))
	return &entry, nil
}

func (s *loyaltyService) AccrueForPurchase(ctx context.Context, customerID string, subtotal decimal.Decimal, saleID string) (*PointsLedgerEntry, error) {
	if subtotal.IsNegative() {
		return nil, NewError(KindInvalidAmount, "purchase subtotal cannot be negative, got %s", subtotal)
	}
	var entry PointsLedgerEntry
	acct, err := s.repo.Update(ctx, strings.TrimSpace(customerID), func(a *LoyaltyAccount) error {
		tier := s.TierFor(a.PointsBalance)
		delta, err := PointsFor(subtotal, s.settings.BaseRate, tier.Multiplier)
		if err != nil {
			return err
		}
		entry = PointsLedgerEntry{
			Delta:     delta,
			Reason:    reasonPurchase + " (" + tier.Name + ")",
			SaleID:    strings.TrimSpace(saleID),
			Timestamp: s.clock.Now(),
		}
		return a.append(entry)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("points accrued",
		zap.String("customer_id", acct.CustomerID),
		zap.String("sale_id", entry.SaleID),
		zap.Int64("delta", entry.Delta),
		zap.Uint64("balance", acct.PointsBalance))
	return &entry, nil
}

func (s *loyaltyService) Redeem(ctx context.Context, customerID, rewardID string) (*PointsLedgerEntry, *RewardDefinition, error) {
	reward, err := s.Reward(ctx, rewardID)
	if err != nil {
		return nil, nil, err
	}
	if reward.PointsRequired > math.MaxInt64 {
		return nil, nil, NewError(KindInvalidAmount, "reward %s costs more points than an account can hold", reward.ID)
	}
	var entry PointsLedgerEntry
	acct, err := s.repo.Update(ctx, strings.TrimSpace(customerID), func(a *LoyaltyAccount) error {
		now := s.clock.Now()
		if now.After(reward.ValidUntil) {
			return NewError(KindExpired, "reward %s expired on %s", reward.ID, reward.ValidUntil.Format(time.RFC3339))
		}
		if a.PointsBalance < reward.PointsRequired {
			return NewError(KindInsufficientPoints, "reward %s needs %d points, account %s has %d",
				reward.ID, reward.PointsRequired, a.CustomerID, a.PointsBalance)
		}
		entry = PointsLedgerEntry{
			Delta:     -int64(reward.PointsRequired),
			Reason:    reasonReward,
			RewardID:  reward.ID,
			Timestamp: now,
		}
		return a.append(entry)
	})
	if err != nil {
		return nil, nil, err
	}
	s.log.Info("reward redeemed",
		zap.String("customer_id", acct.CustomerID),
		zap.String("reward_id", reward.ID),
		zap.Uint64("balance", acct.PointsBalance))
	return &entry, reward, nil
}

func (s *loyaltyService) ReverseRedemption(ctx context.Context, customerID string, redeemed PointsLedgerEntry, saleID string) (*PointsLedgerEntry, error) {
	if redeemed.Delta >= 0 {
		return nil, NewError(KindInvalidAmount, "only a debit can be reversed, got delta %d", redeemed.Delta)
	}
	var entry PointsLedgerEntry
	acct, err := s.repo.Update(ctx, strings.TrimSpace(customerID), func(a *LoyaltyAccount) error {
		entry = PointsLedgerEntry{
			Delta:     -redeemed.Delta,
			Reason:    reasonReversal,
			RewardID:  redeemed.RewardID,
			SaleID:    strings.TrimSpace(saleID),
			Timestamp: s.clock.Now(),
		}
		return a.append(entry)
	})
	if err != nil {
		return nil, err
	}
	s.log.Warn("reward redemption reversed",
		zap.String("customer_id", acct.CustomerID),
		zap.String("reward_id", entry.RewardID),
		zap.String("sale_id", entry.SaleID),
		zap.Int64("delta", entry.Delta),
		zap.Uint64("balance", acct.PointsBalance))
	return &entry, nil
}

func (s *loyaltyService) TierFor(points uint64) Tier {
	return TierFor(points, s.settings.Tiers)
}

func (s *loyaltyService) Tiers() []Tier {
	return append([]Tier(nil), s.settings.Tiers...)
}

func (s *loyaltyService) Catalog(ctx context.Context) ([]RewardDefinition, error) {
	rewards, err := s.catalog.Rewards(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load reward catalog: %w", err)
	}
	return rewards, nil
}

func (s *loyaltyService) Reward(ctx context.Context, rewardID string) (*RewardDefinition, error) {
	return s.catalog.Reward(ctx, strings.TrimSpace(rewardID))
}

func (s *loyaltyService) AppliedDiscount(r RewardDefinition, cartSubtotal decimal.Decimal) decimal.Decimal {
	return AppliedDiscount(r, cartSubtotal, s.settings.FlatDiscountCap)
}
