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

// SaleService manages the bill lifecycle: cart edits, hold/resume, completion and void.
type SaleService interface {
	CreateDraft(ctx context.Context, customerID, cashierID string) (*Sale, error)

	// Cart edits. Allowed only while the sale is DRAFT or ACTIVE.
	AddItem(ctx context.Context, saleID, productID string, unitPrice decimal.Decimal, qty Quantity) (*Sale, error)
	RemoveItem(ctx context.Context, saleID, productID string) (*Sale, error)
	// SetQuantity replaces a line's quantity. qty 0 removes the line.
	SetQuantity(ctx context.Context, saleID, productID string, qty Quantity) (*Sale, error)

	// Hold parks the bill until now+ttl. A non-positive ttl uses the configured default.
	Hold(ctx context.Context, saleID, reason string, ttl time.Duration) (*Sale, error)
	// Resume fails with KindExpired once the hold has lapsed; the sale is left HELD.
	Resume(ctx context.Context, saleID string) (*Sale, error)
	// ExpireHold moves a lapsed HELD sale to EXPIRED.
	ExpireHold(ctx context.Context, saleID string) (*Sale, error)

	// Complete freezes the totals. payment.Amount must cover the grand total.
	Complete(ctx context.Context, saleID string, payment PaymentResult) (*Sale, error)
	// CompleteExpecting is Complete guarded by the grand total a caller planned
	// its tenders against. A cart edited since then fails with KindInvalidState.
	CompleteExpecting(ctx context.Context, saleID string, expectedTotal decimal.Decimal, payment PaymentResult) (*Sale, error)
	// Void cancels a DRAFT, HELD or ACTIVE sale. A reason is required.
	Void(ctx context.Context, saleID, reason, actorID string) (*Sale, error)

	Get(ctx context.Context, saleID string) (*Sale, error)
	ListByStatus(ctx context.Context, status SaleStatus) ([]Sale, error)
}

type saleService struct {
	repo     SaleRepository
	clock    Clock
	settings Settings
	log      *zap.Logger
}

func NewSaleService(repo SaleRepository, clock Clock, settings Settings, log *zap.Logger) SaleService {
	if log == nil {
		log = zap.NewNop()
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &saleService{repo: repo, clock: clock, settings: settings, log: log.Named("sales")}
}

func (s *saleService) CreateDraft(ctx context.Context, customerID, cashierID string) (*Sale, error) {
	now := s.clock.Now()
	sale := &Sale{
		ID:              uuid.NewString(),
		CustomerID:      strings.TrimSpace(customerID),
		CashierID:       strings.TrimSpace(cashierID),
		Status:          SaleDraft,
		Lines:           []LineItem{},
		TaxRate:         s.settings.TaxRate,
		CreatedAt:       now,
		StatusChangedAt: now,
	}
	sale.recompute()
	if err := s.repo.Insert(ctx, sale); err != nil {
		return nil, fmt.Errorf("failed to create sale: %w", err)
	}
	s.log.Debug("sale created", zap.String("sale_id", sale.ID), zap.String("cashier_id", sale.CashierID))
	return sale, nil
}

// editLines runs a cart mutation under the sale's lock and recomputes totals.
func (s *saleService) editLines(ctx context.Context, saleID string, edit func(*Sale) error) (*Sale, error) {
	return s.repo.Update(ctx, saleID, func(sale *Sale) error {
		if !sale.Status.isEditable() {
			return NewError(KindInvalidState, "sale %s is %s and cannot be edited", sale.ID, sale.Status)
		}
		if err := edit(sale); err != nil {
			return err
		}
		sale.recompute()
		return nil
	})
}

func (s *saleService) AddItem(ctx context.Context, saleID, productID string, unitPrice decimal.Decimal, qty Quantity) (*Sale, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, NewError(KindInvalidAmount, "product id is required")
	}
	if qty == 0 {
		return nil, NewError(KindInvalidAmount, "quantity must be greater than zero")
	}
	if err := CheckLineQuantity(qty); err != nil {
		return nil, err
	}
	if unitPrice.IsNegative() {
		return nil, NewError(KindInvalidAmount, "unit price cannot be negative: %s", unitPrice)
	}
	unitPrice = RoundMoney(unitPrice)

	return s.editLines(ctx, saleID, func(sale *Sale) error {
		if i := sale.lineIndex(productID); i >= 0 {
			merged := sale.Lines[i].Quantity + qty
			if err := CheckLineQuantity(merged); err != nil {
				return err
			}
			sale.Lines[i].Quantity = merged
			sale.Lines[i].UnitPrice = unitPrice
		} else {
			sale.Lines = append(sale.Lines, LineItem{
				LineNumber: sale.nextLineNumber(),
				ProductID:  productID,
				UnitPrice:  unitPrice,
				Quantity:   qty,
			})
		}
		// The first item on a fresh cart makes it ACTIVE.
		if sale.Status == SaleDraft {
			return sale.transition(SaleActive, s.clock.Now())
		}
		return nil
	})
}

func (s *saleService) RemoveItem(ctx context.Context, saleID, productID string) (*Sale, error) {
	return s.editLines(ctx, saleID, func(sale *Sale) error {
		i := sale.lineIndex(productID)
		if i < 0 {
			return NewError(KindNotFound, "product %s is not on sale %s", productID, sale.ID)
		}
		sale.Lines = append(sale.Lines[:i], sale.Lines[i+1:]...)
		return nil
	})
}

func (s *saleService) SetQuantity(ctx context.Context, saleID, productID string, qty Quantity) (*Sale, error) {
	if err := CheckLineQuantity(qty); err != nil {
		return nil, err
	}
	return s.editLines(ctx, saleID, func(sale *Sale) error {
		i := sale.lineIndex(productID)
		if i < 0 {
			return NewError(KindNotFound, "product %s is not on sale %s", productID, sale.ID)
		}
		if qty == 0 {
			sale.Lines = append(sale.Lines[:i], sale.Lines[i+1:]...)
			return nil
		}
		sale.Lines[i].Quantity = qty
		return nil
	})
}

func (s *saleService) Hold(ctx context.Context, saleID, reason string, ttl time.Duration) (*Sale, error) {
	if ttl <= 0 {
		ttl = s.settings.HoldTTL
	}
	if ttl <= 0 {
		ttl = DefaultHoldTTL
	}
	sale, err := s.repo.Update(ctx, saleID, func(sale *Sale) error {
		if sale.Status != SaleDraft && sale.Status != SaleActive {
			return NewError(KindInvalidState, "sale %s is %s and cannot be held", sale.ID, sale.Status)
		}
		if sale.IsEmpty() {
			return NewError(KindEmptyCart, "sale %s has no items to hold", sale.ID)
		}
		now := s.clock.Now()
		if err := sale.transition(SaleHeld, now); err != nil {
			return err
		}
		expiry := now.Add(ttl)
		sale.HoldExpiry = &expiry
		sale.HoldReason = strings.TrimSpace(reason)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("sale held", zap.String("sale_id", sale.ID), zap.Time("hold_expiry", *sale.HoldExpiry))
	return sale, nil
}

func (s *saleService) Resume(ctx context.Context, saleID string) (*Sale, error) {
	sale, err := s.repo.Update(ctx, saleID, func(sale *Sale) error {
		if sale.Status != SaleHeld {
			return NewError(KindInvalidState, "sale %s is %s, not HELD", sale.ID, sale.Status)
		}
		now := s.clock.Now()
		if IsExpired(sale, now) {
			return NewError(KindExpired, "hold on sale %s expired at %s", sale.ID, sale.HoldExpiry.Format(time.RFC3339))
		}
		if err := sale.transition(SaleActive, now); err != nil {
			return err
		}
		sale.HoldExpiry = nil
		sale.HoldReason = ""
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("sale resumed", zap.String("sale_id", sale.ID))
	return sale, nil
}

func (s *saleService) ExpireHold(ctx context.Context, saleID string) (*Sale, error) {
	return s.repo.Update(ctx, saleID, func(sale *Sale) error {
		if sale.Status != SaleHeld {
			return NewError(KindInvalidState, "sale %s is %s, not HELD", sale.ID, sale.Status)
		}
		now := s.clock.Now()
		if !IsExpired(sale, now) {
			return NewError(KindInvalidState, "hold on sale %s has not expired yet", sale.ID)
		}
		return sale.transition(SaleExpired, now)
	})
}

func (s *saleService) Complete(ctx context.Context, saleID string, payment PaymentResult) (*Sale, error) {
	return s.complete(ctx, saleID, nil, payment)
}

func (s *saleService) CompleteExpecting(ctx context.Context, saleID string, expectedTotal decimal.Decimal, payment PaymentResult) (*Sale, error) {
	return s.complete(ctx, saleID, &expectedTotal, payment)
}

func (s *saleService) complete(ctx context.Context, saleID string, expected *decimal.Decimal, payment PaymentResult) (*Sale, error) {
	sale, err := s.repo.Update(ctx, saleID, func(sale *Sale) error {
		if sale.Status != SaleActive {
			return NewError(KindInvalidState, "sale %s is %s, only ACTIVE sales can be completed", sale.ID, sale.Status)
		}
		if sale.IsEmpty() {
			return NewError(KindEmptyCart, "sale %s has no items", sale.ID)
		}
		sale.recompute()
		if expected != nil && !sale.GrandTotal.Equal(*expected) {
			return NewError(KindInvalidState, "sale %s changed during checkout: grand total is %s, expected %s",
				sale.ID, sale.GrandTotal.StringFixed(2), expected.StringFixed(2))
		}
		if payment.Amount.LessThan(sale.GrandTotal) {
			return NewError(KindInvalidAmount, "payment %s does not cover grand total %s", payment.Amount.StringFixed(2), sale.GrandTotal.StringFixed(2))
		}
		now := s.clock.Now()
		if err := sale.transition(SaleCompleted, now); err != nil {
			return err
		}
		p := payment
		p.Amount = RoundMoney(p.Amount)
		sale.Payment = &p
		sale.CompletedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("sale completed",
		zap.String("sale_id", sale.ID),
		zap.String("grand_total", sale.GrandTotal.StringFixed(2)),
		zap.String("method", payment.Method))
	return sale, nil
}

func (s *saleService) Void(ctx context.Context, saleID, reason, actorID string) (*Sale, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, NewError(KindMissingReason, "a reason is required to void sale %s", saleID)
	}
	sale, err := s.repo.Update(ctx, saleID, func(sale *Sale) error {
		if err := sale.transition(SaleVoided, s.clock.Now()); err != nil {
			return err
		}
		sale.VoidReason = reason
		sale.VoidedBy = strings.TrimSpace(actorID)
		sale.HoldExpiry = nil
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("sale voided", zap.String("sale_id", sale.ID), zap.String("reason", reason), zap.String("actor_id", sale.VoidedBy))
	return sale, nil
}

func (s *saleService) Get(ctx context.Context, saleID string) (*Sale, error) {
	return s.repo.Get(ctx, saleID)
}

func (s *saleService) ListByStatus(ctx context.Context, status SaleStatus) ([]Sale, error) {
	sales, err := s.repo.ListByStatus(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s sales: %w", status, err)
	}
	return sales, nil
}
