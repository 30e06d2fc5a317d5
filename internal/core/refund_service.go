package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RefundRequest returns units of a completed sale.
type RefundRequest struct {
	SaleID      string
	Lines       []RefundLineRequest
	ReasonCode  string
	Method      RefundMethod
	ProcessedBy string
}

// RefundService refunds completed sales line by line.
type RefundService interface {
	Refund(ctx context.Context, req RefundRequest) (*RefundRecord, error)
	RefundsForSale(ctx context.Context, saleID string) ([]RefundRecord, error)
	// RefundableQuantities reports the units still refundable per line number.
	RefundableQuantities(ctx context.Context, saleID string) (map[int]Quantity, error)
}

type refundService struct {
	repo  RefundRepository
	sales SaleRepository
	clock Clock
	log   *zap.Logger
}

func NewRefundService(repo RefundRepository, sales SaleRepository, clock Clock, log *zap.Logger) RefundService {
	if log == nil {
		log = zap.NewNop()
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &refundService{repo: repo, sales: sales, clock: clock, log: log.Named("refunds")}
}

func (s *refundService) Refund(ctx context.Context, req RefundRequest) (*RefundRecord, error) {
	reason := strings.TrimSpace(req.ReasonCode)
	if reason == "" {
		return nil, NewError(KindMissingReason, "a reason code is required to refund sale %s", req.SaleID)
	}
	method := req.Method
	if method == "" {
		method = RefundOriginalPayment
	}
	if !method.Valid() {
		return nil, NewError(KindInvalidState, "unknown refund method %q", method)
	}
	if len(req.Lines) == 0 {
		return nil, NewError(KindInvalidAmount, "refund request for sale %s has no lines", req.SaleID)
	}

	// Several entries for the same line in one request count together.
	requested := make(map[int]Quantity, len(req.Lines))
	for _, l := range req.Lines {
		if l.Quantity == 0 {
			return nil, NewError(KindInvalidAmount, "refund quantity for line %d must be greater than zero", l.LineNumber)
		}
		sum := requested[l.LineNumber] + l.Quantity
		if sum < l.Quantity {
			return nil, NewError(KindOverRefund, "refund quantity for line %d overflows", l.LineNumber)
		}
		requested[l.LineNumber] = sum
	}
	lineNumbers := make([]int, 0, len(requested))
	for n := range requested {
		lineNumbers = append(lineNumbers, n)
	}
	sort.Ints(lineNumbers)

	rec, err := s.repo.Commit(ctx, req.SaleID, func(sale *Sale, refunded map[int]Quantity) (*RefundRecord, error) {
		if sale.Status != SaleCompleted {
			return nil, NewError(KindInvalidState, "sale %s is %s, only COMPLETED sales can be refunded", sale.ID, sale.Status)
		}
		remaining := RefundableQuantities(sale, refunded)

		r := &RefundRecord{
			ID:             uuid.NewString(),
			OriginalSaleID: sale.ID,
			ReasonCode:     reason,
			Method:         method,
			ProcessedBy:    strings.TrimSpace(req.ProcessedBy),
			CreatedAt:      s.clock.Now(),
		}
		subtotal := decimal.Zero
		for _, n := range lineNumbers {
			orig, ok := sale.Line(n)
			if !ok {
				return nil, NewError(KindNotFound, "sale %s has no line %d", sale.ID, n)
			}
			qty := requested[n]
			if qty > remaining[n] {
				return nil, NewError(KindOverRefund, "line %d of sale %s: requested %d, refundable %d", n, sale.ID, qty, remaining[n])
			}
			total := RoundMoney(orig.UnitPrice.Mul(units(qty)))
			r.Lines = append(r.Lines, RefundLine{
				LineNumber: n,
				ProductID:  orig.ProductID,
				UnitPrice:  orig.UnitPrice,
				Quantity:   qty,
				LineTotal:  total,
			})
			subtotal = subtotal.Add(total)
		}
		// Tax is prorated from the refunded amount, never copied from the sale.
		r.RefundSubtotal = RoundMoney(subtotal)
		r.RefundTax = RoundMoney(r.RefundSubtotal.Mul(sale.TaxRate))
		r.RefundTotal = r.RefundSubtotal.Add(r.RefundTax)
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("refund committed",
		zap.String("refund_id", rec.ID),
		zap.String("sale_id", rec.OriginalSaleID),
		zap.String("total", rec.RefundTotal.StringFixed(2)),
		zap.String("method", string(rec.Method)))
	return rec, nil
}

func (s *refundService) RefundsForSale(ctx context.Context, saleID string) ([]RefundRecord, error) {
	if _, err := s.sales.Get(ctx, saleID); err != nil {
		return nil, err
	}
	recs, err := s.repo.ListBySale(ctx, saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list refunds for sale %s: %w", saleID, err)
	}
	return recs, nil
}

func (s *refundService) RefundableQuantities(ctx context.Context, saleID string) (map[int]Quantity, error) {
	sale, err := s.sales.Get(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if sale.Status != SaleCompleted {
		return map[int]Quantity{}, nil
	}
	refunded, err := s.repo.RefundedQuantities(ctx, saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load refunded quantities for sale %s: %w", saleID, err)
	}
	return RefundableQuantities(sale, refunded), nil
}
