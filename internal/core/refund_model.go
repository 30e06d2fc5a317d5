package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type RefundMethod string

const (
	RefundOriginalPayment RefundMethod = "ORIGINAL_PAYMENT_METHOD"
	RefundCash            RefundMethod = "CASH"
	RefundCreditNote      RefundMethod = "CREDIT_NOTE"
	RefundExchange        RefundMethod = "EXCHANGE"
)

// Valid reports whether m is a known refund method.
func (m RefundMethod) Valid() bool {
	switch m {
	case RefundOriginalPayment, RefundCash, RefundCreditNote, RefundExchange:
		return true
	}
	return false
}

// RefundLineRequest asks for qty units back from one line of the original sale.
type RefundLineRequest struct {
	LineNumber int      `json:"line_number"`
	Quantity   Quantity `json:"quantity"`
}

// RefundLine is a refunded portion of an original line, priced at the original unit price.
type RefundLine struct {
	LineNumber int             `json:"line_number"`
	ProductID  string          `json:"product_id"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Quantity   Quantity        `json:"quantity"`
	LineTotal  decimal.Decimal `json:"line_total"`
}

// RefundRecord is immutable once committed.
type RefundRecord struct {
	ID             string          `json:"id"`
	OriginalSaleID string          `json:"original_sale_id"`
	Lines          []RefundLine    `json:"lines"`
	ReasonCode     string          `json:"reason_code"`
	Method         RefundMethod    `json:"method"`
	RefundSubtotal decimal.Decimal `json:"refund_subtotal"`
	RefundTax      decimal.Decimal `json:"refund_tax"`
	RefundTotal    decimal.Decimal `json:"refund_total"`
	ProcessedBy    string          `json:"processed_by,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// RefundableQuantities returns, per line number, how many units of a sale can
// still be refunded given the quantities already refunded.
func RefundableQuantities(sale *Sale, refunded map[int]Quantity) map[int]Quantity {
	out := make(map[int]Quantity, len(sale.Lines))
	for _, l := range sale.Lines {
		done := refunded[l.LineNumber]
		if done >= l.Quantity {
			out[l.LineNumber] = 0
			continue
		}
		out[l.LineNumber] = l.Quantity - done
	}
	return out
}

func (r *RefundRecord) Clone() *RefundRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Lines = append([]RefundLine(nil), r.Lines...)
	return &c
}
