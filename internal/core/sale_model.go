package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// SaleStatus is the lifecycle state of a bill.
//
//	DRAFT  → HELD | ACTIVE | VOIDED
//	HELD   → ACTIVE | VOIDED | EXPIRED
//	ACTIVE → HELD | COMPLETED | VOIDED
//	COMPLETED, VOIDED, EXPIRED are terminal.
type SaleStatus string

const (
	SaleDraft     SaleStatus = "DRAFT"
	SaleHeld      SaleStatus = "HELD"
	SaleActive    SaleStatus = "ACTIVE"
	SaleCompleted SaleStatus = "COMPLETED"
	SaleVoided    SaleStatus = "VOIDED"
	SaleExpired   SaleStatus = "EXPIRED"
)

var saleTransitions = map[SaleStatus][]SaleStatus{
	SaleDraft:  {SaleHeld, SaleActive, SaleVoided},
	SaleHeld:   {SaleActive, SaleVoided, SaleExpired},
	SaleActive: {SaleHeld, SaleCompleted, SaleVoided},
}

// CanTransition reports whether the state machine allows from → to.
func (from SaleStatus) CanTransition(to SaleStatus) bool {
	for _, s := range saleTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s SaleStatus) IsTerminal() bool {
	return len(saleTransitions[s]) == 0
}

// isEditable reports whether line items may change.
func (s SaleStatus) isEditable() bool {
	return s == SaleDraft || s == SaleActive
}

// LineItem is one product line on a bill.
type LineItem struct {
	LineNumber int             `json:"line_number"`
	ProductID  string          `json:"product_id"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Quantity   Quantity        `json:"quantity"`
	LineTotal  decimal.Decimal `json:"line_total"`
}

// PaymentResult is supplied by the payment-capture collaborator at checkout.
// The engine only reconciles Amount against the grand total.
type PaymentResult struct {
	Method        string          `json:"method"`
	Amount        decimal.Decimal `json:"amount"`
	TransactionID string          `json:"transaction_id"`
}

// Change returns the cash to hand back for a tender against grandTotal.
func (p PaymentResult) Change(grandTotal decimal.Decimal) decimal.Decimal {
	change := p.Amount.Sub(grandTotal)
	if change.IsNegative() {
		return decimal.Zero
	}
	return change
}

// Sale is the cart/bill aggregate.
// While DRAFT, HELD or ACTIVE the totals are always derived from Lines;
// once COMPLETED or VOIDED they are frozen.
type Sale struct {
	ID              string          `json:"id"`
	CustomerID      string          `json:"customer_id,omitempty"`
	CashierID       string          `json:"cashier_id"`
	Status          SaleStatus      `json:"status"`
	Lines           []LineItem      `json:"lines"`
	TaxRate         decimal.Decimal `json:"tax_rate"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Tax             decimal.Decimal `json:"tax"`
	GrandTotal      decimal.Decimal `json:"grand_total"`
	HoldReason      string          `json:"hold_reason,omitempty"`
	HoldExpiry      *time.Time      `json:"hold_expiry,omitempty"`
	VoidReason      string          `json:"void_reason,omitempty"`
	VoidedBy        string          `json:"voided_by,omitempty"`
	Payment         *PaymentResult  `json:"payment,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	StatusChangedAt time.Time       `json:"status_changed_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
}

// IsEmpty reports whether the cart has no lines.
func (s *Sale) IsEmpty() bool {
	return len(s.Lines) == 0
}

// Line returns the line with the given number.
func (s *Sale) Line(lineNumber int) (LineItem, bool) {
	for _, l := range s.Lines {
		if l.LineNumber == lineNumber {
			return l, true
		}
	}
	return LineItem{}, false
}

func (s *Sale) lineIndex(productID string) int {
	for i, l := range s.Lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}

func (s *Sale) nextLineNumber() int {
	n := 0
	for _, l := range s.Lines {
		if l.LineNumber > n {
			n = l.LineNumber
		}
	}
	return n + 1
}

// recompute refreshes every derived amount from the current lines.
func (s *Sale) recompute() {
	for i := range s.Lines {
		l := &s.Lines[i]
		l.LineTotal = RoundMoney(l.UnitPrice.Mul(units(l.Quantity)))
	}
	s.Subtotal, s.Tax, s.GrandTotal = ComputeTotals(s.Lines, s.TaxRate)
}

func (s *Sale) transition(to SaleStatus, now time.Time) error {
	if !s.Status.CanTransition(to) {
		return NewError(KindInvalidState, "sale %s cannot move from %s to %s", s.ID, s.Status, to)
	}
	s.Status = to
	s.StatusChangedAt = now
	return nil
}

// IsExpired reports whether a held sale's hold has lapsed at now.
func IsExpired(s *Sale, now time.Time) bool {
	return s.Status == SaleHeld && s.HoldExpiry != nil && now.After(*s.HoldExpiry)
}

// Clone returns a deep copy so callers never share slices with the store.
func (s *Sale) Clone() *Sale {
	if s == nil {
		return nil
	}
	c := *s
	c.Lines = append([]LineItem(nil), s.Lines...)
	if s.HoldExpiry != nil {
		t := *s.HoldExpiry
		c.HoldExpiry = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	if s.Payment != nil {
		p := *s.Payment
		c.Payment = &p
	}
	return &c
}
