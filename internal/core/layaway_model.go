package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type LayawayStatus string

const (
	LayawayActive    LayawayStatus = "ACTIVE"
	LayawayCompleted LayawayStatus = "COMPLETED"
	LayawayCancelled LayawayStatus = "CANCELLED"
	LayawayOverdue   LayawayStatus = "OVERDUE"
)

// acceptsPayments reports whether the plan is still open.
func (s LayawayStatus) acceptsPayments() bool {
	return s == LayawayActive || s == LayawayOverdue
}

type PaymentSchedule string

const (
	ScheduleWeekly   PaymentSchedule = "WEEKLY"
	ScheduleBiweekly PaymentSchedule = "BIWEEKLY"
	ScheduleMonthly  PaymentSchedule = "MONTHLY"
	ScheduleCustom   PaymentSchedule = "CUSTOM"
)

// Valid reports whether s is a known schedule.
func (s PaymentSchedule) Valid() bool {
	switch s {
	case ScheduleWeekly, ScheduleBiweekly, ScheduleMonthly, ScheduleCustom:
		return true
	}
	return false
}

// DueAfter returns the due date n periods after anchor.
// Monthly periods keep the anchor's day of month, clamped to the last day of
// shorter months: Jan 31 → Feb 28 (29) → Mar 31. Custom schedules have no rule
// and return the zero time.
func (s PaymentSchedule) DueAfter(anchor time.Time, n int) time.Time {
	switch s {
	case ScheduleWeekly:
		return anchor.AddDate(0, 0, 7*n)
	case ScheduleBiweekly:
		return anchor.AddDate(0, 0, 14*n)
	case ScheduleMonthly:
		return addMonthsClamped(anchor, n)
	}
	return time.Time{}
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	// time.Date normalises month overflow, so first is the 1st of the target month.
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	hh, mm, ss := t.Clock()
	return time.Date(first.Year(), first.Month(), d, hh, mm, ss, t.Nanosecond(), t.Location())
}

// SaleSnapshot is the frozen copy of a sale a plan is written against.
type SaleSnapshot struct {
	SaleID     string          `json:"sale_id,omitempty"`
	Lines      []LineItem      `json:"lines"`
	TaxRate    decimal.Decimal `json:"tax_rate"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Tax        decimal.Decimal `json:"tax"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

// SnapshotOf freezes a sale's lines and totals.
func SnapshotOf(s *Sale) SaleSnapshot {
	return SaleSnapshot{
		SaleID:     s.ID,
		Lines:      append([]LineItem(nil), s.Lines...),
		TaxRate:    s.TaxRate,
		Subtotal:   s.Subtotal,
		Tax:        s.Tax,
		GrandTotal: s.GrandTotal,
	}
}

type PaymentType string

const (
	PaymentDeposit     PaymentType = "DEPOSIT"
	PaymentInstallment PaymentType = "INSTALLMENT"
)

type PaymentRecord struct {
	Type        PaymentType     `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method"`
	Timestamp   time.Time       `json:"timestamp"`
	ProcessedBy string          `json:"processed_by,omitempty"`
}

// LayawayPlan defers payment of a frozen sale.
// PaidAmount + BalanceAmount == Snapshot.GrandTotal, and the plan is COMPLETED
// exactly when BalanceAmount reaches zero.
type LayawayPlan struct {
	ID               string          `json:"id"`
	CustomerID       string          `json:"customer_id,omitempty"`
	Snapshot         SaleSnapshot    `json:"snapshot"`
	DepositAmount    decimal.Decimal `json:"deposit_amount"`
	PaidAmount       decimal.Decimal `json:"paid_amount"`
	BalanceAmount    decimal.Decimal `json:"balance_amount"`
	Schedule         PaymentSchedule `json:"schedule"`
	Status           LayawayStatus   `json:"status"`
	Payments         []PaymentRecord `json:"payments"`
	ScheduleAnchor   time.Time       `json:"schedule_anchor"`
	InstallmentsPaid int             `json:"installments_paid"`
	NextDueDate      *time.Time      `json:"next_due_date,omitempty"`
	CancelReason     string          `json:"cancel_reason,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// IsOverdue reports whether an open plan has passed its due date at now.
func (p *LayawayPlan) IsOverdue(now time.Time) bool {
	return p.Status.acceptsPayments() && p.NextDueDate != nil && now.After(*p.NextDueDate)
}

// rebalance recomputes PaidAmount and BalanceAmount from the payment history.
func (p *LayawayPlan) rebalance() {
	paid := decimal.Zero
	for _, pr := range p.Payments {
		paid = paid.Add(pr.Amount)
	}
	p.PaidAmount = paid
	p.BalanceAmount = p.Snapshot.GrandTotal.Sub(paid)
}

func (p *LayawayPlan) Clone() *LayawayPlan {
	if p == nil {
		return nil
	}
	c := *p
	c.Snapshot.Lines = append([]LineItem(nil), p.Snapshot.Lines...)
	c.Payments = append([]PaymentRecord(nil), p.Payments...)
	if p.NextDueDate != nil {
		t := *p.NextDueDate
		c.NextDueDate = &t
	}
	return &c
}
