package core_test

import (
	"testing"
	"time"

	"pos-ledger/internal/core"
)

func (e *env) layaway(t *testing.T, deposit string, schedule core.PaymentSchedule, due time.Time) *core.LayawayPlan {
	t.Helper()
	sale := e.activeSale(t, "cust-1")
	plan, err := e.layaways.Create(e.ctx, core.LayawayRequest{
		CustomerID: "cust-1",
		Snapshot:   core.SnapshotOf(sale),
		Deposit:    dec(deposit),
		Schedule:   schedule,
		DueDate:    due,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return plan
}

func assertPlanBalanced(t *testing.T, p *core.LayawayPlan) {
	t.Helper()
	if !p.PaidAmount.Add(p.BalanceAmount).Equal(p.Snapshot.GrandTotal) {
		t.Errorf("paid %s + balance %s != grand total %s", p.PaidAmount, p.BalanceAmount, p.Snapshot.GrandTotal)
	}
	if (p.Status == core.LayawayCompleted) != p.BalanceAmount.IsZero() {
		t.Errorf("status %s inconsistent with balance %s", p.Status, p.BalanceAmount)
	}
}

func TestLayaway_PaymentScenario(t *testing.T) {
	e := newEnv(t)
	plan := e.layaway(t, "88.50", core.ScheduleWeekly, time.Time{})

	assertMoney(t, "balance", plan.BalanceAmount, "354.00")
	assertPlanBalanced(t, plan)
	if plan.NextDueDate == nil || !plan.NextDueDate.Equal(epoch.AddDate(0, 0, 7)) {
		t.Errorf("first due date: got %v", plan.NextDueDate)
	}

	rec, plan, err := e.layaways.ApplyPayment(e.ctx, plan.ID, dec("118.00"), "CARD", "cashier-1")
	if err != nil {
		t.Fatalf("ApplyPayment: %v", err)
	}
	assertMoney(t, "applied", rec.Amount, "118.00")
	assertMoney(t, "paid", plan.PaidAmount, "206.50")
	assertMoney(t, "balance", plan.BalanceAmount, "236.00")
	if plan.Status != core.LayawayActive {
		t.Errorf("status: got %s, want ACTIVE", plan.Status)
	}
	if !plan.NextDueDate.Equal(epoch.AddDate(0, 0, 14)) {
		t.Errorf("next due: got %s", plan.NextDueDate)
	}
	assertPlanBalanced(t, plan)

	rec, plan, err = e.layaways.ApplyPayment(e.ctx, plan.ID, dec("300.00"), "CASH", "")
	if err != nil {
		t.Fatalf("ApplyPayment: %v", err)
	}
	assertMoney(t, "applied", rec.Amount, "236.00")
	assertMoney(t, "balance", plan.BalanceAmount, "0")
	if plan.Status != core.LayawayCompleted || plan.NextDueDate != nil {
		t.Errorf("expected COMPLETED without due date, got %s %v", plan.Status, plan.NextDueDate)
	}
	assertPlanBalanced(t, plan)

	_, _, err = e.layaways.ApplyPayment(e.ctx, plan.ID, dec("1.00"), "CASH", "")
	assertKind(t, err, core.KindInvalidState)
}

func TestLayaway_CreateValidation(t *testing.T) {
	e := newEnv(t)
	sale := e.activeSale(t, "")
	snap := core.SnapshotOf(sale)

	tests := []struct {
		name string
		req  core.LayawayRequest
		kind core.ErrorKind
	}{
		{"zero deposit", core.LayawayRequest{Snapshot: snap, Deposit: dec("0"), Schedule: core.ScheduleWeekly}, core.KindInvalidAmount},
		{"deposit equals total", core.LayawayRequest{Snapshot: snap, Deposit: dec("442.50"), Schedule: core.ScheduleWeekly}, core.KindInvalidAmount},
		{"empty lines", core.LayawayRequest{Snapshot: core.SaleSnapshot{GrandTotal: dec("100")}, Deposit: dec("10"), Schedule: core.ScheduleWeekly}, core.KindEmptyCart},
		{"unknown schedule", core.LayawayRequest{Snapshot: snap, Deposit: dec("10"), Schedule: "DAILY"}, core.KindInvalidState},
		{"custom without date", core.LayawayRequest{Snapshot: snap, Deposit: dec("10"), Schedule: core.ScheduleCustom}, core.KindInvalidState},
		{"due date in past", core.LayawayRequest{Snapshot: snap, Deposit: dec("10"), Schedule: core.ScheduleCustom, DueDate: epoch.Add(-time.Hour)}, core.KindInvalidState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.layaways.Create(e.ctx, tt.req)
			assertKind(t, err, tt.kind)
		})
	}
}

func TestLayaway_MonthlyScheduleClampsToMonthEnd(t *testing.T) {
	jan31 := time.Date(2024, time.January, 31, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		n    int
		want time.Time
	}{
		{1, time.Date(2024, time.February, 29, 12, 0, 0, 0, time.UTC)},
		{2, time.Date(2024, time.March, 31, 12, 0, 0, 0, time.UTC)},
		{3, time.Date(2024, time.April, 30, 12, 0, 0, 0, time.UTC)},
		{13, time.Date(2025, time.February, 28, 12, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		if got := core.ScheduleMonthly.DueAfter(jan31, tt.n); !got.Equal(tt.want) {
			t.Errorf("DueAfter(jan31, %d): got %s, want %s", tt.n, got, tt.want)
		}
	}
	if got := core.ScheduleBiweekly.DueAfter(jan31, 2); !got.Equal(jan31.AddDate(0, 0, 28)) {
		t.Errorf("biweekly: got %s", got)
	}
	if got := core.ScheduleCustom.DueAfter(jan31, 1); !got.IsZero() {
		t.Errorf("custom should have no rule, got %s", got)
	}
}

func TestLayaway_MonthlyPaymentsFollowAnchor(t *testing.T) {
	e := newEnv(t)
	e.clock.Set(time.Date(2025, time.January, 5, 10, 0, 0, 0, time.UTC))
	anchor := time.Date(2025, time.January, 31, 10, 0, 0, 0, time.UTC)
	plan := e.layaway(t, "100.00", core.ScheduleMonthly, anchor)

	_, plan, err := e.layaways.ApplyPayment(e.ctx, plan.ID, dec("50"), "CASH", "")
	if err != nil {
		t.Fatalf("ApplyPayment: %v", err)
	}
	if want := time.Date(2025, time.February, 28, 10, 0, 0, 0, time.UTC); !plan.NextDueDate.Equal(want) {
		t.Errorf("after 1st installment: got %s, want %s", plan.NextDueDate, want)
	}
	_, plan, _ = e.layaways.ApplyPayment(e.ctx, plan.ID, dec("50"), "CASH", "")
	if want := time.Date(2025, time.March, 31, 10, 0, 0, 0, time.UTC); !plan.NextDueDate.Equal(want) {
		t.Errorf("after 2nd installment: got %s, want %s", plan.NextDueDate, want)
	}
}

func TestLayaway_OverdueAndCancel(t *testing.T) {
	e := newEnv(t)
	plan := e.layaway(t, "50.00", core.ScheduleWeekly, time.Time{})

	_, err := e.layaways.MarkOverdue(e.ctx, plan.ID)
	assertKind(t, err, core.KindInvalidState)

	e.clock.Advance(8 * 24 * time.Hour)
	plan, err = e.layaways.MarkOverdue(e.ctx, plan.ID)
	if err != nil {
		t.Fatalf("MarkOverdue: %v", err)
	}
	if plan.Status != core.LayawayOverdue {
		t.Fatalf("status: got %s, want OVERDUE", plan.Status)
	}
	if _, err := e.layaways.MarkOverdue(e.ctx, plan.ID); err != nil {
		t.Errorf("MarkOverdue should be idempotent, got %v", err)
	}

	_, plan, err = e.layaways.ApplyPayment(e.ctx, plan.ID, dec("20.00"), "CASH", "")
	if err != nil {
		t.Fatalf("ApplyPayment on overdue plan: %v", err)
	}
	if plan.Status != core.LayawayActive {
		t.Errorf("payment should reactivate, got %s", plan.Status)
	}

	_, err = e.layaways.Cancel(e.ctx, plan.ID, "")
	assertKind(t, err, core.KindMissingReason)
	plan, err = e.layaways.Cancel(e.ctx, plan.ID, "customer changed mind")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if plan.Status != core.LayawayCancelled {
		t.Errorf("status: got %s", plan.Status)
	}
	assertMoney(t, "paid retained", plan.PaidAmount, "70.00")
	assertPlanBalanced(t, plan)

	_, err = e.layaways.Cancel(e.ctx, plan.ID, "again")
	assertKind(t, err, core.KindInvalidState)
}

func TestLayaway_RescheduleCustomOnly(t *testing.T) {
	e := newEnv(t)
	weekly := e.layaway(t, "50.00", core.ScheduleWeekly, time.Time{})
	_, err := e.layaways.Reschedule(e.ctx, weekly.ID, epoch.AddDate(0, 1, 0))
	assertKind(t, err, core.KindInvalidState)

	custom := e.layaway(t, "50.00", core.ScheduleCustom, epoch.AddDate(0, 0, 3))
	_, err = e.layaways.Reschedule(e.ctx, custom.ID, epoch.Add(-time.Minute))
	assertKind(t, err, core.KindInvalidState)

	next := epoch.AddDate(0, 0, 20)
	custom, err = e.layaways.Reschedule(e.ctx, custom.ID, next)
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if !custom.NextDueDate.Equal(next) {
		t.Errorf("next due: got %s", custom.NextDueDate)
	}

	_, custom, _ = e.layaways.ApplyPayment(e.ctx, custom.ID, dec("10"), "CASH", "")
	if !custom.NextDueDate.Equal(next) {
		t.Errorf("custom plans keep their due date across payments, got %s", custom.NextDueDate)
	}
}
