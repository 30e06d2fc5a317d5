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

// LayawayRequest opens an installment plan against a frozen sale.
type LayawayRequest struct {
	CustomerID string
	Snapshot   SaleSnapshot
	Deposit    decimal.Decimal
	Schedule   PaymentSchedule
	// DueDate is the first installment date. Required for CUSTOM schedules;
	// for the others it overrides the default of one period from now.
	DueDate     time.Time
	Method      string
	ProcessedBy string
}

// LayawayService runs deferred-payment plans.
type LayawayService interface {
	Create(ctx context.Context, req LayawayRequest) (*LayawayPlan, error)
	// ApplyPayment records min(amount, balance). Overpayment is never carried forward.
	ApplyPayment(ctx context.Context, planID string, amount decimal.Decimal, method, actorID string) (*PaymentRecord, *LayawayPlan, error)
	// Cancel closes the plan. The deposit is not refunded automatically.
	Cancel(ctx context.Context, planID, reason string) (*LayawayPlan, error)
	// MarkOverdue flags an open plan whose due date has passed. Intended for an external scheduler.
	MarkOverdue(ctx context.Context, planID string) (*LayawayPlan, error)
	// Reschedule sets the next due date of a CUSTOM plan.
	Reschedule(ctx context.Context, planID string, nextDue time.Time) (*LayawayPlan, error)
	Get(ctx context.Context, planID string) (*LayawayPlan, error)
	ListByStatus(ctx context.Context, status LayawayStatus) ([]LayawayPlan, error)
}

type layawayService struct {
	repo  LayawayRepository
	clock Clock
	log   *zap.Logger
}

func NewLayawayService(repo LayawayRepository, clock Clock, log *zap.Logger) LayawayService {
	if log == nil {
		log = zap.NewNop()
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &layawayService{repo: repo, clock: clock, log: log.Named("layaway")}
}

func (s *layawayService) Create(ctx context.Context, req LayawayRequest) (*LayawayPlan, error) {
	grand := req.Snapshot.GrandTotal
	deposit := RoundMoney(req.Deposit)
	if !isPositive(deposit) {
		return nil, NewError(KindInvalidAmount, "deposit must be greater than zero, got %s", deposit)
	}
	if !deposit.LessThan(grand) {
		return nil, NewError(KindInvalidAmount, "deposit %s must be less than the grand total %s", deposit.StringFixed(2), grand.StringFixed(2))
	}
	if len(req.Snapshot.Lines) == 0 {
		return nil, NewError(KindEmptyCart, "layaway requires at least one line item")
	}
	if !req.Schedule.Valid() {
		return nil, NewError(KindInvalidState, "unknown payment schedule %q", req.Schedule)
	}

	now := s.clock.Now()
	anchor := req.DueDate
	switch {
	case !anchor.IsZero() && !anchor.After(now):
		return nil, NewError(KindInvalidState, "first due date %s must be in the future", anchor.Format(time.RFC3339))
	case anchor.IsZero() && req.Schedule == ScheduleCustom:
		return nil, NewError(KindInvalidState, "a CUSTOM schedule requires a due date")
	case anchor.IsZero():
		anchor = req.Schedule.DueAfter(now, 1)
	}

	method := strings.TrimSpace(req.Method)
	if method == "" {
		method = "CASH"
	}
	plan := &LayawayPlan{
		ID:             uuid.NewString(),
		CustomerID:     strings.TrimSpace(req.CustomerID),
		Snapshot:       req.Snapshot,
		DepositAmount:  deposit,
		Schedule:       req.Schedule,
		Status:         LayawayActive,
		ScheduleAnchor: anchor,
		CreatedAt:      now,
		UpdatedAt:      now,
		Payments: []PaymentRecord{{
			Type:        PaymentDeposit,
			Amount:      deposit,
			Method:      method,
			Timestamp:   now,
			ProcessedBy: strings.TrimSpace(req.ProcessedBy),
		}},
	}
	plan.Snapshot.Lines = append([]LineItem(nil), req.Snapshot.Lines...)
	plan.rebalance()
	due := anchor
	plan.NextDueDate = &due

	if err := s.repo.Insert(ctx, plan); err != nil {
		return nil, fmt.Errorf("failed to create layaway plan: %w", err)
	}
	s.log.Info("layaway created",
		zap.String("plan_id", plan.ID),
		zap.String("grand_total", grand.StringFixed(2)),
		zap.String("deposit", deposit.StringFixed(2)),
		zap.String("schedule", string(plan.Schedule)))
	return plan, nil
}

func (s *layawayService) ApplyPayment(ctx context.Context, planID string, amount decimal.Decimal, method, actorID string) (*PaymentRecord, *LayawayPlan, error) {
	amount = RoundMoney(amount)
	if !isPositive(amount) {
		return nil, nil, NewError(KindInvalidAmount, "payment must be greater than zero, got %s", amount)
	}

	var rec PaymentRecord
	plan, err := s.repo.Update(ctx, planID, func(p *LayawayPlan) error {
		if !p.Status.acceptsPayments() {
			return NewError(KindInvalidState, "layaway %s is %s and does not accept payments", p.ID, p.Status)
		}
		now := s.clock.Now()
		rec = PaymentRecord{
			Type:        PaymentInstallment,
			Amount:      MinMoney(amount, p.BalanceAmount),
			Method:      strings.TrimSpace(method),
			Timestamp:   now,
			ProcessedBy: strings.TrimSpace(actorID),
		}
		p.Payments = append(p.Payments, rec)
		p.rebalance()
		p.InstallmentsPaid++
		p.UpdatedAt = now

		if p.BalanceAmount.Sign() <= 0 {
			p.Status = LayawayCompleted
			p.NextDueDate = nil
			return nil
		}
		if p.Schedule != ScheduleCustom {
			next := p.Schedule.DueAfter(p.ScheduleAnchor, p.InstallmentsPaid)
			p.NextDueDate = &next
		}
		p.Status = LayawayActive
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	s.log.Info("layaway payment applied",
		zap.String("plan_id", plan.ID),
		zap.String("tendered", amount.StringFixed(2)),
		zap.String("applied", rec.Amount.StringFixed(2)),
		zap.String("balance", plan.BalanceAmount.StringFixed(2)),
		zap.String("status", string(plan.Status)))
	return &rec, plan, nil
}

func (s *layawayService) Cancel(ctx context.Context, planID, reason string) (*LayawayPlan, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, NewError(KindMissingReason, "a reason is required to cancel layaway %s", planID)
	}
	plan, err := s.repo.Update(ctx, planID, func(p *LayawayPlan) error {
		if !p.Status.acceptsPayments() {
			return NewError(KindInvalidState, "layaway %s is %s and cannot be cancelled", p.ID, p.Status)
		}
		p.Status = LayawayCancelled
		p.CancelReason = reason
		p.NextDueDate = nil
		p.UpdatedAt = s.clock.Now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("layaway cancelled", zap.String("plan_id", plan.ID), zap.String("paid", plan.PaidAmount.StringFixed(2)))
	return plan, nil
}

func (s *layawayService) MarkOverdue(ctx context.Context, planID string) (*LayawayPlan, error) {
	return s.repo.Update(ctx, planID, func(p *LayawayPlan) error {
		if p.Status == LayawayOverdue {
			return nil
		}
		now := s.clock.Now()
		if !p.IsOverdue(now) {
			return NewError(KindInvalidState, "layaway %s is not past its due date", p.ID)
		}
		p.Status = LayawayOverdue
		p.UpdatedAt = now
		return nil
	})
}

func (s *layawayService) Reschedule(ctx context.Context, planID string, nextDue time.Time) (*LayawayPlan, error) {
	return s.repo.Update(ctx, planID, func(p *LayawayPlan) error {
		if p.Schedule != ScheduleCustom {
			return NewError(KindInvalidState, "layaway %s follows a %s schedule", p.ID, p.Schedule)
		}
		if !p.Status.acceptsPayments() {
			return NewError(KindInvalidState, "layaway %s is %s", p.ID, p.Status)
		}
		now := s.clock.Now()
		if !nextDue.After(now) {
			return NewError(KindInvalidState, "next due date %s must be in the future", nextDue.Format(time.RFC3339))
		}
		p.NextDueDate = &nextDue
		p.Status = LayawayActive
		p.UpdatedAt = now
		return nil
	})
}

func (s *layawayService) Get(ctx context.Context, planID string) (*LayawayPlan, error) {
	return s.repo.Get(ctx, planID)
}

func (s *layawayService) ListByStatus(ctx context.Context, status LayawayStatus) ([]LayawayPlan, error) {
	plans, err := s.repo.ListByStatus(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s layaways: %w", status, err)
	}
	return plans, nil
}
