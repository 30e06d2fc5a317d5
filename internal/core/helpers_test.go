package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"pos-ledger/internal/core"
	"pos-ledger/internal/store/memory"
)

var epoch = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

type env struct {
	ctx      context.Context
	clock    *core.FixedClock
	store    *memory.Store
	settings core.Settings
	sales    core.SaleService
	vouchers core.VoucherService
	layaways core.LayawayService
	loyalty  core.LoyaltyService
	refunds  core.RefundService
}

func newEnv(t *testing.T, rewards ...core.RewardDefinition) *env {
	t.Helper()
	clock := core.NewFixedClock(epoch)
	st := memory.New()
	settings := core.DefaultSettings()
	if err := settings.Validate(); err != nil {
		t.Fatalf("default settings invalid: %v", err)
	}
	return &env{
		ctx:      context.Background(),
		clock:    clock,
		store:    st,
		settings: settings,
		sales:    core.NewSaleService(st.Sales(), clock, settings, nil),
		vouchers: core.NewVoucherService(st.Vouchers(), clock, nil),
		layaways: core.NewLayawayService(st.Layaways(), clock, nil),
		loyalty:  core.NewLoyaltyService(st.Loyalty(), memory.NewRewardCatalog(rewards), clock, settings, nil),
		refunds:  core.NewRefundService(st.Refunds(), st.Sales(), clock, nil),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertMoney(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Errorf("%s: got %s, want %s", name, got.StringFixed(2), want)
	}
}

func assertKind(t *testing.T, err error, want core.ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := core.KindOf(err); got != want {
		t.Fatalf("expected %s error, got %q (%v)", want, got, err)
	}
}

// activeSale builds the 150.00 x2 + 75.00 x1 cart.
func (e *env) activeSale(t *testing.T, customerID string) *core.Sale {
	t.Helper()
	sale, err := e.sales.CreateDraft(e.ctx, customerID, "cashier-1")
	if err != nil {
		t.Fatalf("CreateDraft: %v", err)
	}
	if _, err := e.sales.AddItem(e.ctx, sale.ID, "SKU-SHIRT", dec("150.00"), 2); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	sale, err = e.sales.AddItem(e.ctx, sale.ID, "SKU-CAP", dec("75.00"), 1)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	return sale
}

func (e *env) completedSale(t *testing.T, customerID string) *core.Sale {
	t.Helper()
	sale := e.activeSale(t, customerID)
	sale, err := e.sales.Complete(e.ctx, sale.ID, core.PaymentResult{Method: "CARD", Amount: sale.GrandTotal, TransactionID: "tx-1"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	return sale
}

func isKind(err error, target error) bool {
	return errors.Is(err, target)
}
