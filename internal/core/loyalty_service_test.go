package core_test

import (
	"math"
	"testing"
	"time"

	"pos-ledger/internal/core"
)

func testRewards() []core.RewardDefinition {
	return []core.RewardDefinition{
		{ID: "RWD-FLAT-100", Name: "100 off", PointsRequired: 500, ValueType: core.RewardFlatDiscount, Value: dec("100.00"), ValidUntil: epoch.AddDate(1, 0, 0)},
		{ID: "RWD-CREDIT-50", Name: "50 credit", PointsRequired: 300, ValueType: core.RewardStoreCredit, Value: dec("50.00"), ValidUntil: epoch.AddDate(1, 0, 0)},
		{ID: "RWD-OLD", Name: "expired", PointsRequired: 10, ValueType: core.RewardFreeShipping, ValidUntil: epoch.Add(-time.Hour)},
	}
}

func assertLedgerConsistent(t *testing.T, a *core.LoyaltyAccount) {
	t.Helper()
	var running int64
	for i, e := range a.Ledger {
		running += e.Delta
		if running < 0 {
			t.Fatalf("balance negative after entry %d: %d", i, running)
		}
	}
	if uint64(running) != a.PointsBalance {
		t.Errorf("balance %d != sum of ledger deltas %d", a.PointsBalance, running)
	}
}

func TestLoyalty_PointsFor(t *testing.T) {
	tests := []struct {
		subtotal, rate, mult string
		want                 int64
	}{
		{"375.00", "0.1", "1", 37},
		{"375.00", "0.1", "1.25", 46},
		{"999.99", "0.1", "2", 199},
		{"0", "0.1", "2", 0},
		{"92233720368547758070", "0.1", "1", math.MaxInt64},
	}
	for _, tt := range tests {
		got, err := core.PointsFor(dec(tt.subtotal), dec(tt.rate), dec(tt.mult))
		if err != nil {
			t.Errorf("PointsFor(%s, %s, %s): %v", tt.subtotal, tt.rate, tt.mult, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PointsFor(%s, %s, %s): got %d, want %d", tt.subtotal, tt.rate, tt.mult, got, tt.want)
		}
	}
}

func TestLoyalty_PointsForOutOfRange(t *testing.T) {
	for _, subtotal := range []string{"100000000000000000000", "92233720368547758080"} {
		_, err := core.PointsFor(dec(subtotal), dec("0.1"), dec("1"))
		assertKind(t, err, core.KindInvalidAmount)
	}
}

func TestLoyalty_AccrueNeverWrapsBalance(t *testing.T) {
	e := newEnv(t, testRewards()...)
	if _, err := e.loyalty.OpenAccount(e.ctx, "cust-1"); err != nil {
		t.Fatalf("OpenAccount: %v", err)
	}

	_, err := e.loyalty.Accrue(e.ctx, "cust-1", dec("100000000000000000000"), dec("1"), "", "")
	assertKind(t, err, core.KindInvalidAmount)
	_, err = e.loyalty.AccrueForPurchase(e.ctx, "cust-1", dec("100000000000000000000"), "sale-1")
	assertKind(t, err, core.KindInvalidAmount)

	// Two maximal credits fill the balance to MaxUint64-1; a third must not wrap it.
	largest := dec("92233720368547758070")
	for i := 0; i < 2; i++ {
		if _, err := e.loyalty.Accrue(e.ctx, "cust-1", largest, dec("1"), "", ""); err != nil {
			t.Fatalf("Accrue %d: %v", i, err)
		}
	}
	_, err = e.loyalty.Accrue(e.ctx, "cust-1", largest, dec("1"), "", "")
	assertKind(t, err, core.KindInvalidAmount)

	acct, _ := e.loyalty.Get(e.ctx, "cust-1")
	if acct.PointsBalance != math.MaxUint64-1 || len(acct.Ledger) != 2 {
		t.Errorf("balance %d with %d entries, want %d with 2", acct.PointsBalance, len(acct.Ledger), uint64(math.MaxUint64-1))
	}
}

func TestLoyalty_ReverseRedemption(t *testing.T) {
	e := newEnv(t, testRewards()...)
	if _, err := e.loyalty.OpenAccount(e.ctx, "cust-1"); err != nil {
		t.Fatalf("OpenAccount: %v", err)
	}
	if _, err := e.loyalty.Accrue(e.ctx, "cust-1", dec("6000"), dec("1"), "", ""); err != nil {
		t.Fatalf("Accrue: %v", err)
	}
	debit, _, err := e.loyalty.Redeem(e.ctx, "cust-1", "RWD-FLAT-100")
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}

	credit, err := e.loyalty.ReverseRedemption(e.ctx, "cust-1", *debit, "sale-9")
	if err != nil {
		t.Fatalf("ReverseRedemption: %v", err)
	}
	if credit.Delta != 500 || credit.RewardID != "RWD-FLAT-100" || credit.SaleID != "sale-9" {
		t.Errorf("reversal entry: %+v", credit)
	}
	_, err = e.loyalty.ReverseRedemption(e.ctx, "cust-1", *credit, "sale-9")
	assertKind(t, err, core.KindInvalidAmount)

	acct, _ := e.loyalty.Get(e.ctx, "cust-1")
	if acct.PointsBalance != 600 || len(acct.Ledger) != 3 {
		t.Errorf("balance %d with %d entries, want 600 with 3", acct.PointsBalance, len(acct.Ledger))
	}
	assertLedgerConsistent(t, acct)
}

func TestLoyalty_TierFor(t *testing.T) {
	tiers := core.DefaultTiers()
	tests := []struct {
		points uint64
		want   string
	}{
		{0, "BRONZE"}, {999, "BRONZE"}, {1000, "SILVER"}, {4999, "SILVER"}, {5000, "GOLD"}, {10000, "PLATINUM"}, {1 << 40, "PLATINUM"},
	}
	for _, tt := range tests {
		if got := core.TierFor(tt.points, tiers); got.Name != tt.want {
			t.Errorf("TierFor(%d): got %s, want %s", tt.points, got.Name, tt.want)
		}
	}
	if got := core.TierFor(50, nil); !got.Multiplier.Equal(dec("1")) {
		t.Errorf("empty table multiplier: got %s", got.Multiplier)
	}
}

func TestLoyalty_AccrueAndRedeem(t *testing.T) {
	e := newEnv(t, testRewards()...)

	acct, err := e.loyalty.OpenAccount(e.ctx, "cust-1")
	if err != nil {
		t.Fatalf("OpenAccount: %v", err)
	}
	again, err := e.loyalty.OpenAccount(e.ctx, "cust-1")
	if err != nil {
		t.Fatalf("OpenAccount twice: %v", err)
	}
	if !again.OpenedAt.Equal(acct.OpenedAt) {
		t.Error("re-opening should return the existing account")
	}

	entry, err := e.loyalty.AccrueForPurchase(e.ctx, "cust-1", dec("4000.00"), "sale-1")
	if err != nil {
		t.Fatalf("AccrueForPurchase: %v", err)
	}
	if entry.Delta != 400 || entry.Reason != "purchase (BRONZE)" {
		t.Errorf("bronze accrual: got %d %q", entry.Delta, entry.Reason)
	}

	_, _, err = e.loyalty.Redeem(e.ctx, "cust-1", "RWD-FLAT-100")
	assertKind(t, err, core.KindInsufficientPoints)

	if _, err := e.loyalty.AccrueForPurchase(e.ctx, "cust-1", dec("6000.00"), "sale-2"); err != nil {
		t.Fatalf("AccrueForPurchase: %v", err)
	}
	// 1000 points: SILVER now applies.
	entry, err = e.loyalty.AccrueForPurchase(e.ctx, "cust-1", dec("1000.00"), "sale-3")
	if err != nil {
		t.Fatalf("AccrueForPurchase: %v", err)
	}
	if entry.Delta != 125 || entry.Reason != "purchase (SILVER)" {
		t.Errorf("silver accrual: got %d %q", entry.Delta, entry.Reason)
	}

	debit, reward, err := e.loyalty.Redeem(e.ctx, "cust-1", "RWD-FLAT-100")
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if debit.Delta != -500 || reward.ID != "RWD-FLAT-100" {
		t.Errorf("debit: got %d for %s", debit.Delta, reward.ID)
	}

	acct, _ = e.loyalty.Get(e.ctx, "cust-1")
	if acct.PointsBalance != 625 {
		t.Errorf("balance: got %d, want 625", acct.PointsBalance)
	}
	assertLedgerConsistent(t, acct)
}

func TestLoyalty_RedeemFailures(t *testing.T) {
	e := newEnv(t, testRewards()...)
	if _, err := e.loyalty.OpenAccount(e.ctx, "cust-1"); err != nil {
		t.Fatalf("OpenAccount: %v", err)
	}
	if _, err := e.loyalty.Accrue(e.ctx, "cust-1", dec("1000"), dec("1"), "", ""); err != nil {
		t.Fatalf("Accrue: %v", err)
	}

	_, _, err := e.loyalty.Redeem(e.ctx, "cust-1", "RWD-OLD")
	assertKind(t, err, core.KindExpired)
	_, _, err = e.loyalty.Redeem(e.ctx, "cust-1", "RWD-NOPE")
	assertKind(t, err, core.KindNotFound)
	_, _, err = e.loyalty.Redeem(e.ctx, "nobody", "RWD-CREDIT-50")
	assertKind(t, err, core.KindNotFound)
	_, err = e.loyalty.AccrueForPurchase(e.ctx, "nobody", dec("10"), "")
	assertKind(t, err, core.KindNotFound)
	_, err = e.loyalty.Accrue(e.ctx, "cust-1", dec("-1"), dec("1"), "", "")
	assertKind(t, err, core.KindInvalidAmount)

	acct, _ := e.loyalty.Get(e.ctx, "cust-1")
	if acct.PointsBalance != 100 || len(acct.Ledger) != 1 {
		t.Errorf("failed operations must not touch the account: balance %d, %d entries", acct.PointsBalance, len(acct.Ledger))
	}
}

func TestLoyalty_AppliedDiscount(t *testing.T) {
	capRatio := dec("0.5")
	flat := core.RewardDefinition{ValueType: core.RewardFlatDiscount, Value: dec("100.00")}
	credit := core.RewardDefinition{ValueType: core.RewardStoreCredit, Value: dec("250.00")}
	ship := core.RewardDefinition{ValueType: core.RewardFreeShipping, Value: dec("10.00")}

	assertMoney(t, "flat under cap", core.AppliedDiscount(flat, dec("375.00"), capRatio), "100.00")
	assertMoney(t, "flat capped", core.AppliedDiscount(flat, dec("150.00"), capRatio), "75.00")
	assertMoney(t, "store credit", core.AppliedDiscount(credit, dec("50.00"), capRatio), "250.00")
	assertMoney(t, "free shipping", core.AppliedDiscount(ship, dec("50.00"), capRatio), "0")
}
