package core_test

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/cucumber/godog"
	"github.com/shopspring/decimal"

	"pos-ledger/internal/core"
	"pos-ledger/internal/store/memory"
)

type ledgerTestContext struct {
	ctx      context.Context
	clock    *core.FixedClock
	settings core.Settings
	sales    core.SaleService
	vouchers core.VoucherService
	layaways core.LayawayService
	loyalty  core.LoyaltyService
	refunds  core.RefundService

	sale     *core.Sale
	voucher  *core.GiftVoucher
	redeemed decimal.Decimal
	plan     *core.LayawayPlan
	applied  decimal.Decimal
	refund   *core.RefundRecord
	err      error
}

func (c *ledgerTestContext) reset() {
	c.ctx = context.Background()
	c.clock = core.NewFixedClock(epoch)
	c.settings = core.DefaultSettings()
	c.build()
	c.sale, c.voucher, c.plan, c.refund, c.err = nil, nil, nil, nil, nil
	c.redeemed, c.applied = decimal.Zero, decimal.Zero
}

func (c *ledgerTestContext) build() {
	st := memory.New()
	c.sales = core.NewSaleService(st.Sales(), c.clock, c.settings, nil)
	c.vouchers = core.NewVoucherService(st.Vouchers(), c.clock, nil)
	c.layaways = core.NewLayawayService(st.Layaways(), c.clock, nil)
	c.loyalty = core.NewLoyaltyService(st.Loyalty(), memory.NewRewardCatalog(testRewards()), c.clock, c.settings, nil)
	c.refunds = core.NewRefundService(st.Refunds(), st.Sales(), c.clock, nil)
}

func parseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bad amount %q: %w", s, err)
	}
	return d, nil
}

func expectMoney(name string, got decimal.Decimal, want string) error {
	w, err := parseMoney(want)
	if err != nil {
		return err
	}
	if !got.Equal(w) {
		return fmt.Errorf("%s: got %s, want %s", name, got.StringFixed(2), want)
	}
	return nil
}

func (c *ledgerTestContext) theTaxRateIs(rate string) error {
	r, err := parseMoney(rate)
	if err != nil {
		return err
	}
	c.settings.TaxRate = r
	c.build()
	return nil
}

func (c *ledgerTestContext) aSaleWithLines(table *godog.Table) error {
	sale, err := c.sales.CreateDraft(c.ctx, "cust-1", "cashier-1")
	if err != nil {
		return err
	}
	for i, row := range table.Rows {
		if i == 0 {
			continue // header
		}
		price, err := parseMoney(row.Cells[1].Value)
		if err != nil {
			return err
		}
		qty, err := strconv.ParseUint(row.Cells[2].Value, 10, 32)
		if err != nil {
			return err
		}
		if sale, err = c.sales.AddItem(c.ctx, sale.ID, row.Cells[0].Value, price, core.Quantity(qty)); err != nil {
			return err
		}
	}
	c.sale = sale
	return nil
}

func (c *ledgerTestContext) aCompletedSaleWithLines(table *godog.Table) error {
	if err := c.aSaleWithLines(table); err != nil {
		return err
	}
	sale, err := c.sales.Complete(c.ctx, c.sale.ID, core.PaymentResult{Method: "CARD", Amount: c.sale.GrandTotal})
	if err != nil {
		return err
	}
	c.sale = sale
	return nil
}

func (c *ledgerTestContext) theSaleIsHeldFor(ttl string) error {
	d, err := time.ParseDuration(ttl)
	if err != nil {
		return err
	}
	c.sale, err = c.sales.Hold(c.ctx, c.sale.ID, "", d)
	return err
}

func (c *ledgerTestContext) timePasses(d string) error {
	dur, err := time.ParseDuration(d)
	if err != nil {
		return err
	}
	c.clock.Advance(dur)
	return nil
}

func (c *ledgerTestContext) theSaleIsResumed() error {
	_, c.err = c.sales.Resume(c.ctx, c.sale.ID)
	return nil
}

func (c *ledgerTestContext) theSaleSubtotalIs(want string) error {
	return expectMoney("subtotal", c.sale.Subtotal, want)
}

func (c *ledgerTestContext) theSaleTaxIs(want string) error {
	return expectMoney("tax", c.sale.Tax, want)
}

func (c *ledgerTestContext) theSaleGrandTotalIs(want string) error {
	return expectMoney("grand total", c.sale.GrandTotal, want)
}

func (c *ledgerTestContext) theSaleStatusIs(want string) error {
	sale, err := c.sales.Get(c.ctx, c.sale.ID)
	if err != nil {
		return err
	}
	if string(sale.Status) != want {
		return fmt.Errorf("sale status: got %s, want %s", sale.Status, want)
	}
	return nil
}

func (c *ledgerTestContext) aLayawayIsOpenedWithDeposit(schedule, deposit string) error {
	d, err := parseMoney(deposit)
	if err != nil {
		return err
	}
	c.plan, err = c.layaways.Create(c.ctx, core.LayawayRequest{
		CustomerID: c.sale.CustomerID,
		Snapshot:   core.SnapshotOf(c.sale),
		Deposit:    d,
		Schedule:   core.PaymentSchedule(schedule),
	})
	return err
}

func (c *ledgerTestContext) aLayawayPaymentIsMade(amount string) error {
	a, err := parseMoney(amount)
	if err != nil {
		return err
	}
	rec, plan, err := c.layaways.ApplyPayment(c.ctx, c.plan.ID, a, "CASH", "")
	if err != nil {
		return err
	}
	c.applied, c.plan = rec.Amount, plan
	if !plan.PaidAmount.Add(plan.BalanceAmount).Equal(plan.Snapshot.GrandTotal) {
		return fmt.Errorf("paid + balance drifted from grand total")
	}
	return nil
}

func (c *ledgerTestContext) theLayawayBalanceIs(want string) error {
	return expectMoney("layaway balance", c.plan.BalanceAmount, want)
}

func (c *ledgerTestContext) theLayawayPaidAmountIs(want string) error {
	return expectMoney("layaway paid", c.plan.PaidAmount, want)
}

func (c *ledgerTestContext) theAppliedPaymentIs(want string) error {
	return expectMoney("applied payment", c.applied, want)
}

func (c *ledgerTestContext) theLayawayStatusIs(want string) error {
	if string(c.plan.Status) != want {
		return fmt.Errorf("layaway status: got %s, want %s", c.plan.Status, want)
	}
	return nil
}

func (c *ledgerTestContext) aVoucherIssuedFor(amount string) error {
	a, err := parseMoney(amount)
	if err != nil {
		return err
	}
	c.voucher, err = c.vouchers.Issue(c.ctx, a, epoch.AddDate(1, 0, 0), "")
	return err
}

func (c *ledgerTestContext) isRedeemedFromTheVoucher(amount string) error {
	a, err := parseMoney(amount)
	if err != nil {
		return err
	}
	rec, err := c.vouchers.Redeem(c.ctx, c.voucher.Code, a, "")
	if err != nil {
		return err
	}
	c.redeemed = rec.Amount
	c.voucher, err = c.vouchers.Get(c.ctx, c.voucher.Code)
	return err
}

func (c *ledgerTestContext) theRedeemedAmountIs(want string) error {
	return expectMoney("redeemed", c.redeemed, want)
}

func (c *ledgerTestContext) theVoucherBalanceIs(want string) error {
	return expectMoney("voucher balance", c.voucher.CurrentBalance, want)
}

func (c *ledgerTestContext) theVoucherStatusIs(want string) error {
	if st := c.vouchers.StatusOf(c.voucher); string(st) != want {
		return fmt.Errorf("voucher status: got %s, want %s", st, want)
	}
	return nil
}

func (c *ledgerTestContext) aLoyaltyAccountWithPoints(points int) error {
	if _, err := c.loyalty.OpenAccount(c.ctx, "cust-1"); err != nil {
		return err
	}
	// With a base rate of 0.1 and multiplier 1, subtotal = points * 10.
	_, err := c.loyalty.Accrue(c.ctx, "cust-1", decimal.NewFromInt(int64(points)*10), decimal.NewFromInt(1), "seed", "")
	return err
}

func (c *ledgerTestContext) theCustomerRedeemsReward(rewardID string) error {
	_, _, c.err = c.loyalty.Redeem(c.ctx, "cust-1", rewardID)
	return nil
}

func (c *ledgerTestContext) thePointsBalanceIs(want int) error {
	acct, err := c.loyalty.Get(c.ctx, "cust-1")
	if err != nil {
		return err
	}
	if acct.PointsBalance != uint64(want) {
		return fmt.Errorf("points balance: got %d, want %d", acct.PointsBalance, want)
	}
	return nil
}

func (c *ledgerTestContext) unitsOfLineAreRefunded(qty, line int) error {
	c.refund, c.err = c.refunds.Refund(c.ctx, core.RefundRequest{
		SaleID:     c.sale.ID,
		Lines:      []core.RefundLineRequest{{LineNumber: line, Quantity: core.Quantity(qty)}},
		ReasonCode: "DAMAGED",
	})
	return nil
}

func (c *ledgerTestContext) theRefundSubtotalIs(want string) error {
	if c.err != nil {
		return c.err
	}
	return expectMoney("refund subtotal", c.refund.RefundSubtotal, want)
}

func (c *ledgerTestContext) theRefundTaxIs(want string) error {
	return expectMoney("refund tax", c.refund.RefundTax, want)
}

func (c *ledgerTestContext) theRefundTotalIs(want string) error {
	return expectMoney("refund total", c.refund.RefundTotal, want)
}

func (c *ledgerTestContext) theOperationSucceeds() error {
	return c.err
}

func (c *ledgerTestContext) theOperationFailsWith(kind string) error {
	if c.err == nil {
		return fmt.Errorf("expected %s, got success", kind)
	}
	if got := core.KindOf(c.err); string(got) != kind {
		return fmt.Errorf("expected %s, got %q (%v)", kind, got, c.err)
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &ledgerTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	// Given steps
	ctx.Step(`^the tax rate is "([^"]*)"$`, tc.theTaxRateIs)
	ctx.Step(`^a sale with lines:$`, tc.aSaleWithLines)
	ctx.Step(`^a completed sale with lines:$`, tc.aCompletedSaleWithLines)
	ctx.Step(`^the sale is held for "([^"]*)"$`, tc.theSaleIsHeldFor)
	ctx.Step(`^a voucher issued for "([^"]*)"$`, tc.aVoucherIssuedFor)
	ctx.Step(`^a loyalty account with (\d+) points$`, tc.aLoyaltyAccountWithPoints)

	// When steps
	ctx.Step(`^"([^"]*)" pass$`, tc.timePasses)
	ctx.Step(`^the sale is resumed$`, tc.theSaleIsResumed)
	ctx.Step(`^a "([^"]*)" layaway is opened with deposit "([^"]*)"$`, tc.aLayawayIsOpenedWithDeposit)
	ctx.Step(`^a layaway payment of "([^"]*)" is made$`, tc.aLayawayPaymentIsMade)
	ctx.Step(`^"([^"]*)" is redeemed from the voucher$`, tc.isRedeemedFromTheVoucher)
	ctx.Step(`^the customer redeems reward "([^"]*)"$`, tc.theCustomerRedeemsReward)
	ctx.Step(`^(\d+) units? of line (\d+) (?:is|are) refunded$`, tc.unitsOfLineAreRefunded)

	// Then steps
	ctx.Step(`^the sale subtotal is "([^"]*)"$`, tc.theSaleSubtotalIs)
	ctx.Step(`^the sale tax is "([^"]*)"$`, tc.theSaleTaxIs)
	ctx.Step(`^the sale grand total is "([^"]*)"$`, tc.theSaleGrandTotalIs)
	ctx.Step(`^the sale status is "([^"]*)"$`, tc.theSaleStatusIs)
	ctx.Step(`^the layaway balance is "([^"]*)"$`, tc.theLayawayBalanceIs)
	ctx.Step(`^the layaway paid amount is "([^"]*)"$`, tc.theLayawayPaidAmountIs)
	ctx.Step(`^the applied payment is "([^"]*)"$`, tc.theAppliedPaymentIs)
	ctx.Step(`^the layaway status is "([^"]*)"$`, tc.theLayawayStatusIs)
	ctx.Step(`^the redeemed amount is "([^"]*)"$`, tc.theRedeemedAmountIs)
	ctx.Step(`^the voucher balance is "([^"]*)"$`, tc.theVoucherBalanceIs)
	ctx.Step(`^the voucher status is "([^"]*)"$`, tc.theVoucherStatusIs)
	ctx.Step(`^the points balance is (\d+)$`, tc.thePointsBalanceIs)
	ctx.Step(`^the refund subtotal is "([^"]*)"$`, tc.theRefundSubtotalIs)
	ctx.Step(`^the refund tax is "([^"]*)"$`, tc.theRefundTaxIs)
	ctx.Step(`^the refund total is "([^"]*)"$`, tc.theRefundTotalIs)
	ctx.Step(`^the operation succeeds$`, tc.theOperationSucceeds)
	ctx.Step(`^the operation fails with "([^"]*)"$`, tc.theOperationFailsWith)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
