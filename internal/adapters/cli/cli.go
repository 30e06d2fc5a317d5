package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"pos-ledger/internal/app"
	"pos-ledger/internal/core"
)

const usage = "Available: totals, tiers, rewards, voucher <code>, sale <id>, held"

// Run executes a one-shot CLI command, writing its report to out.
// args is os.Args[1:]; the first element is the subcommand name.
// totals reads a JSON array of {product_id, unit_price, quantity} from in.
func Run(ctx context.Context, svc app.ApplicationService, args []string, in io.Reader, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("missing command\n%s", usage)
	}

	switch args[0] {
	case "totals", "tot", "t":
		var lines []app.AddItemRequest
		if err := json.NewDecoder(in).Decode(&lines); err != nil {
			return fmt.Errorf("invalid JSON: %w", err)
		}
		result, err := svc.Totals(ctx, lines)
		if err != nil {
			return err
		}
		printTotals(out, result)

	case "tiers":
		result, err := svc.ListTiers(ctx)
		if err != nil {
			return err
		}
		printTiers(out, result)

	case "rewards":
		result, err := svc.ListRewards(ctx)
		if err != nil {
			return err
		}
		printRewards(out, result)

	case "voucher", "v":
		if len(args) < 2 {
			return fmt.Errorf("usage: app voucher <code>")
		}
		result, err := svc.GetVoucher(ctx, args[1])
		if err != nil {
			return err
		}
		printVoucher(out, result)

	case "sale", "s":
		if len(args) < 2 {
			return fmt.Errorf("usage: app sale <id>")
		}
		result, err := svc.GetSale(ctx, args[1])
		if err != nil {
			return err
		}
		printSale(out, result)

	case "held":
		result, err := svc.ListSales(ctx, core.SaleHeld)
		if err != nil {
			return err
		}
		printHeld(out, result)

	default:
		return fmt.Errorf("unknown command: %s\n%s", args[0], usage)
	}
	return nil
}

func rule(out io.Writer, c string) {
	fmt.Fprintln(out, strings.Repeat(c, 62))
}

func printTotals(out io.Writer, r *app.TotalsResult) {
	rule(out, "=")
	fmt.Fprintf(out, "  %-40s %19s\n", "Subtotal", r.Subtotal.StringFixed(2))
	fmt.Fprintf(out, "  %-40s %19s\n", "Tax @ "+r.TaxRate.String(), r.Tax.StringFixed(2))
	rule(out, "-")
	fmt.Fprintf(out, "  %-40s %19s\n", "GRAND TOTAL", r.GrandTotal.StringFixed(2))
	rule(out, "=")
}

func printTiers(out io.Writer, r *app.TiersResult) {
	fmt.Fprintf(out, "  %-20s %15s %12s\n", "TIER", "MIN POINTS", "MULTIPLIER")
	rule(out, "-")
	for _, t := range r.Tiers {
		fmt.Fprintf(out, "  %-20s %15d %12s\n", t.Name, t.MinPoints, t.Multiplier.String())
	}
}

func printRewards(out io.Writer, r *app.RewardsResult) {
	if len(r.Rewards) == 0 {
		fmt.Fprintln(out, "No rewards configured.")
		return
	}
	fmt.Fprintf(out, "  %-16s %-24s %8s %-14s %10s\n", "ID", "NAME", "POINTS", "TYPE", "VALUE")
	rule(out, "-")
	for _, rw := range r.Rewards {
		fmt.Fprintf(out, "  %-16s %-24s %8d %-14s %10s\n",
			rw.ID, rw.Name, rw.PointsRequired, rw.ValueType, rw.Value.StringFixed(2))
	}
}

func printVoucher(out io.Writer, r *app.VoucherResult) {
	v := r.Voucher
	fmt.Fprintf(out, "VOUCHER:   %s\n", v.Code)
	fmt.Fprintf(out, "STATUS:    %s\n", r.Status)
	fmt.Fprintf(out, "ORIGINAL:  %s\n", v.OriginalAmount.StringFixed(2))
	fmt.Fprintf(out, "BALANCE:   %s\n", v.CurrentBalance.StringFixed(2))
	fmt.Fprintf(out, "EXPIRES:   %s\n", v.ExpiryDate.Format("2006-01-02"))
	for _, red := range v.Redemptions {
		fmt.Fprintf(out, "  %s  %10s  %s\n", red.Timestamp.Format("2006-01-02 15:04"), red.Amount.StringFixed(2), red.SaleID)
	}
}

func printSale(out io.Writer, r *app.SaleResult) {
	s := r.Sale
	status := string(s.Status)
	if r.Expired {
		status += " (hold lapsed)"
	}
	fmt.Fprintf(out, "SALE:    %s\n", s.ID)
	fmt.Fprintf(out, "STATUS:  %s\n", status)
	rule(out, "-")
	for _, l := range s.Lines {
		fmt.Fprintf(out, "  %3d %-24s %5d x %10s %12s\n",
			l.LineNumber, l.ProductID, l.Quantity, l.UnitPrice.StringFixed(2), l.LineTotal.StringFixed(2))
	}
	rule(out, "-")
	fmt.Fprintf(out, "  %-44s %15s\n", "Subtotal", s.Subtotal.StringFixed(2))
	fmt.Fprintf(out, "  %-44s %15s\n", "Tax", s.Tax.StringFixed(2))
	fmt.Fprintf(out, "  %-44s %15s\n", "Grand total", s.GrandTotal.StringFixed(2))
}

func printHeld(out io.Writer, r *app.SaleListResult) {
	if len(r.Sales) == 0 {
		fmt.Fprintln(out, "No held sales.")
		return
	}
	fmt.Fprintf(out, "  %-36s %-17s %12s\n", "SALE", "HOLD EXPIRES", "TOTAL")
	rule(out, "-")
	for _, s := range r.Sales {
		expiry := "-"
		if s.HoldExpiry != nil {
			expiry = s.HoldExpiry.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(out, "  %-36s %-17s %12s\n", s.ID, expiry, s.GrandTotal.StringFixed(2))
	}
}
