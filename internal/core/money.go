package core

import "github.com/shopspring/decimal"

// Quantity is a non-negative unit count on a line item.
type Quantity = uint

// MaxLineQuantity is the most units a single line may carry.
const MaxLineQuantity Quantity = 1_000_000

// CheckLineQuantity rejects unit counts above MaxLineQuantity.
func CheckLineQuantity(qty Quantity) error {
	if qty > MaxLineQuantity {
		return NewError(KindInvalidAmount, "quantity %d exceeds the line limit of %d", qty, MaxLineQuantity)
	}
	return nil
}

// units converts a unit count to a decimal without narrowing it to int64.
func units(q Quantity) decimal.Decimal {
	return decimal.NewFromUint64(uint64(q))
}

// moneyPlaces is the fixed scale for every monetary amount held by the engine.
const moneyPlaces = 2

// RoundMoney rounds to 2 decimal places, half-up.
// decimal.Round rounds half away from zero, which is half-up for the
// non-negative amounts the engine stores.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyPlaces)
}

// MinMoney returns the smaller of a and b.
func MinMoney(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// isPositive reports whether d > 0.
func isPositive(d decimal.Decimal) bool {
	return d.GreaterThan(decimal.Zero)
}

// ComputeTotals derives subtotal, tax and grand total from line items.
// Tax is rounded once on the aggregate subtotal, never per line, so many small
// lines do not accumulate rounding drift.
func ComputeTotals(lines []LineItem, taxRate decimal.Decimal) (subtotal, tax, grandTotal decimal.Decimal) {
	subtotal = decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.UnitPrice.Mul(units(l.Quantity)))
	}
	subtotal = RoundMoney(subtotal)
	tax = RoundMoney(subtotal.Mul(taxRate))
	grandTotal = subtotal.Add(tax)
	return subtotal, tax, grandTotal
}
