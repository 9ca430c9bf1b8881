// Package shared holds sale arithmetic used by posting and previews.
package shared

import "github.com/shopspring/decimal"

// TaxRate is the flat sales tax applied to every sale subtotal.
var TaxRate = decimal.RequireFromString("0.16")

// Line is the priced input of a sale line.
type Line struct {
	Quantity  int
	UnitPrice decimal.Decimal
}

// Totals is the derived amounts of a sale.
type Totals struct {
	LineSubtotals []decimal.Decimal
	Subtotal      decimal.Decimal
	Tax           decimal.Decimal
	Total         decimal.Decimal
}

// CalculateLineTotal returns quantity x unit price.
func CalculateLineTotal(quantity int, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// CalculateTax returns the subtotal's tax rounded half away from zero to cents.
func CalculateTax(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(TaxRate).Round(2)
}

// CalculateTotals sums the lines and applies tax. Inputs are expected to be
// validated already (quantity >= 1, prices with at most two decimals).
func CalculateTotals(lines []Line) Totals {
	t := Totals{
		LineSubtotals: make([]decimal.Decimal, len(lines)),
		Subtotal:      decimal.Zero,
	}
	for i, l := range lines {
		sub := CalculateLineTotal(l.Quantity, l.UnitPrice)
		t.LineSubtotals[i] = sub
		t.Subtotal = t.Subtotal.Add(sub)
	}
	t.Tax = CalculateTax(t.Subtotal)
	t.Total = t.Subtotal.Add(t.Tax)
	return t
}
