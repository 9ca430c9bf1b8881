package shared

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCalculateTotals(t *testing.T) {
	totals := CalculateTotals([]Line{
		{Quantity: 2, UnitPrice: d("150.00")},
		{Quantity: 1, UnitPrice: d("400.00")},
	})
	require.True(t, totals.Subtotal.Equal(d("700")))
	require.True(t, totals.Tax.Equal(d("112")))
	require.True(t, totals.Total.Equal(d("812")))
	require.True(t, totals.LineSubtotals[0].Equal(d("300")))
}

func TestTaxRoundsToCents(t *testing.T) {
	// 0.16 * 10.03 = 1.6048
	require.Equal(t, "1.60", CalculateTax(d("10.03")).StringFixed(2))
	// 0.16 * 0.03 = 0.0048
	require.Equal(t, "0.00", CalculateTax(d("0.03")).StringFixed(2))
	require.Equal(t, "0.25", CalculateTax(d("1.5625")).StringFixed(2))
}

func TestTotalsInvariants(t *testing.T) {
	prices := []string{"0", "0.01", "9.99", "19.95", "123.45", "1000"}
	for qty := 1; qty <= 7; qty++ {
		for _, p := range prices {
			lines := []Line{{Quantity: qty, UnitPrice: d(p)}, {Quantity: 1, UnitPrice: d("3.33")}}
			totals := CalculateTotals(lines)

			sum := decimal.Zero
			for _, s := range totals.LineSubtotals {
				sum = sum.Add(s)
			}
			require.True(t, totals.Subtotal.Equal(sum))
			require.True(t, totals.Tax.Equal(totals.Subtotal.Mul(TaxRate).Round(2)))
			require.True(t, totals.Total.Equal(totals.Subtotal.Add(totals.Tax)))
			require.LessOrEqual(t, -totals.Total.Exponent(), int32(2))
		}
	}
}

func TestEmptyCartIsZero(t *testing.T) {
	totals := CalculateTotals(nil)
	require.True(t, totals.Total.IsZero())
}
