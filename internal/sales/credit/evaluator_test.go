package credit

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/crediventas/crediventas/internal/ledger"
)

func customer(limit, pending string) ledger.Customer {
	return ledger.Customer{CreditLimit: decimal.RequireFromString(limit), PendingBalance: decimal.RequireFromString(pending)}
}

func TestEvaluate(t *testing.T) {
	cases := []struct {
		name      string
		c         ledger.Customer
		total     string
		allowed   bool
		available string
	}{
		{"over limit", customer("1000", "200"), "812", false, "800"},
		{"within limit", customer("1000", "200"), "696", true, "800"},
		{"exactly available", customer("1000", "200"), "800", true, "800"},
		{"no credit line", customer("0", "0"), "0.01", false, "0"},
		{"zero total on empty line", customer("0", "0"), "0", true, "0"},
		{"limit lowered below balance", customer("100", "150"), "1", false, "-50"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Evaluate(tc.c, decimal.RequireFromString(tc.total))
			require.Equal(t, tc.allowed, got.Allowed)
			require.True(t, got.Available.Equal(decimal.RequireFromString(tc.available)), got.Available.String())
		})
	}
}

func TestEvaluateZeroCustomer(t *testing.T) {
	got := Evaluate(ledger.Customer{}, decimal.NewFromInt(1))
	require.False(t, got.Allowed)
	require.True(t, got.Available.IsZero())
}
