// Package credit decides whether a customer can absorb a proposed sale.
package credit

import (
	"github.com/shopspring/decimal"

	"github.com/crediventas/crediventas/internal/ledger"
)

// Decision is the outcome of a credit evaluation.
type Decision struct {
	Allowed   bool
	Available decimal.Decimal
}

// Evaluate compares the proposed total against the customer's available
// credit. It has no side effects.
func Evaluate(c ledger.Customer, proposedTotal decimal.Decimal) Decision {
	available := c.Available()
	return Decision{
		Allowed:   proposedTotal.LessThanOrEqual(available),
		Available: available,
	}
}
