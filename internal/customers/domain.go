package customers

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateInput carries a new customer profile. The pending balance always
// starts at zero.
type CreateInput struct {
	Name        string
	Address     string
	Phone       string
	CreditLimit decimal.Decimal
}

// UpdateInput changes profile fields. Nil fields are left untouched. Version
// must match the stored version.
type UpdateInput struct {
	Name        *string
	Address     *string
	Phone       *string
	CreditLimit *decimal.Decimal
	Status      *string
	Version     int64
}

// ListInput filters the customer listing.
type ListInput struct {
	Status      string
	WithBalance bool
	Limit       int
}

// CreditSummary describes a customer's current credit position.
type CreditSummary struct {
	CustomerID     uuid.UUID
	Status         string
	CreditLimit    decimal.Decimal
	PendingBalance decimal.Decimal
	Available      decimal.Decimal
	Display        CreditDisplay
	Aging          Aging
}

// CreditDisplay holds the summary amounts formatted for the display locale.
type CreditDisplay struct {
	CreditLimit    string
	PendingBalance string
	Available      string
}

// Aging groups pending sale totals by days past their due date.
type Aging struct {
	Current    decimal.Decimal
	Days1To30  decimal.Decimal
	Days31To60 decimal.Decimal
	Days61To90 decimal.Decimal
	Over90     decimal.Decimal
}

const (
	defaultListLimit   = 50
	maxListLimit       = 200
	defaultSearchLimit = 10
	maxSearchLimit     = 50
	minSearchLen       = 2
	maxNameLen         = 120
	agingScanLimit     = 1000
)
