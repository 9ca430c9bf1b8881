package payments

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecordPaymentInput carries a payment received from a customer.
type RecordPaymentInput struct {
	CustomerID uuid.UUID
	EmployeeID uuid.UUID
	Amount     decimal.Decimal
	Method     string
	Reference  string
	RequestKey string
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
	maxReferenceLen  = 120
)
