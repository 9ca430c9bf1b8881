package sales

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineInput is one cart line of a credit sale. UnitPrice is the price the
// cashier saw and is stored as the line's price snapshot.
type LineInput struct {
	ProductID uuid.UUID
	Quantity  int
	UnitPrice decimal.Decimal
}

// PostSaleInput describes a credit sale to post.
type PostSaleInput struct {
	CustomerID uuid.UUID
	EmployeeID uuid.UUID
	Lines      []LineInput
	TermDays   int
	RequestKey string
}

// ListInput narrows sale listings.
type ListInput struct {
	CustomerID uuid.UUID
	Status     string
	Limit      int
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
)
