package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CustomerStatus enumerates customer lifecycle states.
type CustomerStatus string

const (
	// CustomerActive customers may buy on credit.
	CustomerActive CustomerStatus = "active"
	// CustomerDelinquent customers are flagged but still accepted.
	CustomerDelinquent CustomerStatus = "delinquent"
	// CustomerInactive marks a soft-deleted customer.
	CustomerInactive CustomerStatus = "inactive"
)

// Valid reports whether the status is known.
func (s CustomerStatus) Valid() bool {
	switch s {
	case CustomerActive, CustomerDelinquent, CustomerInactive:
		return true
	}
	return false
}

// SaleStatus enumerates sale lifecycle states.
type SaleStatus string

const (
	SalePending   SaleStatus = "pending"
	SalePaid      SaleStatus = "paid"
	SaleCancelled SaleStatus = "cancelled"
)

// Valid reports whether the status is known.
func (s SaleStatus) Valid() bool {
	switch s {
	case SalePending, SalePaid, SaleCancelled:
		return true
	}
	return false
}

// PaymentMethod enumerates accepted payment instruments.
type PaymentMethod string

const (
	MethodCash     PaymentMethod = "cash"
	MethodTransfer PaymentMethod = "transfer"
	MethodCard     PaymentMethod = "card"
)

// Valid reports whether the method is known.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodTransfer, MethodCard:
		return true
	}
	return false
}

// DefaultTermDays is the payment term applied when a sale does not carry one.
const DefaultTermDays = 30

// Customer is a buyer holding a credit line.
type Customer struct {
	ID             uuid.UUID
	Name           string
	Address        string
	Phone          string
	CreditLimit    decimal.Decimal
	PendingBalance decimal.Decimal
	Status         CustomerStatus
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Available returns the remaining credit, which can be negative when the
// limit was lowered below the pending balance.
func (c Customer) Available() decimal.Decimal {
	return c.CreditLimit.Sub(c.PendingBalance)
}

// Product is a catalog item. Stock is informational only.
type Product struct {
	ID          uuid.UUID
	Code        string
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	MinStock    int
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Sale is the header of a credit sale.
type Sale struct {
	ID          uuid.UUID
	CustomerID  uuid.UUID
	EmployeeID  uuid.UUID
	Subtotal    decimal.Decimal
	Tax         decimal.Decimal
	Total       decimal.Decimal
	TermDays    int
	Status      SaleStatus
	RequestKey  string
	Fingerprint string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Lines       []SaleLine
}

// SaleLine records one product sold within a sale.
type SaleLine struct {
	ID                uuid.UUID
	SaleID            uuid.UUID
	ProductID         uuid.UUID
	Quantity          int
	UnitPriceSnapshot decimal.Decimal
	Subtotal          decimal.Decimal
}

// Payment is money received against a customer's pending balance.
type Payment struct {
	ID          uuid.UUID
	CustomerID  uuid.UUID
	EmployeeID  uuid.UUID
	Amount      decimal.Decimal
	Method      PaymentMethod
	Reference   string
	RequestKey  string
	Fingerprint string
	CreatedAt   time.Time
}

// CustomerFilter narrows customer listings and searches.
type CustomerFilter struct {
	Status      CustomerStatus
	WithBalance bool
	Limit       int
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	LowStock   bool
	OutOfStock bool
	Limit      int
}

// SaleFilter narrows sale listings.
type SaleFilter struct {
	CustomerID uuid.UUID
	Status     SaleStatus
	Limit      int
}

// LedgerSums aggregates the movements that make up a customer's balance.
type LedgerSums struct {
	SalesTotal    decimal.Decimal
	PaymentsTotal decimal.Decimal
}

// Expected returns the balance implied by the movements.
func (s LedgerSums) Expected() decimal.Decimal {
	return s.SalesTotal.Sub(s.PaymentsTotal)
}
