package products

import "github.com/shopspring/decimal"

// CreateInput describes a new catalogue entry.
type CreateInput struct {
	Code        string
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	MinStock    int
}

// UpdateInput changes product fields; nil fields keep their value.
type UpdateInput struct {
	Code        *string
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Stock       *int
	MinStock    *int
}

// Stock level filters for List.
const (
	StockLow = "low"
	StockOut = "out"
)

const (
	defaultListLimit   = 100
	maxListLimit       = 500
	defaultSearchLimit = 20
	minSearchLen       = 2
	maxCodeLen         = 40
	maxNameLen         = 120
)
