package products

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/crediventas/crediventas/internal/ledger"
)

type CreateProductRequest struct {
	Code        string           `json:"code" validate:"required,max=40"`
	Name        string           `json:"name" validate:"required,max=120"`
	Description string           `json:"description" validate:"max=500"`
	Price       *decimal.Decimal `json:"price" validate:"required"`
	Stock       int              `json:"stock" validate:"gte=0"`
	MinStock    int              `json:"min_stock" validate:"gte=0"`
}

type UpdateProductRequest struct {
	Code        *string          `json:"code" validate:"omitempty,max=40"`
	Name        *string          `json:"name" validate:"omitempty,max=120"`
	Description *string          `json:"description" validate:"omitempty,max=500"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock" validate:"omitempty,gte=0"`
	MinStock    *int             `json:"min_stock" validate:"omitempty,gte=0"`
}

type ProductResponse struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       string    `json:"price"`
	Stock       int       `json:"stock"`
	MinStock    int       `json:"min_stock"`
	LowStock    bool      `json:"low_stock"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toResponse(p ledger.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID.String(),
		Code:        p.Code,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.StringFixed(ledger.MoneyScale),
		Stock:       p.Stock,
		MinStock:    p.MinStock,
		LowStock:    p.Stock <= p.MinStock,
		Active:      p.Active,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func toResponses(list []ledger.Product) []ProductResponse {
	out := make([]ProductResponse, 0, len(list))
	for _, p := range list {
		out = append(out, toResponse(p))
	}
	return out
}
