package sales

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/crediventas/crediventas/internal/ledger"
)

type PostSaleRequest struct {
	CustomerID string            `json:"customer_id" validate:"required,uuid"`
	TermDays   int               `json:"term_days" validate:"gte=0,lte=365"`
	Lines      []SaleLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type SaleLineRequest struct {
	ProductID string           `json:"product_id" validate:"required,uuid"`
	Quantity  int              `json:"quantity" validate:"gte=1"`
	UnitPrice *decimal.Decimal `json:"unit_price" validate:"required"`
}

type SaleResponse struct {
	ID         string             `json:"id"`
	CustomerID string             `json:"customer_id"`
	EmployeeID string             `json:"employee_id,omitempty"`
	Subtotal   string             `json:"subtotal"`
	Tax        string             `json:"tax"`
	Total      string             `json:"total"`
	TermDays   int                `json:"term_days"`
	DueAt      time.Time          `json:"due_at"`
	Status     string             `json:"status"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
	Lines      []SaleLineResponse `json:"lines,omitempty"`
}

type SaleLineResponse struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Subtotal  string `json:"subtotal"`
}

func toSaleResponse(s ledger.Sale) SaleResponse {
	resp := SaleResponse{
		ID:         s.ID.String(),
		CustomerID: s.CustomerID.String(),
		Subtotal:   money(s.Subtotal),
		Tax:        money(s.Tax),
		Total:      money(s.Total),
		TermDays:   s.TermDays,
		DueAt:      s.CreatedAt.AddDate(0, 0, s.TermDays),
		Status:     string(s.Status),
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
	if s.EmployeeID != uuid.Nil {
		resp.EmployeeID = s.EmployeeID.String()
	}
	for _, l := range s.Lines {
		resp.Lines = append(resp.Lines, SaleLineResponse{
			ID:        l.ID.String(),
			ProductID: l.ProductID.String(),
			Quantity:  l.Quantity,
			UnitPrice: money(l.UnitPriceSnapshot),
			Subtotal:  money(l.Subtotal),
		})
	}
	return resp
}

func money(d decimal.Decimal) string {
	return d.StringFixed(ledger.MoneyScale)
}
