package payments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/crediventas/crediventas/internal/ledger"
)

type RecordPaymentRequest struct {
	CustomerID string           `json:"customer_id" validate:"required,uuid"`
	Amount     *decimal.Decimal `json:"amount" validate:"required"`
	Method     string           `json:"method" validate:"omitempty,oneof=cash transfer card"`
	Reference  string           `json:"reference" validate:"max=120"`
}

type PaymentResponse struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	EmployeeID string    `json:"employee_id,omitempty"`
	Amount     string    `json:"amount"`
	Method     string    `json:"method"`
	Reference  string    `json:"reference,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func toPaymentResponse(p ledger.Payment) PaymentResponse {
	resp := PaymentResponse{
		ID:         p.ID.String(),
		CustomerID: p.CustomerID.String(),
		Amount:     p.Amount.StringFixed(ledger.MoneyScale),
		Method:     string(p.Method),
		Reference:  p.Reference,
		CreatedAt:  p.CreatedAt,
	}
	if p.EmployeeID != uuid.Nil {
		resp.EmployeeID = p.EmployeeID.String()
	}
	return resp
}

// ToResponses converts payments for listing endpoints outside this package.
func ToResponses(list []ledger.Payment) []PaymentResponse {
	out := make([]PaymentResponse, 0, len(list))
	for _, p := range list {
		out = append(out, toPaymentResponse(p))
	}
	return out
}
