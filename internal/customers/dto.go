package customers

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/crediventas/crediventas/internal/ledger"
)

type CreateCustomerRequest struct {
	Name        string           `json:"name" validate:"required,max=120"`
	Address     string           `json:"address" validate:"max=255"`
	Phone       string           `json:"phone" validate:"max=40"`
	CreditLimit *decimal.Decimal `json:"credit_limit" validate:"required"`
}

type UpdateCustomerRequest struct {
	Name        *string          `json:"name" validate:"omitempty,max=120"`
	Address     *string          `json:"address" validate:"omitempty,max=255"`
	Phone       *string          `json:"phone" validate:"omitempty,max=40"`
	CreditLimit *decimal.Decimal `json:"credit_limit"`
	Status      *string          `json:"status" validate:"omitempty,oneof=active delinquent inactive"`
	Version     int64            `json:"version" validate:"required,gte=1"`
}

type CustomerResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Address        string    `json:"address,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	CreditLimit    string    `json:"credit_limit"`
	PendingBalance string    `json:"pending_balance"`
	Available      string    `json:"available"`
	Status         string    `json:"status"`
	Version        int64     `json:"version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type CreditResponse struct {
	CustomerID     string            `json:"customer_id"`
	Status         string            `json:"status"`
	Currency       string            `json:"currency"`
	CreditLimit    string            `json:"credit_limit"`
	PendingBalance string            `json:"pending_balance"`
	Available      string            `json:"available"`
	Display        map[string]string `json:"display"`
	Aging          map[string]string `json:"aging"`
}

func toCustomerResponse(c ledger.Customer) CustomerResponse {
	return CustomerResponse{
		ID:             c.ID.String(),
		Name:           c.Name,
		Address:        c.Address,
		Phone:          c.Phone,
		CreditLimit:    c.CreditLimit.StringFixed(ledger.MoneyScale),
		PendingBalance: c.PendingBalance.StringFixed(ledger.MoneyScale),
		Available:      c.Available().StringFixed(ledger.MoneyScale),
		Status:         string(c.Status),
		Version:        c.Version,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

func toCustomerResponses(list []ledger.Customer) []CustomerResponse {
	out := make([]CustomerResponse, 0, len(list))
	for _, c := range list {
		out = append(out, toCustomerResponse(c))
	}
	return out
}

func toCreditResponse(s CreditSummary, currency string) CreditResponse {
	return CreditResponse{
		CustomerID:     s.CustomerID.String(),
		Status:         s.Status,
		Currency:       currency,
		CreditLimit:    s.CreditLimit.StringFixed(ledger.MoneyScale),
		PendingBalance: s.PendingBalance.StringFixed(ledger.MoneyScale),
		Available:      s.Available.StringFixed(ledger.MoneyScale),
		Display: map[string]string{
			"credit_limit":    s.Display.CreditLimit,
			"pending_balance": s.Display.PendingBalance,
			"available":       s.Display.Available,
		},
		Aging: map[string]string{
			"current":    s.Aging.Current.StringFixed(ledger.MoneyScale),
			"days_1_30":  s.Aging.Days1To30.StringFixed(ledger.MoneyScale),
			"days_31_60": s.Aging.Days31To60.StringFixed(ledger.MoneyScale),
			"days_61_90": s.Aging.Days61To90.StringFixed(ledger.MoneyScale),
			"over_90":    s.Aging.Over90.StringFixed(ledger.MoneyScale),
		},
	}
}
