package ledger

import "github.com/shopspring/decimal"

// MoneyScale is the number of fraction digits carried by every amount.
const MoneyScale = 2

// MaxMoney is the largest amount a NUMERIC(14,2) column holds.
var MaxMoney = decimal.RequireFromString("999999999999.99")

// CheckMoney rejects negative amounts, amounts above MaxMoney and amounts
// with more than two fraction digits. Zero is rejected unless allowZero is
// set.
func CheckMoney(field string, amount decimal.Decimal, allowZero bool) error {
	if amount.IsNegative() {
		return Invalid(field, "must not be negative")
	}
	if amount.IsZero() && !allowZero {
		return Invalid(field, "must be greater than zero")
	}
	if amount.GreaterThan(MaxMoney) {
		return Invalid(field, "must not exceed %s", MaxMoney.StringFixed(MoneyScale))
	}
	if !amount.Equal(amount.Round(MoneyScale)) {
		return Invalid(field, "must have at most %d decimal places", MoneyScale)
	}
	return nil
}

// ParseMoney parses a decimal string and applies CheckMoney.
func ParseMoney(field, raw string, allowZero bool) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, Invalid(field, "must be a decimal number")
	}
	if err := CheckMoney(field, amount, allowZero); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}
