package customers

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultLocale is used when no display locale is configured.
const DefaultLocale = "es-MX"

// MoneyFormatter renders amounts in the currency of a locale.
type MoneyFormatter struct {
	printer *message.Printer
	unit    currency.Unit
}

// NewMoneyFormatter builds a formatter for a BCP 47 locale such as es-MX.
// Locales without a known currency fall back to MXN.
func NewMoneyFormatter(locale string) (*MoneyFormatter, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("parse display locale %q: %w", locale, err)
	}
	unit, conf := currency.FromTag(tag)
	if conf == language.No {
		unit = currency.MXN
	}
	return &MoneyFormatter{printer: message.NewPrinter(tag), unit: unit}, nil
}

// Format renders amount with the currency symbol and locale separators.
func (f *MoneyFormatter) Format(amount decimal.Decimal) string {
	return f.printer.Sprint(currency.Symbol(f.unit.Amount(amount.Round(2).InexactFloat64())))
}

// Currency returns the ISO code of the formatter's currency.
func (f *MoneyFormatter) Currency() string {
	return f.unit.String()
}
