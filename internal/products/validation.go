package products

import (
	"strings"
	"unicode/utf8"

	"github.com/crediventas/crediventas/internal/ledger"
)

func normalizeCode(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	switch {
	case code == "":
		return "", ledger.Invalid("code", "is required")
	case len(code) > maxCodeLen:
		return "", ledger.Invalid("code", "must be at most %d characters", maxCodeLen)
	}
	return code, nil
}

func validate(p ledger.Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return ledger.Invalid("name", "is required")
	}
	if utf8.RuneCountInString(p.Name) > maxNameLen {
		return ledger.Invalid("name", "must be at most %d characters", maxNameLen)
	}
	if err := ledger.CheckMoney("price", p.Price, true); err != nil {
		return err
	}
	if p.Stock < 0 {
		return ledger.Invalid("stock", "must not be negative")
	}
	if p.MinStock < 0 {
		return ledger.Invalid("min_stock", "must not be negative")
	}
	return nil
}
