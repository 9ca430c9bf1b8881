package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/crediventas/crediventas/internal/shared"
)

var (
	// ErrNotFound indicates a missing customer, product, sale or payment.
	ErrNotFound = fmt.Errorf("ledger: %w", shared.ErrNotFound)
	// ErrCustomerInactive indicates a credit sale for a soft-deleted customer.
	ErrCustomerInactive = fmt.Errorf("ledger: customer inactive: %w", shared.ErrRejected)
	// ErrInvalidTransition indicates a sale status change that is not allowed.
	ErrInvalidTransition = fmt.Errorf("ledger: invalid status transition: %w", shared.ErrConflict)
	// ErrVersionConflict indicates the row changed since it was read.
	ErrVersionConflict = fmt.Errorf("ledger: version conflict: %w", shared.ErrConflict)
	// ErrDuplicate indicates a unique key (product code) already exists.
	ErrDuplicate = fmt.Errorf("ledger: %w", shared.ErrDuplicate)
)

// ValidationError reports malformed input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// Is matches shared.ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == shared.ErrValidation }

// ProblemFields names the offending field for API clients.
func (e *ValidationError) ProblemFields() map[string]any {
	if e.Field == "" {
		return nil
	}
	return map[string]any{"field": e.Field}
}

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// InsufficientCreditError rejects a sale whose total exceeds the available credit.
type InsufficientCreditError struct {
	Available decimal.Decimal
	Total     decimal.Decimal
}

func (e *InsufficientCreditError) Error() string {
	return fmt.Sprintf("insufficient credit: available %s, total %s", e.Available.StringFixed(2), e.Total.StringFixed(2))
}

// Is matches shared.ErrRejected.
func (e *InsufficientCreditError) Is(target error) bool { return target == shared.ErrRejected }

// ProblemFields exposes the amounts to API clients.
func (e *InsufficientCreditError) ProblemFields() map[string]any {
	return map[string]any{
		"available": e.Available.StringFixed(2),
		"total":     e.Total.StringFixed(2),
	}
}

// OverpaymentError rejects a payment above the pending balance.
type OverpaymentError struct {
	Amount         decimal.Decimal
	PendingBalance decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("overpayment: amount %s exceeds pending balance %s", e.Amount.StringFixed(2), e.PendingBalance.StringFixed(2))
}

// Is matches shared.ErrRejected.
func (e *OverpaymentError) Is(target error) bool { return target == shared.ErrRejected }

// ProblemFields exposes the amounts to API clients.
func (e *OverpaymentError) ProblemFields() map[string]any {
	return map[string]any{
		"amount":          e.Amount.StringFixed(2),
		"pending_balance": e.PendingBalance.StringFixed(2),
	}
}

// StoreWriteError wraps a persistence failure. The enclosing transaction has
// been rolled back when this is returned from a service.
type StoreWriteError struct {
	Op  string
	Err error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreWriteError) Unwrap() error { return e.Err }

// Is matches shared.ErrStore.
func (e *StoreWriteError) Is(target error) bool { return target == shared.ErrStore }

// WrapStore tags err as a StoreWriteError unless it already carries a domain
// kind that callers should see unchanged.
func WrapStore(op string, err error) error {
	if err == nil {
		return nil
	}
	var sw *StoreWriteError
	if errors.As(err, &sw) {
		return err
	}
	for _, kind := range []error{shared.ErrValidation, shared.ErrRejected, shared.ErrNotFound, shared.ErrConflict, shared.ErrDuplicate} {
		if errors.Is(err, kind) {
			return err
		}
	}
	return &StoreWriteError{Op: op, Err: err}
}
