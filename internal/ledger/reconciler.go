package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DeltaKind describes why a customer's pending balance moves.
type DeltaKind string

const (
	// DeltaSale adds a posted sale total; bounded by the credit limit.
	DeltaSale DeltaKind = "sale"
	// DeltaPayment subtracts a payment; bounded by the pending balance.
	DeltaPayment DeltaKind = "payment"
	// DeltaCancel subtracts the total of a cancelled sale.
	DeltaCancel DeltaKind = "cancel"
)

// Reconciler is the only writer of Customer.PendingBalance.
type Reconciler struct {
	store Store
}

// NewReconciler constructs a Reconciler over store.
func NewReconciler(store Store) *Reconciler {
	return &Reconciler{store: store}
}

// ApplyDelta moves the customer's pending balance by delta inside tx. The
// customer row is locked first so concurrent writers serialize on it.
func (r *Reconciler) ApplyDelta(ctx context.Context, tx Tx, customerID uuid.UUID, delta decimal.Decimal, kind DeltaKind) (Customer, error) {
	customer, err := tx.GetCustomerForUpdate(ctx, customerID)
	if err != nil {
		return Customer{}, err
	}
	next := customer.PendingBalance.Add(delta)

	switch kind {
	case DeltaSale:
		if delta.IsNegative() {
			return Customer{}, Invalid("total", "sale delta must not be negative")
		}
		if next.GreaterThan(customer.CreditLimit) {
			return Customer{}, &InsufficientCreditError{Available: customer.Available(), Total: delta}
		}
	case DeltaPayment:
		amount := delta.Neg()
		if !amount.IsPositive() {
			return Customer{}, Invalid("amount", "must be greater than zero")
		}
		if amount.GreaterThan(customer.PendingBalance) {
			return Customer{}, &OverpaymentError{Amount: amount, PendingBalance: customer.PendingBalance}
		}
	case DeltaCancel:
		if delta.IsPositive() {
			return Customer{}, Invalid("total", "cancel delta must not be positive")
		}
		if next.IsNegative() {
			return Customer{}, Invalid("sale", "payments already applied exceed the remaining balance")
		}
	default:
		return Customer{}, Invalid("kind", "unknown delta kind %q", kind)
	}

	if err := tx.UpdateCustomerBalance(ctx, customerID, next, customer.Version); err != nil {
		return Customer{}, err
	}
	customer.PendingBalance = next
	customer.Version++
	return customer, nil
}

// Drift compares a stored balance against the one implied by its movements.
type Drift struct {
	CustomerID uuid.UUID
	Stored     decimal.Decimal
	Expected   decimal.Decimal
}

// Delta returns Stored - Expected.
func (d Drift) Delta() decimal.Decimal { return d.Stored.Sub(d.Expected) }

// Consistent reports whether the stored balance matches.
func (d Drift) Consistent() bool { return d.Stored.Equal(d.Expected) }

// Verify recomputes the balance invariant for one customer under its row lock.
func (r *Reconciler) Verify(ctx context.Context, customerID uuid.UUID) (Drift, error) {
	var drift Drift
	err := r.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		drift, err = r.measure(ctx, tx, customerID)
		return err
	})
	return drift, err
}

// Repair rewrites the stored balance to the recomputed value when they differ.
func (r *Reconciler) Repair(ctx context.Context, customerID uuid.UUID) (Drift, error) {
	var drift Drift
	err := r.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		drift, err = r.measure(ctx, tx, customerID)
		if err != nil || drift.Consistent() {
			return err
		}
		customer, err := tx.GetCustomerForUpdate(ctx, customerID)
		if err != nil {
			return err
		}
		return tx.UpdateCustomerBalance(ctx, customerID, drift.Expected, customer.Version)
	})
	return drift, err
}

func (r *Reconciler) measure(ctx context.Context, tx Tx, customerID uuid.UUID) (Drift, error) {
	customer, err := tx.GetCustomerForUpdate(ctx, customerID)
	if err != nil {
		return Drift{}, err
	}
	sums, err := tx.SumCustomerLedger(ctx, customerID)
	if err != nil {
		return Drift{}, err
	}
	return Drift{CustomerID: customerID, Stored: customer.PendingBalance, Expected: sums.Expected()}, nil
}
