package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/crediventas/crediventas/internal/ledger"
	"github.com/crediventas/crediventas/internal/observability"
	"github.com/crediventas/crediventas/internal/shared"
)

// AuditPort records committed payments.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Invalidator drops cached customer reads after a balance change.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Recorder observes posting outcomes.
type Recorder interface {
	ObservePosting(operation, outcome string, elapsed time.Duration, amount decimal.Decimal)
}

// Service records payments against customer balances.
type Service struct {
	store      ledger.Store
	reconciler *ledger.Reconciler
	audit      AuditPort
	cache      Invalidator
	metrics    Recorder
	logger     *slog.Logger
}

// NewService builds Service. audit, cache and metrics are optional.
func NewService(store ledger.Store, reconciler *ledger.Reconciler, audit AuditPort, cache Invalidator, metrics Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, reconciler: reconciler, audit: audit, cache: cache, metrics: metrics, logger: logger}
}

// RecordPayment subtracts the payment from the customer's pending balance and
// stores it in the same transaction. A repeated RequestKey returns the first
// payment.
func (s *Service) RecordPayment(ctx context.Context, input RecordPaymentInput) (ledger.Payment, error) {
	start := time.Now()
	method, err := validateRecordPayment(&input)
	if err != nil {
		s.observe(observability.OutcomeRejected, start, decimal.Zero)
		return ledger.Payment{}, err
	}
	fingerprint := paymentFingerprint(input, method)

	payment, replayed, err := s.recordPayment(ctx, input, method, fingerprint)
	if err != nil && errors.Is(err, ledger.ErrDuplicate) && input.RequestKey != "" {
		payment, err = s.findReplay(ctx, input.RequestKey, fingerprint)
		replayed = err == nil
	}
	if err != nil {
		err = ledger.WrapStore("record payment", err)
		outcome := observability.OutcomeRejected
		level := slog.LevelInfo
		if errors.Is(err, shared.ErrStore) {
			outcome, level = observability.OutcomeFailed, slog.LevelError
		}
		s.observe(outcome, start, input.Amount)
		s.logger.LogAttrs(ctx, level, "record payment failed",
			slog.String("customer_id", input.CustomerID.String()),
			slog.String("amount", input.Amount.StringFixed(2)),
			slog.Any("error", err),
		)
		return ledger.Payment{}, err
	}
	if replayed {
		s.observe(observability.OutcomeReplayed, start, payment.Amount)
		s.logger.InfoContext(ctx, "payment replayed", slog.String("payment_id", payment.ID.String()), slog.String("request_key", input.RequestKey))
		return payment, nil
	}

	s.observe(observability.OutcomeCommitted, start, payment.Amount)
	s.logger.InfoContext(ctx, "payment recorded",
		slog.String("payment_id", payment.ID.String()),
		slog.String("customer_id", payment.CustomerID.String()),
		slog.String("amount", payment.Amount.StringFixed(2)),
		slog.String("method", string(payment.Method)),
	)
	if s.audit != nil {
		err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  payment.EmployeeID,
			Action:   "payment.record",
			Entity:   "payment",
			EntityID: payment.ID.String(),
			Meta: map[string]any{
				"customer_id": payment.CustomerID.String(),
				"amount":      payment.Amount.StringFixed(2),
				"method":      string(payment.Method),
			},
		})
		if err != nil {
			s.logger.WarnContext(ctx, "audit record failed", slog.String("action", "payment.record"), slog.Any("error", err))
		}
	}
	if s.cache != nil {
		if err := s.cache.Bump(ctx); err != nil {
			s.logger.WarnContext(ctx, "customer cache bump failed", slog.Any("error", err))
		}
	}
	return payment, nil
}

func (s *Service) recordPayment(ctx context.Context, input RecordPaymentInput, method ledger.PaymentMethod, fingerprint string) (ledger.Payment, bool, error) {
	var (
		result   ledger.Payment
		replayed bool
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if input.RequestKey != "" {
			existing, err := tx.FindPaymentByRequestKey(ctx, input.RequestKey)
			switch {
			case err == nil:
				if existing.Fingerprint != fingerprint {
					return shared.ErrIdempotencyMismatch
				}
				result, replayed = existing, true
				return nil
			case !errors.Is(err, ledger.ErrNotFound):
				return fmt.Errorf("find payment by request key: %w", err)
			}
		}

		if _, err := s.reconciler.ApplyDelta(ctx, tx, input.CustomerID, input.Amount.Neg(), ledger.DeltaPayment); err != nil {
			return fmt.Errorf("customer %s: %w", input.CustomerID, err)
		}
		payment, err := tx.InsertPayment(ctx, ledger.Payment{
			CustomerID:  input.CustomerID,
			EmployeeID:  input.EmployeeID,
			Amount:      input.Amount,
			Method:      method,
			Reference:   input.Reference,
			RequestKey:  input.RequestKey,
			Fingerprint: fingerprint,
		})
		if err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		result = payment
		return nil
	})
	return result, replayed, err
}

func (s *Service) findReplay(ctx context.Context, key, fingerprint string) (ledger.Payment, error) {
	var payment ledger.Payment
	err := s.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		existing, err := tx.FindPaymentByRequestKey(ctx, key)
		if err != nil {
			return err
		}
		if existing.Fingerprint != fingerprint {
			return shared.ErrIdempotencyMismatch
		}
		payment = existing
		return nil
	})
	return payment, err
}

// ListPayments returns the customer's payments, newest first.
func (s *Service) ListPayments(ctx context.Context, customerID uuid.UUID, limit int) ([]ledger.Payment, error) {
	if customerID == uuid.Nil {
		return nil, ledger.Invalid("customer_id", "is required")
	}
	switch {
	case limit <= 0:
		limit = defaultListLimit
	case limit > maxListLimit:
		limit = maxListLimit
	}
	if _, err := s.store.GetCustomer(ctx, customerID); err != nil {
		return nil, fmt.Errorf("customer %s: %w", customerID, err)
	}
	return s.store.ListPayments(ctx, customerID, limit)
}

func (s *Service) observe(outcome string, start time.Time, amount decimal.Decimal) {
	if s.metrics != nil {
		s.metrics.ObservePosting("payment", outcome, time.Since(start), amount)
	}
}

func validateRecordPayment(input *RecordPaymentInput) (ledger.PaymentMethod, error) {
	if input.CustomerID == uuid.Nil {
		return "", ledger.Invalid("customer_id", "is required")
	}
	if err := ledger.CheckMoney("amount", input.Amount, false); err != nil {
		return "", err
	}
	method := ledger.PaymentMethod(strings.ToLower(strings.TrimSpace(input.Method)))
	if method == "" {
		method = ledger.MethodCash
	}
	if !method.Valid() {
		return "", ledger.Invalid("method", "must be one of cash, transfer, card")
	}
	input.Reference = strings.TrimSpace(input.Reference)
	if len(input.Reference) > maxReferenceLen {
		return "", ledger.Invalid("reference", "must be at most %d characters", maxReferenceLen)
	}
	return method, nil
}

func paymentFingerprint(input RecordPaymentInput, method ledger.PaymentMethod) string {
	return shared.Fingerprint(
		input.CustomerID.String(),
		input.EmployeeID.String(),
		input.Amount.StringFixed(2),
		string(method),
		input.Reference,
	)
}
