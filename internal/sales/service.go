package sales

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/crediventas/crediventas/internal/ledger"
	"github.com/crediventas/crediventas/internal/observability"
	"github.com/crediventas/crediventas/internal/sales/credit"
	salesshared "github.com/crediventas/crediventas/internal/sales/shared"
	"github.com/crediventas/crediventas/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Invalidator drops cached customer reads after a balance change.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Recorder receives posting metrics.
type Recorder interface {
	ObservePosting(operation, outcome string, elapsed time.Duration, amount decimal.Decimal)
}

// Service posts credit sales and manages their lifecycle.
type Service struct {
	store      ledger.Store
	reconciler *ledger.Reconciler
	audit      AuditPort
	cache      Invalidator
	metrics    Recorder
	logger     *slog.Logger
}

// NewService builds Service. audit, cache and metrics may be nil.
func NewService(store ledger.Store, reconciler *ledger.Reconciler, audit AuditPort, cache Invalidator, metrics Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, reconciler: reconciler, audit: audit, cache: cache, metrics: metrics, logger: logger}
}

// PostSale records a credit sale: header, lines and the customer's balance
// increase commit together or not at all. A repeated RequestKey returns the
// sale created by the first request without applying it again.
func (s *Service) PostSale(ctx context.Context, input PostSaleInput) (ledger.Sale, error) {
	start := time.Now()
	if err := validatePostSale(&input); err != nil {
		s.observe("sale", observability.OutcomeRejected, start, decimal.Zero)
		return ledger.Sale{}, err
	}

	lines := make([]salesshared.Line, len(input.Lines))
	for i, l := range input.Lines {
		lines[i] = salesshared.Line{Quantity: l.Quantity, UnitPrice: l.UnitPrice}
	}
	totals := salesshared.CalculateTotals(lines)
	if err := ledger.CheckMoney("total", totals.Total, true); err != nil {
		s.observe("sale", observability.OutcomeRejected, start, decimal.Zero)
		return ledger.Sale{}, err
	}
	fingerprint := saleFingerprint(input)

	sale, replayed, err := s.postSale(ctx, input, totals, fingerprint)
	if err != nil && errors.Is(err, ledger.ErrDuplicate) && input.RequestKey != "" {
		// Lost the race for the request key; the winner's sale is the answer.
		sale, err = s.findReplay(ctx, input.RequestKey, fingerprint)
		replayed = err == nil
	}
	if err != nil {
		err = ledger.WrapStore("post sale", err)
		s.observe("sale", outcomeFor(err), start, totals.Total)
		s.logRejection(ctx, "post sale", err, slog.String("customer_id", input.CustomerID.String()), slog.String("total", totals.Total.StringFixed(2)))
		return ledger.Sale{}, err
	}
	if replayed {
		s.observe("sale", observability.OutcomeReplayed, start, sale.Total)
		s.logger.InfoContext(ctx, "sale replayed", slog.String("sale_id", sale.ID.String()), slog.String("request_key", input.RequestKey))
		return sale, nil
	}

	s.observe("sale", observability.OutcomeCommitted, start, sale.Total)
	s.logger.InfoContext(ctx, "sale posted",
		slog.String("sale_id", sale.ID.String()),
		slog.String("customer_id", sale.CustomerID.String()),
		slog.String("total", sale.Total.StringFixed(2)),
	)
	s.afterCommit(ctx, sale.EmployeeID, "sale.post", sale.ID, map[string]any{
		"customer_id": sale.CustomerID.String(),
		"total":       sale.Total.StringFixed(2),
		"lines":       len(sale.Lines),
	})
	return sale, nil
}

func (s *Service) postSale(ctx context.Context, input PostSaleInput, totals salesshared.Totals, fingerprint string) (ledger.Sale, bool, error) {
	var (
		result   ledger.Sale
		replayed bool
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if input.RequestKey != "" {
			existing, err := tx.FindSaleByRequestKey(ctx, input.RequestKey)
			switch {
			case err == nil:
				if existing.Fingerprint != fingerprint {
					return shared.ErrIdempotencyMismatch
				}
				result, replayed = existing, true
				return nil
			case !errors.Is(err, ledger.ErrNotFound):
				return fmt.Errorf("find sale by request key: %w", err)
			}
		}

		customer, err := tx.GetCustomerForUpdate(ctx, input.CustomerID)
		if err != nil {
			return fmt.Errorf("customer %s: %w", input.CustomerID, err)
		}
		if customer.Status == ledger.CustomerInactive {
			return ledger.ErrCustomerInactive
		}
		if err := checkProducts(ctx, tx, input.Lines); err != nil {
			return err
		}
		decision := credit.Evaluate(customer, totals.Total)
		if !decision.Allowed {
			return &ledger.InsufficientCreditError{Available: decision.Available, Total: totals.Total}
		}

		header, err := tx.InsertSale(ctx, ledger.Sale{
			CustomerID:  input.CustomerID,
			EmployeeID:  input.EmployeeID,
			Subtotal:    totals.Subtotal,
			Tax:         totals.Tax,
			Total:       totals.Total,
			TermDays:    input.TermDays,
			Status:      ledger.SalePending,
			RequestKey:  input.RequestKey,
			Fingerprint: fingerprint,
		})
		if err != nil {
			return fmt.Errorf("insert sale: %w", err)
		}

		lines := make([]ledger.SaleLine, len(input.Lines))
		for i, l := range input.Lines {
			lines[i] = ledger.SaleLine{
				ProductID:         l.ProductID,
				Quantity:          l.Quantity,
				UnitPriceSnapshot: l.UnitPrice,
				Subtotal:          totals.LineSubtotals[i],
			}
		}
		inserted, err := tx.InsertSaleLines(ctx, header.ID, lines)
		if err != nil {
			return fmt.Errorf("insert sale lines: %w", err)
		}

		if _, err := s.reconciler.ApplyDelta(ctx, tx, input.CustomerID, totals.Total, ledger.DeltaSale); err != nil {
			return fmt.Errorf("apply sale to balance: %w", err)
		}

		header.Lines = inserted
		result = header
		return nil
	})
	return result, replayed, err
}

// checkProducts locks every product on the cart and rejects deactivated
// ones. Locks are taken in id order so concurrent carts cannot deadlock.
func checkProducts(ctx context.Context, tx ledger.Tx, lines []LineInput) error {
	first := make(map[uuid.UUID]int, len(lines))
	ids := make([]uuid.UUID, 0, len(lines))
	for i, l := range lines {
		if _, seen := first[l.ProductID]; !seen {
			first[l.ProductID] = i
			ids = append(ids, l.ProductID)
		}
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })
	for _, id := range ids {
		p, err := tx.GetProductForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("product %s: %w", id, err)
		}
		if !p.Active {
			return ledger.Invalid("lines["+strconv.Itoa(first[id])+"].product_id", "product is inactive")
		}
	}
	return nil
}

func (s *Service) findReplay(ctx context.Context, key, fingerprint string) (ledger.Sale, error) {
	var sale ledger.Sale
	err := s.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		existing, err := tx.FindSaleByRequestKey(ctx, key)
		if err != nil {
			return err
		}
		if existing.Fingerprint != fingerprint {
			return shared.ErrIdempotencyMismatch
		}
		sale = existing
		return nil
	})
	return sale, err
}

// GetSale returns a sale with its lines.
func (s *Service) GetSale(ctx context.Context, id uuid.UUID) (ledger.Sale, error) {
	sale, err := s.store.GetSale(ctx, id)
	if err != nil {
		return ledger.Sale{}, fmt.Errorf("sale %s: %w", id, err)
	}
	return sale, nil
}

// ListSales lists sale headers, newest first.
func (s *Service) ListSales(ctx context.Context, input ListInput) ([]ledger.Sale, error) {
	filter := ledger.SaleFilter{CustomerID: input.CustomerID, Limit: input.Limit}
	if input.Status != "" {
		status := ledger.SaleStatus(input.Status)
		if !status.Valid() {
			return nil, ledger.Invalid("status", "must be one of pending, paid, cancelled")
		}
		filter.Status = status
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultListLimit
	case filter.Limit > maxListLimit:
		filter.Limit = maxListLimit
	}
	return s.store.ListSales(ctx, filter)
}

// CancelSale moves a pending sale to cancelled and removes its total from the
// customer's balance in one transaction.
func (s *Service) CancelSale(ctx context.Context, id, employeeID uuid.UUID) (ledger.Sale, error) {
	start := time.Now()
	var sale ledger.Sale
	err := s.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		current, err := tx.GetSaleForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("sale %s: %w", id, err)
		}
		if current.Status != ledger.SalePending {
			return fmt.Errorf("cancel %s sale: %w", current.Status, ledger.ErrInvalidTransition)
		}
		if _, err := s.reconciler.ApplyDelta(ctx, tx, current.CustomerID, current.Total.Neg(), ledger.DeltaCancel); err != nil {
			return fmt.Errorf("reverse sale on balance: %w", err)
		}
		if err := tx.UpdateSaleStatus(ctx, id, ledger.SaleCancelled); err != nil {
			return fmt.Errorf("update sale status: %w", err)
		}
		current.Status = ledger.SaleCancelled
		sale = current
		return nil
	})
	if err != nil {
		err = ledger.WrapStore("cancel sale", err)
		s.observe("cancel", outcomeFor(err), start, decimal.Zero)
		s.logRejection(ctx, "cancel sale", err, slog.String("sale_id", id.String()))
		return ledger.Sale{}, err
	}
	s.observe("cancel", observability.OutcomeCommitted, start, sale.Total)
	s.logger.InfoContext(ctx, "sale cancelled", slog.String("sale_id", id.String()), slog.String("total", sale.Total.StringFixed(2)))
	s.afterCommit(ctx, employeeID, "sale.cancel", id, map[string]any{
		"customer_id": sale.CustomerID.String(),
		"total":       sale.Total.StringFixed(2),
	})
	return sale, nil
}

// SettleSale marks a pending sale as paid. Payments are recorded separately,
// so the balance is not touched.
func (s *Service) SettleSale(ctx context.Context, id, employeeID uuid.UUID) (ledger.Sale, error) {
	start := time.Now()
	var sale ledger.Sale
	err := s.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		current, err := tx.GetSaleForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("sale %s: %w", id, err)
		}
		if current.Status != ledger.SalePending {
			return fmt.Errorf("settle %s sale: %w", current.Status, ledger.ErrInvalidTransition)
		}
		if err := tx.UpdateSaleStatus(ctx, id, ledger.SalePaid); err != nil {
			return fmt.Errorf("update sale status: %w", err)
		}
		current.Status = ledger.SalePaid
		sale = current
		return nil
	})
	if err != nil {
		err = ledger.WrapStore("settle sale", err)
		s.observe("settle", outcomeFor(err), start, decimal.Zero)
		return ledger.Sale{}, err
	}
	s.observe("settle", observability.OutcomeCommitted, start, decimal.Zero)
	s.afterCommit(ctx, employeeID, "sale.settle", id, map[string]any{"customer_id": sale.CustomerID.String()})
	return sale, nil
}

func (s *Service) afterCommit(ctx context.Context, actor uuid.UUID, action string, saleID uuid.UUID, meta map[string]any) {
	if s.audit != nil {
		err := s.audit.Record(ctx, shared.AuditLog{ActorID: actor, Action: action, Entity: "sale", EntityID: saleID.String(), Meta: meta})
		if err != nil {
			s.logger.WarnContext(ctx, "audit record failed", slog.String("action", action), slog.Any("error", err))
		}
	}
	if s.cache != nil {
		if err := s.cache.Bump(ctx); err != nil {
			s.logger.WarnContext(ctx, "customer cache bump failed", slog.Any("error", err))
		}
	}
}

func (s *Service) observe(operation, outcome string, start time.Time, amount decimal.Decimal) {
	if s.metrics != nil {
		s.metrics.ObservePosting(operation, outcome, time.Since(start), amount)
	}
}

func (s *Service) logRejection(ctx context.Context, op string, err error, attrs ...slog.Attr) {
	level := slog.LevelInfo
	if errors.Is(err, shared.ErrStore) {
		level = slog.LevelError
	}
	s.logger.LogAttrs(ctx, level, op+" failed", append(attrs, slog.Any("error", err))...)
}

func outcomeFor(err error) string {
	if errors.Is(err, shared.ErrStore) {
		return observability.OutcomeFailed
	}
	return observability.OutcomeRejected
}

func validatePostSale(input *PostSaleInput) error {
	if input.CustomerID == uuid.Nil {
		return ledger.Invalid("customer_id", "is required")
	}
	if len(input.Lines) == 0 {
		return ledger.Invalid("lines", "at least one line is required")
	}
	for i, l := range input.Lines {
		field := "lines[" + strconv.Itoa(i) + "]"
		if l.ProductID == uuid.Nil {
			return ledger.Invalid(field+".product_id", "is required")
		}
		if l.Quantity < 1 {
			return ledger.Invalid(field+".quantity", "must be at least 1")
		}
		if err := ledger.CheckMoney(field+".unit_price", l.UnitPrice, true); err != nil {
			return err
		}
	}
	switch {
	case input.TermDays == 0:
		input.TermDays = ledger.DefaultTermDays
	case input.TermDays < 0:
		return ledger.Invalid("term_days", "must be positive")
	}
	return nil
}

func saleFingerprint(input PostSaleInput) string {
	parts := []string{input.CustomerID.String(), input.EmployeeID.String(), strconv.Itoa(input.TermDays)}
	for _, l := range input.Lines {
		parts = append(parts, l.ProductID.String(), strconv.Itoa(l.Quantity), l.UnitPrice.StringFixed(2))
	}
	return shared.Fingerprint(parts...)
}
