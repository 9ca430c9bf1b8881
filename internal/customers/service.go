package customers

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/crediventas/crediventas/internal/ledger"
	"github.com/crediventas/crediventas/internal/platform/cache"
	"github.com/crediventas/crediventas/internal/shared"
)

// AuditPort records customer changes.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages customer profiles and credit lookups.
type Service struct {
	store  ledger.Store
	cache  *cache.Versioned
	money  *MoneyFormatter
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service. cache, audit and money are optional; a nil
// formatter uses DefaultLocale.
func NewService(store ledger.Store, c *cache.Versioned, money *MoneyFormatter, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if money == nil {
		money, _ = NewMoneyFormatter(DefaultLocale)
	}
	return &Service{store: store, cache: c, money: money, audit: audit, logger: logger, now: time.Now}
}

// Create registers a customer with a zero pending balance.
func (s *Service) Create(ctx context.Context, input CreateInput, actor uuid.UUID) (ledger.Customer, error) {
	name, err := cleanName(input.Name)
	if err != nil {
		return ledger.Customer{}, err
	}
	if err := ledger.CheckMoney("credit_limit", input.CreditLimit, true); err != nil {
		return ledger.Customer{}, err
	}

	var created ledger.Customer
	err = s.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		created, err = tx.InsertCustomer(ctx, ledger.Customer{
			Name:           name,
			Address:        strings.TrimSpace(input.Address),
			Phone:          strings.TrimSpace(input.Phone),
			CreditLimit:    input.CreditLimit,
			PendingBalance: decimal.Zero,
			Status:         ledger.CustomerActive,
		})
		return err
	})
	if err != nil {
		return ledger.Customer{}, ledger.WrapStore("create customer", err)
	}
	s.changed(ctx, actor, "customer.create", created, map[string]any{
		"name":         created.Name,
		"credit_limit": created.CreditLimit.StringFixed(2),
	})
	return created, nil
}

// Get returns one customer.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (ledger.Customer, error) {
	c, err := s.store.GetCustomer(ctx, id)
	if err != nil {
		return ledger.Customer{}, fmt.Errorf("customer %s: %w", id, err)
	}
	return c, nil
}

// Update applies profile changes when input.Version matches. Lowering the
// credit limit below the pending balance is allowed; further sales are then
// rejected until payments bring the balance back under the limit.
func (s *Service) Update(ctx context.Context, id uuid.UUID, input UpdateInput, actor uuid.UUID) (ledger.Customer, error) {
	if input.Version <= 0 {
		return ledger.Customer{}, ledger.Invalid("version", "is required")
	}
	var updated ledger.Customer
	err := s.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		current, err := tx.GetCustomerForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("customer %s: %w", id, err)
		}
		if current.Version != input.Version {
			return ledger.ErrVersionConflict
		}
		next, err := applyUpdate(current, input)
		if err != nil {
			return err
		}
		updated, err = tx.UpdateCustomerProfile(ctx, next, input.Version)
		return err
	})
	if err != nil {
		return ledger.Customer{}, ledger.WrapStore("update customer", err)
	}
	s.changed(ctx, actor, "customer.update", updated, map[string]any{
		"version":      updated.Version,
		"credit_limit": updated.CreditLimit.StringFixed(2),
		"status":       string(updated.Status),
	})
	return updated, nil
}

// Deactivate soft deletes a customer. Sales and payments stay in place.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID, actor uuid.UUID) (ledger.Customer, error) {
	var updated ledger.Customer
	err := s.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		current, err := tx.GetCustomerForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("customer %s: %w", id, err)
		}
		if current.Status == ledger.CustomerInactive {
			updated = current
			return nil
		}
		current.Status = ledger.CustomerInactive
		updated, err = tx.UpdateCustomerProfile(ctx, current, current.Version)
		return err
	})
	if err != nil {
		return ledger.Customer{}, ledger.WrapStore("deactivate customer", err)
	}
	s.changed(ctx, actor, "customer.deactivate", updated, map[string]any{
		"pending_balance": updated.PendingBalance.StringFixed(2),
	})
	return updated, nil
}

// List returns customers ordered by name. Inactive customers are only
// included when requested through the status filter.
func (s *Service) List(ctx context.Context, input ListInput) ([]ledger.Customer, error) {
	filter, err := buildFilter(input.Status, input.WithBalance)
	if err != nil {
		return nil, err
	}
	filter.Limit = clamp(input.Limit, defaultListLimit, maxListLimit)
	return s.store.ListCustomers(ctx, filter)
}

// SearchByName finds customers whose name contains term, ignoring case.
// Terms shorter than two characters return an empty list.
func (s *Service) SearchByName(ctx context.Context, term string, withBalance bool, limit int) ([]ledger.Customer, error) {
	term = strings.TrimSpace(term)
	if utf8.RuneCountInString(term) < minSearchLen {
		return []ledger.Customer{}, nil
	}
	filter := ledger.CustomerFilter{WithBalance: withBalance, Limit: clamp(limit, defaultSearchLimit, maxSearchLimit)}

	key, err := s.cache.BuildKey(ctx, "search", strings.ToLower(term), strconv.FormatBool(withBalance), strconv.Itoa(filter.Limit))
	if err != nil {
		s.logger.WarnContext(ctx, "customer cache unavailable", slog.Any("error", err))
		return s.store.SearchCustomersByName(ctx, term, filter)
	}

	var loadErr error
	var out []ledger.Customer
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		list, err := s.store.SearchCustomersByName(ctx, term, filter)
		loadErr = err
		return list, err
	})
	if err != nil {
		if loadErr != nil {
			return nil, loadErr
		}
		s.logger.WarnContext(ctx, "customer cache read failed", slog.String("key", key), slog.Any("error", err))
		return s.store.SearchCustomersByName(ctx, term, filter)
	}
	if out == nil {
		out = []ledger.Customer{}
	}
	return out, nil
}

// Credit summarises limit, balance and the age of pending sales.
func (s *Service) Credit(ctx context.Context, id uuid.UUID) (CreditSummary, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return CreditSummary{}, err
	}
	pending, err := s.store.ListSales(ctx, ledger.SaleFilter{CustomerID: id, Status: ledger.SalePending, Limit: agingScanLimit})
	if err != nil {
		return CreditSummary{}, fmt.Errorf("pending sales for %s: %w", id, err)
	}
	available := c.Available()
	return CreditSummary{
		CustomerID:     c.ID,
		Status:         string(c.Status),
		CreditLimit:    c.CreditLimit,
		PendingBalance: c.PendingBalance,
		Available:      available,
		Display: CreditDisplay{
			CreditLimit:    s.money.Format(c.CreditLimit),
			PendingBalance: s.money.Format(c.PendingBalance),
			Available:      s.money.Format(available),
		},
		Aging: age(pending, s.now()),
	}, nil
}

func age(sales []ledger.Sale, asOf time.Time) Aging {
	a := Aging{Current: decimal.Zero, Days1To30: decimal.Zero, Days31To60: decimal.Zero, Days61To90: decimal.Zero, Over90: decimal.Zero}
	for _, sale := range sales {
		due := sale.CreatedAt.AddDate(0, 0, sale.TermDays)
		days := int(asOf.Sub(due).Hours() / 24)
		switch {
		case days <= 0:
			a.Current = a.Current.Add(sale.Total)
		case days <= 30:
			a.Days1To30 = a.Days1To30.Add(sale.Total)
		case days <= 60:
			a.Days31To60 = a.Days31To60.Add(sale.Total)
		case days <= 90:
			a.Days61To90 = a.Days61To90.Add(sale.Total)
		default:
			a.Over90 = a.Over90.Add(sale.Total)
		}
	}
	return a
}

func (s *Service) changed(ctx context.Context, actor uuid.UUID, action string, c ledger.Customer, meta map[string]any) {
	s.logger.InfoContext(ctx, action, slog.String("customer_id", c.ID.String()), slog.Int64("version", c.Version))
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.WarnContext(ctx, "customer cache bump failed", slog.Any("error", err))
	}
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{ActorID: actor, Action: action, Entity: "customer", EntityID: c.ID.String(), Meta: meta})
	if err != nil {
		s.logger.WarnContext(ctx, "audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func applyUpdate(c ledger.Customer, input UpdateInput) (ledger.Customer, error) {
	if input.Name != nil {
		name, err := cleanName(*input.Name)
		if err != nil {
			return c, err
		}
		c.Name = name
	}
	if input.Address != nil {
		c.Address = strings.TrimSpace(*input.Address)
	}
	if input.Phone != nil {
		c.Phone = strings.TrimSpace(*input.Phone)
	}
	if input.CreditLimit != nil {
		if err := ledger.CheckMoney("credit_limit", *input.CreditLimit, true); err != nil {
			return c, err
		}
		c.CreditLimit = *input.CreditLimit
	}
	if input.Status != nil {
		status := ledger.CustomerStatus(*input.Status)
		if !status.Valid() {
			return c, ledger.Invalid("status", "must be one of active, delinquent, inactive")
		}
		c.Status = status
	}
	return c, nil
}

func cleanName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	switch {
	case name == "":
		return "", ledger.Invalid("name", "is required")
	case utf8.RuneCountInString(name) > maxNameLen:
		return "", ledger.Invalid("name", "must be at most %d characters", maxNameLen)
	}
	return name, nil
}

func buildFilter(status string, withBalance bool) (ledger.CustomerFilter, error) {
	filter := ledger.CustomerFilter{WithBalance: withBalance}
	if status != "" {
		st := ledger.CustomerStatus(status)
		if !st.Valid() {
			return filter, ledger.Invalid("status", "must be one of active, delinquent, inactive")
		}
		filter.Status = st
	}
	return filter, nil
}

func clamp(limit, def, max int) int {
	switch {
	case limit <= 0:
		return def
	case limit > max:
		return max
	}
	return limit
}
