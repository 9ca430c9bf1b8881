package products

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/crediventas/crediventas/internal/ledger"
	"github.com/crediventas/crediventas/internal/shared"
)

// AuditPort records catalogue changes.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service maintains the product catalogue. Stock is informational and is not
// moved by sales.
type Service struct {
	store  ledger.Store
	audit  AuditPort
	logger *slog.Logger
}

func NewService(store ledger.Store, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, audit: audit, logger: logger}
}

func (s *Service) Create(ctx context.Context, input CreateInput, actor uuid.UUID) (ledger.Product, error) {
	code, err := normalizeCode(input.Code)
	if err != nil {
		return ledger.Product{}, err
	}
	p := ledger.Product{
		Code:        code,
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		Price:       input.Price,
		Stock:       input.Stock,
		MinStock:    input.MinStock,
		Active:      true,
	}
	if err := validate(p); err != nil {
		return ledger.Product{}, err
	}
	err = s.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		p, err = tx.InsertProduct(ctx, p)
		return err
	})
	if err != nil {
		return ledger.Product{}, ledger.WrapStore("create product", fmt.Errorf("product %s: %w", code, err))
	}
	s.record(ctx, actor, "product.create", p)
	return p, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (ledger.Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return ledger.Product{}, fmt.Errorf("product %s: %w", id, err)
	}
	return p, nil
}

// Update applies changes to an existing product. The row is locked while
// the changes are applied, so a concurrent Deactivate is never undone.
func (s *Service) Update(ctx context.Context, id uuid.UUID, input UpdateInput, actor uuid.UUID) (ledger.Product, error) {
	return s.mutate(ctx, id, actor, "product.update", func(p *ledger.Product) (bool, error) {
		var err error
		if input.Code != nil {
			if p.Code, err = normalizeCode(*input.Code); err != nil {
				return false, err
			}
		}
		if input.Name != nil {
			p.Name = strings.TrimSpace(*input.Name)
		}
		if input.Description != nil {
			p.Description = strings.TrimSpace(*input.Description)
		}
		if input.Price != nil {
			p.Price = *input.Price
		}
		if input.Stock != nil {
			p.Stock = *input.Stock
		}
		if input.MinStock != nil {
			p.MinStock = *input.MinStock
		}
		return true, validate(*p)
	})
}

// Deactivate hides a product from listings. Past sale lines keep their
// reference.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID, actor uuid.UUID) (ledger.Product, error) {
	return s.mutate(ctx, id, actor, "product.deactivate", func(p *ledger.Product) (bool, error) {
		if !p.Active {
			return false, nil
		}
		p.Active = false
		return true, nil
	})
}

// List returns active products, optionally only those at or below their
// minimum stock (StockLow) or with none left (StockOut).
func (s *Service) List(ctx context.Context, stock string, limit int) ([]ledger.Product, error) {
	filter := ledger.ProductFilter{Limit: limit}
	switch stock {
	case "":
	case StockLow:
		filter.LowStock = true
	case StockOut:
		filter.OutOfStock = true
	default:
		return nil, ledger.Invalid("stock", "must be low or out")
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultListLimit
	case filter.Limit > maxListLimit:
		filter.Limit = maxListLimit
	}
	return s.store.ListProducts(ctx, filter)
}

// Search matches active products by name or code. Terms shorter than two
// characters return nothing.
func (s *Service) Search(ctx context.Context, term string) ([]ledger.Product, error) {
	term = strings.TrimSpace(term)
	if utf8.RuneCountInString(term) < minSearchLen {
		return []ledger.Product{}, nil
	}
	list, err := s.store.SearchProducts(ctx, term, defaultSearchLimit)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []ledger.Product{}
	}
	return list, nil
}

// mutate loads the product under a row lock, lets change edit it and writes
// it back in the same transaction. change reports whether anything needs
// writing.
func (s *Service) mutate(ctx context.Context, id, actor uuid.UUID, action string, change func(*ledger.Product) (bool, error)) (ledger.Product, error) {
	var (
		result  ledger.Product
		changed bool
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		p, err := tx.GetProductForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if changed, err = change(&p); err != nil {
			return err
		}
		if !changed {
			result = p
			return nil
		}
		result, err = tx.UpdateProduct(ctx, p)
		return err
	})
	if err != nil {
		return ledger.Product{}, ledger.WrapStore(strings.TrimPrefix(action, "product.")+" product", fmt.Errorf("product %s: %w", id, err))
	}
	if changed {
		s.record(ctx, actor, action, result)
	}
	return result, nil
}

func (s *Service) record(ctx context.Context, actor uuid.UUID, action string, p ledger.Product) {
	s.logger.InfoContext(ctx, action, slog.String("product_id", p.ID.String()), slog.String("code", p.Code))
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor,
		Action:   action,
		Entity:   "product",
		EntityID: p.ID.String(),
		Meta:     map[string]any{"code": p.Code, "price": p.Price.StringFixed(2), "active": p.Active},
	})
	if err != nil {
		s.logger.WarnContext(ctx, "audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
