package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/crediventas/crediventas/internal/customers"
	"github.com/crediventas/crediventas/internal/ledger"
	"github.com/crediventas/crediventas/internal/observability"
	"github.com/crediventas/crediventas/internal/payments"
	"github.com/crediventas/crediventas/internal/platform/cache"
	"github.com/crediventas/crediventas/internal/products"
	"github.com/crediventas/crediventas/internal/sales"
	"github.com/crediventas/crediventas/internal/shared"
)

const customerCacheNamespace = "crediventas:customers"

// Auditor records audit trail entries.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceDeps lists what the domain services are built from. Redis, Audit and
// Metrics are optional.
type ServiceDeps struct {
	Config  *Config
	Logger  *slog.Logger
	Store   ledger.Store
	Redis   *redis.Client
	Audit   Auditor
	Metrics *observability.Metrics
}

// Services bundles the domain services sharing one store and reconciler.
type Services struct {
	Reconciler *ledger.Reconciler
	Customers  *customers.Service
	Products   *products.Service
	Sales      *sales.Service
	Payments   *payments.Service
}

// NewServices wires the domain services.
func NewServices(deps ServiceDeps) (*Services, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("app: ledger store is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	locale := customers.DefaultLocale
	ttl := 5 * time.Minute
	if deps.Config != nil {
		if deps.Config.DisplayLocale != "" {
			locale = deps.Config.DisplayLocale
		}
		if deps.Config.CacheTTL > 0 {
			ttl = deps.Config.CacheTTL
		}
	}
	money, err := customers.NewMoneyFormatter(locale)
	if err != nil {
		return nil, err
	}

	var customerCache *cache.Versioned
	if deps.Redis != nil {
		customerCache = cache.NewVersioned(deps.Redis, customerCacheNamespace, ttl)
	}
	var recorder sales.Recorder
	if deps.Metrics != nil {
		recorder = deps.Metrics
	}
	var audit Auditor = shared.NewLogAuditor(logger)
	if deps.Audit != nil {
		audit = deps.Audit
	}

	reconciler := ledger.NewReconciler(deps.Store)
	return &Services{
		Reconciler: reconciler,
		Customers:  customers.NewService(deps.Store, customerCache, money, audit, logger.With(slog.String("component", "customers"))),
		Products:   products.NewService(deps.Store, audit, logger.With(slog.String("component", "products"))),
		Sales:      sales.NewService(deps.Store, reconciler, audit, customerCache, recorder, logger.With(slog.String("component", "sales"))),
		Payments:   payments.NewService(deps.Store, reconciler, audit, customerCache, recorder, logger.With(slog.String("component", "payments"))),
	}, nil
}

// Handlers returns router parameters with one handler per service.
func (s *Services) Handlers(params RouterParams) RouterParams {
	params.CustomersHandler = customers.NewHandler(params.Logger, s.Customers, s.Payments)
	params.ProductsHandler = products.NewHandler(params.Logger, s.Products)
	params.SalesHandler = sales.NewHandler(params.Logger, s.Sales)
	params.PaymentsHandler = payments.NewHandler(params.Logger, s.Payments)
	return params
}
