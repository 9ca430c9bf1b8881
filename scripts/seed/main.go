package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/crediventas/crediventas/internal/app"
	"github.com/crediventas/crediventas/internal/customers"
	"github.com/crediventas/crediventas/internal/ledger/postgres"
	"github.com/crediventas/crediventas/internal/payments"
	"github.com/crediventas/crediventas/internal/platform/db"
	"github.com/crediventas/crediventas/internal/products"
	"github.com/crediventas/crediventas/internal/sales"
	"github.com/crediventas/crediventas/internal/shared"
)

// seedEmployee is the fixed actor recorded on seeded rows.
var seedEmployee = uuid.NewSHA1(uuid.NameSpaceOID, []byte("crediventas.seed"))

type fixture struct {
	Products  []productFixture  `yaml:"products"`
	Customers []customerFixture `yaml:"customers"`
}

type productFixture struct {
	Code     string          `yaml:"code"`
	Name     string          `yaml:"name"`
	Price    decimal.Decimal `yaml:"price"`
	Stock    int             `yaml:"stock"`
	MinStock int             `yaml:"min_stock"`
}

type customerFixture struct {
	Name        string           `yaml:"name"`
	Phone       string           `yaml:"phone"`
	Address     string           `yaml:"address"`
	CreditLimit decimal.Decimal  `yaml:"credit_limit"`
	Sales       []saleFixture    `yaml:"sales"`
	Payments    []paymentFixture `yaml:"payments"`
}

type saleFixture struct {
	Lines []struct {
		Code     string `yaml:"code"`
		Quantity int    `yaml:"quantity"`
	} `yaml:"lines"`
}

type paymentFixture struct {
	Amount    decimal.Decimal `yaml:"amount"`
	Method    string          `yaml:"method"`
	Reference string          `yaml:"reference"`
}

func main() {
	path := flag.String("fixture", "scripts/seed/demo.yml", "YAML file with demo products and customers")
	flag.Parse()

	raw, err := os.ReadFile(*path)
	if err != nil {
		log.Fatalf("read fixture: %v", err)
	}
	var data fixture
	if err := yaml.Unmarshal(raw, &data); err != nil {
		log.Fatalf("parse fixture: %v", err)
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	ctx := context.Background()
	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: 2})
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	logger := app.NewLogger(cfg)
	svcs, err := app.NewServices(app.ServiceDeps{
		Config: cfg,
		Logger: logger,
		Store:  postgres.New(pool),
		Audit:  shared.NewAuditLogger(pool),
	})
	if err != nil {
		log.Fatalf("build services: %v", err)
	}

	fmt.Println("→ Seeding products...")
	productIDs, err := seedProducts(ctx, svcs.Products, data.Products)
	if err != nil {
		log.Fatalf("seed products: %v", err)
	}

	fmt.Println("→ Seeding customers, sales and payments...")
	for _, c := range data.Customers {
		if err := seedCustomer(ctx, svcs, productIDs, c); err != nil {
			log.Fatalf("seed customer %s: %v", c.Name, err)
		}
	}
	logger.Info("seed complete", slog.Int("products", len(productIDs)), slog.Int("customers", len(data.Customers)))
}

func seedProducts(ctx context.Context, svc *products.Service, items []productFixture) (map[string]uuid.UUID, error) {
	ids := make(map[string]uuid.UUID, len(items))
	for _, p := range items {
		created, err := svc.Create(ctx, products.CreateInput{
			Code:     p.Code,
			Name:     p.Name,
			Price:    p.Price,
			Stock:    p.Stock,
			MinStock: p.MinStock,
		}, seedEmployee)
		if errors.Is(err, shared.ErrDuplicate) {
			found, searchErr := svc.Search(ctx, p.Code)
			if searchErr != nil || len(found) == 0 {
				return nil, fmt.Errorf("product %s exists but cannot be found: %w", p.Code, err)
			}
			ids[p.Code] = found[0].ID
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("product %s: %w", p.Code, err)
		}
		ids[p.Code] = created.ID
	}
	return ids, nil
}

func seedCustomer(ctx context.Context, svcs *app.Services, productIDs map[string]uuid.UUID, c customerFixture) error {
	customer, err := svcs.Customers.Create(ctx, customers.CreateInput{
		Name:        c.Name,
		Phone:       c.Phone,
		Address:     c.Address,
		CreditLimit: c.CreditLimit,
	}, seedEmployee)
	if err != nil {
		return err
	}
	for i, s := range c.Sales {
		input := sales.PostSaleInput{CustomerID: customer.ID, EmployeeID: seedEmployee, RequestKey: fmt.Sprintf("seed-%s-sale-%d", customer.ID, i)}
		for _, l := range s.Lines {
			id, ok := productIDs[l.Code]
			if !ok {
				return fmt.Errorf("unknown product code %s", l.Code)
			}
			product, err := svcs.Products.Get(ctx, id)
			if err != nil {
				return err
			}
			input.Lines = append(input.Lines, sales.LineInput{ProductID: id, Quantity: l.Quantity, UnitPrice: product.Price})
		}
		if _, err := svcs.Sales.PostSale(ctx, input); err != nil {
			return fmt.Errorf("sale %d: %w", i, err)
		}
	}
	for i, p := range c.Payments {
		_, err := svcs.Payments.RecordPayment(ctx, payments.RecordPaymentInput{
			CustomerID: customer.ID,
			EmployeeID: seedEmployee,
			Amount:     p.Amount,
			Method:     p.Method,
			Reference:  p.Reference,
			RequestKey: fmt.Sprintf("seed-%s-payment-%d", customer.ID, i),
		})
		if err != nil {
			return fmt.Errorf("payment %d: %w", i, err)
		}
	}
	return nil
}
