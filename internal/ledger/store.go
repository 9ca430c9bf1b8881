package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store exposes the read side of the ledger and opens transactions.
type Store interface {
	WithTx(ctx context.Context, fn func(context.Context, Tx) error) error

	GetCustomer(ctx context.Context, id uuid.UUID) (Customer, error)
	ListCustomers(ctx context.Context, filter CustomerFilter) ([]Customer, error)
	SearchCustomersByName(ctx context.Context, prefix string, filter CustomerFilter) ([]Customer, error)

	GetProduct(ctx context.Context, id uuid.UUID) (Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error)
	SearchProducts(ctx context.Context, term string, limit int) ([]Product, error)

	GetSale(ctx context.Context, id uuid.UUID) (Sale, error)
	ListSales(ctx context.Context, filter SaleFilter) ([]Sale, error)
	ListPayments(ctx context.Context, customerID uuid.UUID, limit int) ([]Payment, error)

	ListCustomerIDs(ctx context.Context) ([]uuid.UUID, error)
}

// Tx exposes writes that must commit together. Every method runs on the
// transaction opened by Store.WithTx.
type Tx interface {
	GetCustomerForUpdate(ctx context.Context, id uuid.UUID) (Customer, error)
	UpdateCustomerBalance(ctx context.Context, id uuid.UUID, newBalance decimal.Decimal, expectedVersion int64) error
	InsertCustomer(ctx context.Context, c Customer) (Customer, error)
	UpdateCustomerProfile(ctx context.Context, c Customer, expectedVersion int64) (Customer, error)
	SumCustomerLedger(ctx context.Context, customerID uuid.UUID) (LedgerSums, error)

	GetProductForUpdate(ctx context.Context, id uuid.UUID) (Product, error)
	InsertProduct(ctx context.Context, p Product) (Product, error)
	UpdateProduct(ctx context.Context, p Product) (Product, error)

	FindSaleByRequestKey(ctx context.Context, key string) (Sale, error)
	GetSaleForUpdate(ctx context.Context, id uuid.UUID) (Sale, error)
	InsertSale(ctx context.Context, s Sale) (Sale, error)
	InsertSaleLines(ctx context.Context, saleID uuid.UUID, lines []SaleLine) ([]SaleLine, error)
	UpdateSaleStatus(ctx context.Context, id uuid.UUID, status SaleStatus) error

	FindPaymentByRequestKey(ctx context.Context, key string) (Payment, error)
	InsertPayment(ctx context.Context, p Payment) (Payment, error)
}
