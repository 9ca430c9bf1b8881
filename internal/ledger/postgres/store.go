// Package postgres implements ledger.Store on PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crediventas/crediventas/internal/ledger"
	"github.com/crediventas/crediventas/internal/platform/db"
	"github.com/crediventas/crediventas/internal/shared"
)

const defaultLimit = 100

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists the ledger in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New constructs Store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// WithTx runs fn inside a READ COMMITTED transaction. Balance writers lock
// the customer row, which serializes them without serialization failures.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, ledger.Tx) error) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{q: tx})
	})
}

const customerColumns = `id, name, address, phone, credit_limit, pending_balance, status, version, created_at, updated_at`

func scanCustomer(row pgx.Row) (ledger.Customer, error) {
	var c ledger.Customer
	var status string
	err := row.Scan(&c.ID, &c.Name, &c.Address, &c.Phone, &c.CreditLimit, &c.PendingBalance, &status, &c.Version, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return ledger.Customer{}, notFound(err)
	}
	c.Status = ledger.CustomerStatus(status)
	return c, nil
}

func collectCustomers(rows pgx.Rows, err error) ([]ledger.Customer, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ledger.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) GetCustomer(ctx context.Context, id uuid.UUID) (ledger.Customer, error) {
	return scanCustomer(s.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
}

func (s *Store) ListCustomers(ctx context.Context, filter ledger.CustomerFilter) ([]ledger.Customer, error) {
	return s.queryCustomers(ctx, "", filter)
}

func (s *Store) SearchCustomersByName(ctx context.Context, prefix string, filter ledger.CustomerFilter) ([]ledger.Customer, error) {
	return s.queryCustomers(ctx, prefix, filter)
}

func (s *Store) queryCustomers(ctx context.Context, term string, filter ledger.CustomerFilter) ([]ledger.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers
		WHERE (($1 = '' AND status <> 'inactive') OR status = $1)
		  AND ($2 = FALSE OR pending_balance > 0)
		  AND ($3 = '' OR name ILIKE '%' || $3 || '%' ESCAPE '\')
		ORDER BY name, id
		LIMIT $4`
	return collectCustomers(s.pool.Query(ctx, query, string(filter.Status), filter.WithBalance, escapeLike(term), limitOrDefault(filter.Limit)))
}

const productColumns = `id, code, name, description, price, stock, min_stock, active, created_at, updated_at`

func scanProduct(row pgx.Row) (ledger.Product, error) {
	var p ledger.Product
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Description, &p.Price, &p.Stock, &p.MinStock, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return ledger.Product{}, notFound(err)
	}
	return p, nil
}

func collectProducts(rows pgx.Rows, err error) ([]ledger.Product, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ledger.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) GetProduct(ctx context.Context, id uuid.UUID) (ledger.Product, error) {
	return scanProduct(s.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
}

func (s *Store) ListProducts(ctx context.Context, filter ledger.ProductFilter) ([]ledger.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products
		WHERE active
		  AND ($1 = FALSE OR stock <= min_stock)
		  AND ($2 = FALSE OR stock = 0)
		ORDER BY name, code
		LIMIT $3`
	return collectProducts(s.pool.Query(ctx, query, filter.LowStock, filter.OutOfStock, limitOrDefault(filter.Limit)))
}

func (s *Store) SearchProducts(ctx context.Context, term string, limit int) ([]ledger.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products
		WHERE active
		  AND (name ILIKE '%' || $1 || '%' ESCAPE '\' OR code ILIKE '%' || $1 || '%' ESCAPE '\')
		ORDER BY name, code
		LIMIT $2`
	return collectProducts(s.pool.Query(ctx, query, escapeLike(term), limitOrDefault(limit)))
}

const saleColumns = `id, customer_id, employee_id, subtotal, tax, total, term_days, status, COALESCE(request_key, ''), fingerprint, created_at, updated_at`

func scanSale(row pgx.Row) (ledger.Sale, error) {
	var sale ledger.Sale
	var status string
	var employee *uuid.UUID
	err := row.Scan(&sale.ID, &sale.CustomerID, &employee, &sale.Subtotal, &sale.Tax, &sale.Total, &sale.TermDays, &status, &sale.RequestKey, &sale.Fingerprint, &sale.CreatedAt, &sale.UpdatedAt)
	if err != nil {
		return ledger.Sale{}, notFound(err)
	}
	if employee != nil {
		sale.EmployeeID = *employee
	}
	sale.Status = ledger.SaleStatus(status)
	return sale, nil
}

func (s *Store) GetSale(ctx context.Context, id uuid.UUID) (ledger.Sale, error) {
	return getSaleWithLines(ctx, s.pool, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id)
}

func getSaleWithLines(ctx context.Context, q querier, query string, arg any) (ledger.Sale, error) {
	sale, err := scanSale(q.QueryRow(ctx, query, arg))
	if err != nil {
		return ledger.Sale{}, err
	}
	lines, err := loadLines(ctx, q, sale.ID)
	if err != nil {
		return ledger.Sale{}, err
	}
	sale.Lines = lines
	return sale, nil
}

func loadLines(ctx context.Context, q querier, saleID uuid.UUID) ([]ledger.SaleLine, error) {
	rows, err := q.Query(ctx, `SELECT id, sale_id, product_id, quantity, unit_price_snapshot, subtotal FROM sale_lines WHERE sale_id = $1 ORDER BY id`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []ledger.SaleLine
	for rows.Next() {
		var l ledger.SaleLine
		if err := rows.Scan(&l.ID, &l.SaleID, &l.ProductID, &l.Quantity, &l.UnitPriceSnapshot, &l.Subtotal); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (s *Store) ListSales(ctx context.Context, filter ledger.SaleFilter) ([]ledger.Sale, error) {
	var customer *uuid.UUID
	if filter.CustomerID != uuid.Nil {
		customer = &filter.CustomerID
	}
	rows, err := s.pool.Query(ctx, `SELECT `+saleColumns+` FROM sales
		WHERE ($1::uuid IS NULL OR customer_id = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC, id
		LIMIT $3`, customer, string(filter.Status), limitOrDefault(filter.Limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ledger.Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sale)
	}
	return out, rows.Err()
}

const paymentColumns = `id, customer_id, employee_id, amount, method, reference, COALESCE(request_key, ''), fingerprint, created_at`

func scanPayment(row pgx.Row) (ledger.Payment, error) {
	var p ledger.Payment
	var method string
	var employee *uuid.UUID
	err := row.Scan(&p.ID, &p.CustomerID, &employee, &p.Amount, &method, &p.Reference, &p.RequestKey, &p.Fingerprint, &p.CreatedAt)
	if err != nil {
		return ledger.Payment{}, notFound(err)
	}
	if employee != nil {
		p.EmployeeID = *employee
	}
	p.Method = ledger.PaymentMethod(method)
	return p, nil
}

func (s *Store) ListPayments(ctx context.Context, customerID uuid.UUID, limit int) ([]ledger.Payment, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE customer_id = $1 ORDER BY created_at DESC, id LIMIT $2`, customerID, limitOrDefault(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ledger.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) ListCustomerIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM customers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.ErrNotFound
	}
	return err
}

func duplicate(err error) error {
	if shared.IsUniqueViolation(err) {
		return ledger.ErrDuplicate
	}
	return err
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func nullableUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return limit
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(term string) string {
	return likeEscaper.Replace(term)
}
