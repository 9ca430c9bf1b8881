package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/crediventas/crediventas/internal/ledger"
)

type pgTx struct {
	q querier
}

func (t *pgTx) GetCustomerForUpdate(ctx context.Context, id uuid.UUID) (ledger.Customer, error) {
	return scanCustomer(t.q.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1 FOR UPDATE`, id))
}

func (t *pgTx) UpdateCustomerBalance(ctx context.Context, id uuid.UUID, newBalance decimal.Decimal, expectedVersion int64) error {
	tag, err := t.q.Exec(ctx, `UPDATE customers
		SET pending_balance = $2, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $3`, id, newBalance, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return t.missingOrConflict(ctx, id)
	}
	return nil
}

func (t *pgTx) missingOrConflict(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := t.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ledger.ErrNotFound
	}
	return ledger.ErrVersionConflict
}

func (t *pgTx) InsertCustomer(ctx context.Context, c ledger.Customer) (ledger.Customer, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = ledger.CustomerActive
	}
	created, err := scanCustomer(t.q.QueryRow(ctx, `INSERT INTO customers (id, name, address, phone, credit_limit, pending_balance, status, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1)
		RETURNING `+customerColumns,
		c.ID, c.Name, c.Address, c.Phone, c.CreditLimit, c.PendingBalance, string(c.Status)))
	return created, duplicate(err)
}

func (t *pgTx) UpdateCustomerProfile(ctx context.Context, c ledger.Customer, expectedVersion int64) (ledger.Customer, error) {
	updated, err := scanCustomer(t.q.QueryRow(ctx, `UPDATE customers
		SET name = $2, address = $3, phone = $4, credit_limit = $5, status = $6, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $7
		RETURNING `+customerColumns,
		c.ID, c.Name, c.Address, c.Phone, c.CreditLimit, string(c.Status), expectedVersion))
	if errors.Is(err, ledger.ErrNotFound) {
		return ledger.Customer{}, t.missingOrConflict(ctx, c.ID)
	}
	return updated, err
}

func (t *pgTx) SumCustomerLedger(ctx context.Context, customerID uuid.UUID) (ledger.LedgerSums, error) {
	var sums ledger.LedgerSums
	err := t.q.QueryRow(ctx, `SELECT
		(SELECT COALESCE(SUM(total), 0) FROM sales WHERE customer_id = $1 AND status <> 'cancelled'),
		(SELECT COALESCE(SUM(amount), 0) FROM payments WHERE customer_id = $1)`, customerID).
		Scan(&sums.SalesTotal, &sums.PaymentsTotal)
	return sums, err
}

func (t *pgTx) InsertProduct(ctx context.Context, p ledger.Product) (ledger.Product, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	created, err := scanProduct(t.q.QueryRow(ctx, `INSERT INTO products (id, code, name, description, price, stock, min_stock, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+productColumns,
		p.ID, p.Code, p.Name, p.Description, p.Price, p.Stock, p.MinStock, p.Active))
	return created, duplicate(err)
}

func (t *pgTx) GetProductForUpdate(ctx context.Context, id uuid.UUID) (ledger.Product, error) {
	return scanProduct(t.q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id))
}

func (t *pgTx) UpdateProduct(ctx context.Context, p ledger.Product) (ledger.Product, error) {
	updated, err := scanProduct(t.q.QueryRow(ctx, `UPDATE products
		SET code = $2, name = $3, description = $4, price = $5, stock = $6, min_stock = $7, active = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING `+productColumns,
		p.ID, p.Code, p.Name, p.Description, p.Price, p.Stock, p.MinStock, p.Active))
	return updated, duplicate(err)
}

func (t *pgTx) FindSaleByRequestKey(ctx context.Context, key string) (ledger.Sale, error) {
	return getSaleWithLines(ctx, t.q, `SELECT `+saleColumns+` FROM sales WHERE request_key = $1`, key)
}

func (t *pgTx) GetSaleForUpdate(ctx context.Context, id uuid.UUID) (ledger.Sale, error) {
	return getSaleWithLines(ctx, t.q, `SELECT `+saleColumns+` FROM sales WHERE id = $1 FOR UPDATE`, id)
}

func (t *pgTx) InsertSale(ctx context.Context, sale ledger.Sale) (ledger.Sale, error) {
	if sale.ID == uuid.Nil {
		sale.ID = uuid.New()
	}
	created, err := scanSale(t.q.QueryRow(ctx, `INSERT INTO sales (id, customer_id, employee_id, subtotal, tax, total, term_days, status, request_key, fingerprint)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+saleColumns,
		sale.ID, sale.CustomerID, nullableUUID(sale.EmployeeID), sale.Subtotal, sale.Tax, sale.Total,
		sale.TermDays, string(sale.Status), nullableString(sale.RequestKey), sale.Fingerprint))
	return created, duplicate(err)
}

func (t *pgTx) InsertSaleLines(ctx context.Context, saleID uuid.UUID, lines []ledger.SaleLine) ([]ledger.SaleLine, error) {
	out := make([]ledger.SaleLine, 0, len(lines))
	for _, line := range lines {
		if line.ID == uuid.Nil {
			line.ID = uuid.New()
		}
		line.SaleID = saleID
		_, err := t.q.Exec(ctx, `INSERT INTO sale_lines (id, sale_id, product_id, quantity, unit_price_snapshot, subtotal)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			line.ID, saleID, line.ProductID, line.Quantity, line.UnitPriceSnapshot, line.Subtotal)
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("product %s: %w", line.ProductID, ledger.ErrNotFound)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, nil
}

func (t *pgTx) UpdateSaleStatus(ctx context.Context, id uuid.UUID, status ledger.SaleStatus) error {
	tag, err := t.q.Exec(ctx, `UPDATE sales SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func (t *pgTx) FindPaymentByRequestKey(ctx context.Context, key string) (ledger.Payment, error) {
	return scanPayment(t.q.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE request_key = $1`, key))
}

func (t *pgTx) InsertPayment(ctx context.Context, p ledger.Payment) (ledger.Payment, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	created, err := scanPayment(t.q.QueryRow(ctx, `INSERT INTO payments (id, customer_id, employee_id, amount, method, reference, request_key, fingerprint)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+paymentColumns,
		p.ID, p.CustomerID, nullableUUID(p.EmployeeID), p.Amount, string(p.Method), p.Reference,
		nullableString(p.RequestKey), p.Fingerprint))
	return created, duplicate(err)
}
