// Package memory implements ledger.Store in process memory. Transactions are
// serialized by a single writer lock and applied on commit, so a failing
// callback leaves no trace.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/crediventas/crediventas/internal/ledger"
)

const defaultLimit = 100

type state struct {
	customers    map[uuid.UUID]ledger.Customer
	products     map[uuid.UUID]ledger.Product
	productCodes map[string]uuid.UUID
	sales        map[uuid.UUID]ledger.Sale
	saleOrder    []uuid.UUID
	saleKeys     map[string]uuid.UUID
	payments     map[uuid.UUID]ledger.Payment
	paymentOrder []uuid.UUID
	paymentKeys  map[string]uuid.UUID
}

func newState() *state {
	return &state{
		customers:    make(map[uuid.UUID]ledger.Customer),
		products:     make(map[uuid.UUID]ledger.Product),
		productCodes: make(map[string]uuid.UUID),
		sales:        make(map[uuid.UUID]ledger.Sale),
		saleKeys:     make(map[string]uuid.UUID),
		payments:     make(map[uuid.UUID]ledger.Payment),
		paymentKeys:  make(map[string]uuid.UUID),
	}
}

func (s *state) clone() *state {
	c := &state{
		customers:    make(map[uuid.UUID]ledger.Customer, len(s.customers)),
		products:     make(map[uuid.UUID]ledger.Product, len(s.products)),
		productCodes: make(map[string]uuid.UUID, len(s.productCodes)),
		sales:        make(map[uuid.UUID]ledger.Sale, len(s.sales)),
		saleOrder:    append([]uuid.UUID(nil), s.saleOrder...),
		saleKeys:     make(map[string]uuid.UUID, len(s.saleKeys)),
		payments:     make(map[uuid.UUID]ledger.Payment, len(s.payments)),
		paymentOrder: append([]uuid.UUID(nil), s.paymentOrder...),
		paymentKeys:  make(map[string]uuid.UUID, len(s.paymentKeys)),
	}
	for k, v := range s.customers {
		c.customers[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.productCodes {
		c.productCodes[k] = v
	}
	for k, v := range s.sales {
		c.sales[k] = v
	}
	for k, v := range s.saleKeys {
		c.saleKeys[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.paymentKeys {
		c.paymentKeys[k] = v
	}
	return c
}

// Store is an in-memory ledger.Store.
type Store struct {
	mu     sync.RWMutex
	data   *state
	now    func() time.Time
	faults map[Op]error
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		data:   newState(),
		now:    func() time.Time { return time.Now().UTC() },
		faults: make(map[Op]error),
	}
}

// WithTx runs fn against a private copy of the data and publishes it only if
// fn returns nil. Writers are serialized; readers wait for the commit.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, ledger.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{data: s.data.clone(), now: s.now, faults: s.faults}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.data = tx.data
	return nil
}

func (s *Store) GetCustomer(_ context.Context, id uuid.UUID) (ledger.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.data.customers[id]
	if !ok {
		return ledger.Customer{}, ledger.ErrNotFound
	}
	return c, nil
}

func (s *Store) ListCustomers(_ context.Context, filter ledger.CustomerFilter) ([]ledger.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterCustomers("", filter), nil
}

func (s *Store) SearchCustomersByName(_ context.Context, prefix string, filter ledger.CustomerFilter) ([]ledger.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterCustomers(strings.ToLower(prefix), filter), nil
}

func (s *Store) filterCustomers(term string, filter ledger.CustomerFilter) []ledger.Customer {
	var out []ledger.Customer
	for _, c := range s.data.customers {
		if filter.Status != "" {
			if c.Status != filter.Status {
				continue
			}
		} else if c.Status == ledger.CustomerInactive {
			continue
		}
		if filter.WithBalance && !c.PendingBalance.IsPositive() {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(c.Name), term) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].Name < out[j].Name
	})
	return truncate(out, filter.Limit)
}

func (s *Store) GetProduct(_ context.Context, id uuid.UUID) (ledger.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.data.products[id]
	if !ok {
		return ledger.Product{}, ledger.ErrNotFound
	}
	return p, nil
}

func (s *Store) ListProducts(_ context.Context, filter ledger.ProductFilter) ([]ledger.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ledger.Product
	for _, p := range s.data.products {
		if !p.Active {
			continue
		}
		if filter.OutOfStock && p.Stock != 0 {
			continue
		}
		if filter.LowStock && p.Stock > p.MinStock {
			continue
		}
		out = append(out, p)
	}
	sortProducts(out)
	return truncate(out, filter.Limit), nil
}

func (s *Store) SearchProducts(_ context.Context, term string, limit int) ([]ledger.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	term = strings.ToLower(term)
	var out []ledger.Product
	for _, p := range s.data.products {
		if !p.Active {
			continue
		}
		if strings.Contains(strings.ToLower(p.Name), term) || strings.Contains(strings.ToLower(p.Code), term) {
			out = append(out, p)
		}
	}
	sortProducts(out)
	return truncate(out, limit), nil
}

func (s *Store) GetSale(_ context.Context, id uuid.UUID) (ledger.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sale, ok := s.data.sales[id]
	if !ok {
		return ledger.Sale{}, ledger.ErrNotFound
	}
	sale.Lines = append([]ledger.SaleLine(nil), sale.Lines...)
	return sale, nil
}

func (s *Store) ListSales(_ context.Context, filter ledger.SaleFilter) ([]ledger.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ledger.Sale
	for i := len(s.data.saleOrder) - 1; i >= 0; i-- {
		sale := s.data.sales[s.data.saleOrder[i]]
		if filter.CustomerID != uuid.Nil && sale.CustomerID != filter.CustomerID {
			continue
		}
		if filter.Status != "" && sale.Status != filter.Status {
			continue
		}
		sale.Lines = nil
		out = append(out, sale)
	}
	return truncate(out, filter.Limit), nil
}

func (s *Store) ListPayments(_ context.Context, customerID uuid.UUID, limit int) ([]ledger.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ledger.Payment
	for i := len(s.data.paymentOrder) - 1; i >= 0; i-- {
		p := s.data.payments[s.data.paymentOrder[i]]
		if customerID != uuid.Nil && p.CustomerID != customerID {
			continue
		}
		out = append(out, p)
	}
	return truncate(out, limit), nil
}

func (s *Store) ListCustomerIDs(_ context.Context) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(s.data.customers))
	for id := range s.data.customers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

func sortProducts(out []ledger.Product) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].Code < out[j].Code
		}
		return out[i].Name < out[j].Name
	})
}

func truncate[T any](items []T, limit int) []T {
	if limit <= 0 {
		limit = defaultLimit
	}
	if len(items) > limit {
		return items[:limit]
	}
	return items
}

type memTx struct {
	data   *state
	now    func() time.Time
	faults map[Op]error
}

func (t *memTx) fault(op Op) error {
	if err, ok := t.faults[op]; ok {
		return err
	}
	return nil
}

func (t *memTx) GetCustomerForUpdate(_ context.Context, id uuid.UUID) (ledger.Customer, error) {
	c, ok := t.data.customers[id]
	if !ok {
		return ledger.Customer{}, ledger.ErrNotFound
	}
	return c, nil
}

func (t *memTx) UpdateCustomerBalance(_ context.Context, id uuid.UUID, newBalance decimal.Decimal, expectedVersion int64) error {
	if err := t.fault(OpUpdateCustomerBalance); err != nil {
		return err
	}
	c, ok := t.data.customers[id]
	if !ok {
		return ledger.ErrNotFound
	}
	if c.Version != expectedVersion {
		return ledger.ErrVersionConflict
	}
	if newBalance.IsNegative() {
		return ledger.Invalid("pending_balance", "must not be negative")
	}
	c.PendingBalance = newBalance
	c.Version++
	c.UpdatedAt = t.now()
	t.data.customers[id] = c
	return nil
}

func (t *memTx) InsertCustomer(_ context.Context, c ledger.Customer) (ledger.Customer, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if _, exists := t.data.customers[c.ID]; exists {
		return ledger.Customer{}, ledger.ErrDuplicate
	}
	if c.Status == "" {
		c.Status = ledger.CustomerActive
	}
	now := t.now()
	c.Version = 1
	c.CreatedAt, c.UpdatedAt = now, now
	t.data.customers[c.ID] = c
	return c, nil
}

func (t *memTx) UpdateCustomerProfile(_ context.Context, c ledger.Customer, expectedVersion int64) (ledger.Customer, error) {
	current, ok := t.data.customers[c.ID]
	if !ok {
		return ledger.Customer{}, ledger.ErrNotFound
	}
	if current.Version != expectedVersion {
		return ledger.Customer{}, ledger.ErrVersionConflict
	}
	current.Name = c.Name
	current.Address = c.Address
	current.Phone = c.Phone
	current.CreditLimit = c.CreditLimit
	current.Status = c.Status
	current.Version++
	current.UpdatedAt = t.now()
	t.data.customers[c.ID] = current
	return current, nil
}

func (t *memTx) SumCustomerLedger(_ context.Context, customerID uuid.UUID) (ledger.LedgerSums, error) {
	sums := ledger.LedgerSums{SalesTotal: decimal.Zero, PaymentsTotal: decimal.Zero}
	for _, sale := range t.data.sales {
		if sale.CustomerID == customerID && sale.Status != ledger.SaleCancelled {
			sums.SalesTotal = sums.SalesTotal.Add(sale.Total)
		}
	}
	for _, p := range t.data.payments {
		if p.CustomerID == customerID {
			sums.PaymentsTotal = sums.PaymentsTotal.Add(p.Amount)
		}
	}
	return sums, nil
}

func (t *memTx) InsertProduct(_ context.Context, p ledger.Product) (ledger.Product, error) {
	if _, exists := t.data.productCodes[p.Code]; exists {
		return ledger.Product{}, ledger.ErrDuplicate
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := t.now()
	p.CreatedAt, p.UpdatedAt = now, now
	t.data.products[p.ID] = p
	t.data.productCodes[p.Code] = p.ID
	return p, nil
}

func (t *memTx) GetProductForUpdate(_ context.Context, id uuid.UUID) (ledger.Product, error) {
	p, ok := t.data.products[id]
	if !ok {
		return ledger.Product{}, ledger.ErrNotFound
	}
	return p, nil
}

func (t *memTx) UpdateProduct(_ context.Context, p ledger.Product) (ledger.Product, error) {
	current, ok := t.data.products[p.ID]
	if !ok {
		return ledger.Product{}, ledger.ErrNotFound
	}
	if owner, exists := t.data.productCodes[p.Code]; exists && owner != p.ID {
		return ledger.Product{}, ledger.ErrDuplicate
	}
	delete(t.data.productCodes, current.Code)
	p.CreatedAt = current.CreatedAt
	p.UpdatedAt = t.now()
	t.data.products[p.ID] = p
	t.data.productCodes[p.Code] = p.ID
	return p, nil
}

func (t *memTx) FindSaleByRequestKey(_ context.Context, key string) (ledger.Sale, error) {
	id, ok := t.data.saleKeys[key]
	if !ok {
		return ledger.Sale{}, ledger.ErrNotFound
	}
	sale := t.data.sales[id]
	sale.Lines = append([]ledger.SaleLine(nil), sale.Lines...)
	return sale, nil
}

func (t *memTx) GetSaleForUpdate(_ context.Context, id uuid.UUID) (ledger.Sale, error) {
	sale, ok := t.data.sales[id]
	if !ok {
		return ledger.Sale{}, ledger.ErrNotFound
	}
	sale.Lines = append([]ledger.SaleLine(nil), sale.Lines...)
	return sale, nil
}

func (t *memTx) InsertSale(_ context.Context, sale ledger.Sale) (ledger.Sale, error) {
	if err := t.fault(OpInsertSale); err != nil {
		return ledger.Sale{}, err
	}
	if _, ok := t.data.customers[sale.CustomerID]; !ok {
		return ledger.Sale{}, ledger.ErrNotFound
	}
	if sale.RequestKey != "" {
		if _, exists := t.data.saleKeys[sale.RequestKey]; exists {
			return ledger.Sale{}, ledger.ErrDuplicate
		}
	}
	if sale.ID == uuid.Nil {
		sale.ID = uuid.New()
	}
	now := t.now()
	sale.CreatedAt, sale.UpdatedAt = now, now
	sale.Lines = nil
	t.data.sales[sale.ID] = sale
	t.data.saleOrder = append(t.data.saleOrder, sale.ID)
	if sale.RequestKey != "" {
		t.data.saleKeys[sale.RequestKey] = sale.ID
	}
	return sale, nil
}

func (t *memTx) InsertSaleLines(_ context.Context, saleID uuid.UUID, lines []ledger.SaleLine) ([]ledger.SaleLine, error) {
	if err := t.fault(OpInsertSaleLines); err != nil {
		return nil, err
	}
	sale, ok := t.data.sales[saleID]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	out := make([]ledger.SaleLine, 0, len(lines))
	for _, line := range lines {
		if _, ok := t.data.products[line.ProductID]; !ok {
			return nil, fmt.Errorf("product %s: %w", line.ProductID, ledger.ErrNotFound)
		}
		if line.ID == uuid.Nil {
			line.ID = uuid.New()
		}
		line.SaleID = saleID
		out = append(out, line)
	}
	sale.Lines = append(sale.Lines, out...)
	t.data.sales[saleID] = sale
	return out, nil
}

func (t *memTx) UpdateSaleStatus(_ context.Context, id uuid.UUID, status ledger.SaleStatus) error {
	if err := t.fault(OpUpdateSaleStatus); err != nil {
		return err
	}
	sale, ok := t.data.sales[id]
	if !ok {
		return ledger.ErrNotFound
	}
	sale.Status = status
	sale.UpdatedAt = t.now()
	t.data.sales[id] = sale
	return nil
}

func (t *memTx) FindPaymentByRequestKey(_ context.Context, key string) (ledger.Payment, error) {
	id, ok := t.data.paymentKeys[key]
	if !ok {
		return ledger.Payment{}, ledger.ErrNotFound
	}
	return t.data.payments[id], nil
}

func (t *memTx) InsertPayment(_ context.Context, p ledger.Payment) (ledger.Payment, error) {
	if err := t.fault(OpInsertPayment); err != nil {
		return ledger.Payment{}, err
	}
	if _, ok := t.data.customers[p.CustomerID]; !ok {
		return ledger.Payment{}, ledger.ErrNotFound
	}
	if p.RequestKey != "" {
		if _, exists := t.data.paymentKeys[p.RequestKey]; exists {
			return ledger.Payment{}, ledger.ErrDuplicate
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = t.now()
	t.data.payments[p.ID] = p
	t.data.paymentOrder = append(t.data.paymentOrder, p.ID)
	if p.RequestKey != "" {
		t.data.paymentKeys[p.RequestKey] = p.ID
	}
	return p, nil
}
