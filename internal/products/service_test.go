package products

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/crediventas/crediventas/internal/ledger"
	"github.com/crediventas/crediventas/internal/ledger/memory"
	"github.com/crediventas/crediventas/internal/shared"
)

func seed(t *testing.T, svc *Service, code, name string, stock, min int) ledger.Product {
	t.Helper()
	p, err := svc.Create(context.Background(), CreateInput{Code: code, Name: name, Price: decimal.RequireFromString("12.50"), Stock: stock, MinStock: min}, uuid.Nil)
	require.NoError(t, err)
	return p
}

func TestCreateNormalizesAndRejectsDuplicates(t *testing.T) {
	svc := NewService(memory.New(), nil, nil)

	p := seed(t, svc, " ref-600 ", "Refresco 600ml", 10, 2)
	assert.Equal(t, "REF-600", p.Code)
	assert.True(t, p.Active)

	_, err := svc.Create(context.Background(), CreateInput{Code: "REF-600", Name: "Otro", Price: decimal.NewFromInt(1)}, uuid.Nil)
	require.ErrorIs(t, err, shared.ErrDuplicate)

	for name, in := range map[string]CreateInput{
		"no code":        {Name: "X", Price: decimal.NewFromInt(1)},
		"no name":        {Code: "A1", Price: decimal.NewFromInt(1)},
		"negative price": {Code: "A1", Name: "X", Price: decimal.NewFromInt(-1)},
		"negative stock": {Code: "A1", Name: "X", Price: decimal.NewFromInt(1), Stock: -3},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), in, uuid.Nil)
			require.ErrorIs(t, err, shared.ErrValidation)
		})
	}
}

func TestListStockFilters(t *testing.T) {
	svc := NewService(memory.New(), nil, nil)
	seed(t, svc, "A", "Aceite", 20, 5)
	low := seed(t, svc, "B", "Bolillo", 3, 5)
	out := seed(t, svc, "C", "Café", 0, 5)

	all, err := svc.List(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	lows, err := svc.List(context.Background(), StockLow, 0)
	require.NoError(t, err)
	require.Len(t, lows, 2)
	assert.ElementsMatch(t, []uuid.UUID{low.ID, out.ID}, []uuid.UUID{lows[0].ID, lows[1].ID})

	outs, err := svc.List(context.Background(), StockOut, 0)
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.Equal(t, out.ID, outs[0].ID)

	_, err = svc.List(context.Background(), "plenty", 0)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpdateAndDeactivate(t *testing.T) {
	svc := NewService(memory.New(), nil, nil)
	p := seed(t, svc, "LECHE-1L", "Leche 1L", 10, 2)
	seed(t, svc, "HUEVO-12", "Huevo docena", 10, 2)

	price := decimal.RequireFromString("27.90")
	updated, err := svc.Update(context.Background(), p.ID, UpdateInput{Price: &price}, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, "27.90", updated.Price.StringFixed(2))
	assert.Equal(t, "LECHE-1L", updated.Code)

	taken := "huevo-12"
	_, err = svc.Update(context.Background(), p.ID, UpdateInput{Code: &taken}, uuid.Nil)
	require.ErrorIs(t, err, shared.ErrDuplicate)
	assert.Contains(t, err.Error(), p.ID.String())

	off, err := svc.Deactivate(context.Background(), p.ID, uuid.Nil)
	require.NoError(t, err)
	assert.False(t, off.Active)

	found, err := svc.Search(context.Background(), "leche")
	require.NoError(t, err)
	assert.Empty(t, found)

	stored, err := svc.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)

	_, err = svc.Update(context.Background(), uuid.New(), UpdateInput{Price: &price}, uuid.Nil)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUpdateNeverReactivatesProduct(t *testing.T) {
	svc := NewService(memory.New(), nil, nil)
	p := seed(t, svc, "PAN-BCO", "Pan blanco", 10, 2)

	var g errgroup.Group
	for i := range 20 {
		stock := i
		g.Go(func() error {
			_, err := svc.Update(context.Background(), p.ID, UpdateInput{Stock: &stock}, uuid.Nil)
			return err
		})
		if i == 5 {
			g.Go(func() error {
				_, err := svc.Deactivate(context.Background(), p.ID, uuid.Nil)
				return err
			})
		}
	}
	require.NoError(t, g.Wait())

	stored, err := svc.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)

	again, err := svc.Deactivate(context.Background(), p.ID, uuid.Nil)
	require.NoError(t, err)
	assert.False(t, again.Active)
}

func TestSearchByNameOrCode(t *testing.T) {
	svc := NewService(memory.New(), nil, nil)
	seed(t, svc, "FRI-900", "Frijol negro 900g", 5, 1)
	seed(t, svc, "ARR-1K", "Arroz 1kg", 5, 1)

	found, err := svc.Search(context.Background(), "f")
	require.NoError(t, err)
	assert.Empty(t, found)

	found, err = svc.Search(context.Background(), "FRIJOL")
	require.NoError(t, err)
	require.Len(t, found, 1)

	found, err = svc.Search(context.Background(), "arr-")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "ARR-1K", found[0].Code)
}

func TestProductHandlers(t *testing.T) {
	svc := NewService(memory.New(), nil, nil)
	r := chi.NewRouter()
	NewHandler(nil, svc).MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/products",
		strings.NewReader(`{"code":"jab-01","name":"Jabón","price":"15.00","stock":1,"min_stock":3}`)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"low_stock":true`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/products",
		strings.NewReader(`{"code":"JAB-01","name":"Jabón","price":"15.00"}`)))
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products?stock=low", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"JAB-01"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/search?q=ja", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"JAB-01"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/"+uuid.NewString(), nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(`{"code":"X","name":"Y"}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
