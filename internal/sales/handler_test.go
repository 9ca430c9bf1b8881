package sales

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/crediventas/crediventas/internal/ledger"
	"github.com/crediventas/crediventas/internal/shared"
)

func newTestRouter(f *fixture) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id, err := uuid.Parse(r.Header.Get(shared.EmployeeHeader)); err == nil {
				r = r.WithContext(shared.ContextWithEmployee(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	})
	NewHandler(nil, f.svc).MountRoutes(r)
	return r
}

func (f *fixture) saleBody(customerID uuid.UUID, price string) string {
	return `{"customer_id":"` + customerID.String() + `","lines":[{"product_id":"` + f.product.String() + `","quantity":2,"unit_price":"` + price + `"}]}`
}

func TestPostSaleHandlerCreated(t *testing.T) {
	f := newFixture(t)
	c := f.customer(t, "1000", "200", ledger.CustomerActive)
	employee := uuid.New()
	router := newTestRouter(f)

	req := httptest.NewRequest(http.MethodPost, "/sales", strings.NewReader(f.saleBody(c.ID, "300")))
	req.Header.Set(shared.EmployeeHeader, employee.String())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp SaleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "/api/sales/"+resp.ID, rec.Header().Get("Location"))
	require.Equal(t, "696.00", resp.Total)
	require.Equal(t, "pending", resp.Status)
	require.Equal(t, employee.String(), resp.EmployeeID)
	require.Equal(t, 30, resp.TermDays)
	require.Len(t, resp.Lines, 1)
	require.Equal(t, "600.00", resp.Lines[0].Subtotal)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sales/"+resp.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestPostSaleHandlerInsufficientCredit(t *testing.T) {
	f := newFixture(t)
	c := f.customer(t, "1000", "200", ledger.CustomerActive)

	rec := httptest.NewRecorder()
	newTestRouter(f).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sales", strings.NewReader(f.saleBody(c.ID, "350"))))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "800.00", body["available"])
	require.Equal(t, "812.00", body["total"])
}

func TestPostSaleHandlerValidation(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(f)

	cases := map[string]string{
		"empty lines":    `{"customer_id":"` + uuid.NewString() + `","lines":[]}`,
		"bad customer":   `{"customer_id":"nope","lines":[{"product_id":"` + uuid.NewString() + `","quantity":1,"unit_price":"1"}]}`,
		"missing price":  `{"customer_id":"` + uuid.NewString() + `","lines":[{"product_id":"` + uuid.NewString() + `","quantity":1}]}`,
		"unknown field":  `{"customer_id":"` + uuid.NewString() + `","discount":5}`,
		"malformed json": `{"customer_id":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sales", strings.NewReader(body)))
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestPostSaleHandlerReplay(t *testing.T) {
	f := newFixture(t)
	c := f.customer(t, "1000", "0", ledger.CustomerActive)
	router := newTestRouter(f)
	body := f.saleBody(c.ID, "10")

	var ids []string
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/sales", strings.NewReader(body))
		req.Header.Set(shared.IdempotencyHeader, "pos-7-000123")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)
		var resp SaleResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		ids = append(ids, resp.ID)
	}
	require.Equal(t, ids[0], ids[1])
	require.Equal(t, "23.20", f.balance(t, c.ID).StringFixed(2))

	req := httptest.NewRequest(http.MethodPost, "/sales", strings.NewReader(f.saleBody(c.ID, "11")))
	req.Header.Set(shared.IdempotencyHeader, "pos-7-000123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestCancelAndSettleHandlers(t *testing.T) {
	f := newFixture(t)
	c := f.customer(t, "1000", "0", ledger.CustomerActive)
	router := newTestRouter(f)

	a, err := f.svc.PostSale(t.Context(), f.cart(c.ID, "10"))
	require.NoError(t, err)
	b, err := f.svc.PostSale(t.Context(), f.cart(c.ID, "10"))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sales/"+a.ID.String()+"/cancel", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sales/"+a.ID.String()+"/settle", nil))
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sales/"+b.ID.String()+"/settle", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sales?status=paid", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []SaleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	require.Equal(t, b.ID.String(), list[0].ID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sales/not-a-uuid", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sales/"+uuid.NewString(), nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
