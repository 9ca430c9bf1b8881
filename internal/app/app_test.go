package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/crediventas/crediventas/internal/ledger/memory"
	"github.com/crediventas/crediventas/internal/observability"
	"github.com/crediventas/crediventas/internal/shared"
	_ "github.com/crediventas/crediventas/testing"
)

func testConfig() *Config {
	return &Config{
		AppEnv:             "test",
		AppRequestTimeout:  5 * time.Second,
		LogFormat:          "json",
		LedgerStore:        StoreMemory,
		CacheTTL:           time.Minute,
		RateLimitPerMinute: 1000,
		DisplayLocale:      "es-MX",
	}
}

func newTestServer(t *testing.T, cfg *Config) (http.Handler, *observability.Metrics) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := newLogger(cfg, io.Discard)
	metrics := observability.NewMetrics()
	svcs, err := NewServices(ServiceDeps{Config: cfg, Logger: logger, Store: memory.New(), Redis: client, Metrics: metrics})
	require.NoError(t, err)
	router := NewRouter(svcs.Handlers(RouterParams{
		Logger:  logger,
		Config:  cfg,
		Metrics: metrics,
		Readiness: map[string]ReadinessCheck{
			"redis": func(ctx context.Context) error { return client.Ping(ctx).Err() },
		},
	}))
	return router, metrics
}

func do(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("LEDGER_STORE", "Memory")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "30")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, StoreMemory, cfg.LedgerStore)
	require.True(t, cfg.UsesMemoryStore())
	require.Equal(t, 30, cfg.RateLimitPerMinute)
	require.Equal(t, "es-MX", cfg.DisplayLocale)
	require.Equal(t, "0 3 * * *", cfg.IntegrityCron)
	require.Equal(t, 15*time.Second, cfg.AppReadTimeout)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsUnknownStore(t *testing.T) {
	t.Setenv("LEDGER_STORE", "sqlite")
	_, err := LoadConfig()
	require.Error(t, err)

	t.Setenv("LEDGER_STORE", "memory")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "0")
	_, err = LoadConfig()
	require.Error(t, err)
}

func TestLoggerFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogFormat: "json", LogLevel: "warn"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "customer_id", "c-1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	require.Equal(t, "shown", entry["msg"])
	require.Equal(t, "c-1", entry["customer_id"])
	require.Contains(t, entry, "source")
}

func TestTestModeFromEnv(t *testing.T) {
	require.True(t, InTestMode())
	t.Setenv(testModeEnv, "0")
	RefreshTestMode()
	require.False(t, InTestMode())
	t.Setenv(testModeEnv, "true")
	RefreshTestMode()
	require.True(t, InTestMode())
}

func TestHealthAndReadiness(t *testing.T) {
	router, _ := newTestServer(t, testConfig())

	rec := do(t, router, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decode(t, rec)["status"])
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))

	rec = do(t, router, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decode(t, rec)["redis"])
}

func TestReadinessReportsFailures(t *testing.T) {
	cfg := testConfig()
	router := NewRouter(RouterParams{
		Logger: newLogger(cfg, io.Discard),
		Config: cfg,
		Readiness: map[string]ReadinessCheck{
			"postgres": func(context.Context) error { return errors.New("connection refused") },
		},
	})

	rec := do(t, router, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "unavailable", decode(t, rec)["postgres"])

	rec = do(t, router, http.MethodGet, "/api/nothing", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestEmployeeHeaderMustBeUUID(t *testing.T) {
	router, _ := newTestServer(t, testConfig())

	rec := do(t, router, http.MethodGet, "/api/customers", "", map[string]string{shared.EmployeeHeader: "cashier-3"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/customers", "", map[string]string{shared.EmployeeHeader: uuid.NewString()})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitPerClient(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitPerMinute = 2
	router, _ := newTestServer(t, cfg)

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, do(t, router, http.MethodGet, "/healthz", "", nil).Code)
	}
	rec := do(t, router, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestCreditSaleFlowThroughAPI(t *testing.T) {
	router, _ := newTestServer(t, testConfig())
	employee := map[string]string{shared.EmployeeHeader: uuid.NewString()}

	rec := do(t, router, http.MethodPost, "/api/customers", `{"name":"Rosa Méndez","credit_limit":"1000"}`, employee)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	customerID := decode(t, rec)["id"].(string)

	rec = do(t, router, http.MethodPost, "/api/products", `{"code":"lic-01","name":"Licuadora","price":"300","stock":4,"min_stock":1}`, employee)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	productID := decode(t, rec)["id"].(string)

	sale := `{"customer_id":"` + customerID + `","lines":[{"product_id":"` + productID + `","quantity":2,"unit_price":"300"}]}`
	rec = do(t, router, http.MethodPost, "/api/sales", sale, employee)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, "696.00", decode(t, rec)["total"])

	rec = do(t, router, http.MethodPost, "/api/sales", sale, employee)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	problem := decode(t, rec)
	require.Equal(t, "304.00", problem["available"])

	rec = do(t, router, http.MethodPost, "/api/payments", `{"customer_id":"`+customerID+`","amount":"96","method":"transfer"}`, employee)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodGet, "/api/customers/"+customerID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "600.00", decode(t, rec)["pending_balance"])

	rec = do(t, router, http.MethodGet, "/api/customers/"+customerID+"/payments", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `crediventas_ledger_postings_total{operation="sale",outcome="committed"} 1`)
	require.Contains(t, body, `crediventas_ledger_postings_total{operation="sale",outcome="rejected"} 1`)
	require.Contains(t, body, `crediventas_ledger_postings_total{operation="payment",outcome="committed"} 1`)
}
