package postgres

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/crediventas/crediventas/internal/ledger"
	"github.com/crediventas/crediventas/internal/platform/db"
)

func TestEscapeLike(t *testing.T) {
	require.Equal(t, `50\% off\_now\\`, escapeLike(`50% off_now\`))
	require.Equal(t, "ana", escapeLike("ana"))
}

func TestNullableHelpers(t *testing.T) {
	require.Nil(t, nullableUUID(uuid.Nil))
	id := uuid.New()
	require.Equal(t, id, *nullableUUID(id))
	require.Nil(t, nullableString(""))
	require.Equal(t, "k", *nullableString("k"))
	require.Equal(t, defaultLimit, limitOrDefault(0))
	require.Equal(t, 7, limitOrDefault(7))
}

// openTestPool connects to CREDIVENTAS_TEST_PG_DSN, which must point at a
// database with migrations/0001_init.sql applied.
func openTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("CREDIVENTAS_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("CREDIVENTAS_TEST_PG_DSN not set")
	}
	pool, err := db.New(context.Background(), dsn, db.Options{})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestConcurrentSalesAgainstPostgres(t *testing.T) {
	pool := openTestPool(t)
	store := New(pool)
	rec := ledger.NewReconciler(store)
	ctx := context.Background()

	var customer ledger.Customer
	require.NoError(t, store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		customer, err = tx.InsertCustomer(ctx, ledger.Customer{Name: "Concurrency " + uuid.NewString(), CreditLimit: decimal.NewFromInt(100)})
		return err
	}))

	const workers = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
				_, err := rec.ApplyDelta(ctx, tx, customer.ID, decimal.NewFromInt(30), ledger.DeltaSale)
				return err
			})
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 3, accepted)
	stored, err := store.GetCustomer(ctx, customer.ID)
	require.NoError(t, err)
	require.True(t, stored.PendingBalance.Equal(decimal.NewFromInt(90)))
}

func TestRequestKeyUniqueAgainstPostgres(t *testing.T) {
	pool := openTestPool(t)
	store := New(pool)
	ctx := context.Background()
	key := "it-" + uuid.NewString()

	var customer ledger.Customer
	require.NoError(t, store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		customer, err = tx.InsertCustomer(ctx, ledger.Customer{Name: "Keys", CreditLimit: decimal.NewFromInt(100)})
		return err
	}))

	insert := func() error {
		return store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
			_, err := tx.InsertPayment(ctx, ledger.Payment{CustomerID: customer.ID, Amount: decimal.NewFromInt(1), Method: ledger.MethodCash, RequestKey: key})
			return err
		})
	}
	require.NoError(t, insert())
	require.ErrorIs(t, insert(), ledger.ErrDuplicate)
}
