// Package testing forces CREDIVENTAS_TEST_MODE for packages that import it
// for side effects, so tests never start the HTTP server or the worker.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("CREDIVENTAS_TEST_MODE", "1")
		if os.Getenv("LEDGER_STORE") == "" {
			_ = os.Setenv("LEDGER_STORE", "memory")
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
