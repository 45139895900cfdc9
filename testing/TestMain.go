package testing

import (
	"os"
	"sync"
	stdtesting "testing"

	"github.com/aqualedger/aqualedger/internal/app"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv(app.TestModeEnv, "1")
		if os.Getenv("JWT_SECRET") == "" {
			_ = os.Setenv("JWT_SECRET", "test-secret-test-secret-test-secret")
		}
		if os.Getenv("BUSINESS_TIMEZONE") == "" {
			_ = os.Setenv("BUSINESS_TIMEZONE", "UTC")
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
