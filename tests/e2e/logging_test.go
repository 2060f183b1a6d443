package e2e

import (
	"io"
	"os"

	"github.com/kuitang/notes-e2e/internal/obs"
)

// Keep e2e output quiet by default; opt in with E2E_TEST_DEBUG_LOGS=1.
func quietLogs() {
	if os.Getenv("E2E_TEST_DEBUG_LOGS") == "" {
		obs.SetOutputForTests(io.Discard)
	}
}
