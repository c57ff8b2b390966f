package testsupport

import (
	"testing"

	"clipforge/internal/config"
	"clipforge/internal/operations"
)

// MustOpenStore opens a registry store against the supplied configuration and
// closes it when the test finishes.
func MustOpenStore(t *testing.T, cfg *config.Config) *operations.Store {
	t.Helper()

	store, err := operations.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}
