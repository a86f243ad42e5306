package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/store"
)

// SeedDatabase writes script into a new SQLite file under t.TempDir() and
// returns its path. The file is left in rollback-journal mode so it can be
// reopened read-only.
func SeedDatabase(t testing.TB, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hub.db")

	st, err := store.Open(path, store.Options{})
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.Seed(ctx, script); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := st.ExecuteRaw(ctx, "PRAGMA journal_mode = DELETE", nil, 1); err != nil {
		t.Fatalf("journal mode: %v", err)
	}
	return path
}
