package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/roach88/till/internal/inventory"
)

// createTestStore opens a fresh SQLite store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// openServerStore opens a MySQL or PostgreSQL store from env, or skips.
func openServerStore(t *testing.T, d Dialect, env string) *Store {
	t.Helper()
	dsn := os.Getenv(env)
	if dsn == "" {
		t.Skipf("%s not set; skipping %s store tests", env, d)
	}
	s, err := OpenDialect(d, dsn)
	if err != nil {
		t.Skipf("%s unavailable: %v", d, err)
	}
	t.Cleanup(func() {
		s.db.Exec("DELETE FROM inventory_units")
		s.db.Exec("DELETE FROM customers")
		s.Close()
	})
	return s
}

func testUnit(id string, status inventory.UnitStatus) inventory.Unit {
	return inventory.Unit{
		ID:        id,
		Kind:      inventory.KindIMEI,
		ProductID: "phone",
		VariantID: "black",
		Status:    status,
	}
}
