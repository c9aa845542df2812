package persistence

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPendingMigrationsSortedSQLOnly(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0002_b.sql", "0001_a.sql", "README.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	got, err := pendingMigrations(dir)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(got) != 2 || got[0] != "0001_a.sql" || got[1] != "0002_b.sql" {
		t.Fatalf("got %v", got)
	}
}

func TestPendingMigrationsMissingDir(t *testing.T) {
	if _, err := pendingMigrations(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}
