package db_test

import (
	"path/filepath"
	"testing"

	"github.com/mindfulai/naina/internal/db"
	"github.com/mindfulai/naina/internal/testutil"
)

func TestOpenAndMigrate_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "naina.db")
	database := testutil.NewTestDBAtPath(t, path)

	if err := database.Migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if database.Path() != path {
		t.Fatalf("Path()=%q want %q", database.Path(), path)
	}

	for _, table := range []string{"session_counters", "crisis_events"} {
		var name string
		err := database.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}
}

func TestOpen_RequiresPath(t *testing.T) {
	if _, err := db.Open(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestOpen_Memory(t *testing.T) {
	database, err := db.OpenAndMigrate(":memory:")
	if err != nil {
		t.Fatalf("OpenAndMigrate: %v", err)
	}
	defer database.Close()

	n, err := database.Counters().Len(t.Context())
	if err != nil || n != 0 {
		t.Fatalf("Len = %d, %v", n, err)
	}
}
