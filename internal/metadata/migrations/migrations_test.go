package migrations

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestMigrateUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	tables := []string{"commits", "config", "schema_migrations"}
	for _, table := range tables {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s was not created: %v", table, err)
		}
	}

	var head string
	if err := db.QueryRow("SELECT value FROM config WHERE key = 'HEAD'").Scan(&head); err != nil {
		t.Fatalf("HEAD row missing: %v", err)
	}
	if head != "" {
		t.Errorf("HEAD = %q, want empty", head)
	}
}

func TestCheckStatus_FreshDatabase(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	err := CheckStatus(db)
	if err == nil {
		t.Fatal("CheckStatus() expected error for fresh database, got nil")
	}
	if err.Error() != "database has no schema version (needs migration)" {
		t.Errorf("CheckStatus() error = %q, want error about needing migration", err.Error())
	}
}

func TestCheckStatus_AfterMigration(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	if err := CheckStatus(db); err != nil {
		t.Errorf("CheckStatus() after migration returned error: %v", err)
	}
}

func TestMigrateUp_Idempotent(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("First MigrateUp() failed: %v", err)
	}
	if err := MigrateUp(db); err != nil {
		t.Errorf("Second MigrateUp() failed: %v (should be idempotent)", err)
	}
	if err := CheckStatus(db); err != nil {
		t.Errorf("CheckStatus() after double migration returned error: %v", err)
	}
}

func TestLatestVersion(t *testing.T) {
	v, err := LatestVersion()
	if err != nil {
		t.Fatalf("LatestVersion() error = %v", err)
	}
	if v != 2 {
		t.Errorf("LatestVersion() = %d, want 2", v)
	}
}

func TestSchema_ExtendedColumns(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	_, err := db.Exec(`INSERT INTO commits (hash, material, bbox_x, config_count, blob_size_bytes)
		VALUES ('abc', 'Steel', 12.5, 3, 4096)`)
	if err != nil {
		t.Fatalf("Failed to insert commit with extended columns: %v", err)
	}

	var material string
	var size int64
	if err := db.QueryRow("SELECT material, blob_size_bytes FROM commits WHERE hash = 'abc'").Scan(&material, &size); err != nil {
		t.Fatalf("Failed to read commit: %v", err)
	}
	if material != "Steel" || size != 4096 {
		t.Errorf("got material=%q size=%d, want Steel 4096", material, size)
	}
}

func TestSchema_HashUnique(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	if _, err := db.Exec("INSERT INTO commits (hash) VALUES ('dup')"); err != nil {
		t.Fatalf("Failed to insert first commit: %v", err)
	}
	if _, err := db.Exec("INSERT INTO commits (hash) VALUES ('dup')"); err == nil {
		t.Error("Expected unique constraint violation for duplicate hash, but insert succeeded")
	}
}

// openTestDB opens an in-memory SQLite database for testing.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	return db
}
