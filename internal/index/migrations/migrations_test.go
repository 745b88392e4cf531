package migrations

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)

	if err := Up(db); err != nil {
		t.Fatalf("Up() failed: %v", err)
	}

	for _, table := range []string{"files", "schema_migrations"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s was not created: %v", table, err)
		}
	}
}

func TestStatus_FreshDatabase(t *testing.T) {
	db := openTestDB(t)

	err := Status(db)
	if err == nil {
		t.Fatal("Status() expected error for fresh database, got nil")
	}
	if err.Error() != "index database has no schema version (needs migration)" {
		t.Errorf("Status() error = %q", err.Error())
	}
}

func TestUp_Idempotent(t *testing.T) {
	db := openTestDB(t)

	if err := Up(db); err != nil {
		t.Fatalf("first Up() failed: %v", err)
	}
	if err := Up(db); err != nil {
		t.Errorf("second Up() failed: %v", err)
	}
	if err := Status(db); err != nil {
		t.Errorf("Status() after double migration returned error: %v", err)
	}
}

func TestSchema_OriginalPathUnique(t *testing.T) {
	db := openTestDB(t)
	if err := Up(db); err != nil {
		t.Fatalf("Up() failed: %v", err)
	}

	insert := "INSERT INTO files (original_path, backup_path, file_type) VALUES (?, ?, ?)"
	if _, err := db.Exec(insert, "/src/a.txt", "/backup/a.txt", "txt"); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if _, err := db.Exec(insert, "/src/a.txt", "/backup/other.txt", "txt"); err == nil {
		t.Error("expected primary key violation for duplicate original_path")
	}

	var hash string
	var auto bool
	err := db.QueryRow("SELECT hash, auto_backup FROM files WHERE original_path = ?", "/src/a.txt").Scan(&hash, &auto)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if hash != "" || auto {
		t.Errorf("defaults = (%q, %v), want (\"\", false)", hash, auto)
	}
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}
