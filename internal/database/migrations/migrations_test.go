package migrations

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestMigrateUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	tables := []string{"directories", "files", "schema_migrations"}
	for _, table := range tables {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s was not created: %v", table, err)
		}
	}

	indexes := []string{"idx_directories_parent_id", "idx_files_parent_directory_id"}
	for _, index := range indexes {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name=?", index).Scan(&name)
		if err != nil {
			t.Errorf("Index %s was not created: %v", index, err)
		}
	}
}

func TestCheckDBMigrationStatus_FreshDatabase(t *testing.T) {
	db := openTestDB(t)

	err := CheckDBMigrationStatus(db)
	if err == nil {
		t.Fatal("CheckDBMigrationStatus() expected error for fresh database, got nil")
	}
	if err.Error() != "database has no schema version (needs migration)" {
		t.Errorf("CheckDBMigrationStatus() error = %q, want error about needing migration", err.Error())
	}
}

func TestCheckDBMigrationStatus_AfterMigration(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	if err := CheckDBMigrationStatus(db); err != nil {
		t.Errorf("CheckDBMigrationStatus() after migration returned error: %v", err)
	}
}

func TestMigrateUp_Idempotent(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("First MigrateUp() failed: %v", err)
	}
	if err := MigrateUp(db); err != nil {
		t.Errorf("Second MigrateUp() failed: %v (should be idempotent)", err)
	}
	if err := CheckDBMigrationStatus(db); err != nil {
		t.Errorf("CheckDBMigrationStatus() after double migration returned error: %v", err)
	}
}

func TestMigrateUp_PreexistingTables(t *testing.T) {
	db := openTestDB(t)

	// A database created before version tracking already has the tables.
	if _, err := db.Exec(`CREATE TABLE directories (
		id TEXT PRIMARY KEY NOT NULL, name TEXT NOT NULL,
		parent_id TEXT REFERENCES directories(id) ON DELETE CASCADE,
		created_at TEXT NOT NULL, updated_at TEXT NOT NULL)`); err != nil {
		t.Fatalf("creating legacy table: %v", err)
	}

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() over legacy schema failed: %v", err)
	}
}

func TestGetStatus(t *testing.T) {
	db := openTestDB(t)

	latest, err := LatestVersion()
	if err != nil {
		t.Fatalf("LatestVersion() error = %v", err)
	}
	if latest != 2 {
		t.Errorf("LatestVersion() = %d, want 2", latest)
	}

	st, err := GetStatus(db)
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if st.Version != 0 || st.Current() {
		t.Errorf("fresh GetStatus() = %+v, want version 0 and not current", st)
	}

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	st, err = GetStatus(db)
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if !st.Current() || st.Version != latest {
		t.Errorf("migrated GetStatus() = %+v, want current at %d", st, latest)
	}
}

func TestForeignKeyConstraints(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	_, err := db.Exec(`
		INSERT INTO files (id, filename, original_filename, file_size, storage_path, uploaded_at, parent_directory_id)
		VALUES ('file-1', 'file-1.txt', 'a.txt', 1, '/tmp/file-1.txt', '2024-01-15T10:30:00.000000000+00:00', 'missing-dir')
	`)
	if err == nil {
		t.Error("Expected foreign key constraint violation, but insert succeeded")
	}
}

func TestSchema_CascadeDelete(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	stmts := []string{
		`INSERT INTO directories (id, name, parent_id, created_at, updated_at) VALUES ('a', 'a', NULL, 't', 't')`,
		`INSERT INTO directories (id, name, parent_id, created_at, updated_at) VALUES ('b', 'b', 'a', 't', 't')`,
		`INSERT INTO files (id, filename, original_filename, file_size, storage_path, uploaded_at, parent_directory_id)
		 VALUES ('f', 'f', 'f', 0, '/tmp/f', 't', 'b')`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("Exec(%q) error = %v", stmt, err)
		}
	}

	if _, err := db.Exec("DELETE FROM directories WHERE id = 'a'"); err != nil {
		t.Fatalf("deleting root directory: %v", err)
	}

	for _, table := range []string{"directories", "files"} {
		var n int
		if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			t.Fatalf("counting %s: %v", table, err)
		}
		if n != 0 {
			t.Errorf("%s has %d rows after cascade, want 0", table, n)
		}
	}
}

func TestSchema_NegativeFileSizeRejected(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	_, err := db.Exec(`INSERT INTO files (id, filename, original_filename, file_size, storage_path, uploaded_at)
		VALUES ('f', 'f', 'f', -1, '/tmp/f', 't')`)
	if err == nil {
		t.Error("Expected check constraint violation for negative file_size, but insert succeeded")
	}
}

// openTestDB opens an in-memory SQLite database with foreign keys enforced.
// The pool is pinned to one connection: every :memory: connection is its own database.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}
