package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := Open(ctx, Config{
		Path:        filepath.Join(t.TempDir(), "hearth.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup
	return db
}

func TestOpen_CreatesFile(t *testing.T) {
	db := openTestDB(t)

	if _, err := os.Stat(db.Path()); err != nil {
		t.Errorf("database file missing: %v", err)
	}
}

func TestOpen_CreatesNestedDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state", "nested", "hearth.db")

	db, err := Open(context.Background(), Config{Path: dbPath, WALMode: true, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // test cleanup

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file missing: %v", err)
	}
	if got := db.Path(); got != dbPath {
		t.Errorf("Path() = %q, want %q", got, dbPath)
	}
}

func TestOpen_WithoutWAL(t *testing.T) {
	ctx := context.Background()

	db, err := Open(ctx, Config{
		Path:        filepath.Join(t.TempDir(), "hearth.db"),
		WALMode:     false,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // test cleanup

	if err := db.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestClose_ZeroValueSafe(t *testing.T) {
	db := openTestDB(t)
	if err := db.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	empty := &DB{}
	if err := empty.Close(); err != nil {
		t.Errorf("Close() on zero DB error = %v", err)
	}
}

func TestExecContext(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx,
		"CREATE TABLE scratch (id INTEGER PRIMARY KEY, label TEXT NOT NULL)"); err != nil {
		t.Fatalf("ExecContext() create error = %v", err)
	}

	result, err := db.ExecContext(ctx,
		"INSERT INTO scratch (label) VALUES (?)", "Kitchen_Light")
	if err != nil {
		t.Fatalf("ExecContext() insert error = %v", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		t.Fatalf("RowsAffected() error = %v", err)
	}
	if n != 1 {
		t.Errorf("RowsAffected() = %d, want 1", n)
	}

	var label string
	if err := db.QueryRowContext(ctx,
		"SELECT label FROM scratch WHERE id = 1").Scan(&label); err != nil {
		t.Fatalf("QueryRowContext() error = %v", err)
	}
	if label != "Kitchen_Light" {
		t.Errorf("label = %q, want %q", label, "Kitchen_Light")
	}
}

func TestExecContext_InvalidSQL(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.ExecContext(context.Background(), "NOT VALID SQL"); err == nil {
		t.Error("ExecContext() expected error for invalid SQL")
	}
}

func TestBeginTx_Commit(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx,
		"CREATE TABLE scratch (id INTEGER PRIMARY KEY, label TEXT)"); err != nil {
		t.Fatalf("ExecContext() error = %v", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx() error = %v", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO scratch (label) VALUES (?)", "Hallway_Motion"); err != nil {
		t.Fatalf("tx.ExecContext() error = %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM scratch").Scan(&count); err != nil {
		t.Fatalf("QueryRowContext() error = %v", err)
	}
	if count != 1 {
		t.Errorf("row count after commit = %d, want 1", count)
	}
}

func TestBeginTx_Rollback(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx,
		"CREATE TABLE scratch (id INTEGER PRIMARY KEY, label TEXT)"); err != nil {
		t.Fatalf("ExecContext() error = %v", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx() error = %v", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO scratch (label) VALUES (?)", "Hallway_Motion"); err != nil {
		t.Fatalf("tx.ExecContext() error = %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM scratch").Scan(&count); err != nil {
		t.Fatalf("QueryRowContext() error = %v", err)
	}
	if count != 0 {
		t.Errorf("row count after rollback = %d, want 0", count)
	}
}

func TestStats(t *testing.T) {
	db := openTestDB(t)

	// The pool is pinned to one connection for SQLite's single writer.
	if got := db.Stats().MaxOpenConnections; got != 1 {
		t.Errorf("MaxOpenConnections = %d, want 1", got)
	}
}
