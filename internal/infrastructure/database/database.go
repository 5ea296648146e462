package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	// dirPerm is the mode for a freshly created database directory.
	dirPerm = 0750

	// filePerm restricts the database file to its owner. Managed
	// definitions can carry broker credentials in item metadata.
	filePerm = 0600

	// openTimeout bounds the connectivity probe during Open.
	openTimeout = 5 * time.Second

	// idleLifetime is how long an idle connection is kept before the
	// pool recycles it.
	idleLifetime = 30 * time.Minute
)

// DB wraps a sql.DB handle on the Hearth ledger database. It layers
// embedded migrations, a health probe and lifecycle management on top
// of the raw connection.
type DB struct {
	*sql.DB
	path string
}

// Config contains database configuration options. These map to the
// database section of the config file.
type Config struct {
	// Path is the filesystem path of the SQLite file. The parent
	// directory is created on first open.
	Path string

	// WALMode enables write-ahead logging so reads proceed while the
	// single writer commits.
	WALMode bool

	// BusyTimeout is how long a statement waits on a locked database,
	// in seconds.
	BusyTimeout int
}

// dsn renders the go-sqlite3 connection string for the config.
// Pragmas ride as query parameters; see the driver's README for the
// accepted keys.
func dsn(cfg Config) string {
	s := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on",
		cfg.Path, cfg.BusyTimeout*1000)
	if cfg.WALMode {
		s += "&_journal_mode=WAL&_synchronous=NORMAL"
	}
	return s
}

// Open connects to the SQLite database, creating the file and its
// directory when missing.
//
// The pool is pinned to a single connection: SQLite allows one writer,
// and funnelling every caller through the same handle keeps busy
// timeouts out of the common path. The connection is verified with a
// ping before the handle is returned, and the file is reduced to owner
// permissions.
//
// Parameters:
//   - ctx: Context bounding the connectivity probe
//   - cfg: Database configuration
//
// Returns:
//   - *DB: Connected database wrapper
//   - error: If the directory, the open, or the probe fails
func Open(ctx context.Context, cfg Config) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), dirPerm); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite3", dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(idleLifetime)

	db := &DB{DB: sqlDB, path: cfg.Path}

	probeCtx, cancel := context.WithTimeout(ctx, openTimeout)
	defer cancel()
	if err := db.PingContext(probeCtx); err != nil {
		sqlDB.Close() //nolint:errcheck // best effort on the error path
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	// The file may not exist until the first write; tighten it when it
	// does.
	_ = os.Chmod(cfg.Path, filePerm) //nolint:errcheck // see above

	return db, nil
}

// Close releases the underlying connection. Safe on a zero DB.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Path returns the filesystem path of the database file.
func (db *DB) Path() string {
	return db.path
}

// HealthCheck verifies the database answers queries. It feeds the
// /health endpoint's database probe.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil when healthy
func (db *DB) HealthCheck(ctx context.Context) error {
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Stats returns connection pool statistics for monitoring.
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// ExecContext executes a statement that returns no rows, wrapping
// driver errors with context.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - query: SQL with ? placeholders
//   - args: Placeholder arguments
//
// Returns:
//   - sql.Result: LastInsertId and RowsAffected
//   - error: If execution fails
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	result, err := db.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	return result, nil
}

// QueryRowContext executes a query expected to return at most one row.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.DB.QueryRowContext(ctx, query, args...)
}

// BeginTx starts a transaction. Use one whenever a change spans
// multiple rows or tables.
//
// Example:
//
//	tx, err := db.BeginTx(ctx, nil)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback() // no-op once committed
//
//	// ... statements on tx ...
//
//	return tx.Commit()
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	tx, err := db.DB.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	return tx, nil
}
