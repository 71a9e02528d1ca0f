// Package backend provides the SQL backing store the object layer persists
// to. It exposes exactly the contract the storage engine consumes: query,
// exec, and transactions, plus a durability barrier. SQLite is the default
// engine; Postgres is available for shared deployments.
package backend

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema_sqlite.sql
var schemaSQLite string

//go:embed schema_postgres.sql
var schemaPostgres string

// Schema version tracking:
// 1 - object_kv + object_alarms + due-time index
const currentSchemaVersion = 1

// Driver names the SQL engine behind a DB.
type Driver string

const (
	// DriverSQLite is the embedded single-node engine.
	DriverSQLite Driver = "sqlite3"
	// DriverPostgres is the shared multi-node engine (via pgx).
	DriverPostgres Driver = "pgx"
)

// DB wraps a database/sql pool with driver-aware placeholder rebinding and
// a durability barrier. It is safe for concurrent use.
type DB struct {
	db     *sql.DB
	driver Driver
}

// OpenSQLite creates or opens a SQLite database at path.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - a single-writer connection pool to avoid SQLITE_BUSY
//
// Safe to call multiple times against the same path.
func OpenSQLite(path string) (*DB, error) {
	db, err := sql.Open(string(DriverSQLite), path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %q: %w", pragma, err)
		}
	}

	b := &DB{db: db, driver: DriverSQLite}
	if err := b.applySchema(schemaSQLite); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

// OpenPostgres opens a Postgres-backed store using the provided DSN and
// applies the schema idempotently.
func OpenPostgres(dsn string) (*DB, error) {
	db, err := sql.Open(string(DriverPostgres), dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	b := &DB{db: db, driver: DriverPostgres}
	if err := b.applySchema(schemaPostgres); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

// Open dispatches on driver name. Recognized: "sqlite3", "pgx".
func Open(driver Driver, dsn string) (*DB, error) {
	switch driver {
	case DriverSQLite:
		return OpenSQLite(dsn)
	case DriverPostgres:
		return OpenPostgres(dsn)
	default:
		return nil, fmt.Errorf("unknown backend driver %q", driver)
	}
}

func (b *DB) applySchema(schema string) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := b.db.Exec(stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}
	q := b.Rebind(`INSERT INTO schema_version (version) VALUES (?) ON CONFLICT (version) DO NOTHING`)
	if _, err := b.db.Exec(q, currentSchemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return nil
}

// Driver returns the engine behind this DB.
func (b *DB) Driver() Driver {
	return b.driver
}

// Rebind translates `?` placeholders into the driver's native form.
// SQLite queries pass through; Postgres queries get $1..$n.
func (b *DB) Rebind(query string) string {
	if b.driver != DriverPostgres {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			fmt.Fprintf(&sb, "$%d", n)
			continue
		}
		sb.WriteRune(c)
	}
	return sb.String()
}

// Query runs a read statement. The query uses `?` placeholders regardless
// of driver.
func (b *DB) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return b.db.QueryContext(ctx, b.Rebind(query), args...)
}

// QueryRow runs a single-row read statement.
func (b *DB) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return b.db.QueryRowContext(ctx, b.Rebind(query), args...)
}

// Exec runs a write statement and reports the number of affected rows.
func (b *DB) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := b.db.ExecContext(ctx, b.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Begin opens a transaction. The caller owns commit/rollback; Tx.Rollback
// after commit is a no-op, so `defer tx.Rollback()` is the expected shape.
func (b *DB) Begin(ctx context.Context) (*Tx, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &Tx{tx: tx, db: b}, nil
}

// Sync is the durability barrier. For SQLite under WAL it forces a
// checkpoint so prior writes reach the main database file; Postgres
// commits are already durable at statement return, so it is a no-op there.
func (b *DB) Sync(ctx context.Context) error {
	if b.driver != DriverSQLite {
		return nil
	}
	if _, err := b.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("wal checkpoint: %w", err)
	}
	return nil
}

// Close closes the underlying pool.
func (b *DB) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Tx is an open backend transaction with the same statement surface as DB.
type Tx struct {
	tx *sql.Tx
	db *DB
}

// Query runs a read statement inside the transaction.
func (t *Tx) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, t.db.Rebind(query), args...)
}

// QueryRow runs a single-row read statement inside the transaction.
func (t *Tx) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.db.Rebind(query), args...)
}

// Exec runs a write statement inside the transaction.
func (t *Tx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := t.tx.ExecContext(ctx, t.db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Commit makes the transaction's writes visible atomically.
func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback discards the transaction's writes. No-op after Commit.
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	return err
}
