package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenSQLite_CreatesDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
	if db.Driver() != DriverSQLite {
		t.Errorf("Driver() = %q, want %q", db.Driver(), DriverSQLite)
	}
}

func TestOpenSQLite_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		db, err := OpenSQLite(path)
		if err != nil {
			t.Fatalf("OpenSQLite() iteration %d failed: %v", i, err)
		}
		db.Close()
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open("mysql", "dsn"); err == nil {
		t.Fatal("Open() with unknown driver should fail")
	}
}

func TestExecAndQuery(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	affected, err := db.Exec(ctx,
		`INSERT INTO object_kv (object_id, key, value) VALUES (?, ?, ?)`,
		"obj1", "k", `"v"`)
	if err != nil {
		t.Fatalf("Exec() failed: %v", err)
	}
	if affected != 1 {
		t.Errorf("Exec() affected = %d, want 1", affected)
	}

	var value string
	err = db.QueryRow(ctx,
		`SELECT value FROM object_kv WHERE object_id = ? AND key = ?`,
		"obj1", "k").Scan(&value)
	if err != nil {
		t.Fatalf("QueryRow() failed: %v", err)
	}
	if value != `"v"` {
		t.Errorf("value = %q, want %q", value, `"v"`)
	}
}

func TestTx_RollbackDiscardsWrites(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() failed: %v", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO object_kv (object_id, key, value) VALUES (?, ?, ?)`,
		"obj1", "k", `"v"`); err != nil {
		t.Fatalf("tx Exec() failed: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback() failed: %v", err)
	}

	var count int
	if err := db.QueryRow(ctx, `SELECT COUNT(*) FROM object_kv`).Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d after rollback, want 0", count)
	}
}

func TestTx_RollbackAfterCommitIsNoop(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() failed: %v", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO object_kv (object_id, key, value) VALUES (?, ?, ?)`,
		"obj1", "k", `"v"`); err != nil {
		t.Fatalf("tx Exec() failed: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Errorf("Rollback() after Commit() = %v, want nil", err)
	}
}

func TestRebind(t *testing.T) {
	sqlite := &DB{driver: DriverSQLite}
	pg := &DB{driver: DriverPostgres}

	q := `SELECT value FROM object_kv WHERE object_id = ? AND key = ?`
	if got := sqlite.Rebind(q); got != q {
		t.Errorf("sqlite Rebind changed query: %q", got)
	}
	want := `SELECT value FROM object_kv WHERE object_id = $1 AND key = $2`
	if got := pg.Rebind(q); got != want {
		t.Errorf("pg Rebind = %q, want %q", got, want)
	}
}

func TestSync_SQLite(t *testing.T) {
	db := openTestDB(t)
	if err := db.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}
}
