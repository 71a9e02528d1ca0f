// Package storage implements the per-object transactional key-value store.
//
// An Engine is scoped to exactly one owning identity: every SQL statement
// it issues is parameterized by the owner's raw identifier, so two objects
// can hold the same key without observing each other even in a shared
// backing database.
package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/warrenhq/warren/internal/backend"
	"github.com/warrenhq/warren/internal/identity"
	"github.com/warrenhq/warren/internal/warrenerr"
)

// Enforced limits. These are contract values, not tuning knobs: callers
// depend on over-limit operations being rejected before any write lands.
const (
	// MaxKeySize is the largest key in UTF-8 bytes.
	MaxKeySize = 2048
	// MaxValueSize is the largest serialized value in bytes.
	MaxValueSize = 131072
	// MaxBatchSize is the most entries a single batched call may carry.
	MaxBatchSize = 128
	// MaxListLimit is the most entries one List call returns. Limits above
	// it are capped, not rejected.
	MaxListLimit = 1000
)

// Entry is one key/value pair in an ordered result.
type Entry struct {
	Key   string
	Value any
}

// querier is the statement surface shared by backend.DB and backend.Tx.
type querier interface {
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) *sql.Row
	Exec(ctx context.Context, query string, args ...any) (int64, error)
}

// Engine is the storage handle for one object.
type Engine struct {
	db      *backend.DB
	owner   identity.Identity
	ops     ops
	metrics *Metrics
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics attaches per-operation instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides the alarm clock. Tests only.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New binds a storage engine to the given owner. The owner must be a
// resolved identity.
func New(db *backend.DB, owner identity.Identity, opts ...Option) *Engine {
	e := &Engine{
		db:    db,
		owner: owner,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.ops = ops{q: db, owner: owner.String(), collate: collateFor(db)}
	return e
}

// Owner returns the identity this engine is scoped to.
func (e *Engine) Owner() identity.Identity {
	return e.owner
}

// Sync is the durability barrier: once it returns, writes issued before it
// are visible to subsequent reads and have reached stable storage as far
// as the backend supports.
func (e *Engine) Sync(ctx context.Context) (err error) {
	defer e.track("sync", &err)()
	return e.db.Sync(ctx)
}

// track wraps an operation with metrics when configured. The returned
// function must be deferred; err must point at the named return.
func (e *Engine) track(op string, err *error) func() {
	if e.metrics == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		e.metrics.observe(op, time.Since(start), *err)
	}
}

// collateFor picks the ORDER BY collation that gives bytewise key order.
// SQLite's default BINARY collation already is; Postgres needs "C".
func collateFor(db *backend.DB) string {
	if db.Driver() == backend.DriverPostgres {
		return ` COLLATE "C"`
	}
	return ""
}

// validateKey enforces the key contract: non-empty, at most MaxKeySize
// UTF-8 bytes. The byte length is what counts, so multi-byte characters
// hit the limit sooner than their character count suggests.
func validateKey(key string) error {
	if key == "" {
		return warrenerr.New(warrenerr.CodeValidation, "key must not be empty")
	}
	if len(key) > MaxKeySize {
		return &warrenerr.Error{
			Code:    warrenerr.CodeValidation,
			Message: "key exceeds maximum size",
			Key:     truncateForError(key),
		}
	}
	return nil
}

// truncateForError keeps oversized keys from flooding error messages.
func truncateForError(key string) string {
	const max = 64
	if len(key) <= max {
		return key
	}
	return key[:max] + "..."
}
