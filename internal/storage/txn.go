package storage

import (
	"context"

	"github.com/warrenhq/warren/internal/warrenerr"
)

// Txn is the storage surface inside one backend transaction. Reads observe
// the transaction's own uncommitted writes; nothing becomes visible outside
// until the enclosing Update commits.
type Txn struct {
	ops ops
}

// Update runs fn inside a backend transaction.
//
// If fn returns an error, every write made through the Txn is rolled back
// and the store reverts to its exact pre-transaction state; the returned
// error wraps fn's error under CodeTxnFailure. If fn returns nil, all
// writes commit atomically.
func (e *Engine) Update(ctx context.Context, fn func(tx *Txn) error) (err error) {
	defer e.track("update", &err)()

	tx, err := e.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback() // no-op if committed

	txn := &Txn{ops: ops{q: tx, owner: e.ops.owner, collate: e.ops.collate}}
	if err := fn(txn); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return warrenerr.Wrap(warrenerr.CodeTxnFailure, "rollback failed: "+rbErr.Error(), err)
		}
		return warrenerr.Wrap(warrenerr.CodeTxnFailure, "transaction closure failed", err)
	}
	return tx.Commit()
}

// RunInUpdate is Update with a typed closure result. The result reaches the
// caller unchanged; on failure the zero value is returned alongside the
// transaction error.
func RunInUpdate[T any](ctx context.Context, e *Engine, fn func(tx *Txn) (T, error)) (T, error) {
	var result T
	err := e.Update(ctx, func(tx *Txn) error {
		var fnErr error
		result, fnErr = fn(tx)
		return fnErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// Get returns the value under key as the transaction observes it,
// including this transaction's own uncommitted writes.
func (t *Txn) Get(ctx context.Context, key string) (any, bool, error) {
	return t.ops.get(ctx, key)
}

// GetMulti is the batched Get inside the transaction.
func (t *Txn) GetMulti(ctx context.Context, keys []string) ([]Entry, error) {
	return t.ops.getMulti(ctx, keys)
}

// Put stores value under key within the transaction.
func (t *Txn) Put(ctx context.Context, key string, value any) error {
	return t.ops.put(ctx, key, value)
}

// PutMulti stores every entry within the transaction. Validation still
// happens before any statement runs.
func (t *Txn) PutMulti(ctx context.Context, entries map[string]any) error {
	serialized, err := serializeBatch(entries)
	if err != nil {
		return err
	}
	return t.ops.putSerialized(ctx, serialized)
}

// Delete removes key within the transaction, reporting prior existence.
func (t *Txn) Delete(ctx context.Context, key string) (bool, error) {
	return t.ops.delete(ctx, key)
}

// DeleteMulti removes keys within the transaction.
func (t *Txn) DeleteMulti(ctx context.Context, keys []string) (int, error) {
	return t.ops.deleteMulti(ctx, keys)
}

// DeleteAll removes all of the owner's rows within the transaction.
func (t *Txn) DeleteAll(ctx context.Context) error {
	return t.ops.deleteAll(ctx)
}

// List queries the owner's key range within the transaction.
func (t *Txn) List(ctx context.Context, opts ListOptions) ([]Entry, error) {
	return t.ops.list(ctx, opts)
}
