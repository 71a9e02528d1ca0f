package storage

import (
	"context"
	"sort"
	"strings"

	"github.com/warrenhq/warren/internal/jsval"
	"github.com/warrenhq/warren/internal/warrenerr"
)

// Put stores value under key, overwriting any prior value.
func (e *Engine) Put(ctx context.Context, key string, value any) (err error) {
	defer e.track("put", &err)()
	return e.ops.put(ctx, key, value)
}

// PutMulti stores every entry or none of them. Validation of all keys and
// all serialized values happens before any write; batches over MaxBatchSize
// are rejected wholesale.
func (e *Engine) PutMulti(ctx context.Context, entries map[string]any) (err error) {
	defer e.track("put_multi", &err)()

	serialized, err := serializeBatch(entries)
	if err != nil {
		return err
	}
	if len(serialized) == 0 {
		return nil
	}
	// One backend transaction guarantees no partial batch becomes visible.
	tx, err := e.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	txOps := ops{q: tx, owner: e.ops.owner, collate: e.ops.collate}
	if err := txOps.putSerialized(ctx, serialized); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes key, reporting whether it existed.
func (e *Engine) Delete(ctx context.Context, key string) (existed bool, err error) {
	defer e.track("delete", &err)()
	return e.ops.delete(ctx, key)
}

// DeleteMulti removes the given keys, reporting how many existed.
// Deleting an absent key is not an error.
func (e *Engine) DeleteMulti(ctx context.Context, keys []string) (deleted int, err error) {
	defer e.track("delete_multi", &err)()
	return e.ops.deleteMulti(ctx, keys)
}

// DeleteAll removes every record this owner holds. Safe on an empty store.
func (e *Engine) DeleteAll(ctx context.Context) (err error) {
	defer e.track("delete_all", &err)()
	return e.ops.deleteAll(ctx)
}

// serializedEntry is a validated key with its encoded value.
type serializedEntry struct {
	key string
	raw string
}

// serializeBatch validates and encodes a put batch up front, so a failure
// on the last entry rejects the whole call with nothing written. Entries
// come back sorted by key for deterministic statement order.
func serializeBatch(entries map[string]any) ([]serializedEntry, error) {
	if len(entries) > MaxBatchSize {
		return nil, warrenerr.Newf(warrenerr.CodeValidation,
			"batch of %d entries exceeds maximum of %d", len(entries), MaxBatchSize)
	}
	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	serialized := make([]serializedEntry, 0, len(entries))
	for _, key := range keys {
		s, err := serializeEntry(key, entries[key])
		if err != nil {
			return nil, err
		}
		serialized = append(serialized, s)
	}
	return serialized, nil
}

func serializeEntry(key string, value any) (serializedEntry, error) {
	if err := validateKey(key); err != nil {
		return serializedEntry{}, err
	}
	raw, err := jsval.Marshal(value)
	if err != nil {
		return serializedEntry{}, err
	}
	if len(raw) > MaxValueSize {
		return serializedEntry{}, &warrenerr.Error{
			Code:    warrenerr.CodeValidation,
			Message: "serialized value exceeds maximum size",
			Key:     truncateForError(key),
		}
	}
	return serializedEntry{key: key, raw: string(raw)}, nil
}

func (o ops) put(ctx context.Context, key string, value any) error {
	s, err := serializeEntry(key, value)
	if err != nil {
		return err
	}
	return o.putSerialized(ctx, []serializedEntry{s})
}

func (o ops) putSerialized(ctx context.Context, entries []serializedEntry) error {
	for _, s := range entries {
		_, err := o.q.Exec(ctx, `
			INSERT INTO object_kv (object_id, key, value)
			VALUES (?, ?, ?)
			ON CONFLICT (object_id, key) DO UPDATE SET value = excluded.value
		`, o.owner, s.key, s.raw)
		if err != nil {
			return err
		}
	}
	return nil
}

func (o ops) delete(ctx context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	affected, err := o.q.Exec(ctx,
		`DELETE FROM object_kv WHERE object_id = ? AND key = ?`,
		o.owner, key)
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (o ops) deleteMulti(ctx context.Context, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	if len(keys) > MaxBatchSize {
		return 0, warrenerr.Newf(warrenerr.CodeValidation,
			"batch of %d keys exceeds maximum of %d", len(keys), MaxBatchSize)
	}
	for _, key := range keys {
		if err := validateKey(key); err != nil {
			return 0, err
		}
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(keys)), ", ")
	args := make([]any, 0, len(keys)+1)
	args = append(args, o.owner)
	for _, key := range keys {
		args = append(args, key)
	}
	affected, err := o.q.Exec(ctx,
		`DELETE FROM object_kv WHERE object_id = ? AND key IN (`+placeholders+`)`,
		args...)
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (o ops) deleteAll(ctx context.Context) error {
	_, err := o.q.Exec(ctx, `DELETE FROM object_kv WHERE object_id = ?`, o.owner)
	return err
}
