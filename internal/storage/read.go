package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/warrenhq/warren/internal/jsval"
	"github.com/warrenhq/warren/internal/warrenerr"
)

// ops carries the statement surface and owner scope shared by the engine
// and its transactions. All reads and writes go through here.
type ops struct {
	q       querier
	owner   string
	collate string
}

// Get returns the value stored under key. The second return is false when
// the key was never written, was deleted, or the owner has no rows at all.
func (e *Engine) Get(ctx context.Context, key string) (v any, ok bool, err error) {
	defer e.track("get", &err)()
	return e.ops.get(ctx, key)
}

// GetMulti returns the present keys among keys, ordered by input position.
// Absent keys are simply missing from the result. An empty input returns
// an empty result without touching the backend.
func (e *Engine) GetMulti(ctx context.Context, keys []string) (entries []Entry, err error) {
	defer e.track("get_multi", &err)()
	return e.ops.getMulti(ctx, keys)
}

func (o ops) get(ctx context.Context, key string) (any, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}
	var raw string
	err := o.q.QueryRow(ctx,
		`SELECT value FROM object_kv WHERE object_id = ? AND key = ?`,
		o.owner, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	v, err := jsval.Unmarshal([]byte(raw))
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (o ops) getMulti(ctx context.Context, keys []string) ([]Entry, error) {
	if len(keys) == 0 {
		return []Entry{}, nil
	}
	if len(keys) > MaxBatchSize {
		return nil, warrenerr.Newf(warrenerr.CodeValidation,
			"batch of %d keys exceeds maximum of %d", len(keys), MaxBatchSize)
	}
	for _, key := range keys {
		if err := validateKey(key); err != nil {
			return nil, err
		}
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(keys)), ", ")
	args := make([]any, 0, len(keys)+1)
	args = append(args, o.owner)
	for _, key := range keys {
		args = append(args, key)
	}
	rows, err := o.q.Query(ctx,
		`SELECT key, value FROM object_kv WHERE object_id = ? AND key IN (`+placeholders+`)`,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := make(map[string]any, len(keys))
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, err
		}
		v, err := jsval.Unmarshal([]byte(raw))
		if err != nil {
			return nil, err
		}
		found[key] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Input order, duplicates collapsed onto their first occurrence.
	entries := make([]Entry, 0, len(found))
	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		if seen[key] {
			continue
		}
		seen[key] = true
		if v, ok := found[key]; ok {
			entries = append(entries, Entry{Key: key, Value: v})
		}
	}
	return entries, nil
}
