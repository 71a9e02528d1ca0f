package storage

import (
	"context"

	"github.com/warrenhq/warren/internal/jsval"
)

// ListOptions selects and orders a key range.
type ListOptions struct {
	// Prefix filters to keys beginning with the given string.
	Prefix string
	// Start is the inclusive lower bound, in the same lexicographic order
	// as the listing.
	Start string
	// End is the exclusive upper bound (half-open range).
	End string
	// Limit truncates the result after filtering and ordering. Zero means
	// "as many as allowed"; values above MaxListLimit are capped.
	Limit int
	// Reverse flips the default ascending lexicographic order.
	Reverse bool
}

// List returns this owner's entries in lexicographic key order, subject to
// opts. No List call ever returns more than MaxListLimit entries.
func (e *Engine) List(ctx context.Context, opts ListOptions) (entries []Entry, err error) {
	defer e.track("list", &err)()
	return e.ops.list(ctx, opts)
}

func (o ops) list(ctx context.Context, opts ListOptions) ([]Entry, error) {
	limit := opts.Limit
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}

	query := `SELECT key, value FROM object_kv WHERE object_id = ?`
	args := []any{o.owner}

	if opts.Prefix != "" {
		query += ` AND key >= ?`
		args = append(args, opts.Prefix)
		if upper := afterPrefix(opts.Prefix); upper != "" {
			query += ` AND key < ?`
			args = append(args, upper)
		}
	}
	if opts.Start != "" {
		query += ` AND key >= ?`
		args = append(args, opts.Start)
	}
	if opts.End != "" {
		query += ` AND key < ?`
		args = append(args, opts.End)
	}

	query += ` ORDER BY key` + o.collate
	if opts.Reverse {
		query += ` DESC`
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := o.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, err
		}
		v, err := jsval.Unmarshal([]byte(raw))
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Key: key, Value: v})
	}
	return entries, rows.Err()
}

// afterPrefix returns the smallest string greater than every string with
// the given prefix, or "" when no such bound exists (all-0xff prefixes).
func afterPrefix(prefix string) string {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1])
		}
	}
	return ""
}
