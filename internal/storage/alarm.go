package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/warrenhq/warren/internal/backend"
	"github.com/warrenhq/warren/internal/warrenerr"
)

// GetAlarm returns the owner's scheduled wake-up time. ok is false when no
// alarm is set or one was never set; the two cases are indistinguishable.
func (e *Engine) GetAlarm(ctx context.Context) (at time.Time, ok bool, err error) {
	defer e.track("get_alarm", &err)()

	var ms int64
	err = e.db.QueryRow(ctx,
		`SELECT scheduled_at_ms FROM object_alarms WHERE object_id = ?`,
		e.ops.owner).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms), true, nil
}

// SetAlarm schedules the owner's single wake-up at t, silently replacing
// any prior alarm. t must be strictly in the future; one millisecond ahead
// is sufficient.
func (e *Engine) SetAlarm(ctx context.Context, t time.Time) (err error) {
	defer e.track("set_alarm", &err)()

	if !t.After(e.now()) {
		return warrenerr.Newf(warrenerr.CodeAlarmInPast,
			"alarm time %s is not in the future", t.UTC().Format(time.RFC3339Nano))
	}
	_, err = e.db.Exec(ctx, `
		INSERT INTO object_alarms (object_id, scheduled_at_ms)
		VALUES (?, ?)
		ON CONFLICT (object_id) DO UPDATE SET scheduled_at_ms = excluded.scheduled_at_ms
	`, e.ops.owner, t.UnixMilli())
	return err
}

// DeleteAlarm clears the owner's alarm. Idempotent: clearing an absent
// alarm is a no-op.
func (e *Engine) DeleteAlarm(ctx context.Context) (err error) {
	defer e.track("delete_alarm", &err)()

	_, err = e.db.Exec(ctx,
		`DELETE FROM object_alarms WHERE object_id = ?`, e.ops.owner)
	return err
}

// DueAlarm is one fired alarm row, used by the host's alarm runner.
type DueAlarm struct {
	ObjectID string
	At       time.Time
}

// DueAlarms returns up to limit alarms scheduled at or before now, oldest
// first. The runner claims each alarm with ClaimAlarm before dispatching.
func DueAlarms(ctx context.Context, db *backend.DB, now time.Time, limit int) ([]DueAlarm, error) {
	rows, err := db.Query(ctx, `
		SELECT object_id, scheduled_at_ms FROM object_alarms
		WHERE scheduled_at_ms <= ?
		ORDER BY scheduled_at_ms
		LIMIT ?
	`, now.UnixMilli(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []DueAlarm
	for rows.Next() {
		var objectID string
		var ms int64
		if err := rows.Scan(&objectID, &ms); err != nil {
			return nil, err
		}
		due = append(due, DueAlarm{ObjectID: objectID, At: time.UnixMilli(ms)})
	}
	return due, rows.Err()
}

// ClaimAlarm atomically removes the alarm row so a firing is delivered at
// most once even with several runners polling. It returns false when
// another runner (or a concurrent DeleteAlarm) got there first, or when
// the alarm was rescheduled since it was read.
func ClaimAlarm(ctx context.Context, db *backend.DB, alarm DueAlarm) (bool, error) {
	affected, err := db.Exec(ctx, `
		DELETE FROM object_alarms
		WHERE object_id = ? AND scheduled_at_ms = ?
	`, alarm.ObjectID, alarm.At.UnixMilli())
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
