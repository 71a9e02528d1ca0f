package storage

import (
	"context"
	"testing"
	"time"

	"github.com/warrenhq/warren/internal/identity"
	"github.com/warrenhq/warren/internal/warrenerr"
)

// fixedClock pins "now" so boundary assertions are exact.
var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newAlarmEngine(t *testing.T) *Engine {
	t.Helper()
	return newTestEngine(t, WithClock(func() time.Time { return fixedNow }))
}

func TestGetAlarm_NoneSet(t *testing.T) {
	e := newAlarmEngine(t)

	_, ok, err := e.GetAlarm(context.Background())
	if err != nil {
		t.Fatalf("GetAlarm() failed: %v", err)
	}
	if ok {
		t.Error("GetAlarm() reported an alarm that was never set")
	}
}

func TestSetAlarm_StrictlyFutureRequired(t *testing.T) {
	e := newAlarmEngine(t)
	ctx := context.Background()

	// Now and one millisecond in the past are rejected.
	for _, at := range []time.Time{fixedNow, fixedNow.Add(-time.Millisecond)} {
		err := e.SetAlarm(ctx, at)
		if warrenerr.CodeOf(err) != warrenerr.CodeAlarmInPast {
			t.Errorf("SetAlarm(%s) error = %v, want ALARM_IN_PAST", at, err)
		}
	}

	// One millisecond ahead is sufficient.
	if err := e.SetAlarm(ctx, fixedNow.Add(time.Millisecond)); err != nil {
		t.Fatalf("SetAlarm(now+1ms) failed: %v", err)
	}
}

func TestSetAlarm_ReplacesPriorAlarm(t *testing.T) {
	e := newAlarmEngine(t)
	ctx := context.Background()

	t1 := fixedNow.Add(time.Hour)
	t2 := fixedNow.Add(2 * time.Hour)

	if err := e.SetAlarm(ctx, t1); err != nil {
		t.Fatalf("SetAlarm(t1) failed: %v", err)
	}
	if err := e.SetAlarm(ctx, t2); err != nil {
		t.Fatalf("SetAlarm(t2) failed: %v", err)
	}

	at, ok, err := e.GetAlarm(ctx)
	if err != nil {
		t.Fatalf("GetAlarm() failed: %v", err)
	}
	if !ok {
		t.Fatal("GetAlarm() reported none set")
	}
	if !at.Equal(t2) {
		t.Errorf("GetAlarm() = %s, want %s (only the latest alarm survives)", at, t2)
	}
}

func TestDeleteAlarm_Idempotent(t *testing.T) {
	e := newAlarmEngine(t)
	ctx := context.Background()

	// Deleting with none set is a no-op.
	if err := e.DeleteAlarm(ctx); err != nil {
		t.Fatalf("DeleteAlarm() with none set failed: %v", err)
	}

	if err := e.SetAlarm(ctx, fixedNow.Add(time.Hour)); err != nil {
		t.Fatalf("SetAlarm() failed: %v", err)
	}
	if err := e.DeleteAlarm(ctx); err != nil {
		t.Fatalf("DeleteAlarm() failed: %v", err)
	}

	_, ok, err := e.GetAlarm(ctx)
	if err != nil {
		t.Fatalf("GetAlarm() failed: %v", err)
	}
	if ok {
		t.Error("alarm still present after DeleteAlarm()")
	}
}

func TestDueAlarms_ReturnsOldestFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	clock := func() time.Time { return fixedNow }

	early := New(db, identity.DeriveFromName("rooms", "early"), WithClock(clock))
	late := New(db, identity.DeriveFromName("rooms", "late"), WithClock(clock))
	future := New(db, identity.DeriveFromName("rooms", "future"), WithClock(clock))

	if err := early.SetAlarm(ctx, fixedNow.Add(time.Minute)); err != nil {
		t.Fatalf("SetAlarm() failed: %v", err)
	}
	if err := late.SetAlarm(ctx, fixedNow.Add(2*time.Minute)); err != nil {
		t.Fatalf("SetAlarm() failed: %v", err)
	}
	if err := future.SetAlarm(ctx, fixedNow.Add(time.Hour)); err != nil {
		t.Fatalf("SetAlarm() failed: %v", err)
	}

	due, err := DueAlarms(ctx, db, fixedNow.Add(5*time.Minute), 10)
	if err != nil {
		t.Fatalf("DueAlarms() failed: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("DueAlarms() = %d alarms, want 2", len(due))
	}
	if due[0].ObjectID != early.Owner().String() {
		t.Errorf("first due alarm = %s, want the earliest", due[0].ObjectID)
	}
}

func TestClaimAlarm_AtMostOnce(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	e := New(db, identity.DeriveFromName("rooms", "lobby"),
		WithClock(func() time.Time { return fixedNow }))
	at := fixedNow.Add(time.Minute)
	if err := e.SetAlarm(ctx, at); err != nil {
		t.Fatalf("SetAlarm() failed: %v", err)
	}

	alarm := DueAlarm{ObjectID: e.Owner().String(), At: at}
	claimed, err := ClaimAlarm(ctx, db, alarm)
	if err != nil {
		t.Fatalf("ClaimAlarm() failed: %v", err)
	}
	if !claimed {
		t.Fatal("first claim should succeed")
	}

	claimed, err = ClaimAlarm(ctx, db, alarm)
	if err != nil {
		t.Fatalf("second ClaimAlarm() failed: %v", err)
	}
	if claimed {
		t.Error("second claim should report already claimed")
	}
}
