package host

import (
	"context"
	"time"

	"github.com/warrenhq/warren/internal/storage"
)

// alarmBatch caps how many due alarms one poll round dispatches.
const alarmBatch = 64

// RunAlarms polls for due alarms and dispatches them until ctx is done.
// Each alarm is claimed (its row deleted) before its handler runs, so a
// firing is delivered at most once; a handler error is logged, not
// retried. Callers run this on its own goroutine.
func (h *Host) RunAlarms(ctx context.Context) {
	ticker := time.NewTicker(h.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.fireDue(ctx)
		}
	}
}

func (h *Host) fireDue(ctx context.Context) {
	due, err := storage.DueAlarms(ctx, h.db, h.now(), alarmBatch)
	if err != nil {
		h.log.Error("alarm poll failed", "error", err)
		return
	}
	for _, alarm := range due {
		if ctx.Err() != nil {
			return
		}
		h.fire(ctx, alarm)
	}
}

func (h *Host) fire(ctx context.Context, alarm storage.DueAlarm) {
	namespace, id, ok := h.ownerNamespace(alarm.ObjectID)
	if !ok {
		// No registered namespace minted this id. Claim it anyway so the
		// runner does not repoll it forever.
		if claimed, err := storage.ClaimAlarm(ctx, h.db, alarm); err != nil {
			h.log.Error("alarm claim failed", "id", alarm.ObjectID, "error", err)
		} else if claimed {
			h.log.Warn("dropped alarm for unregistered namespace", "id", alarm.ObjectID)
		}
		return
	}

	claimed, err := storage.ClaimAlarm(ctx, h.db, alarm)
	if err != nil {
		h.log.Error("alarm claim failed",
			"namespace", namespace, "id", alarm.ObjectID, "error", err)
		return
	}
	if !claimed {
		// Rescheduled or cleared since the poll read it.
		return
	}

	lo, err := h.object(namespace, id)
	if err != nil {
		h.log.Error("alarm object lookup failed",
			"namespace", namespace, "id", alarm.ObjectID, "error", err)
		return
	}
	handler, ok := lo.obj.(AlarmHandler)
	if !ok {
		h.log.Warn("object has no alarm handler",
			"namespace", namespace, "id", alarm.ObjectID)
		return
	}

	err = lo.st.BlockConcurrencyWhile(ctx, func(ctx context.Context) error {
		return handler.Alarm(ctx, lo.st, alarm.At)
	})
	if err != nil {
		h.log.Error("alarm handler failed",
			"namespace", namespace, "id", alarm.ObjectID,
			"scheduled_at", alarm.At, "error", err)
		return
	}
	h.log.Debug("alarm fired",
		"namespace", namespace, "id", alarm.ObjectID, "scheduled_at", alarm.At)
}
