package host

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/warrenhq/warren/internal/jsval"
	"github.com/warrenhq/warren/internal/state"
	"github.com/warrenhq/warren/internal/storage"
	"github.com/warrenhq/warren/internal/warrenerr"
)

// KVObject is the built-in object behavior: it exposes the object's store
// and alarm over HTTP. `warren serve` registers it for every configured
// namespace, which makes a warren node usable as a plain durable KV
// service before any custom objects exist.
type KVObject struct{}

// NewKVObject is the Factory for KVObject.
func NewKVObject(*state.State) Object {
	return &KVObject{}
}

func (o *KVObject) Fetch(st *state.State, w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /kv", func(w http.ResponseWriter, r *http.Request) {
		o.list(st, w, r)
	})
	mux.HandleFunc("GET /kv/{key...}", func(w http.ResponseWriter, r *http.Request) {
		o.get(st, w, r)
	})
	mux.HandleFunc("PUT /kv/{key...}", func(w http.ResponseWriter, r *http.Request) {
		o.put(st, w, r)
	})
	mux.HandleFunc("DELETE /kv/{key...}", func(w http.ResponseWriter, r *http.Request) {
		o.delete(st, w, r)
	})
	mux.HandleFunc("GET /alarm", func(w http.ResponseWriter, r *http.Request) {
		o.getAlarm(st, w, r)
	})
	mux.HandleFunc("PUT /alarm", func(w http.ResponseWriter, r *http.Request) {
		o.setAlarm(st, w, r)
	})
	mux.HandleFunc("DELETE /alarm", func(w http.ResponseWriter, r *http.Request) {
		o.deleteAlarm(st, w, r)
	})
	mux.ServeHTTP(w, r)
}

// Alarm clears silently: the built-in object has no behavior to run, but
// claiming keeps operator-set alarms from repolling forever.
func (o *KVObject) Alarm(context.Context, *state.State, time.Time) error {
	return nil
}

func (o *KVObject) get(st *state.State, w http.ResponseWriter, r *http.Request) {
	v, ok, err := st.Storage().Get(r.Context(), r.PathValue("key"))
	if err != nil {
		writeStorageError(w, err)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeValue(w, v)
}

func (o *KVObject) put(st *state.State, w http.ResponseWriter, r *http.Request) {
	var value any
	if err := json.NewDecoder(r.Body).Decode(&value); err != nil {
		writeError(w, http.StatusBadRequest,
			warrenerr.Wrap(warrenerr.CodeValidation, "body must be valid JSON", err))
		return
	}
	if err := st.Storage().Put(r.Context(), r.PathValue("key"), value); err != nil {
		writeStorageError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (o *KVObject) delete(st *state.State, w http.ResponseWriter, r *http.Request) {
	existed, err := st.Storage().Delete(r.Context(), r.PathValue("key"))
	if err != nil {
		writeStorageError(w, err)
		return
	}
	if !existed {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (o *KVObject) list(st *state.State, w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := storage.ListOptions{
		Prefix:  q.Get("prefix"),
		Start:   q.Get("start"),
		End:     q.Get("end"),
		Reverse: q.Get("reverse") == "true",
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest,
				warrenerr.Newf(warrenerr.CodeValidation, "limit: %v", err))
			return
		}
		opts.Limit = limit
	}

	entries, err := st.Storage().List(r.Context(), opts)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	out := make(map[string]any, len(entries))
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		out[e.Key] = e.Value
		keys = append(keys, e.Key)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Keys    []string       `json:"keys"`
		Entries map[string]any `json:"entries"`
	}{Keys: keys, Entries: out})
}

func (o *KVObject) getAlarm(st *state.State, w http.ResponseWriter, r *http.Request) {
	at, ok, err := st.Storage().GetAlarm(r.Context())
	if err != nil {
		writeStorageError(w, err)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		ScheduledAt string `json:"scheduled_at"`
	}{ScheduledAt: at.UTC().Format(time.RFC3339Nano)})
}

func (o *KVObject) setAlarm(st *state.State, w http.ResponseWriter, r *http.Request) {
	var body struct {
		ScheduledAt string `json:"scheduled_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest,
			warrenerr.Wrap(warrenerr.CodeValidation, "body must be valid JSON", err))
		return
	}
	at, err := time.Parse(time.RFC3339, body.ScheduledAt)
	if err != nil {
		writeError(w, http.StatusBadRequest,
			warrenerr.Newf(warrenerr.CodeValidation, "scheduled_at: %v", err))
		return
	}
	if err := st.Storage().SetAlarm(r.Context(), at); err != nil {
		writeStorageError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (o *KVObject) deleteAlarm(st *state.State, w http.ResponseWriter, r *http.Request) {
	if err := st.Storage().DeleteAlarm(r.Context()); err != nil {
		writeStorageError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeValue renders a stored value with the store's own serialization so
// reads reproduce exactly what a later Get would decode.
func writeValue(w http.ResponseWriter, v any) {
	data, err := jsval.Marshal(v)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

// writeStorageError maps storage error codes onto HTTP statuses.
func writeStorageError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch warrenerr.CodeOf(err) {
	case warrenerr.CodeValidation, warrenerr.CodeAlarmInPast:
		status = http.StatusBadRequest
	}
	writeError(w, status, err)
}
