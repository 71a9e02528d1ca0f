// Package host is the owning-node runtime: it routes forwarded requests to
// live objects, constructs per-object state lazily, and fires alarms.
package host

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/warrenhq/warren/internal/backend"
	"github.com/warrenhq/warren/internal/identity"
	"github.com/warrenhq/warren/internal/state"
	"github.com/warrenhq/warren/internal/storage"
	"github.com/warrenhq/warren/internal/warrenerr"
)

// Object is one live object's behavior. The host guarantees that calls to
// a single object never overlap; distinct objects run concurrently.
type Object interface {
	// Fetch handles one forwarded request. r.URL carries only the
	// object-relative path and query.
	Fetch(st *state.State, w http.ResponseWriter, r *http.Request)
}

// AlarmHandler is implemented by objects that respond to alarms. Objects
// without it have their due alarms cleared and dropped.
type AlarmHandler interface {
	Alarm(ctx context.Context, st *state.State, scheduledAt time.Time) error
}

// Factory constructs the object behavior for one identity. Called at most
// once per identity per host lifetime.
type Factory func(st *state.State) Object

// Host owns the live-object table for one node.
type Host struct {
	db      *backend.DB
	log     *slog.Logger
	metrics *storage.Metrics
	poll    time.Duration
	now     func() time.Time

	mu        sync.Mutex
	factories map[string]Factory
	live      map[string]*liveObject
}

type liveObject struct {
	namespace string
	st        *state.State
	obj       Object
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithLogger sets the host logger. Defaults to slog.Default.
func WithLogger(log *slog.Logger) HostOption {
	return func(h *Host) { h.log = log }
}

// WithMetrics instruments every object's storage engine.
func WithMetrics(m *storage.Metrics) HostOption {
	return func(h *Host) { h.metrics = m }
}

// WithPollInterval sets the alarm poll cadence. Defaults to one second.
func WithPollInterval(d time.Duration) HostOption {
	return func(h *Host) { h.poll = d }
}

// WithClock overrides the alarm clock. Tests only.
func WithClock(now func() time.Time) HostOption {
	return func(h *Host) { h.now = now }
}

// New builds a host over db.
func New(db *backend.DB, opts ...HostOption) *Host {
	h := &Host{
		db:        db,
		log:       slog.Default(),
		poll:      time.Second,
		now:       time.Now,
		factories: make(map[string]Factory),
		live:      make(map[string]*liveObject),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register binds a namespace name to its object factory. Registrations
// happen before the host starts serving; later calls replace the factory
// for new objects only.
func (h *Host) Register(namespace string, factory Factory) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.factories[namespace] = factory
}

// object returns the live object for id, constructing it on first use.
func (h *Host) object(namespace string, id identity.Identity) (*liveObject, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := id.String()
	if lo, ok := h.live[key]; ok {
		return lo, nil
	}
	factory, ok := h.factories[namespace]
	if !ok {
		return nil, warrenerr.Newf(warrenerr.CodeValidation,
			"namespace %q is not registered", namespace)
	}
	var engineOpts []storage.Option
	if h.metrics != nil {
		engineOpts = append(engineOpts, storage.WithMetrics(h.metrics))
	}
	engineOpts = append(engineOpts, storage.WithClock(h.now))
	st := state.New(id, storage.New(h.db, id, engineOpts...))
	lo := &liveObject{namespace: namespace, st: st, obj: factory(st)}
	h.live[key] = lo
	h.log.Debug("object created", "namespace", namespace, "id", key)
	return lo, nil
}

// ownerNamespace finds which registered namespace minted the raw id, using
// the id's embedded namespace check. Returns ok=false when no registered
// namespace matches.
func (h *Host) ownerNamespace(rawID string) (string, identity.Identity, bool) {
	h.mu.Lock()
	names := make([]string, 0, len(h.factories))
	for name := range h.factories {
		names = append(names, name)
	}
	h.mu.Unlock()

	for _, name := range names {
		if id, err := identity.Parse(name, rawID); err == nil {
			return name, id, true
		}
	}
	return "", identity.Identity{}, false
}

// Handler returns the forwarding endpoint: {METHOD} /do/{ns}/{id}/{path}.
func (h *Host) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/do/{ns}/{id}", h.serveObject)
	mux.HandleFunc("/do/{ns}/{id}/{rest...}", h.serveObject)
	return mux
}

func (h *Host) serveObject(w http.ResponseWriter, r *http.Request) {
	namespace := r.PathValue("ns")

	h.mu.Lock()
	_, registered := h.factories[namespace]
	h.mu.Unlock()
	if !registered {
		writeError(w, http.StatusNotFound, warrenerr.Newf(warrenerr.CodeValidation,
			"namespace %q is not registered", namespace))
		return
	}

	id, err := identity.Parse(namespace, r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	lo, err := h.object(namespace, id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	// The object sees only its own path space.
	inner := r.Clone(r.Context())
	inner.URL.Path = "/" + r.PathValue("rest")
	inner.URL.RawPath = ""

	err = lo.st.BlockConcurrencyWhile(r.Context(), func(context.Context) error {
		lo.obj.Fetch(lo.st, w, inner)
		return nil
	})
	if err != nil {
		// The gate refused before dispatch; nothing was written yet.
		writeError(w, http.StatusServiceUnavailable, err)
	}
}

// Shutdown drains the background work of every live object.
func (h *Host) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	objs := make([]*liveObject, 0, len(h.live))
	for _, lo := range h.live {
		objs = append(objs, lo)
	}
	h.mu.Unlock()

	var firstErr error
	for _, lo := range objs {
		if err := lo.st.Drain(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type errorBody struct {
	Code    warrenerr.Code `json:"code"`
	Message string         `json:"message"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	body := errorBody{Code: warrenerr.CodeOf(err), Message: err.Error()}
	var werr *warrenerr.Error
	if errors.As(err, &werr) {
		body.Message = werr.Message
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
