// Package namespace mints object identities and binds remote handles.
//
// A namespace scopes every identity it creates: the same object name under
// two namespaces yields two unrelated identities, and handles can only be
// bound to identities the namespace itself minted.
//
// Two variants share the contract surface. Namespace resolves identities
// eagerly. SyncNamespace (sync.go) defers derivation and is for callers
// that must hand out identities without blocking on resolution.
package namespace

import (
	"net/http"
	"time"

	"github.com/warrenhq/warren/internal/identity"
	"github.com/warrenhq/warren/internal/stub"
	"github.com/warrenhq/warren/internal/warrenerr"
)

// Config is the per-namespace forwarding configuration.
type Config struct {
	// BackendURL is the owning-node endpoint prefix requests forward to.
	BackendURL string
	// RequestTimeout caps each forwarded call; zero means
	// stub.DefaultRequestTimeout (30s).
	RequestTimeout time.Duration
	// Client overrides the forwarding HTTP client. Nil means
	// http.DefaultClient.
	Client *http.Client
}

// Namespace is the eager-resolution variant: every identity it returns is
// fully resolved.
type Namespace struct {
	name string
	cfg  Config
}

// New constructs a namespace. One per logical object type, held for the
// process lifetime.
func New(name string, cfg Config) *Namespace {
	return &Namespace{name: name, cfg: cfg}
}

// Name returns the namespace's name.
func (n *Namespace) Name() string {
	return n.name
}

// IDFromName deterministically derives the identity for name. The same
// name always maps to the same identity within this namespace.
func (n *Namespace) IDFromName(name string) identity.Identity {
	return identity.DeriveFromName(n.name, name)
}

// NewUniqueID mints a fresh unnamed identity.
func (n *Namespace) NewUniqueID() (identity.Identity, error) {
	return identity.NewUnique(n.name)
}

// IDFromString parses s and verifies it was minted under this namespace.
func (n *Namespace) IDFromString(s string) (identity.Identity, error) {
	return identity.Parse(n.name, s)
}

// GetOption adjusts handle binding.
type GetOption func(*getOptions)

type getOptions struct {
	locationHint string
}

// WithLocationHint attaches an advisory placement hint. The hint is
// forwarded to the control plane; binding never acts on it locally.
func WithLocationHint(hint string) GetOption {
	return func(o *getOptions) { o.locationHint = hint }
}

// Get binds a remote handle to a resolved identity minted by this
// namespace.
func (n *Namespace) Get(id identity.Identity, opts ...GetOption) (*stub.Stub, error) {
	if id.IsZero() {
		return nil, warrenerr.New(warrenerr.CodeMalformedIdentity, "cannot bind the zero identity")
	}
	if id.Namespace() != n.name {
		return nil, &warrenerr.Error{
			Code:      warrenerr.CodeForeignNamespace,
			Message:   "identity belongs to namespace " + id.Namespace(),
			Namespace: n.name,
		}
	}
	var o getOptions
	for _, opt := range opts {
		opt(&o)
	}
	return stub.New(id, stub.Config{
		BackendURL:   n.cfg.BackendURL,
		Timeout:      n.cfg.RequestTimeout,
		Client:       n.cfg.Client,
		LocationHint: o.locationHint,
	}), nil
}

// GetByName resolves name and binds a handle in one step.
func (n *Namespace) GetByName(name string, opts ...GetOption) (*stub.Stub, error) {
	return n.Get(n.IDFromName(name), opts...)
}
