package namespace

import (
	"github.com/warrenhq/warren/internal/identity"
	"github.com/warrenhq/warren/internal/stub"
	"github.com/warrenhq/warren/internal/warrenerr"
)

// SyncNamespace is the deferred-resolution variant. Name derivation returns
// immediately with an unresolved identity; the hash is computed on first
// use of the resolved form.
type SyncNamespace struct {
	name string
	cfg  Config
}

// NewSync constructs a deferred-resolution namespace.
func NewSync(name string, cfg Config) *SyncNamespace {
	return &SyncNamespace{name: name, cfg: cfg}
}

// Name returns the namespace's name.
func (n *SyncNamespace) Name() string {
	return n.name
}

// IDFromName returns an unresolved identity for name. Derivation runs at
// most once, on the first call that needs the resolved form.
func (n *SyncNamespace) IDFromName(name string) *identity.Deferred {
	return identity.NewDeferred(n.name, name)
}

// NewUniqueID mints a fresh unnamed identity. Unique ids carry no name to
// defer over, so the result is already resolved.
func (n *SyncNamespace) NewUniqueID() (*identity.Deferred, error) {
	id, err := identity.NewUnique(n.name)
	if err != nil {
		return nil, err
	}
	return identity.NewResolved(id), nil
}

// IDFromString parses s and verifies namespace ownership. Parsing is
// validation work that cannot be deferred, so the result is already
// resolved.
func (n *SyncNamespace) IDFromString(s string) (*identity.Deferred, error) {
	id, err := identity.Parse(n.name, s)
	if err != nil {
		return nil, err
	}
	return identity.NewResolved(id), nil
}

// Get binds a remote handle to d. The identity must already be resolved:
// binding needs the hex form for request routing, and this variant never
// resolves implicitly.
func (n *SyncNamespace) Get(d *identity.Deferred, opts ...GetOption) (*stub.Stub, error) {
	if d == nil {
		return nil, warrenerr.New(warrenerr.CodeMalformedIdentity, "cannot bind a nil identity")
	}
	id, err := d.Identity()
	if err != nil {
		return nil, err
	}
	eager := Namespace{name: n.name, cfg: n.cfg}
	return eager.Get(id, opts...)
}

// GetByName is unavailable on the deferred variant: it would force a
// resolution the caller never asked for. Use the eager Namespace, or
// Resolve the deferred identity and call Get.
func (n *SyncNamespace) GetByName(string, ...GetOption) (*stub.Stub, error) {
	return nil, &warrenerr.Error{
		Code:      warrenerr.CodeRequiresAsync,
		Message:   "GetByName requires eager resolution; use Namespace or resolve the identity first",
		Namespace: n.name,
	}
}
