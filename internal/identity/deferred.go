package identity

import (
	"sync"
	"sync/atomic"

	"github.com/warrenhq/warren/internal/warrenerr"
)

// Deferred is an identity whose string form is computed lazily.
//
// The synchronous namespace hands these out from IDFromName without paying
// for derivation up front. The first caller of Resolve triggers the
// computation; concurrent callers share that single computation (sync.Once)
// and all converge on the same value. Accessors that need the resolved
// string before Resolve has completed fail with CodeNotResolved.
type Deferred struct {
	namespace string
	name      string

	once     sync.Once
	compute  func() (Identity, error)
	resolved atomic.Pointer[Identity]
	failure  atomic.Pointer[error]
}

// NewDeferred creates a pending deferred identity for (namespace, name).
func NewDeferred(namespace, name string) *Deferred {
	d := &Deferred{namespace: namespace, name: name}
	d.compute = func() (Identity, error) {
		return DeriveFromName(namespace, name), nil
	}
	return d
}

// NewResolved wraps an already-resolved identity in a Deferred. Used for
// unique and parsed identities in the synchronous namespace, which are
// never pending.
func NewResolved(id Identity) *Deferred {
	d := &Deferred{namespace: id.namespace, name: id.name}
	d.compute = func() (Identity, error) { return id, nil }
	return d.mustResolve()
}

func (d *Deferred) mustResolve() *Deferred {
	_, _ = d.Resolve()
	return d
}

// Name returns the object name, which is known before resolution.
func (d *Deferred) Name() (string, bool) {
	return d.name, d.name != ""
}

// Namespace returns the minting namespace's name.
func (d *Deferred) Namespace() string {
	return d.namespace
}

// Resolve computes the identity, memoizing the result. Safe for concurrent
// use: exactly one computation runs regardless of caller count.
func (d *Deferred) Resolve() (Identity, error) {
	d.once.Do(func() {
		id, err := d.compute()
		if err != nil {
			d.failure.Store(&err)
			return
		}
		d.resolved.Store(&id)
	})
	if errp := d.failure.Load(); errp != nil {
		return Identity{}, *errp
	}
	return *d.resolved.Load(), nil
}

// Identity returns the resolved identity, failing with CodeNotResolved if
// Resolve has not completed yet.
func (d *Deferred) Identity() (Identity, error) {
	if idp := d.resolved.Load(); idp != nil {
		return *idp, nil
	}
	return Identity{}, warrenerr.Newf(warrenerr.CodeNotResolved,
		"identity for %q is not resolved yet", d.name)
}

// String returns the 64-hex string form, failing with CodeNotResolved
// before resolution.
func (d *Deferred) String() (string, error) {
	id, err := d.Identity()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Equal compares two deferred identities, failing with CodeNotResolved if
// either side is still pending.
func (d *Deferred) Equal(other *Deferred) (bool, error) {
	a, err := d.Identity()
	if err != nil {
		return false, err
	}
	b, err := other.Identity()
	if err != nil {
		return false, err
	}
	return a.Equal(b), nil
}
