// Package identity implements the 256-bit object identifiers of the warren
// object layer.
//
// An identity is 64 lowercase hex characters: a 24-byte content digest
// followed by an 8-byte namespace checksum. The checksum is derived from the
// namespace name and the content digest, which lets Parse reject identities
// that were minted under a different namespace without a registry lookup.
package identity

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/warrenhq/warren/internal/warrenerr"
)

// Domain prefixes for identity derivation. The version suffix enables
// future algorithm migration without colliding with existing identifiers.
const (
	domainNamed  = "warren/object/named/v1"
	domainUnique = "warren/object/unique/v1"
	domainCheck  = "warren/object/check/v1"
)

const (
	// RawLen is the length of an identity's string form in hex characters.
	RawLen = 64

	contentBytes  = 24
	checksumBytes = 8
)

// Identity is the resolved identifier of one object. It is an immutable
// value: two identities are equal iff their string forms are byte-equal.
type Identity struct {
	raw       string
	name      string
	namespace string
}

// hashWithDomain computes SHA-256 over domain-separated input. The null
// byte separators prevent boundary ambiguity between the segments.
func hashWithDomain(domain string, segments ...[]byte) []byte {
	h := sha256.New()
	h.Write([]byte(domain))
	for _, seg := range segments {
		h.Write([]byte{0x00})
		h.Write(seg)
	}
	return h.Sum(nil)
}

// checksum derives the 8-byte namespace checksum for a content digest.
func checksum(namespace string, content []byte) []byte {
	sum := hashWithDomain(domainCheck, []byte(namespace), content)
	return sum[:checksumBytes]
}

// assemble builds the 64-hex string form from a content digest.
func assemble(namespace string, content []byte) string {
	buf := make([]byte, 0, contentBytes+checksumBytes)
	buf = append(buf, content[:contentBytes]...)
	buf = append(buf, checksum(namespace, content[:contentBytes])...)
	return hex.EncodeToString(buf)
}

// DeriveFromName deterministically derives the identity of the object
// called name inside namespace. The same (namespace, name) pair always
// yields the same identity; different namespaces never collide for the
// same name. Names are NFC-normalized before hashing so visually identical
// Unicode spellings derive the same object.
func DeriveFromName(namespace, name string) Identity {
	normalized := norm.NFC.String(name)
	content := hashWithDomain(domainNamed, []byte(namespace), []byte(normalized))
	return Identity{
		raw:       assemble(namespace, content),
		name:      name,
		namespace: namespace,
	}
}

// NewUnique generates a fresh, unnamed identity inside namespace. The
// digest input is a random UUID, so collisions are not a practical concern.
func NewUnique(namespace string) (Identity, error) {
	nonce, err := uuid.NewRandom()
	if err != nil {
		return Identity{}, warrenerr.Wrap(warrenerr.CodeValidation, "generate unique identity nonce", err)
	}
	content := hashWithDomain(domainUnique, nonce[:])
	return Identity{
		raw:       assemble(namespace, content),
		namespace: namespace,
	}, nil
}

// Parse validates s as an identity string belonging to namespace.
//
// It fails with CodeMalformedIdentity unless s is exactly 64 lowercase hex
// characters, and with CodeForeignNamespace when the embedded checksum does
// not match the namespace. Parsed identities never carry a name: the name,
// if any, is not recoverable from the digest.
func Parse(namespace, s string) (Identity, error) {
	if len(s) != RawLen || !isLowerHex(s) {
		return Identity{}, warrenerr.Newf(warrenerr.CodeMalformedIdentity,
			"identity must be %d lowercase hex characters, got %q", RawLen, s)
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return Identity{}, warrenerr.Wrap(warrenerr.CodeMalformedIdentity, "decode identity", err)
	}
	content := decoded[:contentBytes]
	want := checksum(namespace, content)
	got := decoded[contentBytes:]
	for i := range want {
		if want[i] != got[i] {
			return Identity{}, &warrenerr.Error{
				Code:      warrenerr.CodeForeignNamespace,
				Message:   "identity was minted under a different namespace",
				Namespace: namespace,
			}
		}
	}
	return Identity{raw: s, namespace: namespace}, nil
}

// IsZero reports whether id is the zero value (no identity at all).
func (id Identity) IsZero() bool {
	return id.raw == ""
}

// String returns the 64-hex string form.
func (id Identity) String() string {
	return id.raw
}

// Name returns the object name and true for identities derived from a
// name; unnamed (unique or parsed) identities return "", false.
func (id Identity) Name() (string, bool) {
	return id.name, id.name != ""
}

// Namespace returns the name of the namespace that minted this identity.
func (id Identity) Namespace() string {
	return id.namespace
}

// Equal reports whether both identities refer to the same object.
func (id Identity) Equal(other Identity) bool {
	return id.raw == other.raw
}

func isLowerHex(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
