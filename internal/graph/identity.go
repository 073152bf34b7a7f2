package graph

import (
	"github.com/google/uuid"
)

// IdentityFactory derives node identities from seed strings. The same seed
// always yields the same identity.
type IdentityFactory interface {
	CreateIdentity(seed string) string
}

// IdentityFunc adapts a function to IdentityFactory.
type IdentityFunc func(seed string) string

func (f IdentityFunc) CreateIdentity(seed string) string { return f(seed) }

// NamespaceIdentity derives name-based (SHA-1, version 5) UUIDs inside a
// namespace, so two stores configured with the same namespace agree on ids.
type NamespaceIdentity struct {
	space uuid.UUID
}

// DefaultNamespace scopes identities created by this module.
const DefaultNamespace = "jsongraph/transformer-json"

func NewNamespaceIdentity(namespace string) NamespaceIdentity {
	return NamespaceIdentity{space: uuid.NewSHA1(uuid.NameSpaceURL, []byte(namespace))}
}

func (n NamespaceIdentity) CreateIdentity(seed string) string {
	return uuid.NewSHA1(n.space, []byte(seed)).String()
}

// Scoped salts every seed with a prefix before delegating. Used to keep
// identities derived inside one document apart from those of another.
func Scoped(ids IdentityFactory, salt string) IdentityFactory {
	return IdentityFunc(func(seed string) string {
		return ids.CreateIdentity(salt + " >>> " + seed)
	})
}
