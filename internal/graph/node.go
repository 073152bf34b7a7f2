package graph

import (
	"context"
	"errors"

	"github.com/agentic-research/jsongraph/internal/jsonvalue"
)

var ErrNotFound = errors.New("node not found")

// Node is the unit registered with a NodeStore. Content nodes carry the
// transformed record in Fields; asset nodes carry file metadata.
type Node struct {
	ID       string
	Type     string
	Parent   string          // Identity of the owning node ("" for none)
	Children []string        // Populated by the store from registered links
	Digest   string          // Content digest used for change detection
	Fields   jsonvalue.Value // An Object, or an Array for a nested array element
}

// NodeStore is the write side consumed by the transformer.
// Implementations must tolerate concurrent callers and treat CreateNode as
// an upsert keyed by Node.ID.
type NodeStore interface {
	IdentityFactory
	CreateNode(ctx context.Context, n *Node) error
	CreateParentChildLink(ctx context.Context, parentID, childID string) error
	// ContentDigest returns a stable digest of v. Objects with equal members
	// digest identically regardless of member order.
	ContentDigest(v jsonvalue.Value) string
}

// Graph is the read side used by inspection tools.
type Graph interface {
	GetNode(id string) (*Node, error)
	ListChildren(id string) ([]string, error)
	// Nodes returns every node in registration order.
	Nodes() ([]*Node, error)
}

// Pruner removes everything registered beneath a node, leaving the node
// itself in place. Hosts call it before re-ingesting a changed document.
type Pruner interface {
	DeleteDescendants(ctx context.Context, id string) error
}
