package graph

import (
	"context"
	"sync"

	"github.com/RoaringBitmap/roaring"

	"github.com/agentic-research/jsongraph/internal/jsonvalue"
)

// MemoryStore is an in-process NodeStore and Graph.
//
// Links are kept as roaring bitmaps of internal node numbers. Numbers are
// handed out monotonically on first sight, so iterating a bitmap yields
// children in the order they were first registered, and re-registering a
// link is a no-op.
type MemoryStore struct {
	mu    sync.RWMutex
	ids   IdentityFactory
	nodes map[string]*Node
	order []string // node IDs in first-registration order

	links     map[string]*roaring.Bitmap // parent ID → child numbers
	nodeIntID map[string]uint32
	intToNode []string // reverse of nodeIntID; "" once deleted
	nextIntID uint32
}

func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithIdentity(NewNamespaceIdentity(DefaultNamespace))
}

func NewMemoryStoreWithIdentity(ids IdentityFactory) *MemoryStore {
	return &MemoryStore{
		ids:       ids,
		nodes:     make(map[string]*Node),
		links:     make(map[string]*roaring.Bitmap),
		nodeIntID: make(map[string]uint32),
	}
}

// CreateIdentity implements NodeStore.
func (s *MemoryStore) CreateIdentity(seed string) string { return s.ids.CreateIdentity(seed) }

// ContentDigest implements NodeStore.
func (s *MemoryStore) ContentDigest(v jsonvalue.Value) string { return ContentDigest(v) }

// CreateNode implements NodeStore. An existing node with the same ID is
// replaced; its links are kept.
func (s *MemoryStore) CreateNode(_ context.Context, n *Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createNodeLocked(n)
	return nil
}

func (s *MemoryStore) createNodeLocked(n *Node) {
	stored := *n
	stored.Children = nil
	if _, exists := s.nodes[n.ID]; !exists {
		s.order = append(s.order, n.ID)
	}
	s.nodes[n.ID] = &stored
	s.intern(n.ID)
}

// CreateParentChildLink implements NodeStore. The parent does not have to
// be registered: source documents usually live in the host, not here.
func (s *MemoryStore) CreateParentChildLink(_ context.Context, parentID, childID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.linkLocked(parentID, childID)
	return nil
}

func (s *MemoryStore) linkLocked(parentID, childID string) {
	s.intern(parentID)
	child := s.intern(childID)
	bm, ok := s.links[parentID]
	if !ok {
		bm = roaring.New()
		s.links[parentID] = bm
	}
	bm.Add(child)
}

// applyBatch registers a whole batch under one lock, so readers never see
// part of it.
func (s *MemoryStore) applyBatch(ctx context.Context, ops []batchOp) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, op := range ops {
		if op.node != nil {
			s.createNodeLocked(op.node)
			continue
		}
		s.linkLocked(op.parent, op.child)
	}
	return nil
}

// intern returns the internal number for id, assigning one if needed.
// Must be called with s.mu held.
func (s *MemoryStore) intern(id string) uint32 {
	if n, ok := s.nodeIntID[id]; ok {
		return n
	}
	n := s.nextIntID
	s.nextIntID++
	s.nodeIntID[id] = n
	s.intToNode = append(s.intToNode, id)
	return n
}

// GetNode implements Graph. The returned node is a copy with Children
// filled from the registered links.
func (s *MemoryStore) GetNode(id string) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *n
	out.Children = s.childrenLocked(id)
	return &out, nil
}

// ListChildren implements Graph. Unknown parents have no children.
func (s *MemoryStore) ListChildren(id string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.childrenLocked(id), nil
}

func (s *MemoryStore) childrenLocked(id string) []string {
	children := []string{}
	bm, ok := s.links[id]
	if !ok {
		return children
	}
	it := bm.Iterator()
	for it.HasNext() {
		if child := s.intToNode[it.Next()]; child != "" {
			children = append(children, child)
		}
	}
	return children
}

// Nodes implements Graph.
func (s *MemoryStore) Nodes() ([]*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Node, 0, len(s.order))
	for _, id := range s.order {
		n := *s.nodes[id]
		n.Children = s.childrenLocked(id)
		out = append(out, &n)
	}
	return out, nil
}

// DeleteDescendants implements Pruner.
func (s *MemoryStore) DeleteDescendants(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	gone := roaring.New()
	queue := []string{id}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		bm, ok := s.links[parent]
		if !ok {
			continue
		}
		it := bm.Iterator()
		for it.HasNext() {
			n := it.Next()
			if gone.Contains(n) {
				continue
			}
			gone.Add(n)
			if child := s.intToNode[n]; child != "" && child != id {
				queue = append(queue, child)
			}
		}
	}
	if root, ok := s.nodeIntID[id]; ok {
		gone.Remove(root)
	}
	if gone.IsEmpty() {
		return nil
	}

	it := gone.Iterator()
	for it.HasNext() {
		n := it.Next()
		child := s.intToNode[n]
		delete(s.nodes, child)
		delete(s.links, child)
		delete(s.nodeIntID, child)
		s.intToNode[n] = ""
	}
	for _, bm := range s.links {
		bm.AndNot(gone)
	}

	kept := s.order[:0]
	for _, nid := range s.order {
		if _, ok := s.nodes[nid]; ok {
			kept = append(kept, nid)
		}
	}
	s.order = kept
	return nil
}

var (
	_ NodeStore = (*MemoryStore)(nil)
	_ Graph     = (*MemoryStore)(nil)
	_ Pruner    = (*MemoryStore)(nil)
)
