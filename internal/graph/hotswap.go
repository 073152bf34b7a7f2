package graph

import (
	"sync"
)

// HotSwapGraph is a thread-safe Graph whose backing graph can be replaced
// wholesale, e.g. by a freshly rebuilt store. Readers see either the old
// graph or the new one, never a mix.
type HotSwapGraph struct {
	mu      sync.RWMutex
	current Graph
}

func NewHotSwapGraph(initial Graph) *HotSwapGraph {
	return &HotSwapGraph{current: initial}
}

// Swap atomically replaces the current graph and returns the previous one
// so the caller can close it.
func (h *HotSwapGraph) Swap(next Graph) Graph {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := h.current
	h.current = next
	return prev
}

// GetNode delegates to current graph.
func (h *HotSwapGraph) GetNode(id string) (*Node, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.GetNode(id)
}

// ListChildren delegates to current graph.
func (h *HotSwapGraph) ListChildren(id string) ([]string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.ListChildren(id)
}

// Nodes delegates to current graph.
func (h *HotSwapGraph) Nodes() ([]*Node, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.Nodes()
}

var _ Graph = (*HotSwapGraph)(nil)
