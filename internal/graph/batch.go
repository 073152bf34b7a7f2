package graph

import (
	"context"
	"fmt"

	"github.com/agentic-research/jsongraph/internal/jsonvalue"
)

// Batch stages writes for one unit of work and replays them against the
// underlying store, in order, on Commit. Identity and digest calls pass
// straight through. A Batch that is never committed leaves no trace.
//
// A Batch is not safe for concurrent use; give each document its own.
type Batch struct {
	store NodeStore
	ops   []batchOp
}

type batchOp struct {
	node   *Node // set for CreateNode
	parent string
	child  string
}

func NewBatch(store NodeStore) *Batch {
	return &Batch{store: store}
}

func (b *Batch) CreateIdentity(seed string) string { return b.store.CreateIdentity(seed) }

func (b *Batch) ContentDigest(v jsonvalue.Value) string { return b.store.ContentDigest(v) }

func (b *Batch) CreateNode(_ context.Context, n *Node) error {
	staged := *n
	b.ops = append(b.ops, batchOp{node: &staged})
	return nil
}

func (b *Batch) CreateParentChildLink(_ context.Context, parentID, childID string) error {
	b.ops = append(b.ops, batchOp{parent: parentID, child: childID})
	return nil
}

// Len is the number of staged writes.
func (b *Batch) Len() int { return len(b.ops) }

// batchApplier is implemented by stores that can apply a batch atomically.
type batchApplier interface {
	applyBatch(ctx context.Context, ops []batchOp) error
}

// Commit replays the staged writes and clears the batch. Stores that
// support it receive the whole batch at once and apply it atomically; for
// others the writes are replayed one by one.
func (b *Batch) Commit(ctx context.Context) error {
	ops := b.ops
	b.ops = nil
	if len(ops) == 0 {
		return nil
	}
	if a, ok := b.store.(batchApplier); ok {
		return a.applyBatch(ctx, ops)
	}
	for _, op := range ops {
		if op.node != nil {
			if err := b.store.CreateNode(ctx, op.node); err != nil {
				return fmt.Errorf("create node %s: %w", op.node.ID, err)
			}
			continue
		}
		if err := b.store.CreateParentChildLink(ctx, op.parent, op.child); err != nil {
			return fmt.Errorf("link %s -> %s: %w", op.parent, op.child, err)
		}
	}
	return nil
}

// Discard drops the staged writes.
func (b *Batch) Discard() { b.ops = nil }

var _ NodeStore = (*Batch)(nil)
