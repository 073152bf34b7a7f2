package ingest

import (
	"context"
	"fmt"
	"strconv"

	"github.com/agentic-research/jsongraph/api"
	"github.com/agentic-research/jsongraph/internal/graph"
	"github.com/agentic-research/jsongraph/internal/jsonvalue"
)

// NodeGraphBuilder turns parsed units of one document into content nodes.
type NodeGraphBuilder struct {
	Doc         *api.SourceDocument
	Store       graph.NodeStore
	Transformer *TreeTransformer
	Namer       TypeNamer
}

// BuildAndRegister builds the content node for unit and registers it with
// its link from the source document. index is the unit's position in a
// top-level array, or negative for a lone object.
func (b *NodeGraphBuilder) BuildAndRegister(ctx context.Context, unit jsonvalue.Value, index int) (*graph.Node, error) {
	isArray := index >= 0
	id := b.contentID(unit, index)

	fields, _, err := b.Transformer.Transform(ctx, unit, isArray, id)
	if err != nil {
		return nil, err
	}

	typeName := b.Namer.TypeName(b.Doc, unit, isArray)
	if typeName == "" {
		return nil, fmt.Errorf("node %s: %w", id, ErrEmptyTypeName)
	}

	node := &graph.Node{
		ID:     id,
		Type:   typeName,
		Parent: b.Doc.ID,
		Digest: b.Store.ContentDigest(fields),
		Fields: fields,
	}
	if err := b.Store.CreateNode(ctx, node); err != nil {
		return nil, fmt.Errorf("create node %s: %w", id, err)
	}
	if err := b.Store.CreateParentChildLink(ctx, b.Doc.ID, id); err != nil {
		return nil, fmt.Errorf("link %s -> %s: %w", b.Doc.ID, id, err)
	}
	return node, nil
}

func (b *NodeGraphBuilder) contentID(unit jsonvalue.Value, index int) string {
	if own, ok := OwnID(unit); ok {
		return own
	}
	if index >= 0 {
		return b.Store.CreateIdentity(fmt.Sprintf("%s [%d] >>> JSON", b.Doc.ID, index))
	}
	return b.Store.CreateIdentity(b.Doc.ID + " >>> JSON")
}

// OwnID returns the string form of a truthy scalar "id" member: a non-empty
// string, a non-zero number or true. Falsy and container ids are ignored.
func OwnID(unit jsonvalue.Value) (string, bool) {
	v, ok := unit.Get("id")
	if !ok {
		return "", false
	}
	switch v.Kind() {
	case jsonvalue.String:
		return v.Text(), v.Text() != ""
	case jsonvalue.Bool:
		return "true", v.Bool()
	case jsonvalue.Number:
		n, _ := v.Number()
		if i, err := n.Int64(); err == nil {
			return strconv.FormatInt(i, 10), i != 0
		}
		f, err := n.Float64()
		if err != nil || f == 0 {
			return "", false
		}
		return strconv.FormatFloat(f, 'f', -1, 64), true
	default:
		return "", false
	}
}
