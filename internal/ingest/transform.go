package ingest

import (
	"context"
	"strconv"

	"github.com/agentic-research/jsongraph/internal/jsonvalue"
)

// AssetLookup is the part of AssetResolver the transformer depends on.
type AssetLookup interface {
	MaybeResolve(ctx context.Context, raw jsonvalue.Value, ownerID string) (*AssetNode, error)
}

var _ AssetLookup = (*AssetResolver)(nil)

// TreeTransformer rewrites a unit so that every asset reference it holds
// keeps its raw value and gains a link to the asset node.
//
// The walk runs in three passes. The first collects candidate leaves
// depth-first in member and index order. The second hands them to the
// resolver one at a time and stops at the first failure. The third rebuilds
// the value, consuming resolved assets in the same order. Asset creation
// therefore happens in document order on every run.
type TreeTransformer struct {
	Resolver  AssetLookup
	KeySuffix string // Appended to an object key to name its asset link
}

// Transform returns the transformed unit and the assets it references, in
// reference order. A scalar array element is wrapped as {"value": x}
// first.
func (t *TreeTransformer) Transform(ctx context.Context, unit jsonvalue.Value, isArray bool, contentID string) (jsonvalue.Value, []*AssetNode, error) {
	if isArray && !unit.IsContainer() {
		unit = jsonvalue.ObjectValue(jsonvalue.Member{Key: "value", Value: unit})
	}

	var pending []jsonvalue.Value
	collectCandidates(unit, &pending)
	if len(pending) == 0 {
		return unit, nil, nil
	}

	resolved := make([]*AssetNode, len(pending))
	var assets []*AssetNode
	for i, leaf := range pending {
		if err := ctx.Err(); err != nil {
			return jsonvalue.Value{}, nil, err
		}
		asset, err := t.Resolver.MaybeResolve(ctx, leaf, contentID)
		if err != nil {
			return jsonvalue.Value{}, nil, err
		}
		resolved[i] = asset
		if asset != nil {
			assets = append(assets, asset)
		}
	}

	cur := &assetCursor{assets: resolved}
	return t.rebuild(unit, cur), assets, nil
}

func isCandidate(v jsonvalue.Value) bool {
	return v.Kind() == jsonvalue.String && IsAssetReference(v.Text())
}

func collectCandidates(v jsonvalue.Value, out *[]jsonvalue.Value) {
	switch v.Kind() {
	case jsonvalue.Object:
		for _, m := range v.Members() {
			collectCandidates(m.Value, out)
		}
	case jsonvalue.Array:
		for _, item := range v.Items() {
			collectCandidates(item, out)
		}
	default:
		if isCandidate(v) {
			*out = append(*out, v)
		}
	}
}

// assetCursor hands out resolved assets in collection order.
type assetCursor struct {
	assets []*AssetNode
	pos    int
}

// take returns the asset resolved for leaf, or nil when leaf was not a
// candidate or the resolver declined it.
func (c *assetCursor) take(leaf jsonvalue.Value) *AssetNode {
	if leaf.IsContainer() || !isCandidate(leaf) || c.pos >= len(c.assets) {
		return nil
	}
	a := c.assets[c.pos]
	c.pos++
	return a
}

func (t *TreeTransformer) rebuild(v jsonvalue.Value, cur *assetCursor) jsonvalue.Value {
	switch v.Kind() {
	case jsonvalue.Object:
		return t.rebuildObject(v, cur)
	case jsonvalue.Array:
		return t.rebuildArray(v, cur)
	default:
		return v
	}
}

func (t *TreeTransformer) rebuildObject(v jsonvalue.Value, cur *assetCursor) jsonvalue.Value {
	members := v.Members()
	taken := make(map[string]bool, len(members))
	for _, m := range members {
		taken[m.Key] = true
	}

	out := make([]jsonvalue.Member, 0, len(members))
	for _, m := range members {
		out = append(out, jsonvalue.Member{Key: m.Key, Value: t.rebuild(m.Value, cur)})
		asset := cur.take(m.Value)
		if asset == nil {
			continue
		}
		key := freeKey(m.Key+t.KeySuffix, taken)
		taken[key] = true
		out = append(out, jsonvalue.Member{Key: key, Value: assetRef(asset)})
	}
	return jsonvalue.ObjectValue(out...)
}

func (t *TreeTransformer) rebuildArray(v jsonvalue.Value, cur *assetCursor) jsonvalue.Value {
	items := v.Items()
	out := make([]jsonvalue.Value, 0, len(items))
	var links []jsonvalue.Value
	for i, item := range items {
		out = append(out, t.rebuild(item, cur))
		asset := cur.take(item)
		if asset == nil {
			continue
		}
		links = append(links, jsonvalue.ObjectValue(
			jsonvalue.Member{Key: "index", Value: jsonvalue.IntValue(int64(i))},
			jsonvalue.Member{Key: "asset", Value: assetRef(asset)},
		))
	}
	return jsonvalue.ArrayValue(append(out, links...)...)
}

func assetRef(a *AssetNode) jsonvalue.Value {
	return jsonvalue.ObjectValue(jsonvalue.Member{Key: "id", Value: jsonvalue.StringValue(a.ID)})
}

// freeKey returns key, or key-2, key-3, ... if key is already taken.
func freeKey(key string, taken map[string]bool) string {
	if !taken[key] {
		return key
	}
	for n := 2; ; n++ {
		k := key + "-" + strconv.Itoa(n)
		if !taken[k] {
			return k
		}
	}
}
