package ingest

import (
	"context"
	"path"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/agentic-research/jsongraph/api"
	"github.com/agentic-research/jsongraph/internal/graph"
	"github.com/agentic-research/jsongraph/internal/jsonvalue"
)

// AssetNodeType is the type of every asset node.
const AssetNodeType = "JsonImage"

// assetExtensions are matched case-sensitively against the end of a string.
var assetExtensions = []string{".png", ".jpg", ".jpeg", ".svg", ".webp", ".tif", ".tiff"}

// IsAssetReference reports whether s names an image file by extension.
func IsAssetReference(s string) bool {
	for _, ext := range assetExtensions {
		if strings.HasSuffix(s, ext) {
			return true
		}
	}
	return false
}

// AssetNode is a file referenced from a document, materialized as a node.
type AssetNode struct {
	ID           string
	Path         string // Resolved path within the materializer's filesystem
	AbsolutePath string // Path on the host
	Name         string // File name without extension
	Ext          string // ".png"
	Extension    string // "png"
	Size         int64
	MediaType    string
	Digest       string // Digest of the file bytes
}

// Node converts the asset into the node registered with the store.
func (a *AssetNode) Node(parent string) *graph.Node {
	return &graph.Node{
		ID:     a.ID,
		Type:   AssetNodeType,
		Parent: parent,
		Digest: a.Digest,
		Fields: jsonvalue.ObjectValue(
			jsonvalue.Member{Key: "name", Value: jsonvalue.StringValue(a.Name)},
			jsonvalue.Member{Key: "ext", Value: jsonvalue.StringValue(a.Ext)},
			jsonvalue.Member{Key: "extension", Value: jsonvalue.StringValue(a.Extension)},
			jsonvalue.Member{Key: "absolutePath", Value: jsonvalue.StringValue(a.AbsolutePath)},
			jsonvalue.Member{Key: "size", Value: jsonvalue.IntValue(a.Size)},
			jsonvalue.Member{Key: "mediaType", Value: jsonvalue.StringValue(a.MediaType)},
		),
	}
}

// ResolveAssetPath resolves ref against the directory that contains the
// document. Documents without a path resolve against the filesystem root.
func ResolveAssetPath(doc *api.SourceDocument, ref string) string {
	base := "/"
	if doc.Path != "" {
		base = path.Dir(doc.Path)
	}
	return path.Join(base, ref)
}

// AssetResolver turns asset references of one document into asset nodes.
// It remembers every path it materialized, so a file referenced twice in
// the same document yields one asset node.
type AssetResolver struct {
	doc          *api.SourceDocument
	store        graph.NodeStore
	materializer FileAssetMaterializer
	ids          graph.IdentityFactory
	seen         map[string]*AssetNode
	logger       hclog.Logger
}

func NewAssetResolver(doc *api.SourceDocument, store graph.NodeStore, m FileAssetMaterializer, logger hclog.Logger) *AssetResolver {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &AssetResolver{
		doc:          doc,
		store:        store,
		materializer: m,
		ids:          graph.Scoped(store, doc.ID),
		seen:         make(map[string]*AssetNode),
		logger:       logger,
	}
}

// MaybeResolve returns the asset node referenced by raw, or nil when raw is
// not an asset reference. On a match the asset node and the link from
// ownerID to it are registered with the store.
func (r *AssetResolver) MaybeResolve(ctx context.Context, raw jsonvalue.Value, ownerID string) (*AssetNode, error) {
	if raw.Kind() != jsonvalue.String || !IsAssetReference(raw.Text()) {
		return nil, nil
	}
	ref := raw.Text()
	abs := ResolveAssetPath(r.doc, ref)

	asset, ok := r.seen[abs]
	if !ok {
		var err error
		asset, err = r.materializer.CreateFileNode(ctx, abs, r.ids)
		if err != nil {
			return nil, &AssetResolutionError{Reference: ref, Path: abs, Err: err}
		}
		if err := r.store.CreateNode(ctx, asset.Node(ownerID)); err != nil {
			return nil, &AssetResolutionError{Reference: ref, Path: abs, Err: err}
		}
		r.seen[abs] = asset
		r.logger.Trace("created asset node", "path", abs, "id", asset.ID)
	}
	if err := r.store.CreateParentChildLink(ctx, ownerID, asset.ID); err != nil {
		return nil, &AssetResolutionError{Reference: ref, Path: abs, Err: err}
	}
	return asset, nil
}
