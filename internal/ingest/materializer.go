package ingest

import (
	"context"
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"github.com/opencontainers/go-digest"

	"github.com/agentic-research/jsongraph/internal/graph"
)

// FileAssetMaterializer turns a file path into an asset node. It does not
// register anything; the resolver does.
type FileAssetMaterializer interface {
	CreateFileNode(ctx context.Context, absPath string, ids graph.IdentityFactory) (*AssetNode, error)
}

// FSMaterializer reads assets from a billy filesystem and digests their
// bytes.
type FSMaterializer struct {
	FS billy.Filesystem
}

func (m FSMaterializer) CreateFileNode(ctx context.Context, absPath string, ids graph.IdentityFactory) (*AssetNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := m.FS.Stat(absPath)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", absPath)
	}

	f, err := m.FS.Open(absPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }() // read-only

	d, err := digest.FromReader(f)
	if err != nil {
		return nil, fmt.Errorf("digest %s: %w", absPath, err)
	}

	base := path.Base(absPath)
	ext := path.Ext(base)
	return &AssetNode{
		ID:           ids.CreateIdentity(absPath),
		Path:         absPath,
		AbsolutePath: filepath.Join(m.FS.Root(), filepath.FromSlash(absPath)),
		Name:         strings.TrimSuffix(base, ext),
		Ext:          ext,
		Extension:    strings.TrimPrefix(ext, "."),
		Size:         info.Size(),
		MediaType:    mime.TypeByExtension(ext),
		Digest:       d.String(),
	}, nil
}
