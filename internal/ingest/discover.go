package ingest

import (
	"mime"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/agentic-research/jsongraph/api"
	"github.com/agentic-research/jsongraph/internal/graph"
)

// OriginDiscover marks documents found by Discover.
const OriginDiscover = "jsongraph-discover"

// Discover lists every regular file under root as a source document. The
// media type comes from the extension, so only *.json files pass the
// engine's gate. Hidden directories are skipped. Documents are returned in
// path order.
func Discover(fsys billy.Filesystem, root string, ids graph.IdentityFactory) ([]*api.SourceDocument, error) {
	var docs []*api.SourceDocument
	err := util.Walk(fsys, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if p != root && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		docs = append(docs, NewFileDocument(filepath.ToSlash(p), ids))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	return docs, nil
}

// NewFileDocument describes the file at p. The document identity is derived
// from the path, so re-discovering a file yields the same document.
func NewFileDocument(p string, ids graph.IdentityFactory) *api.SourceDocument {
	if !path.IsAbs(p) {
		p = "/" + p
	}
	base := path.Base(p)
	ext := path.Ext(base)
	return &api.SourceDocument{
		ID:        ids.CreateIdentity("file " + p),
		Origin:    OriginDiscover,
		MediaType: mediaTypeOf(ext),
		Kind:      api.KindFile,
		Name:      strings.TrimSuffix(base, ext),
		Dir:       path.Dir(p),
		Path:      p,
	}
}

func mediaTypeOf(ext string) string {
	if strings.EqualFold(ext, ".json") {
		return api.MediaTypeJSON
	}
	t, _, err := mime.ParseMediaType(mime.TypeByExtension(ext))
	if err != nil || t == "" {
		return "application/octet-stream"
	}
	return t
}
