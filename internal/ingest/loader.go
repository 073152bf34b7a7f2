package ingest

import (
	"context"
	"errors"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/agentic-research/jsongraph/api"
)

// ContentLoader returns the raw bytes of a source document.
type ContentLoader interface {
	LoadBytes(ctx context.Context, doc *api.SourceDocument) ([]byte, error)
}

// LoaderFunc adapts a function to ContentLoader.
type LoaderFunc func(ctx context.Context, doc *api.SourceDocument) ([]byte, error)

func (f LoaderFunc) LoadBytes(ctx context.Context, doc *api.SourceDocument) ([]byte, error) {
	return f(ctx, doc)
}

var errNoPath = errors.New("document has no path")

// FSLoader reads documents from a billy filesystem by their Path.
type FSLoader struct {
	FS billy.Filesystem
}

func (l FSLoader) LoadBytes(ctx context.Context, doc *api.SourceDocument) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if doc.Path == "" {
		return nil, errNoPath
	}
	return util.ReadFile(l.FS, doc.Path)
}
