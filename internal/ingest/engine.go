package ingest

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/agentic-research/jsongraph/api"
	"github.com/agentic-research/jsongraph/internal/graph"
	"github.com/agentic-research/jsongraph/internal/jsonvalue"
)

// Engine drives the ingestion process.
type Engine struct {
	Store        graph.NodeStore
	Loader       ContentLoader
	Materializer FileAssetMaterializer
	Namer        TypeNamer

	AssetKeySuffix string
	Jobs           int // Documents ingested concurrently by IngestAll
	Logger         hclog.Logger
}

// NewEngine wires an engine from options. Loader and materializer are left
// to the caller since they depend on where documents live.
func NewEngine(opts *api.Options, store graph.NodeStore) (*Engine, error) {
	if opts == nil {
		opts = &api.Options{}
	}
	opts.ApplyDefaults()

	namer, err := NewTypeNamer(opts)
	if err != nil {
		return nil, err
	}
	return &Engine{
		Store:          store,
		Namer:          namer,
		AssetKeySuffix: opts.AssetKeySuffix,
		Jobs:           opts.Jobs,
		Logger:         hclog.NewNullLogger(),
	}, nil
}

func (e *Engine) logger() hclog.Logger {
	if e.Logger == nil {
		return hclog.NewNullLogger()
	}
	return e.Logger
}

// Ingest transforms one document. Documents that are not JSON are ignored.
// The document's nodes and links reach the store only if every unit and
// every asset succeeded.
func (e *Engine) Ingest(ctx context.Context, doc *api.SourceDocument) error {
	if !doc.IsJSON() {
		return nil
	}
	log := e.logger().With("doc", doc.ID)

	raw, err := e.Loader.LoadBytes(ctx, doc)
	if err != nil {
		return fmt.Errorf("load %s: %w", doc.Hint(), err)
	}
	parsed, err := jsonvalue.Parse(raw)
	if err != nil {
		return &ParseError{Hint: doc.Hint(), Err: err}
	}

	batch := graph.NewBatch(e.Store)
	builder := &NodeGraphBuilder{
		Doc:   doc,
		Store: batch,
		Transformer: &TreeTransformer{
			Resolver:  NewAssetResolver(doc, batch, e.Materializer, log),
			KeySuffix: e.AssetKeySuffix,
		},
		Namer: e.Namer,
	}

	switch parsed.Kind() {
	case jsonvalue.Array:
		for i, item := range parsed.Items() {
			if _, err := builder.BuildAndRegister(ctx, item, i); err != nil {
				batch.Discard()
				return fmt.Errorf("%s: %w", doc.Hint(), err)
			}
		}
	case jsonvalue.Object:
		if _, err := builder.BuildAndRegister(ctx, parsed, -1); err != nil {
			batch.Discard()
			return fmt.Errorf("%s: %w", doc.Hint(), err)
		}
	default:
		log.Debug("skipping unsupported top-level value", "kind", parsed.Kind())
		return nil
	}

	log.Debug("ingested document", "writes", batch.Len())
	return batch.Commit(ctx)
}

// IngestAll ingests documents concurrently and returns the first error.
func (e *Engine) IngestAll(ctx context.Context, docs []*api.SourceDocument) error {
	g, ctx := errgroup.WithContext(ctx)
	jobs := e.Jobs
	if jobs <= 0 {
		jobs = api.DefaultJobs
	}
	g.SetLimit(jobs)
	for _, doc := range docs {
		g.Go(func() error {
			return e.Ingest(ctx, doc)
		})
	}
	return g.Wait()
}
