package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"testing"

	billy "github.com/go-git/go-billy/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/jsongraph/api"
	"github.com/agentic-research/jsongraph/internal/graph"
	"github.com/agentic-research/jsongraph/internal/jsonvalue"
)

var testIDs = graph.NewNamespaceIdentity(graph.DefaultNamespace)

func newTestEngine(t *testing.T, fs billy.Filesystem, opts *api.Options) (*Engine, *graph.MemoryStore) {
	t.Helper()
	store := graph.NewMemoryStore()
	e, err := NewEngine(opts, store)
	require.NoError(t, err)
	e.Loader = FSLoader{FS: fs}
	e.Materializer = FSMaterializer{FS: fs}
	return e, store
}

func contentNodes(t *testing.T, store graph.Graph) []*graph.Node {
	t.Helper()
	all, err := store.Nodes()
	require.NoError(t, err)
	var out []*graph.Node
	for _, n := range all {
		if n.Type != AssetNodeType {
			out = append(out, n)
		}
	}
	return out
}

func TestEngine_ArrayYieldsOneNodePerElement(t *testing.T) {
	fs := newTestFS(t, map[string]string{"/content/posts/blog-posts.json": `[{"a":1},{"b":2},"plain"]`})
	e, store := newTestEngine(t, fs, nil)
	doc := NewFileDocument("/content/posts/blog-posts.json", testIDs)

	require.NoError(t, e.Ingest(context.Background(), doc))

	nodes := contentNodes(t, store)
	require.Len(t, nodes, 3)
	for _, n := range nodes {
		assert.Equal(t, doc.ID, n.Parent)
		assert.Equal(t, "BlogPostsJson", n.Type)
	}
	assert.Equal(t, `{"value":"plain"}`, nodes[2].Fields.String())

	children, _ := store.ListChildren(doc.ID)
	assert.Equal(t, []string{nodes[0].ID, nodes[1].ID, nodes[2].ID}, children)
}

func TestEngine_NestedArrayElementKeepsArrayFields(t *testing.T) {
	fs := newTestFS(t, map[string]string{"/data/grid.json": `[[1,2],{"a":3}]`})
	e, store := newTestEngine(t, fs, nil)
	doc := NewFileDocument("/data/grid.json", testIDs)

	require.NoError(t, e.Ingest(context.Background(), doc))

	nodes := contentNodes(t, store)
	require.Len(t, nodes, 2)
	assert.Equal(t, jsonvalue.Array, nodes[0].Fields.Kind())
	assert.Equal(t, `[1,2]`, nodes[0].Fields.String())
	assert.Equal(t, jsonvalue.Object, nodes[1].Fields.Kind())
}

func TestEngine_LoneObjectUsesOwnID(t *testing.T) {
	fs := newTestFS(t, map[string]string{"/content/posts/about.json": `{"id":"42","title":"x"}`})
	e, store := newTestEngine(t, fs, nil)
	doc := NewFileDocument("/content/posts/about.json", testIDs)

	require.NoError(t, e.Ingest(context.Background(), doc))

	nodes := contentNodes(t, store)
	require.Len(t, nodes, 1)
	assert.Equal(t, "42", nodes[0].ID)
	assert.Equal(t, "PostsJson", nodes[0].Type)
}

func TestEngine_Idempotent(t *testing.T) {
	files := map[string]string{
		"/data/items.json": `[{"title":"a","img":"a.png"},{"title":"b","tags":["x","b.svg"]}]`,
		"/data/a.png":      "A",
		"/data/b.svg":      "<svg/>",
	}
	doc := NewFileDocument("/data/items.json", testIDs)

	run := func() []*graph.Node {
		e, store := newTestEngine(t, newTestFS(t, files), nil)
		require.NoError(t, e.Ingest(context.Background(), doc))
		nodes, err := store.Nodes()
		require.NoError(t, err)
		return nodes
	}

	first, second := run(), run()
	require.Len(t, first, 4)
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Digest, second[i].Digest)
		assert.Equal(t, first[i].Fields.String(), second[i].Fields.String())
	}
}

func TestEngine_AssetReference(t *testing.T) {
	fs := newTestFS(t, map[string]string{
		"/content/posts/post.json": `{"obj":{"cover":"pic.png","alt":"pic.PNG"}}`,
		"/content/posts/pic.png":   "PNG",
	})
	e, store := newTestEngine(t, fs, nil)
	doc := NewFileDocument("/content/posts/post.json", testIDs)

	require.NoError(t, e.Ingest(context.Background(), doc))

	nodes := contentNodes(t, store)
	require.Len(t, nodes, 1)
	content := nodes[0]

	obj, ok := content.Fields.Get("obj")
	require.True(t, ok)
	cover, _ := obj.Get("cover")
	assert.Equal(t, "pic.png", cover.Text())
	alt, _ := obj.Get("alt")
	assert.Equal(t, "pic.PNG", alt.Text())
	_, hasAltLink := obj.Get("alt-image")
	assert.False(t, hasAltLink)

	link, ok := obj.Get("cover-image")
	require.True(t, ok)
	assetID, _ := link.Get("id")

	asset, err := store.GetNode(assetID.Text())
	require.NoError(t, err)
	assert.Equal(t, AssetNodeType, asset.Type)
	abs, _ := asset.Fields.Get("absolutePath")
	assert.Equal(t, "/content/posts/pic.png", abs.Text())

	children, _ := store.ListChildren(content.ID)
	assert.Equal(t, []string{asset.ID}, children)
}

func TestEngine_CustomAssetKeySuffix(t *testing.T) {
	fs := newTestFS(t, map[string]string{
		"/p.json": `{"cover":"c.jpg"}`,
		"/c.jpg":  "JPG",
	})
	e, store := newTestEngine(t, fs, &api.Options{AssetKeySuffix: "Asset"})

	require.NoError(t, e.Ingest(context.Background(), NewFileDocument("/p.json", testIDs)))

	nodes := contentNodes(t, store)
	require.Len(t, nodes, 1)
	assert.Equal(t, []string{"cover", "coverAsset"}, nodes[0].Fields.Keys())
}

func TestEngine_MalformedInput(t *testing.T) {
	fs := newTestFS(t, map[string]string{"/bad.json": `{not json`})
	e, store := newTestEngine(t, fs, nil)

	err := e.Ingest(context.Background(), NewFileDocument("/bad.json", testIDs))
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "file /bad.json", pe.Hint)
	assert.Contains(t, err.Error(), "unable to parse JSON: file /bad.json")

	nodes, _ := store.Nodes()
	assert.Empty(t, nodes)
}

func TestEngine_ParseErrorNamesNodeWithoutPath(t *testing.T) {
	store := graph.NewMemoryStore()
	e, err := NewEngine(nil, store)
	require.NoError(t, err)
	e.Loader = LoaderFunc(func(context.Context, *api.SourceDocument) ([]byte, error) {
		return []byte(`[1,`), nil
	})

	doc := &api.SourceDocument{ID: "node-9", MediaType: api.MediaTypeJSON, Kind: "Inline"}
	err = e.Ingest(context.Background(), doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unable to parse JSON: in node node-9")
}

func TestEngine_ScalarTopLevelIsSkipped(t *testing.T) {
	for _, body := range []string{`42`, `"text"`, `null`, `true`} {
		t.Run(body, func(t *testing.T) {
			fs := newTestFS(t, map[string]string{"/s.json": body})
			e, store := newTestEngine(t, fs, nil)

			require.NoError(t, e.Ingest(context.Background(), NewFileDocument("/s.json", testIDs)))
			nodes, _ := store.Nodes()
			assert.Empty(t, nodes)
		})
	}
}

func TestEngine_IgnoresOtherMediaTypes(t *testing.T) {
	var loads atomic.Int32
	store := graph.NewMemoryStore()
	e, err := NewEngine(nil, store)
	require.NoError(t, err)
	e.Loader = LoaderFunc(func(context.Context, *api.SourceDocument) ([]byte, error) {
		loads.Add(1)
		return []byte(`{}`), nil
	})

	require.NoError(t, e.Ingest(context.Background(), &api.SourceDocument{ID: "x", MediaType: "text/yaml"}))
	require.NoError(t, e.Ingest(context.Background(), nil))
	assert.Equal(t, int32(0), loads.Load())
}

func TestEngine_AssetFailureLeavesNoPartialGraph(t *testing.T) {
	fs := newTestFS(t, map[string]string{
		"/d/list.json": `[{"a":1},{"img":"ok.png"},{"img":"missing.png"}]`,
		"/d/ok.png":    "OK",
	})
	e, store := newTestEngine(t, fs, nil)
	doc := NewFileDocument("/d/list.json", testIDs)

	err := e.Ingest(context.Background(), doc)
	var are *AssetResolutionError
	require.True(t, errors.As(err, &are))
	assert.Equal(t, "/d/missing.png", are.Path)

	nodes, _ := store.Nodes()
	assert.Empty(t, nodes)
	children, _ := store.ListChildren(doc.ID)
	assert.Empty(t, children)
}

func TestEngine_LoaderErrorIsWrapped(t *testing.T) {
	e, _ := newTestEngine(t, newTestFS(t, nil), nil)

	err := e.Ingest(context.Background(), NewFileDocument("/nope.json", testIDs))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "load file /nope.json")

	store := graph.NewMemoryStore()
	e2, err := NewEngine(nil, store)
	require.NoError(t, err)
	e2.Loader = LoaderFunc(func(context.Context, *api.SourceDocument) ([]byte, error) {
		return nil, io.ErrUnexpectedEOF
	})
	err = e2.Ingest(context.Background(), &api.SourceDocument{ID: "n", MediaType: api.MediaTypeJSON})
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestEngine_IngestAll(t *testing.T) {
	files := map[string]string{}
	for i := 0; i < 20; i++ {
		files[fmt.Sprintf("/docs/d%02d.json", i)] = fmt.Sprintf(`[{"n":%d},{"n":%d,"img":"shared.png"}]`, i, i)
	}
	files["/docs/shared.png"] = "S"
	fs := newTestFS(t, files)

	e, store := newTestEngine(t, fs, &api.Options{Jobs: 3})
	docs, err := Discover(fs, "/", testIDs)
	require.NoError(t, err)
	require.Len(t, docs, 21)

	require.NoError(t, e.IngestAll(context.Background(), docs))

	nodes := contentNodes(t, store)
	assert.Len(t, nodes, 40)
	all, _ := store.Nodes()
	// One asset node per document: identities are scoped by document.
	assert.Len(t, all, 60)
}

func TestEngine_IngestAllReturnsFirstError(t *testing.T) {
	fs := newTestFS(t, map[string]string{
		"/ok.json":  `{"a":1}`,
		"/bad.json": `{`,
	})
	e, _ := newTestEngine(t, fs, nil)
	docs, err := Discover(fs, "/", testIDs)
	require.NoError(t, err)

	err = e.IngestAll(context.Background(), docs)
	var pe *ParseError
	assert.True(t, errors.As(err, &pe))
}

func TestNewEngine_BadTemplate(t *testing.T) {
	_, err := NewEngine(&api.Options{TypeNameTemplate: "{{"}, graph.NewMemoryStore())
	assert.Error(t, err)
}
