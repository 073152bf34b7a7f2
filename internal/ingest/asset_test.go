package ingest

import (
	"context"
	"errors"
	"os"
	"testing"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/jsongraph/api"
	"github.com/agentic-research/jsongraph/internal/graph"
	"github.com/agentic-research/jsongraph/internal/jsonvalue"
)

func newTestFS(t *testing.T, files map[string]string) billy.Filesystem {
	t.Helper()
	fs := memfs.New()
	for name, content := range files {
		require.NoError(t, util.WriteFile(fs, name, []byte(content), 0o644))
	}
	return fs
}

// countingMaterializer counts CreateFileNode calls per path.
type countingMaterializer struct {
	FileAssetMaterializer
	calls map[string]int
}

func (m *countingMaterializer) CreateFileNode(ctx context.Context, absPath string, ids graph.IdentityFactory) (*AssetNode, error) {
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[absPath]++
	return m.FileAssetMaterializer.CreateFileNode(ctx, absPath, ids)
}

func TestIsAssetReference(t *testing.T) {
	for _, s := range []string{"a.png", "b.jpg", "c.jpeg", "d.svg", "e.webp", "f.tif", "g.tiff", "../x/y.png", ".png"} {
		assert.True(t, IsAssetReference(s), s)
	}
	for _, s := range []string{"a.PNG", "b.Jpg", "c.gif", "png", "a.png ", "a.png.txt", ""} {
		assert.False(t, IsAssetReference(s), s)
	}
}

func TestResolveAssetPath(t *testing.T) {
	doc := fileDoc("/content/posts/a.json")
	assert.Equal(t, "/content/posts/pic.png", ResolveAssetPath(doc, "pic.png"))
	assert.Equal(t, "/content/img/pic.png", ResolveAssetPath(doc, "../img/pic.png"))
	assert.Equal(t, "/content/posts/img/pic.png", ResolveAssetPath(doc, "./img/pic.png"))

	noPath := &api.SourceDocument{ID: "n1"}
	assert.Equal(t, "/img/pic.png", ResolveAssetPath(noPath, "img/pic.png"))
}

func TestFSMaterializer_CreateFileNode(t *testing.T) {
	fs := newTestFS(t, map[string]string{"/content/img/pic.png": "PNGDATA"})
	ids := graph.NewNamespaceIdentity(graph.DefaultNamespace)

	a, err := FSMaterializer{FS: fs}.CreateFileNode(context.Background(), "/content/img/pic.png", ids)
	require.NoError(t, err)
	assert.Equal(t, ids.CreateIdentity("/content/img/pic.png"), a.ID)
	assert.Equal(t, "pic", a.Name)
	assert.Equal(t, ".png", a.Ext)
	assert.Equal(t, "png", a.Extension)
	assert.Equal(t, "/content/img/pic.png", a.AbsolutePath)
	assert.Equal(t, int64(7), a.Size)
	assert.Equal(t, "image/png", a.MediaType)
	assert.Equal(t, digest.FromString("PNGDATA").String(), a.Digest)

	_, err = FSMaterializer{FS: fs}.CreateFileNode(context.Background(), "/content/img/missing.png", ids)
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, fs.MkdirAll("/dir.png", 0o755))
	_, err = FSMaterializer{FS: fs}.CreateFileNode(context.Background(), "/dir.png", ids)
	assert.Error(t, err)
}

func TestAssetResolver_RegistersNodeAndLink(t *testing.T) {
	ctx := context.Background()
	fs := newTestFS(t, map[string]string{"/content/posts/pic.png": "PNG"})
	store := graph.NewMemoryStore()
	doc := fileDoc("/content/posts/a.json")
	r := NewAssetResolver(doc, store, FSMaterializer{FS: fs}, nil)

	a, err := r.MaybeResolve(ctx, jsonvalue.StringValue("pic.png"), "content-1")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "/content/posts/pic.png", a.Path)
	assert.Equal(t, graph.Scoped(store, doc.ID).CreateIdentity("/content/posts/pic.png"), a.ID)

	n, err := store.GetNode(a.ID)
	require.NoError(t, err)
	assert.Equal(t, AssetNodeType, n.Type)
	assert.Equal(t, "content-1", n.Parent)
	assert.Equal(t, []string{"name", "ext", "extension", "absolutePath", "size", "mediaType"}, n.Fields.Keys())

	children, _ := store.ListChildren("content-1")
	assert.Equal(t, []string{a.ID}, children)
}

func TestAssetResolver_IgnoresNonReferences(t *testing.T) {
	m := &countingMaterializer{FileAssetMaterializer: FSMaterializer{FS: memfs.New()}}
	r := NewAssetResolver(fileDoc("/a.json"), graph.NewMemoryStore(), m, nil)

	for _, v := range []jsonvalue.Value{
		jsonvalue.StringValue("pic.PNG"),
		jsonvalue.StringValue("hello"),
		jsonvalue.IntValue(3),
		jsonvalue.NullValue(),
		jsonvalue.ObjectValue(),
	} {
		a, err := r.MaybeResolve(context.Background(), v, "c")
		require.NoError(t, err)
		assert.Nil(t, a)
	}
	assert.Empty(t, m.calls)
}

func TestAssetResolver_DocumentScopedDedup(t *testing.T) {
	ctx := context.Background()
	fs := newTestFS(t, map[string]string{"/content/posts/pic.png": "PNG"})
	store := graph.NewMemoryStore()
	m := &countingMaterializer{FileAssetMaterializer: FSMaterializer{FS: fs}}
	r := NewAssetResolver(fileDoc("/content/posts/a.json"), store, m, nil)

	first, err := r.MaybeResolve(ctx, jsonvalue.StringValue("pic.png"), "content-1")
	require.NoError(t, err)
	second, err := r.MaybeResolve(ctx, jsonvalue.StringValue("./pic.png"), "content-1")
	require.NoError(t, err)
	third, err := r.MaybeResolve(ctx, jsonvalue.StringValue("pic.png"), "content-2")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.ID, third.ID)
	assert.Equal(t, 1, m.calls["/content/posts/pic.png"])

	nodes, _ := store.Nodes()
	assert.Len(t, nodes, 1)

	c1, _ := store.ListChildren("content-1")
	assert.Equal(t, []string{first.ID}, c1)
	c2, _ := store.ListChildren("content-2")
	assert.Equal(t, []string{first.ID}, c2)
}

func TestAssetResolver_MissingFile(t *testing.T) {
	r := NewAssetResolver(fileDoc("/content/posts/a.json"), graph.NewMemoryStore(), FSMaterializer{FS: memfs.New()}, nil)

	_, err := r.MaybeResolve(context.Background(), jsonvalue.StringValue("gone.jpg"), "c")
	var are *AssetResolutionError
	require.True(t, errors.As(err, &are))
	assert.Equal(t, "gone.jpg", are.Reference)
	assert.Equal(t, "/content/posts/gone.jpg", are.Path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
