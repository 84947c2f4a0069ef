package indexer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	semerrors "github.com/Aman-CERP/semdesk/internal/errors"
	"github.com/Aman-CERP/semdesk/internal/query"
	"github.com/Aman-CERP/semdesk/internal/rdf"
	"github.com/Aman-CERP/semdesk/internal/store"
)

func newTestIndexer(t *testing.T, cfg Config) (*FileIndexer, *store.Model) {
	t.Helper()
	s, err := store.OpenQuadStore("")
	require.NoError(t, err)
	idx, err := store.OpenFullTextIndex("")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = idx.Close()
		_ = s.Close()
	})
	model := store.NewModel(s, idx)
	ix, err := New(model, cfg)
	require.NoError(t, err)
	return ix, model
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestIndex_WritesFileMetadata(t *testing.T) {
	ctx := context.Background()
	ix, model := newTestIndexer(t, Config{MaxTextBytes: 1024})
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	writeFile(t, path, "remember the milk")

	// When: indexing a text file
	res, err := ix.Index(ctx, path)

	// Then: the resource carries the file properties
	require.NoError(t, err)
	props, err := model.Resource(ctx, res.Resource)
	require.NoError(t, err)
	assert.Equal(t, []rdf.Term{rdf.FileURL(path)}, props[rdf.NIEURL.Value])
	assert.Equal(t, []rdf.Term{rdf.Literal("notes.txt")}, props[rdf.NFOFileName.Value])
	assert.Equal(t, []rdf.Term{rdf.Long(17)}, props[rdf.NFOFileSize.Value])
	assert.Equal(t, []rdf.Term{rdf.FileURL(dir)}, props[rdf.NIEIsPartOf.Value])
	assert.Equal(t, []rdf.Term{rdf.Literal("remember the milk")}, props[rdf.NIEPlainTextContent.Value])
	assert.Contains(t, props[rdf.RDFType.Value], rdf.NFOFileDataObject)
	require.Len(t, props[rdf.NIEMimeType.Value], 1)
	assert.True(t, strings.HasPrefix(props[rdf.NIEMimeType.Value][0].Value, "text/"))

	// And: the content is searchable
	hits, err := query.Collect(model.Search(ctx, "milk", 5))
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, res.Resource, hits[0].Resource)
}

func TestIndex_DeclaresInstanceBaseGraph(t *testing.T) {
	ctx := context.Background()
	ix, model := newTestIndexer(t, Config{})
	path := filepath.Join(t.TempDir(), "a.bin")
	writeFile(t, path, "\x00\x01\x02")

	res, err := ix.Index(ctx, path)
	require.NoError(t, err)

	// Then: the graph is an instance base with a metadata graph
	metas, err := model.Store().MetadataGraphsFor(ctx, res.Graph)
	require.NoError(t, err)
	require.Len(t, metas, 1)
	ok, err := model.Store().Contains(ctx, rdf.NewStatement(rdf.URI(res.Graph), rdf.RDFType, rdf.NRLInstanceBase, rdf.URI(metas[0])))
	require.NoError(t, err)
	assert.True(t, ok)
	n, err := model.Store().Count(ctx, rdf.Pattern{Graph: rdf.URI(res.Graph)})
	require.NoError(t, err)
	assert.Equal(t, int64(res.Statements-4), n)
}

func TestIndex_ReindexReusesResourceAndEmptiesOldGraph(t *testing.T) {
	ctx := context.Background()
	ix, model := newTestIndexer(t, Config{MaxTextBytes: 1024})
	path := filepath.Join(t.TempDir(), "doc.txt")
	writeFile(t, path, "first version")

	first, err := ix.Index(ctx, path)
	require.NoError(t, err)

	// When: the file changes and is reindexed
	writeFile(t, path, "second version")
	second, err := ix.Index(ctx, path)
	require.NoError(t, err)

	// Then: same resource, new graph, old graph empty and collectable
	assert.Equal(t, first.Resource, second.Resource)
	assert.NotEqual(t, first.Graph, second.Graph)
	empty, err := model.Store().EmptyInstanceBases(ctx, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{first.Graph}, empty)

	hits, err := query.Collect(model.Search(ctx, "first", 5))
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndex_ResourceLookupSurvivesCacheMiss(t *testing.T) {
	ctx := context.Background()
	ix, model := newTestIndexer(t, Config{})
	path := filepath.Join(t.TempDir(), "x.txt")
	writeFile(t, path, "x")
	first, err := ix.Index(ctx, path)
	require.NoError(t, err)

	// Given: a second indexer with a cold cache over the same model
	cold, err := New(model, Config{})
	require.NoError(t, err)

	// When: reindexing through it
	second, err := cold.Index(ctx, path)

	// Then: the resource is found through the store
	require.NoError(t, err)
	assert.Equal(t, first.Resource, second.Resource)
}

func TestIndex_Folder(t *testing.T) {
	ctx := context.Background()
	ix, model := newTestIndexer(t, Config{})
	dir := filepath.Join(t.TempDir(), "photos")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	res, err := ix.Index(ctx, dir)

	require.NoError(t, err)
	props, err := model.Resource(ctx, res.Resource)
	require.NoError(t, err)
	assert.Contains(t, props[rdf.RDFType.Value], rdf.NFOFolder)
	assert.Empty(t, props[rdf.NFOFileSize.Value])
}

func TestIndex_Errors(t *testing.T) {
	ctx := context.Background()
	ix, _ := newTestIndexer(t, Config{MaxFileSize: 4})

	_, err := ix.Index(ctx, filepath.Join(t.TempDir(), "missing"))
	assert.Equal(t, semerrors.ErrCodeFileNotFound, semerrors.GetCode(err))

	big := filepath.Join(t.TempDir(), "big.txt")
	writeFile(t, big, "too large")
	_, err = ix.Index(ctx, big)
	assert.Equal(t, semerrors.ErrCodeFileTooLarge, semerrors.GetCode(err))
}

func TestIndex_TextIsCapped(t *testing.T) {
	ctx := context.Background()
	ix, model := newTestIndexer(t, Config{MaxTextBytes: 5})
	path := filepath.Join(t.TempDir(), "long.txt")
	writeFile(t, path, "abcdefghij")

	res, err := ix.Index(ctx, path)

	require.NoError(t, err)
	props, err := model.Resource(ctx, res.Resource)
	require.NoError(t, err)
	assert.Equal(t, []rdf.Term{rdf.Literal("abcde")}, props[rdf.NIEPlainTextContent.Value])
}

func TestIndex_CapSplitsRune(t *testing.T) {
	// Given: a UTF-8 file whose second character straddles the cap
	ctx := context.Background()
	ix, model := newTestIndexer(t, Config{MaxTextBytes: 2})
	path := filepath.Join(t.TempDir(), "accent.txt")
	writeFile(t, path, "héllo")

	// When: indexing it
	res, err := ix.Index(ctx, path)

	// Then: the split rune is dropped instead of the file being read as Windows-1252
	require.NoError(t, err)
	props, err := model.Resource(ctx, res.Resource)
	require.NoError(t, err)
	assert.Equal(t, []rdf.Term{rdf.Literal("h")}, props[rdf.NIEPlainTextContent.Value])
}

func TestIsUpToDate(t *testing.T) {
	ctx := context.Background()
	ix, _ := newTestIndexer(t, Config{})
	path := filepath.Join(t.TempDir(), "f.txt")
	writeFile(t, path, "content")

	// Given: not yet indexed
	info, err := os.Stat(path)
	require.NoError(t, err)
	ok, err := ix.IsUpToDate(ctx, path, info.ModTime())
	require.NoError(t, err)
	assert.False(t, ok)

	// When: indexed
	_, err = ix.Index(ctx, path)
	require.NoError(t, err)

	// Then: the same mtime is up to date and a later one is not
	ok, err = ix.IsUpToDate(ctx, path, info.ModTime())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ix.IsUpToDate(ctx, path, info.ModTime().Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemove_FolderTakesChildren(t *testing.T) {
	ctx := context.Background()
	ix, model := newTestIndexer(t, Config{})
	dir := filepath.Join(t.TempDir(), "proj")
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "sub", "b.txt")
	writeFile(t, a, "a")
	writeFile(t, b, "b")
	for _, p := range []string{dir, a, filepath.Dir(b), b} {
		_, err := ix.Index(ctx, p)
		require.NoError(t, err)
	}

	// When: removing the folder
	removed, err := ix.Remove(ctx, dir)

	// Then: nothing about it or below it remains
	require.NoError(t, err)
	assert.True(t, removed)
	n, err := model.Store().Count(ctx, rdf.Pattern{Predicate: rdf.NIEURL})
	require.NoError(t, err)
	assert.Zero(t, n)

	removed, err = ix.Remove(ctx, dir)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestChildren(t *testing.T) {
	ctx := context.Background()
	ix, _ := newTestIndexer(t, Config{})
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	writeFile(t, a, "a")
	res, err := ix.Index(ctx, a)
	require.NoError(t, err)

	children, err := ix.Children(ctx, dir)

	require.NoError(t, err)
	assert.Equal(t, []IndexedFile{{Resource: res.Resource, Path: a}}, children)
}

func TestExtractText(t *testing.T) {
	assert.Equal(t, "héllo", extractText([]byte("héllo"), 100))
	// cut inside the two-byte é
	assert.Equal(t, "h", extractText([]byte("héllo"), 2))
	// a lone byte after a UTF-16 BOM is not text
	assert.Equal(t, "", extractText([]byte{0xff, 0xfe, 'a'}, 100))
}

func TestExtractText_Encodings(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		maxBytes int
		want     string
	}{
		{name: "utf-8 bom", data: []byte("\xef\xbb\xbfhey"), maxBytes: 100, want: "hey"},
		{name: "utf-16le bom", data: []byte{0xff, 0xfe, 'h', 0, 'i', 0}, maxBytes: 100, want: "hi"},
		{name: "utf-16be bom", data: []byte{0xfe, 0xff, 0, 'o', 0, 'k'}, maxBytes: 100, want: "ok"},
		{name: "windows-1252", data: []byte{'c', 'a', 'f', 0xe9}, maxBytes: 100, want: "café"},
		{name: "windows-1252 smart quotes", data: []byte{0x93, 'q', 0x94}, maxBytes: 100, want: "\u201cq\u201d"},
		{name: "decoded text is capped", data: []byte{0xe9, 0xe9, 0xe9}, maxBytes: 3, want: "é"},
		{name: "decoded utf-16 is capped", data: []byte{0xff, 0xfe, 0xac, 0x20, 0xac, 0x20, 0xac, 0x20}, maxBytes: 8, want: "€€"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractText(tt.data, tt.maxBytes))
		})
	}
}
