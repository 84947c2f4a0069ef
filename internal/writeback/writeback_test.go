package writeback

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	semerrors "github.com/Aman-CERP/semdesk/internal/errors"
	"github.com/Aman-CERP/semdesk/internal/indexer"
	"github.com/Aman-CERP/semdesk/internal/rdf"
	"github.com/Aman-CERP/semdesk/internal/store"
)

type mapSource map[string]map[string][]rdf.Term

func (m mapSource) Resource(_ context.Context, resource string) (map[string][]rdf.Term, error) {
	if props, ok := m[resource]; ok {
		return props, nil
	}
	return map[string][]rdf.Term{}, nil
}

type stubPlugin struct {
	name  string
	mime  string
	err   error
	calls []string
}

func (s *stubPlugin) Name() string { return s.name }

func (s *stubPlugin) CanWrite(mimeType string) bool { return s.mime == "" || s.mime == mimeType }

func (s *stubPlugin) Write(_ context.Context, path string, _ Properties) error {
	s.calls = append(s.calls, path)
	return s.err
}

func fileResource(path, mime string) map[string][]rdf.Term {
	return map[string][]rdf.Term{
		rdf.NIEURL.Value:      {rdf.FileURL(path)},
		rdf.NIEMimeType.Value: {rdf.Literal(mime)},
		rdf.NFOFileName.Value: {rdf.Literal(filepath.Base(path))},
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	text := &stubPlugin{name: "text", mime: "text/plain"}
	all := &stubPlugin{name: "all"}

	require.NoError(t, r.Register(text))
	require.NoError(t, r.Register(all))
	assert.Error(t, r.Register(&stubPlugin{name: "text"}))

	got, ok := r.Get("text")
	require.True(t, ok)
	assert.Same(t, text, got)
	_, ok = r.Get("missing")
	assert.False(t, ok)

	assert.Equal(t, []Plugin{text, all}, r.For("text/plain"))
	assert.Equal(t, []Plugin{all}, r.For("image/png"))
	assert.Equal(t, []string{"all", "text"}, r.Names())
}

func TestWriter_DispatchesByMimeType(t *testing.T) {
	// Given: a png resource and two plugins
	src := mapSource{"urn:r1": fileResource("/photos/a.png", "image/png")}
	reg := NewRegistry()
	png := &stubPlugin{name: "png", mime: "image/png"}
	txt := &stubPlugin{name: "txt", mime: "text/plain"}
	require.NoError(t, reg.Register(png))
	require.NoError(t, reg.Register(txt))

	// When: writing back
	res, err := NewWriter(src, reg).Writeback(context.Background(), "urn:r1")

	// Then: only the matching plugin ran
	require.NoError(t, err)
	assert.Equal(t, "/photos/a.png", res.Path)
	assert.Equal(t, "image/png", res.MimeType)
	assert.Equal(t, []string{"png"}, res.Written)
	assert.Equal(t, []string{"/photos/a.png"}, png.calls)
	assert.Empty(t, txt.calls)
}

func TestWriter_AggregatesPluginFailures(t *testing.T) {
	// Given: two failing plugins around a working one
	src := mapSource{"urn:r1": fileResource("/docs/a.txt", "text/plain")}
	reg := NewRegistry()
	errA := errors.New("disk full")
	errB := errors.New("read only")
	require.NoError(t, reg.Register(&stubPlugin{name: "a", err: errA}))
	ok := &stubPlugin{name: "ok"}
	require.NoError(t, reg.Register(ok))
	require.NoError(t, reg.Register(&stubPlugin{name: "b", err: errB}))

	// When: writing back
	res, err := NewWriter(src, reg).Writeback(context.Background(), "urn:r1")

	// Then: every plugin ran and both failures are reported
	require.Error(t, err)
	assert.Equal(t, semerrors.ErrCodeWritebackFailed, semerrors.GetCode(err))
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Equal(t, []string{"ok"}, res.Written)
	assert.Equal(t, []string{"a", "b"}, res.Failed)
	assert.Len(t, ok.calls, 1)
}

func TestWriter_UnknownResource(t *testing.T) {
	_, err := NewWriter(mapSource{}, NewRegistry()).Writeback(context.Background(), "urn:nope")

	require.Error(t, err)
	assert.Equal(t, semerrors.ErrCodeInvalidInput, semerrors.GetCode(err))
}

func TestWriter_ResourceWithoutURL(t *testing.T) {
	src := mapSource{"urn:r1": {rdf.NFOFileName.Value: {rdf.Literal("x")}}}

	_, err := NewWriter(src, NewRegistry()).Writeback(context.Background(), "urn:r1")

	require.Error(t, err)
	assert.Equal(t, semerrors.ErrCodeInvalidInput, semerrors.GetCode(err))
}

func TestWriter_NoMatchingPlugin(t *testing.T) {
	src := mapSource{"urn:r1": fileResource("/a.bin", "application/octet-stream")}
	reg := NewRegistry()
	require.NoError(t, reg.Register(&stubPlugin{name: "txt", mime: "text/plain"}))

	res, err := NewWriter(src, reg).Writeback(context.Background(), "urn:r1")

	require.NoError(t, err)
	assert.Empty(t, res.Written)
}

func TestSidecarPlugin_WritesProperties(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	plugin := NewSidecarPlugin()
	plugin.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	props := Properties(fileResource(path, "text/plain"))
	props[rdf.NIEPlainTextContent.Value] = []rdf.Term{rdf.Literal("hello")}
	props[ResourceKey] = []rdf.Term{rdf.URI("urn:r1")}

	// When: writing
	require.NoError(t, plugin.Write(context.Background(), path, props))

	// Then: the sidecar holds compacted properties without the text
	doc, err := ReadSidecar(path)
	require.NoError(t, err)
	assert.Equal(t, "urn:r1", doc.Resource)
	assert.Equal(t, "notes.txt", doc.Source)
	assert.True(t, doc.Written.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, []string{"text/plain"}, doc.Properties["nie:mimeType"])
	assert.Equal(t, []string{"notes.txt"}, doc.Properties["nfo:fileName"])
	assert.NotContains(t, doc.Properties, "nie:plainTextContent")

	// And: no temp files are left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestSidecarPlugin_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	path := filepath.Join(t.TempDir(), "a.txt")

	err := NewSidecarPlugin().Write(ctx, path, Properties{})

	assert.ErrorIs(t, err, context.Canceled)
	_, statErr := os.Stat(SidecarPath(path))
	assert.True(t, os.IsNotExist(statErr))
}

func TestWriter_WithIndexedFile(t *testing.T) {
	ctx := context.Background()
	s, err := store.OpenQuadStore("")
	require.NoError(t, err)
	idx, err := store.OpenFullTextIndex("")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = idx.Close()
		_ = s.Close()
	})
	model := store.NewModel(s, idx)
	ix, err := indexer.New(model, indexer.Config{})
	require.NoError(t, err)

	// Given: an indexed file
	path := filepath.Join(t.TempDir(), "report.md")
	require.NoError(t, os.WriteFile(path, []byte("# Report"), 0o644))
	indexed, err := ix.Index(ctx, path)
	require.NoError(t, err)

	reg := NewRegistry()
	require.NoError(t, reg.Register(NewSidecarPlugin()))

	// When: writing back its resource
	res, err := NewWriter(model, reg).Writeback(ctx, indexed.Resource)

	// Then: the sidecar describes it
	require.NoError(t, err)
	assert.Equal(t, []string{"sidecar"}, res.Written)
	doc, err := ReadSidecar(path)
	require.NoError(t, err)
	assert.Equal(t, indexed.Resource, doc.Resource)
	assert.Equal(t, []string{"report.md"}, doc.Properties["nfo:fileName"])
}
