package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/semdesk/internal/daemon"
	semerrors "github.com/Aman-CERP/semdesk/internal/errors"
	"github.com/Aman-CERP/semdesk/internal/rdf"
	"github.com/Aman-CERP/semdesk/internal/writeback"
)

func TestIndexCmd_Flags(t *testing.T) {
	// Given: the index command
	cmd, _, err := NewRootCmd().Find([]string{"index"})
	require.NoError(t, err)

	// Then: recursion is on by default
	for _, name := range []string{"recursive", "forced", "maintain", "plain", "no-color"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing flag --%s", name)
	}
	assert.Equal(t, "true", cmd.Flags().Lookup("recursive").DefValue)
}

func TestIndexCmd_MissingPath(t *testing.T) {
	// Given: a path that does not exist
	env := newTestEnv(t)

	// When: indexing it
	_, _, err := env.run(t, "index", filepath.Join(env.docs, "missing"))

	// Then: it fails before touching the repository
	require.Error(t, err)
	assert.Equal(t, semerrors.ErrCodeFileNotFound, semerrors.GetCode(err))
	assert.NoDirExists(t, env.cfg.Storage.Path)
}

func TestIndexCmd_OfflineThenSearch(t *testing.T) {
	// Given: a folder with two documents and no daemon
	env := newTestEnv(t)
	invoice := env.writeDoc(t, "invoice.txt", "quarterly invoice for the harbour office")
	env.writeDoc(t, "notes/todo.txt", "buy milk")

	// When: indexing the configured folders
	stdout, _, err := env.run(t, "index", "--plain")

	// Then: the pass completes and reports its summary
	require.NoError(t, err)
	assert.Contains(t, stdout, "Complete:")
	assert.Contains(t, stdout, "[INDEX]")

	// And: a search finds the document by its content
	stdout, _, err = env.run(t, "search", "harbour", "--json")
	require.NoError(t, err)
	var results []daemon.SearchResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &results))
	require.Len(t, results, 1)
	assert.Equal(t, invoice, results[0].Path)
	assert.Equal(t, "text/plain", results[0].MimeType)

	// And: the human readable output lists the path
	stdout, _, err = env.run(t, "search", "harbour")
	require.NoError(t, err)
	assert.Contains(t, stdout, invoice)
	assert.Contains(t, stdout, "1 results")
}

func TestIndexCmd_SecondPassSkipsUnchanged(t *testing.T) {
	// Given: an indexed folder
	env := newTestEnv(t)
	env.writeDoc(t, "a.txt", "alpha")
	_, _, err := env.run(t, "index", "--plain")
	require.NoError(t, err)

	// When: indexing again without changes
	stdout, _, err := env.run(t, "index", env.docs, "--plain")

	// Then: nothing is re-indexed
	require.NoError(t, err)
	assert.Contains(t, stdout, "Complete: 0 indexed")
}

func TestIndexCmd_ExcludedFile(t *testing.T) {
	// Given: a file matching the default exclude filters
	env := newTestEnv(t)
	path := env.writeDoc(t, "draft.tmp", "scratch")

	// When: indexing it directly
	stdout, _, err := env.run(t, "index", path)

	// Then: it is reported as excluded, not an error
	require.NoError(t, err)
	assert.Contains(t, stdout, "excluded")
}

func TestIndexCmd_WithMaintain(t *testing.T) {
	// Given: a document in the folder
	env := newTestEnv(t)
	env.writeDoc(t, "a.txt", "alpha")

	// When: indexing with a maintenance sweep afterwards
	stdout, _, err := env.run(t, "index", "--plain", "--maintain")

	// Then: both stages run
	require.NoError(t, err)
	assert.Contains(t, stdout, "[SWEEP]")
	assert.Contains(t, stdout, "Complete:")
}

func TestSearchCmd_NoResults(t *testing.T) {
	// Given: an empty repository
	env := newTestEnv(t)

	// When: searching
	stdout, _, err := env.run(t, "search", "nothing")

	// Then: it says so
	require.NoError(t, err)
	assert.Contains(t, stdout, `No results for "nothing"`)
}

func TestSearchCmd_RequiresQuery(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := env.run(t, "search")
	require.Error(t, err)
}

func TestExportCmd_WritesNQuads(t *testing.T) {
	// Given: an indexed document
	env := newTestEnv(t)
	path := env.writeDoc(t, "report.txt", "annual report")
	_, _, err := env.run(t, "index", "--plain")
	require.NoError(t, err)

	// When: exporting to stdout
	stdout, _, err := env.run(t, "export")

	// Then: the file URL appears in N-Quads form
	require.NoError(t, err)
	assert.Contains(t, stdout, "<"+rdf.FileURL(path).Value+">")
	assert.Contains(t, stdout, " .\n")

	// And: exporting to a file reports the count on stderr
	out := filepath.Join(t.TempDir(), "dump.nq")
	_, stderr, err := env.run(t, "export", "-o", out)
	require.NoError(t, err)
	assert.Contains(t, stderr, "Exported")
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, stdout, string(data))
}

func TestMaintainCmd_Offline(t *testing.T) {
	// Given: an indexed repository
	env := newTestEnv(t)
	env.writeDoc(t, "a.txt", "alpha")
	_, _, err := env.run(t, "index", "--plain")
	require.NoError(t, err)

	// When: running maintenance without a daemon
	stdout, _, err := env.run(t, "maintain")

	// Then: the sweep runs here and reports its statistics
	require.NoError(t, err)
	assert.Contains(t, stdout, "Maintenance complete")
	assert.Contains(t, stdout, "Graphs:")
}

func TestMaintainCmd_Reindex(t *testing.T) {
	// Given: an indexed repository
	env := newTestEnv(t)
	env.writeDoc(t, "a.txt", "lighthouse")
	_, _, err := env.run(t, "index", "--plain")
	require.NoError(t, err)

	// When: rebuilding the full-text index offline
	stdout, _, err := env.run(t, "maintain", "--reindex")

	// Then: resources are rebuilt and stay searchable
	require.NoError(t, err)
	assert.Regexp(t, `Reindexed:\s+[1-9]`, stdout)
	assert.Contains(t, stdout, "Maintenance complete")

	stdout, _, err = env.run(t, "search", "lighthouse")
	require.NoError(t, err)
	assert.Contains(t, stdout, "a.txt")
}

func TestWritebackCmd_Offline(t *testing.T) {
	// Given: an indexed document
	env := newTestEnv(t)
	path := env.writeDoc(t, "photo.txt", "holiday")
	_, _, err := env.run(t, "index", "--plain")
	require.NoError(t, err)

	// When: writing back its metadata
	stdout, _, err := env.run(t, "writeback", path)

	// Then: a sidecar is written next to it
	require.NoError(t, err)
	assert.Contains(t, stdout, "Wrote metadata")
	sidecar, err := writeback.ReadSidecar(writeback.SidecarPath(path))
	require.NoError(t, err)
	assert.True(t, rdf.IsResourceURI(sidecar.Resource))
}

func TestWritebackCmd_NotIndexed(t *testing.T) {
	// Given: a file that was never indexed
	env := newTestEnv(t)
	path := env.writeDoc(t, "new.txt", "fresh")

	// When: writing it back
	_, _, err := env.run(t, "writeback", path)

	// Then: the error says it is not indexed
	require.Error(t, err)
	assert.Equal(t, semerrors.ErrCodeNotIndexed, semerrors.GetCode(err))
}

func TestWritebackParams(t *testing.T) {
	p, err := writebackParams("urn:semdesk:res:1234")
	require.NoError(t, err)
	assert.Equal(t, "urn:semdesk:res:1234", p.Resource)
	assert.Empty(t, p.Path)

	p, err = writebackParams("relative.txt")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(p.Path))
	assert.Empty(t, p.Resource)
}
