package cmd

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/semdesk/internal/query"
	"github.com/Aman-CERP/semdesk/internal/rdf"
)

// closeFailer buffers writes and fails on Close, like a file whose final
// flush hits a full disk.
type closeFailer struct {
	bytes.Buffer
	err    error
	closed bool
}

func (c *closeFailer) Close() error {
	c.closed = true
	return c.err
}

func exportStatements() query.Iterator[rdf.Statement] {
	return query.FromSlice([]rdf.Statement{
		rdf.NewStatement(rdf.URI("urn:a"), rdf.URI("urn:p"), rdf.Literal("x"), rdf.URI("urn:g")),
	})
}

func TestExportTo_ReportsCloseError(t *testing.T) {
	// Given: an output that fails to close
	out := &closeFailer{err: errors.New("no space left on device")}

	// When: exporting into it
	n, err := exportTo(out, exportStatements())

	// Then: the close failure is the export's error
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no space left on device")
	assert.Equal(t, 1, n)
	assert.True(t, out.closed)
}

func TestExportTo_ClosesOnSuccess(t *testing.T) {
	out := &closeFailer{}

	n, err := exportTo(out, exportStatements())

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, out.closed)
	assert.Contains(t, out.String(), "<urn:a> <urn:p> ")
	assert.Contains(t, out.String(), " <urn:g> .\n")
}
