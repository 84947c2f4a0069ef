package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/semdesk/internal/query"
	"github.com/Aman-CERP/semdesk/internal/rdf"
)

func newTestStore(t *testing.T) *QuadStore {
	t.Helper()
	s, err := OpenQuadStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// instanceBase returns the statements declaring g an instance base
// described by metadata graph m.
func instanceBase(g, m rdf.Term) []rdf.Statement {
	return []rdf.Statement{
		rdf.NewStatement(g, rdf.RDFType, rdf.NRLInstanceBase, m),
		rdf.NewStatement(m, rdf.RDFType, rdf.NRLGraphMetadata, m),
		rdf.NewStatement(m, rdf.NRLCoreGraphMetadataFor, g, m),
	}
}

func TestQuadStore_AddCountContains(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// Given: two statements, one added twice
	g := rdf.NewGraphURI()
	res := rdf.NewResourceURI()
	a := rdf.NewStatement(res, rdf.NFOFileName, rdf.Literal("a.txt"), g)
	b := rdf.NewStatement(res, rdf.NFOFileSize, rdf.Long(12), g)

	// When: adding
	require.NoError(t, s.AddStatements(ctx, a, b, a))

	// Then: duplicates collapse
	n, err := s.Count(ctx, rdf.Pattern{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	ok, err := s.Contains(ctx, b)
	require.NoError(t, err)
	assert.True(t, ok)

	other := b
	other.Object = rdf.Long(13)
	ok, err = s.Contains(ctx, other)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQuadStore_RejectsInvalidStatement(t *testing.T) {
	s := newTestStore(t)

	err := s.AddStatements(context.Background(), rdf.Statement{Subject: rdf.URI("s")})

	assert.Error(t, err)
}

func TestQuadStore_RemoveStatements(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	g := rdf.NewGraphURI()
	r1, r2 := rdf.NewResourceURI(), rdf.NewResourceURI()
	require.NoError(t, s.AddStatements(ctx,
		rdf.NewStatement(r1, rdf.NFOFileName, rdf.Literal("one"), g),
		rdf.NewStatement(r1, rdf.NFOFileSize, rdf.Long(1), g),
		rdf.NewStatement(r2, rdf.NFOFileName, rdf.Literal("two"), g),
	))

	// When: removing everything about r1
	n, err := s.RemoveStatements(ctx, rdf.Pattern{Subject: r1})

	// Then: only r1's statements go
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	left, err := s.Count(ctx, rdf.Pattern{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), left)
}

func TestQuadStore_Statements_PagesLazily(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// Given: more statements than one page
	g := rdf.NewGraphURI()
	total := pageSize*2 + 17
	stmts := make([]rdf.Statement, 0, total)
	for i := 0; i < total; i++ {
		stmts = append(stmts, rdf.NewStatement(rdf.URI(fmt.Sprintf("urn:r:%d", i)), rdf.NFOFileName, rdf.Literal("x"), g))
	}
	require.NoError(t, s.AddStatements(ctx, stmts...))

	// When: collecting through the cursor
	got, err := query.Collect(s.Statements(ctx, rdf.Pattern{Graph: g}))

	// Then: all come back in insertion order
	require.NoError(t, err)
	require.Len(t, got, total)
	assert.Equal(t, "urn:r:0", got[0].Subject.Value)
	assert.Equal(t, fmt.Sprintf("urn:r:%d", total-1), got[total-1].Subject.Value)
}

func TestQuadStore_Statements_OpenCursorDoesNotBlockWriters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	g := rdf.NewGraphURI()
	require.NoError(t, s.AddStatements(ctx, rdf.NewStatement(rdf.URI("urn:a"), rdf.NFOFileName, rdf.Literal("a"), g)))

	// Given: a cursor positioned on a result
	it := s.Statements(ctx, rdf.Pattern{})
	require.True(t, it.Next())

	// When: writing while it is open
	err := s.AddStatements(ctx, rdf.NewStatement(rdf.URI("urn:b"), rdf.NFOFileName, rdf.Literal("b"), g))

	// Then: the write succeeds
	require.NoError(t, err)
	require.NoError(t, it.Close())
}

func TestQuadStore_EmptyInstanceBases(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// Given: an empty instance base, a populated one, and an empty graph
	// that is not an instance base
	emptyG, emptyM := rdf.NewGraphURI(), rdf.NewGraphURI()
	fullG, fullM := rdf.NewGraphURI(), rdf.NewGraphURI()
	other := rdf.NewGraphURI()
	stmts := append(instanceBase(emptyG, emptyM), instanceBase(fullG, fullM)...)
	stmts = append(stmts,
		rdf.NewStatement(rdf.NewResourceURI(), rdf.NFOFileName, rdf.Literal("f"), fullG),
		rdf.NewStatement(other, rdf.RDFType, rdf.NRLGraphMetadata, rdf.NewGraphURI()),
	)
	require.NoError(t, s.AddStatements(ctx, stmts...))

	// When: querying candidates
	got, err := s.EmptyInstanceBases(ctx, 100, nil)

	// Then: only the empty instance base qualifies
	require.NoError(t, err)
	assert.Equal(t, []string{emptyG.Value}, got)

	metas, err := s.MetadataGraphsFor(ctx, emptyG.Value)
	require.NoError(t, err)
	assert.Equal(t, []string{emptyM.Value}, metas)

	skipped, err := s.EmptyInstanceBases(ctx, 100, []string{emptyG.Value})
	require.NoError(t, err)
	assert.Empty(t, skipped)
}

func TestQuadStore_EmptyInstanceBases_HonoursLimit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.AddStatements(ctx, instanceBase(rdf.NewGraphURI(), rdf.NewGraphURI())...))
	}

	got, err := s.EmptyInstanceBases(ctx, 3, nil)

	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestQuadStore_RemoveGraphs_IsAtomicForReaders(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// Given: a graph with many statements
	g := rdf.NewGraphURI()
	const size = 200
	var stmts []rdf.Statement
	for i := 0; i < size; i++ {
		stmts = append(stmts, rdf.NewStatement(rdf.URI(fmt.Sprintf("urn:r:%d", i)), rdf.NFOFileName, rdf.Literal("x"), g))
	}
	require.NoError(t, s.AddStatements(ctx, stmts...))

	// When: removing it while readers count
	var wg sync.WaitGroup
	counts := make(chan int64, 100)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				n, err := s.Count(ctx, rdf.Pattern{Graph: g})
				if err == nil {
					counts <- n
				}
			}
		}()
	}
	removed, err := s.RemoveGraphs(ctx, g.Value)
	wg.Wait()
	close(counts)

	// Then: readers only ever saw all or nothing
	require.NoError(t, err)
	assert.Equal(t, int64(size), removed)
	for n := range counts {
		assert.Contains(t, []int64{0, size}, n)
	}
}

func TestQuadStore_ClosedStoreFails(t *testing.T) {
	s, err := OpenQuadStore("")
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.Count(context.Background(), rdf.Pattern{})
	assert.Error(t, err)

	it := s.Statements(context.Background(), rdf.Pattern{})
	assert.False(t, it.Next())
	assert.Error(t, it.Err())
}
