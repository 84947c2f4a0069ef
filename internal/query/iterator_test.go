package query

import (
	"database/sql"
	"errors"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func TestFromSlice_YieldsInOrder(t *testing.T) {
	it := FromSlice([]int{1, 2, 3})

	got, err := Collect(it)

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestIterator_NotRestartable(t *testing.T) {
	// Given: an iterator with one result
	it := FromSlice([]string{"a"})

	// When: advancing past the end
	require.True(t, it.Next())
	assert.Equal(t, "a", it.Current())

	// Then: Next stays false on every later call and Current is zero
	for i := 0; i < 3; i++ {
		assert.False(t, it.Next())
		assert.Equal(t, "", it.Current())
	}
}

func TestIterator_CurrentBeforeNextIsZero(t *testing.T) {
	it := FromSlice([]int{7})
	assert.Equal(t, 0, it.Current())
}

func TestIterator_NextAfterCloseIsFalse(t *testing.T) {
	it := FromSlice([]int{1, 2})
	require.NoError(t, it.Close())
	require.NoError(t, it.Close())

	assert.False(t, it.Next())
}

func TestIterator_ReleaseRunsOnceOnExhaustion(t *testing.T) {
	// Given: a source counting releases
	released := 0
	n := 0
	it := New(func() (int, bool, error) {
		n++
		return n, n <= 2, nil
	}, func() error { released++; return nil })

	// When: draining and closing explicitly as well
	for it.Next() {
	}
	_ = it.Close()

	// Then: release ran exactly once
	assert.Equal(t, 1, released)
}

func TestIterator_ErrorStopsIteration(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	it := New(func() (int, bool, error) {
		calls++
		if calls == 2 {
			return 0, false, boom
		}
		return calls, true, nil
	}, nil)

	assert.True(t, it.Next())
	assert.False(t, it.Next())
	assert.False(t, it.Next())
	assert.ErrorIs(t, it.Err(), boom)
	assert.Equal(t, 2, calls)
}

func TestFailed(t *testing.T) {
	boom := errors.New("boom")
	_, err := Collect(Failed[int](boom))
	assert.ErrorIs(t, err, boom)
}

func TestMapAndFilter(t *testing.T) {
	src := FromSlice([]int{1, 2, 3, 4})

	evens := Filter(src, func(v int) bool { return v%2 == 0 })
	labels := Map(evens, func(v int) (string, error) { return "n" + strconv.Itoa(v), nil })

	got, err := Collect(labels)
	require.NoError(t, err)
	assert.Equal(t, []string{"n2", "n4"}, got)
}

func TestMap_ErrorPropagates(t *testing.T) {
	boom := errors.New("bad value")
	it := Map(FromSlice([]int{1}), func(int) (int, error) { return 0, boom })

	_, err := Collect(it)

	assert.ErrorIs(t, err, boom)
}

func TestFromRows_LazyAndClosesRows(t *testing.T) {
	// Given: a table with three rows
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "q.db"))
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)
	_, err = db.Exec(`CREATE TABLE t (v INTEGER); INSERT INTO t VALUES (1), (2), (3);`)
	require.NoError(t, err)

	rows, err := db.Query(`SELECT v FROM t ORDER BY v`)
	require.NoError(t, err)

	// When: reading only the first row and closing
	it := FromRows(rows, func(r *sql.Rows) (int, error) {
		var v int
		return v, r.Scan(&v)
	})
	require.True(t, it.Next())
	assert.Equal(t, 1, it.Current())
	require.NoError(t, it.Close())

	// Then: the single connection is free again
	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM t`).Scan(&count))
	assert.Equal(t, 3, count)
}
