package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/semdesk/internal/config"
	"github.com/Aman-CERP/semdesk/internal/filter"
)

func TestOperation_String(t *testing.T) {
	tests := []struct {
		name string
		op   Operation
		want string
	}{
		{"create", OpCreate, "CREATE"},
		{"modify", OpModify, "MODIFY"},
		{"delete", OpDelete, "DELETE"},
		{"unknown", Operation(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.op.String())
		})
	}
}

func TestOptions_WithDefaults(t *testing.T) {
	opts := Options{}.WithDefaults()

	assert.Equal(t, 500*time.Millisecond, opts.Debounce)
	assert.Equal(t, 16, opts.BatchBuffer)

	custom := Options{Debounce: time.Second, BatchBuffer: 2}.WithDefaults()
	assert.Equal(t, time.Second, custom.Debounce)
	assert.Equal(t, 2, custom.BatchBuffer)
}

// recorder is a Target that remembers its calls.
type recorder struct {
	mu      sync.Mutex
	indexed []string
	removed []string
	folders []string
}

func (r *recorder) IndexFile(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexed = append(r.indexed, path)
	return true
}

func (r *recorder) RemoveFile(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, path)
}

func (r *recorder) UpdateFolder(path string, _, _ bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.folders = append(r.folders, path)
	return true
}

func (r *recorder) has(list *[]string, path string) func() bool {
	return func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		for _, p := range *list {
			if p == path {
				return true
			}
		}
		return false
	}
}

func startWatcher(t *testing.T) (string, *Watcher, *recorder) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules"), 0o755))

	f, err := filter.New(config.IndexingConfig{
		Folders:        []config.Folder{{Path: root, Recursive: true}},
		ExcludeFilters: config.DefaultExcludeFilters(),
	})
	require.NoError(t, err)

	rec := &recorder{}
	w, err := New(f, rec, Options{Debounce: 30 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop() })
	return root, w, rec
}

func TestWatcher_SkipsExcludedDirectories(t *testing.T) {
	_, w, _ := startWatcher(t)

	// Then: only the root is watched, node_modules is not
	assert.Equal(t, 1, w.WatchCount())
}

func TestWatcher_NewFileIsIndexed(t *testing.T) {
	root, _, rec := startWatcher(t)
	path := filepath.Join(root, "note.txt")

	// When: a file is created and written
	require.NoError(t, os.WriteFile(path, []byte("hi"), 0o644))

	// Then: it is sent for indexing
	assert.Eventually(t, rec.has(&rec.indexed, path), 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_ExcludedNamesAreIgnored(t *testing.T) {
	root, _, rec := startWatcher(t)

	// When: a backup file and a normal file are created
	require.NoError(t, os.WriteFile(filepath.Join(root, "draft.txt~"), []byte("x"), 0o644))
	keep := filepath.Join(root, "keep.txt")
	require.NoError(t, os.WriteFile(keep, []byte("x"), 0o644))

	// Then: only the normal file reaches the target
	require.Eventually(t, rec.has(&rec.indexed, keep), 2*time.Second, 10*time.Millisecond)
	assert.False(t, rec.has(&rec.indexed, filepath.Join(root, "draft.txt~"))())
}

func TestWatcher_DeletedFileIsRemoved(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "old.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	f, err := filter.New(config.IndexingConfig{Folders: []config.Folder{{Path: root, Recursive: true}}})
	require.NoError(t, err)
	rec := &recorder{}
	w, err := New(f, rec, Options{Debounce: 30 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop() })

	// When: the file is deleted
	require.NoError(t, os.Remove(path))

	// Then: removal is requested
	assert.Eventually(t, rec.has(&rec.removed, path), 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_NewDirectoryIsWatchedAndUpdated(t *testing.T) {
	root, w, rec := startWatcher(t)
	dir := filepath.Join(root, "projects")

	// When: a directory is created
	require.NoError(t, os.Mkdir(dir, 0o755))

	// Then: a recursive folder update is requested and the folder is watched
	require.Eventually(t, rec.has(&rec.folders, dir), 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, w.WatchCount())

	// And: files inside it are picked up
	inner := filepath.Join(dir, "plan.md")
	require.NoError(t, os.WriteFile(inner, []byte("x"), 0o644))
	assert.Eventually(t, rec.has(&rec.indexed, inner), 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	_, w, _ := startWatcher(t)

	require.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
	assert.Error(t, w.Start(context.Background()))
}
