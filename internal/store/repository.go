// Package store holds semdesk's persistent state: a SQLite quad store of
// RDF statements, a bleve full-text index with one document per resource,
// and the Model that keeps the two in step. A Repository owns all three
// for one storage directory.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	semerrors "github.com/Aman-CERP/semdesk/internal/errors"
	"github.com/Aman-CERP/semdesk/internal/rdf"
)

// IndexDirName is the full-text index directory inside the storage path.
const IndexDirName = "index"

// Options configures Open.
type Options struct {
	// LockRetry controls how long Open waits for another holder of the
	// repository lock. Zero value means LockRetryConfig.
	LockRetry *semerrors.RetryConfig
}

// Repository owns the quad store, full-text index and model rooted at one
// storage path. They are opened together and closed together.
type Repository struct {
	path string
	name string

	lock  *fileLock
	store *QuadStore
	index *FullTextIndex
	model *Model

	closeOnce sync.Once
	closeErr  error
}

// Stats summarises repository contents.
type Stats struct {
	Statements int64  `json:"statements"`
	Graphs     int64  `json:"graphs"`
	Resources  int64  `json:"resources"`
	Documents  uint64 `json:"documents"`
	StoreBytes int64  `json:"store_bytes"`
	IndexBytes int64  `json:"index_bytes"`
}

// Open opens or creates the repository called name under path.
//
// The storage directory is created if needed. If the full-text index
// cannot be opened, everything opened so far is released, files created by
// this call are removed, and Open returns nil with an
// ERR_208_INDEX_UNAVAILABLE error. A repository held by another process
// yields ERR_207_REPOSITORY_LOCKED.
func Open(ctx context.Context, path, name string, opts Options) (*Repository, error) {
	if path == "" || name == "" {
		return nil, semerrors.ValidationError("storage path and repository name are required", nil)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, semerrors.New(semerrors.ErrCodeStorageDir, "cannot create storage directory", err).
			WithDetail("path", path)
	}

	dbPath := filepath.Join(path, name+".db")
	indexPath := filepath.Join(path, IndexDirName)
	lockPath := filepath.Join(path, name+".lock")

	created := newCreatedFiles(lockPath, dbPath, dbPath+"-wal", dbPath+"-shm", indexPath)

	retryCfg := semerrors.LockRetryConfig()
	if opts.LockRetry != nil {
		retryCfg = *opts.LockRetry
	}

	lock := newFileLock(lockPath)
	if err := lock.acquire(ctx, retryCfg); err != nil {
		if errors.Is(err, errLockHeld) {
			return nil, semerrors.New(semerrors.ErrCodeRepositoryLocked, "repository is in use by another process", err).
				WithDetail("path", path).
				WithSuggestion("Stop the running daemon ('semdesk daemon stop') or use it instead")
		}
		created.remove()
		return nil, semerrors.IOError("cannot lock repository", err).WithDetail("path", path)
	}

	store, err := OpenQuadStore(dbPath)
	if err != nil {
		_ = lock.release()
		created.remove()
		slog.Error("repository_store_open_failed",
			slog.String("path", dbPath),
			slog.String("error", err.Error()))
		return nil, semerrors.New(semerrors.ErrCodeStoreUnavailable, "cannot open quad store", err).
			WithDetail("path", dbPath)
	}

	index, err := OpenFullTextIndex(indexPath)
	if err != nil {
		_ = store.Close()
		_ = lock.release()
		created.remove()
		slog.Error("repository_index_open_failed",
			slog.String("path", indexPath),
			slog.String("error", err.Error()))
		return nil, semerrors.New(semerrors.ErrCodeIndexUnavailable, "full-text index unavailable", err).
			WithDetail("path", indexPath).
			WithSuggestion("Check that the index directory is writable and not a regular file")
	}

	slog.Info("repository_opened",
		slog.String("path", path),
		slog.String("name", name))

	return &Repository{
		path:  path,
		name:  name,
		lock:  lock,
		store: store,
		index: index,
		model: NewModel(store, index),
	}, nil
}

// Path returns the storage directory.
func (r *Repository) Path() string { return r.path }

// Name returns the repository name.
func (r *Repository) Name() string { return r.name }

// Model returns the index-filtering model.
func (r *Repository) Model() *Model { return r.model }

// Store returns the quad store.
func (r *Repository) Store() *QuadStore { return r.store }

// Index returns the full-text index.
func (r *Repository) Index() *FullTextIndex { return r.index }

// Stats reports repository counts and on-disk sizes.
func (r *Repository) Stats(ctx context.Context) (Stats, error) {
	var (
		st  Stats
		err error
	)
	if st.Statements, err = r.store.Count(ctx, rdf.Pattern{}); err != nil {
		return st, err
	}
	if st.Graphs, err = r.store.GraphCount(ctx); err != nil {
		return st, err
	}
	if st.Resources, err = r.store.Count(ctx, rdf.Pattern{Predicate: rdf.NIEURL}); err != nil {
		return st, err
	}
	if st.Documents, err = r.index.Count(); err != nil {
		return st, err
	}

	dbPath := r.store.Path()
	for _, p := range []string{dbPath, dbPath + "-wal"} {
		if info, err := os.Stat(p); err == nil {
			st.StoreBytes += info.Size()
		}
	}
	st.IndexBytes = dirSize(r.index.Path())
	return st, nil
}

// Close closes the model, index and store and releases the lock.
func (r *Repository) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = errors.Join(
			r.index.Close(),
			r.store.Close(),
			r.lock.release(),
		)
		slog.Info("repository_closed", slog.String("path", r.path))
	})
	return r.closeErr
}

func dirSize(root string) int64 {
	var size int64
	_ = filepath.WalkDir(root, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			if info, err := d.Info(); err == nil {
				size += info.Size()
			}
		}
		return nil
	})
	return size
}

// createdFiles remembers which paths did not exist before Open so a failed
// open can leave the filesystem as it found it.
type createdFiles []string

func newCreatedFiles(paths ...string) createdFiles {
	var missing createdFiles
	for _, p := range paths {
		if _, err := os.Lstat(p); os.IsNotExist(err) {
			missing = append(missing, p)
		}
	}
	return missing
}

func (c createdFiles) remove() {
	for _, p := range c {
		if err := os.RemoveAll(p); err != nil {
			slog.Warn("repository_cleanup_failed",
				slog.String("path", p),
				slog.String("error", fmt.Sprint(err)))
		}
	}
}
