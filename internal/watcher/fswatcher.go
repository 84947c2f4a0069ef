package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Aman-CERP/semdesk/internal/filter"
)

// Watcher watches the configured folders and feeds changes to a Target.
type Watcher struct {
	filter    *filter.Filter
	target    Target
	opts      Options
	fs        *fsnotify.Watcher
	debouncer *Debouncer

	mu      sync.Mutex
	watched map[string]struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	wg        sync.WaitGroup

	dispatched atomic.Uint64
}

// New creates a Watcher. Call Start to place the watches.
func New(f *filter.Filter, target Target, opts Options) (*Watcher, error) {
	opts = opts.WithDefaults()
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &Watcher{
		filter:    f,
		target:    target,
		opts:      opts,
		fs:        fsw,
		debouncer: NewDebouncer(opts.Debounce, opts.BatchBuffer),
		watched:   make(map[string]struct{}),
		stopCh:    make(chan struct{}),
	}, nil
}

// Name identifies the watcher in the service registry.
func (w *Watcher) Name() string { return "watcher" }

// Start watches every included folder and starts event processing. A
// folder that cannot be watched is logged and skipped.
func (w *Watcher) Start(ctx context.Context) error {
	select {
	case <-w.stopCh:
		return errors.New("watcher already stopped")
	default:
	}

	w.startOnce.Do(func() {
		for _, folder := range w.filter.IncludedFolders() {
			if addErr := w.addTree(folder.Path); addErr != nil {
				slog.Warn("watch_folder_failed",
					slog.String("path", folder.Path),
					slog.String("error", addErr.Error()))
			}
		}

		w.wg.Add(2)
		go w.readEvents(ctx)
		go w.dispatch(ctx)

		slog.Info("watcher_started", slog.Int("directories", w.WatchCount()))
	})
	return nil
}

// Stop removes all watches and waits for the goroutines to exit.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopCh)
		err = w.fs.Close()
		w.debouncer.Stop()
		w.wg.Wait()
		slog.Debug("watcher_stopped", slog.Uint64("dispatched", w.dispatched.Load()))
	})
	return err
}

// WatchCount returns the number of watched directories.
func (w *Watcher) WatchCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.watched)
}

// Dispatched returns the number of events handed to the target.
func (w *Watcher) Dispatched() uint64 {
	return w.dispatched.Load()
}

// addTree watches root and every indexed directory below it.
func (w *Watcher) addTree(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if !w.filter.ShouldIndexFolder(path) {
			return filepath.SkipDir
		}
		w.add(path)
		return nil
	})
}

func (w *Watcher) add(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.watched[dir]; ok {
		return
	}
	if err := w.fs.Add(dir); err != nil {
		slog.Debug("watch_add_failed",
			slog.String("path", dir),
			slog.String("error", err.Error()))
		return
	}
	w.watched[dir] = struct{}{}
}

// forget drops dir and everything below it from the watched set. fsnotify
// removes the kernel watches itself when directories go away.
func (w *Watcher) forget(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	prefix := dir + string(filepath.Separator)
	for p := range w.watched {
		if p == dir || len(p) > len(prefix) && p[:len(prefix)] == prefix {
			delete(w.watched, p)
		}
	}
}

func (w *Watcher) readEvents(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			slog.Warn("watcher_error", slog.String("error", err.Error()))
		}
	}
}

// handle converts one fsnotify event and feeds the debouncer.
func (w *Watcher) handle(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	now := time.Now()

	switch {
	case ev.Has(fsnotify.Create):
		info, err := os.Lstat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			if !w.filter.ShouldIndexFolder(path) {
				return
			}
			if err := w.addTree(path); err != nil {
				slog.Debug("watch_new_folder_failed",
					slog.String("path", path),
					slog.String("error", err.Error()))
			}
			w.debouncer.Add(FileEvent{Path: path, Operation: OpCreate, IsDir: true, Timestamp: now})
			return
		}
		if w.filter.ShouldIndexFile(path) {
			w.debouncer.Add(FileEvent{Path: path, Operation: OpCreate, Timestamp: now})
		}

	case ev.Has(fsnotify.Write):
		if w.filter.ShouldIndexFile(path) {
			w.debouncer.Add(FileEvent{Path: path, Operation: OpModify, Timestamp: now})
		}

	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		if w.filter.ExcludedName(filepath.Base(path)) {
			return
		}
		w.forget(path)
		w.debouncer.Add(FileEvent{Path: path, Operation: OpDelete, Timestamp: now})
	}
}

// dispatch routes debounced batches to the target.
func (w *Watcher) dispatch(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			for _, ev := range batch {
				w.deliver(ev)
			}
		}
	}
}

func (w *Watcher) deliver(ev FileEvent) {
	switch {
	case ev.Operation == OpDelete:
		w.target.RemoveFile(ev.Path)
	case ev.IsDir:
		w.target.UpdateFolder(ev.Path, true, false)
	default:
		w.target.IndexFile(ev.Path)
	}
	w.dispatched.Add(1)
	slog.Debug("watcher_event",
		slog.String("path", ev.Path),
		slog.String("op", ev.Operation.String()))
}
