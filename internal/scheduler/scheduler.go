// Package scheduler decides when indexing work happens.
//
// Requests are queued and processed by a single worker goroutine. Single
// file requests always run before folder requests. Work pauses while the
// scheduler is suspended or while the user is active, and resumes once no
// activity has been seen for the idle timeout.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/time/rate"

	semerrors "github.com/Aman-CERP/semdesk/internal/errors"
	"github.com/Aman-CERP/semdesk/internal/filter"
	"github.com/Aman-CERP/semdesk/internal/indexer"
)

// State is the scheduler state.
type State int

const (
	// StateIdle means no work is being done.
	StateIdle State = iota
	// StateIndexing means the worker is processing requests.
	StateIndexing
	// StateSuspended means work was stopped by an explicit Suspend.
	StateSuspended
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateIndexing:
		return "indexing"
	case StateSuspended:
		return "suspended"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the state name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*s = StateIdle
	case "indexing":
		*s = StateIndexing
	case "suspended":
		*s = StateSuspended
	default:
		return fmt.Errorf("unknown scheduler state %q", text)
	}
	return nil
}

// Indexer is the per-file work the scheduler drives.
type Indexer interface {
	Index(ctx context.Context, path string) (indexer.Result, error)
	IsUpToDate(ctx context.Context, path string, mtime time.Time) (bool, error)
	Remove(ctx context.Context, path string) (bool, error)
	Children(ctx context.Context, folder string) ([]indexer.IndexedFile, error)
}

// Config configures a Scheduler.
type Config struct {
	// SuspendOnActivity pauses work on NotifyActivity.
	SuspendOnActivity bool
	// IdleTimeout is how long after the last activity paused work resumes.
	IdleTimeout time.Duration
	// PollInterval is how often an idle worker wakes up on its own.
	PollInterval time.Duration
	// RateLimit caps files indexed per second; 0 means unlimited. Files
	// skipped as up to date do not count.
	RateLimit float64
}

// DefaultConfig returns the default timings.
func DefaultConfig() Config {
	return Config{
		SuspendOnActivity: true,
		IdleTimeout:       2 * time.Minute,
		PollInterval:      10 * time.Second,
	}
}

// request is one queued unit of work.
type request struct {
	path      string
	recursive bool
	forced    bool
	// explicit requests bypass the configured folder list but still
	// honour name filters.
	explicit bool
	// remove marks a file request as a deletion.
	remove bool
}

// Scheduler queues and runs indexing work.
type Scheduler struct {
	ix      Indexer
	filter  *filter.Filter
	cfg     Config
	limiter *rate.Limiter

	mu               sync.Mutex
	state            State
	suspended        bool
	pausedByActivity bool
	idleTimer        *time.Timer
	files            []*request
	folders          []*request
	pendingFiles     map[string]*request
	pendingFolders   map[string]*request
	currentFolder    string
	passHooks        []func(PassStats)
	subs             map[int]chan Event
	nextSub          int

	progress progress

	// workMu serialises request processing between the worker and RunUntilIdle.
	workMu sync.Mutex

	wake      chan struct{}
	stopCh    chan struct{}
	doneCh    chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
	started   bool
}

// New creates a Scheduler. Call Start to launch the worker.
func New(ix Indexer, f *filter.Filter, cfg Config) *Scheduler {
	def := DefaultConfig()
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	s := &Scheduler{
		ix:             ix,
		filter:         f,
		cfg:            cfg,
		pendingFiles:   make(map[string]*request),
		pendingFolders: make(map[string]*request),
		subs:           make(map[int]chan Event),
		wake:           make(chan struct{}, 1),
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return s
}

// Name identifies the scheduler in the service registry.
func (s *Scheduler) Name() string { return "scheduler" }

// Start launches the worker goroutine.
func (s *Scheduler) Start(ctx context.Context) error {
	s.startOnce.Do(func() {
		s.mu.Lock()
		s.started = true
		s.mu.Unlock()
		go s.run(ctx)
		slog.Debug("scheduler_started",
			slog.Duration("idle_timeout", s.cfg.IdleTimeout),
			slog.Duration("poll_interval", s.cfg.PollInterval))
	})
	return nil
}

// Stop cancels in-flight work cooperatively and waits for the worker.
func (s *Scheduler) Stop() error {
	s.stopOnce.Do(func() {
		close(s.stopCh)

		s.mu.Lock()
		if s.idleTimer != nil {
			s.idleTimer.Stop()
		}
		started := s.started
		s.mu.Unlock()

		if started {
			<-s.doneCh
		}
		slog.Debug("scheduler_stopped")
	})
	return nil
}

// OnPassFinished registers fn to run after every completed pass.
func (s *Scheduler) OnPassFinished(fn func(PassStats)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passHooks = append(s.passHooks, fn)
}

// UpdateFolder queues a pass over path if the configuration says it is
// indexed. It reports whether the request was accepted.
func (s *Scheduler) UpdateFolder(path string, recursive, forced bool) bool {
	path = filepath.Clean(path)
	if !s.filter.ShouldIndexFolder(path) {
		slog.Debug("update_folder_ignored", slog.String("path", path))
		return false
	}
	s.enqueueFolder(&request{path: path, recursive: recursive, forced: forced})
	return true
}

// UpdateAllFolders queues a pass over every configured folder.
func (s *Scheduler) UpdateAllFolders(forced bool) int {
	folders := s.filter.IncludedFolders()
	for _, f := range folders {
		s.enqueueFolder(&request{path: f.Path, recursive: f.Recursive, forced: forced})
	}
	return len(folders)
}

// IndexFolder queues a pass over path whether or not it is configured,
// as long as its name passes the exclude filters.
func (s *Scheduler) IndexFolder(path string, recursive, forced bool) bool {
	path = filepath.Clean(path)
	if !s.filter.Accepts(path) {
		slog.Debug("index_folder_filtered", slog.String("path", path))
		return false
	}
	s.enqueueFolder(&request{path: path, recursive: recursive, forced: forced, explicit: true})
	return true
}

// IndexFile queues path for indexing, ignoring the modification time check.
func (s *Scheduler) IndexFile(path string) bool {
	path = filepath.Clean(path)
	if !s.filter.Accepts(path) {
		slog.Debug("index_file_filtered", slog.String("path", path))
		return false
	}
	s.enqueueFile(&request{path: path, forced: true, explicit: true})
	return true
}

// RemoveFile queues removal of whatever is indexed for path.
func (s *Scheduler) RemoveFile(path string) {
	s.enqueueFile(&request{path: filepath.Clean(path), remove: true})
}

func (s *Scheduler) enqueueFolder(r *request) {
	s.mu.Lock()
	if existing, ok := s.pendingFolders[r.path]; ok {
		existing.recursive = existing.recursive || r.recursive
		existing.forced = existing.forced || r.forced
		existing.explicit = existing.explicit || r.explicit
	} else {
		s.pendingFolders[r.path] = r
		s.folders = append(s.folders, r)
	}
	s.mu.Unlock()
	s.signal()
}

func (s *Scheduler) enqueueFile(r *request) {
	s.mu.Lock()
	if existing, ok := s.pendingFiles[r.path]; ok {
		// The latest request for a file wins.
		*existing = *r
	} else {
		s.pendingFiles[r.path] = r
		s.files = append(s.files, r)
	}
	s.mu.Unlock()
	s.signal()
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// nextFile pops the oldest file request.
func (s *Scheduler) nextFile() (*request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.files) == 0 {
		return nil, false
	}
	r, _, _ := s.popLocked()
	return r, true
}

// next pops the next request, files first.
func (s *Scheduler) next() (*request, bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.popLocked()
}

func (s *Scheduler) popLocked() (*request, bool, bool) {
	if len(s.files) > 0 {
		r := s.files[0]
		s.files[0] = nil
		s.files = s.files[1:]
		delete(s.pendingFiles, r.path)
		return r, true, true
	}
	if len(s.folders) == 0 {
		return nil, false, false
	}
	r := s.folders[0]
	s.folders[0] = nil
	s.folders = s.folders[1:]
	delete(s.pendingFolders, r.path)
	return r, false, true
}

// claim pops the next request for the worker loop and enters
// StateIndexing in the same critical section as the pause check, so a
// concurrent Suspend is never overwritten. paused reports that work is
// not allowed; r is nil when the queue is empty.
func (s *Scheduler) claim() (r *request, isFile, paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.suspended || s.pausedByActivity {
		return nil, false, true
	}
	r, isFile, ok := s.popLocked()
	if !ok {
		return nil, false, false
	}
	s.setStateLocked(StateIndexing)
	return r, isFile, false
}

// Suspend stops work until Resume. Activity timeouts do not clear it.
func (s *Scheduler) Suspend() {
	s.mu.Lock()
	s.suspended = true
	s.setStateLocked(StateSuspended)
	s.mu.Unlock()
	slog.Info("scheduler_suspended")
}

// Resume clears an explicit Suspend.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	wasSuspended := s.suspended
	s.suspended = false
	if wasSuspended {
		s.setStateLocked(StateIdle)
	}
	s.mu.Unlock()
	if wasSuspended {
		slog.Info("scheduler_resumed")
	}
	s.signal()
}

// NotifyActivity reports user activity. When activity suspension is
// enabled, work pauses until IdleTimeout passes without further activity.
func (s *Scheduler) NotifyActivity() {
	if !s.cfg.SuspendOnActivity {
		return
	}

	s.mu.Lock()
	wasPaused := s.pausedByActivity
	s.pausedByActivity = true
	if s.idleTimer != nil {
		s.idleTimer.Stop()
	}
	s.idleTimer = time.AfterFunc(s.cfg.IdleTimeout, s.onIdle)
	s.mu.Unlock()

	if !wasPaused {
		slog.Debug("scheduler_paused_by_activity")
		s.emit(Event{Type: EventStateChanged, State: s.State()})
	}
}

func (s *Scheduler) onIdle() {
	s.mu.Lock()
	s.pausedByActivity = false
	s.idleTimer = nil
	s.mu.Unlock()

	slog.Debug("scheduler_idle_timeout")
	s.emit(Event{Type: EventStateChanged, State: s.State()})
	s.signal()
}

// State returns the current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsPausedByActivity reports whether work is held back by user activity.
func (s *Scheduler) IsPausedByActivity() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pausedByActivity
}

// StatusString describes what the scheduler is doing.
func (s *Scheduler) StatusString() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *Scheduler) statusLocked() string {
	switch {
	case s.suspended:
		return "Suspended"
	case s.pausedByActivity:
		return "Paused (user activity)"
	case s.state == StateIndexing && s.currentFolder != "":
		return "Indexing files in " + s.currentFolder
	case s.state == StateIndexing:
		return "Indexing"
	default:
		return "Idle"
	}
}

// Progress returns a snapshot of queue and pass counters.
func (s *Scheduler) Progress() ProgressSnapshot {
	s.mu.Lock()
	snap := ProgressSnapshot{
		State:            s.state.String(),
		Status:           s.statusLocked(),
		PausedByActivity: s.pausedByActivity,
		CurrentFolder:    s.currentFolder,
		QueuedFolders:    len(s.folders),
		QueuedFiles:      len(s.files),
	}
	s.mu.Unlock()
	s.progress.fill(&snap)
	return snap
}

// setStateLocked records st and publishes the change while s.mu is held,
// so subscribers see state changes in the order they happened.
func (s *Scheduler) setStateLocked(st State) {
	if s.state == st {
		return
	}
	s.state = st
	s.publishLocked(Event{Type: EventStateChanged, State: st, Time: time.Now()})
}

// enterState moves to st unless work is suspended or paused by activity.
func (s *Scheduler) enterState(st State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.suspended || s.pausedByActivity {
		return false
	}
	s.setStateLocked(st)
	return true
}

func (s *Scheduler) setCurrentFolder(path string) {
	s.mu.Lock()
	s.currentFolder = path
	s.mu.Unlock()
}

// run is the worker loop.
func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	for ctx.Err() == nil {
		s.workMu.Lock()
		r, isFile, paused := s.claim()
		if paused {
			s.workMu.Unlock()
			s.markPaused()
			if !s.waitForSignal(ctx) {
				return
			}
			continue
		}
		if r == nil {
			s.workMu.Unlock()
			s.finishPass()
			s.enterState(StateIdle)
			if !s.waitForSignal(ctx) {
				return
			}
			continue
		}

		s.progress.begin()
		s.process(ctx, r, isFile, true)
		s.workMu.Unlock()
	}
}

// waitForSignal blocks until new work, a poll tick or shutdown. It returns
// false on shutdown.
func (s *Scheduler) waitForSignal(ctx context.Context) bool {
	t := time.NewTimer(s.cfg.PollInterval)
	defer t.Stop()
	select {
	case <-s.wake:
		return true
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// markPaused leaves the indexing state while activity holds work back.
func (s *Scheduler) markPaused() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pausedByActivity && !s.suspended && s.state == StateIndexing {
		s.setStateLocked(StateIdle)
	}
}

// waitWhilePaused holds a running pass while work is not allowed.
func (s *Scheduler) waitWhilePaused(ctx context.Context) bool {
	for !s.enterState(StateIndexing) {
		s.markPaused()
		if !s.waitForSignal(ctx) {
			return false
		}
	}
	return ctx.Err() == nil
}

// RunUntilIdle processes queued requests in the calling goroutine until
// the queue is empty, ignoring suspension, and returns the pass counters.
func (s *Scheduler) RunUntilIdle(ctx context.Context) (PassStats, error) {
	for {
		if err := ctx.Err(); err != nil {
			st, _ := s.finishPass()
			return st, err
		}

		s.workMu.Lock()
		r, isFile, ok := s.next()
		if !ok {
			s.workMu.Unlock()
			break
		}
		s.progress.begin()
		s.process(ctx, r, isFile, false)
		s.workMu.Unlock()
	}

	st, _ := s.finishPass()
	return st, nil
}

func (s *Scheduler) finishPass() (PassStats, bool) {
	st, ok := s.progress.finish()
	if !ok {
		return st, false
	}

	slog.Info("indexing_pass_finished",
		slog.Int("folders", st.Folders),
		slog.Int("indexed", st.Indexed),
		slog.Int("skipped", st.Skipped),
		slog.Int("failed", st.Failed),
		slog.Int("removed", st.Removed),
		slog.Duration("duration", st.Duration))

	s.emit(Event{Type: EventPassFinished, Pass: &st})

	s.mu.Lock()
	hooks := append([]func(PassStats){}, s.passHooks...)
	s.mu.Unlock()
	for _, fn := range hooks {
		fn(st)
	}
	return st, true
}

func (s *Scheduler) process(ctx context.Context, r *request, isFile, honourPause bool) {
	switch {
	case isFile && r.remove:
		s.removeFile(ctx, r.path)
	case isFile:
		s.indexFile(ctx, r.path, true)
	default:
		s.updateFolder(ctx, r, honourPause)
	}
}

// updateFolder runs one folder pass.
func (s *Scheduler) updateFolder(ctx context.Context, r *request, honourPause bool) {
	s.setCurrentFolder(r.path)
	defer s.setCurrentFolder("")
	s.progress.update(func(p *PassStats) { p.Folders++ })

	entries, err := os.ReadDir(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.removeFile(ctx, r.path)
			return
		}
		s.fail(ctx, r.path, err)
		return
	}

	s.indexFile(ctx, r.path, r.forced)

	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		if honourPause && !s.waitWhilePaused(ctx) {
			return
		}
		s.drainFiles(ctx)

		child := filepath.Join(r.path, entry.Name())
		switch {
		case entry.IsDir():
			if !s.acceptFolder(child, r.explicit) {
				continue
			}
			if r.recursive {
				s.enqueueFolder(&request{path: child, recursive: true, forced: r.forced, explicit: r.explicit})
			}
		case entry.Type().IsRegular():
			if !s.acceptFile(child, r.explicit) {
				continue
			}
			s.indexFile(ctx, child, r.forced)
		}
	}

	s.removeVanished(ctx, r.path)
}

// drainFiles runs pending single-file requests ahead of the folder pass.
func (s *Scheduler) drainFiles(ctx context.Context) {
	for ctx.Err() == nil {
		r, ok := s.nextFile()
		if !ok {
			return
		}
		s.process(ctx, r, true, false)
	}
}

func (s *Scheduler) acceptFolder(path string, explicit bool) bool {
	if explicit {
		return s.filter.Accepts(path)
	}
	return s.filter.ShouldIndexFolder(path)
}

func (s *Scheduler) acceptFile(path string, explicit bool) bool {
	if explicit {
		return s.filter.Accepts(path)
	}
	return s.filter.ShouldIndexFile(path)
}

// removeVanished drops indexed children of folder whose files are gone.
func (s *Scheduler) removeVanished(ctx context.Context, folder string) {
	children, err := s.ix.Children(ctx, folder)
	if err != nil {
		s.fail(ctx, folder, err)
		return
	}
	for _, c := range children {
		if _, err := os.Lstat(c.Path); os.IsNotExist(err) {
			s.removeFile(ctx, c.Path)
		}
	}
}

// indexFile indexes path unless it is up to date and not forced. Failures
// are logged and counted, never returned.
func (s *Scheduler) indexFile(ctx context.Context, path string, forced bool) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.removeFile(ctx, path)
			return
		}
		s.fail(ctx, path, err)
		return
	}

	if !forced {
		upToDate, err := s.ix.IsUpToDate(ctx, path, info.ModTime())
		if err != nil {
			s.fail(ctx, path, err)
			return
		}
		if upToDate {
			s.progress.update(func(p *PassStats) { p.Skipped++ })
			return
		}
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}
	}

	if _, err := s.ix.Index(ctx, path); err != nil {
		if semerrors.GetCode(err) == semerrors.ErrCodeFileTooLarge {
			s.progress.update(func(p *PassStats) { p.Skipped++ })
			slog.Debug("file_skipped", slog.String("path", path), slog.String("reason", "too large"))
			return
		}
		s.fail(ctx, path, err)
		return
	}

	s.progress.update(func(p *PassStats) { p.Indexed++ })
	s.emit(Event{Type: EventFileIndexed, Path: path})
}

func (s *Scheduler) removeFile(ctx context.Context, path string) {
	removed, err := s.ix.Remove(ctx, path)
	if err != nil {
		s.fail(ctx, path, err)
		return
	}
	if removed {
		s.progress.update(func(p *PassStats) { p.Removed++ })
		s.emit(Event{Type: EventFileRemoved, Path: path})
	}
}

// fail logs and counts a per-path failure. Errors caused by shutdown are
// not failures.
func (s *Scheduler) fail(ctx context.Context, path string, err error) {
	if ctx.Err() != nil {
		return
	}
	slog.Warn("indexing_failed",
		slog.String("path", path),
		semerrors.LogAttr(err))
	s.progress.update(func(p *PassStats) { p.Failed++ })
	s.emit(Event{Type: EventFileFailed, Path: path, Err: err.Error()})
}
