package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/semdesk/internal/config"
	semerrors "github.com/Aman-CERP/semdesk/internal/errors"
	"github.com/Aman-CERP/semdesk/internal/filter"
	"github.com/Aman-CERP/semdesk/internal/indexer"
	"github.com/Aman-CERP/semdesk/internal/maintenance"
	"github.com/Aman-CERP/semdesk/internal/preflight"
	"github.com/Aman-CERP/semdesk/internal/profiling"
	"github.com/Aman-CERP/semdesk/internal/rdf"
	"github.com/Aman-CERP/semdesk/internal/scheduler"
	"github.com/Aman-CERP/semdesk/internal/service"
	"github.com/Aman-CERP/semdesk/internal/store"
	"github.com/Aman-CERP/semdesk/internal/watcher"
	"github.com/Aman-CERP/semdesk/internal/writeback"
)

const (
	// maintenanceDelay is how long indexing must be quiet before a sweep.
	maintenanceDelay = 30 * time.Second
	// maintenanceCooldown is the minimum time between triggered sweeps.
	maintenanceCooldown = 10 * time.Minute
)

// Option configures a Daemon.
type Option func(*Daemon)

// WithRepositoryOptions sets the options used to open the repository.
func WithRepositoryOptions(opts store.Options) Option {
	return func(d *Daemon) {
		d.repoOpts = opts
	}
}

// WithMaintenanceTiming overrides the idle delay and cooldown of
// automatic graph maintenance.
func WithMaintenanceTiming(delay, cooldown time.Duration) Option {
	return func(d *Daemon) {
		d.maintDelay = delay
		d.maintCooldown = cooldown
	}
}

// Daemon owns the repository and the services working on it, and serves
// the control socket.
type Daemon struct {
	cfg  *config.Config
	dcfg Config

	repoOpts      store.Options
	maintDelay    time.Duration
	maintCooldown time.Duration

	repo       *store.Repository
	storageErr error

	filter  *filter.Filter
	indexer *indexer.FileIndexer
	sched   *scheduler.Scheduler
	maint   *maintenance.GraphMaintainer
	trigger *maintenanceTrigger
	writer  *writeback.Writer
	watch   *watcher.Watcher

	services *service.Registry
	server   *Server
	pidFile  *PIDFile

	closeOnce sync.Once
	closeErr  error
}

// New opens the repository and wires the services. A repository that
// cannot be opened does not fail New: the daemon runs with storage marked
// unavailable and rejects indexing requests.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Daemon, error) {
	dcfg := FromConfig(cfg.Daemon)
	if err := dcfg.Validate(); err != nil {
		return nil, semerrors.ConfigError("invalid daemon configuration", err)
	}

	f, err := filter.New(cfg.Indexing)
	if err != nil {
		return nil, semerrors.ConfigError("invalid indexing configuration", err)
	}

	d := &Daemon{
		cfg:           cfg,
		dcfg:          dcfg,
		maintDelay:    maintenanceDelay,
		maintCooldown: maintenanceCooldown,
		filter:        f,
		services:      service.NewRegistry(),
		pidFile:       NewPIDFile(dcfg.PIDPath),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.server = NewServer(dcfg.SocketPath, d)

	repo, err := store.Open(ctx, cfg.Storage.Path, cfg.Storage.Name, d.repoOpts)
	if err != nil {
		d.storageErr = err
		slog.Error("storage_unavailable",
			slog.String("path", cfg.Storage.Path),
			semerrors.LogAttr(err))
		return d, nil
	}
	d.repo = repo

	if err := d.wire(); err != nil {
		_ = repo.Close()
		return nil, err
	}
	return d, nil
}

// wire builds the services over the open repository.
func (d *Daemon) wire() error {
	cfg := d.cfg
	model := d.repo.Model()

	ix, err := indexer.New(model, indexer.Config{
		MaxTextBytes: cfg.Indexing.MaxTextBytes,
		MaxFileSize:  cfg.Indexing.MaxFileSize,
		CacheSize:    cfg.Indexing.LookupCacheSize,
	})
	if err != nil {
		return semerrors.InternalError("failed to create indexer", err)
	}
	d.indexer = ix

	def := scheduler.DefaultConfig()
	d.sched = scheduler.New(ix, d.filter, scheduler.Config{
		SuspendOnActivity: cfg.Scheduler.SuspendOnActivity,
		IdleTimeout:       config.Duration(cfg.Scheduler.IdleTimeout, def.IdleTimeout),
		PollInterval:      config.Duration(cfg.Scheduler.PollInterval, def.PollInterval),
		RateLimit:         cfg.Scheduler.RateLimit,
	})

	mdef := maintenance.DefaultConfig()
	d.maint = maintenance.New(model, maintenance.Config{
		BatchSize: cfg.Maintenance.BatchSize,
		Sleep:     config.Duration(cfg.Maintenance.Sleep, mdef.Sleep),
	})

	registry := writeback.NewRegistry()
	if cfg.Writeback.Sidecar {
		if err := registry.Register(writeback.NewSidecarPlugin()); err != nil {
			return semerrors.InternalError("failed to register writeback plugin", err)
		}
	}
	d.writer = writeback.NewWriter(model, registry)

	if cfg.Maintenance.Enabled {
		if err := d.services.Register(d.maint); err != nil {
			return err
		}
	}
	if err := d.services.Register(d.sched); err != nil {
		return err
	}
	if cfg.Maintenance.Enabled {
		d.trigger = newMaintenanceTrigger(d.maint, d.maintDelay, d.maintCooldown)
		d.sched.OnPassFinished(d.trigger.OnPassFinished)
		if err := d.services.Register(d.trigger); err != nil {
			return err
		}
	}

	if cfg.Watcher.Enabled {
		w, err := watcher.New(d.filter, d.sched, watcher.Options{
			Debounce: config.Duration(cfg.Watcher.Debounce, watcher.DefaultOptions().Debounce),
		})
		if err != nil {
			slog.Warn("watcher_unavailable", semerrors.LogAttr(err))
		} else {
			d.watch = w
			if err := d.services.Register(w); err != nil {
				return err
			}
		}
	}

	slog.Debug("daemon_wired", slog.Any("services", d.services.Names()))
	return nil
}

// Run starts the services and serves the socket until ctx is canceled.
// It always stops the services and closes the repository before returning.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.dcfg.EnsureDir(); err != nil {
		_ = d.Close()
		return err
	}
	if err := d.pidFile.Acquire(); err != nil {
		_ = d.Close()
		return err
	}
	defer func() { _ = d.pidFile.Remove() }()

	if d.repo != nil && preflight.NeedsCheck(d.cfg.Storage.Path) {
		d.runPreflight(ctx)
	}

	if err := d.services.StartAll(ctx); err != nil {
		_ = d.Close()
		return err
	}

	if d.sched != nil && d.cfg.Scheduler.UpdateOnStart {
		n := d.sched.UpdateAllFolders(false)
		slog.Info("initial_update_queued", slog.Int("folders", n))
	}

	slog.Info("daemon_started",
		slog.Int("pid", os.Getpid()),
		slog.String("socket", d.dcfg.SocketPath),
		slog.Bool("storage_available", d.repo != nil))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return d.server.ListenAndServe(gctx)
	})
	if d.sched != nil {
		g.Go(func() error {
			d.logEvents(gctx)
			return nil
		})
	}
	runErr := g.Wait()

	stopErr := d.services.StopAll()
	closeErr := d.Close()
	slog.Info("daemon_stopped")
	return errors.Join(runErr, stopErr, closeErr)
}

// runPreflight checks the host once per storage directory. Problems are
// logged but never stop the daemon; a clean run leaves a marker so later
// starts skip the checks.
func (d *Daemon) runPreflight(ctx context.Context) {
	checker := preflight.New()
	results := checker.RunAll(ctx, d.cfg)
	for _, r := range results {
		if r.Status == preflight.StatusPass {
			continue
		}
		slog.Warn("preflight_check",
			slog.String("check", r.Name),
			slog.String("status", r.Status.String()),
			slog.String("message", r.Message),
			slog.String("details", r.Details))
	}
	if checker.HasCriticalFailures(results) {
		return
	}
	if err := preflight.MarkPassed(d.cfg.Storage.Path); err != nil {
		slog.Warn("preflight_marker_failed", slog.String("error", err.Error()))
	}
}

// logEvents writes scheduler state changes to the log.
func (d *Daemon) logEvents(ctx context.Context) {
	events, cancel := d.sched.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Type == scheduler.EventStateChanged {
				slog.Debug("scheduler_state_changed",
					slog.String("state", ev.State.String()))
			}
		}
	}
}

// Close closes the repository. Safe to call multiple times.
func (d *Daemon) Close() error {
	d.closeOnce.Do(func() {
		if d.repo != nil {
			d.closeErr = d.repo.Close()
		}
	})
	return d.closeErr
}

// StorageAvailable reports whether the repository opened.
func (d *Daemon) StorageAvailable() bool {
	return d.repo != nil
}

func (d *Daemon) requireStorage() error {
	if d.repo != nil {
		return nil
	}
	return semerrors.New(semerrors.ErrCodeIndexUnavailable, "storage unavailable", d.storageErr).
		WithSuggestion("Check the storage path and restart the daemon")
}

// Status implements RequestHandler.
func (d *Daemon) Status(ctx context.Context) StatusResult {
	status := StatusResult{
		Running:     true,
		PID:         os.Getpid(),
		Storage:     StorageAvailable,
		StoragePath: d.cfg.Storage.Path,
		Runtime:     profiling.ReadUsage(),
	}
	if d.repo == nil {
		status.Storage = StorageUnavailable
		if d.storageErr != nil {
			status.StorageError = d.storageErr.Error()
		}
		return status
	}

	if st, err := d.repo.Stats(ctx); err != nil {
		slog.Warn("repository_stats_failed", semerrors.LogAttr(err))
	} else {
		status.Repository = &st
	}
	progress := d.sched.Progress()
	status.Scheduler = &progress
	status.Maintenance = &MaintenanceStatus{
		Running: d.maint.Running(),
		Last:    d.maint.LastStats(),
		Total:   d.maint.TotalStats(),
	}
	if d.watch != nil {
		status.Watcher = &WatcherStatus{
			Directories: d.watch.WatchCount(),
			Dispatched:  d.watch.Dispatched(),
		}
	}
	return status
}

func (d *Daemon) state() StateResult {
	return StateResult{
		State:            d.sched.State(),
		Status:           d.sched.StatusString(),
		PausedByActivity: d.sched.IsPausedByActivity(),
	}
}

// Suspend implements RequestHandler.
func (d *Daemon) Suspend(context.Context) (StateResult, error) {
	if err := d.requireStorage(); err != nil {
		return StateResult{}, err
	}
	d.sched.Suspend()
	return d.state(), nil
}

// Resume implements RequestHandler.
func (d *Daemon) Resume(context.Context) (StateResult, error) {
	if err := d.requireStorage(); err != nil {
		return StateResult{}, err
	}
	d.sched.Resume()
	return d.state(), nil
}

// Activity implements RequestHandler.
func (d *Daemon) Activity(context.Context) (StateResult, error) {
	if err := d.requireStorage(); err != nil {
		return StateResult{}, err
	}
	d.sched.NotifyActivity()
	return d.state(), nil
}

// UpdateFolder implements RequestHandler.
func (d *Daemon) UpdateFolder(_ context.Context, p FolderParams) (AcceptedResult, error) {
	if err := d.requireStorage(); err != nil {
		return AcceptedResult{}, err
	}
	path, err := absPath(p.Path)
	if err != nil {
		return AcceptedResult{}, err
	}
	ok := d.sched.UpdateFolder(path, p.Recursive, p.Forced)
	return d.accepted(ok), nil
}

// UpdateAllFolders implements RequestHandler.
func (d *Daemon) UpdateAllFolders(_ context.Context, p UpdateAllParams) (AcceptedResult, error) {
	if err := d.requireStorage(); err != nil {
		return AcceptedResult{}, err
	}
	n := d.sched.UpdateAllFolders(p.Forced)
	return AcceptedResult{Accepted: n > 0, Queued: n}, nil
}

// IndexFolder implements RequestHandler.
func (d *Daemon) IndexFolder(_ context.Context, p FolderParams) (AcceptedResult, error) {
	if err := d.requireStorage(); err != nil {
		return AcceptedResult{}, err
	}
	path, err := absPath(p.Path)
	if err != nil {
		return AcceptedResult{}, err
	}
	ok := d.sched.IndexFolder(path, p.Recursive, p.Forced)
	return d.accepted(ok), nil
}

// IndexFile implements RequestHandler.
func (d *Daemon) IndexFile(_ context.Context, p FileParams) (AcceptedResult, error) {
	if err := d.requireStorage(); err != nil {
		return AcceptedResult{}, err
	}
	path, err := absPath(p.Path)
	if err != nil {
		return AcceptedResult{}, err
	}
	ok := d.sched.IndexFile(path)
	return d.accepted(ok), nil
}

func (d *Daemon) accepted(ok bool) AcceptedResult {
	if !ok {
		return AcceptedResult{}
	}
	progress := d.sched.Progress()
	return AcceptedResult{Accepted: true, Queued: progress.QueuedFiles + progress.QueuedFolders}
}

// Search implements RequestHandler.
func (d *Daemon) Search(ctx context.Context, p SearchParams) ([]SearchResult, error) {
	if err := d.requireStorage(); err != nil {
		return nil, err
	}
	return Search(ctx, d.repo.Model(), p)
}

// Search runs a full-text query against model and resolves each hit to
// its file.
func Search(ctx context.Context, model *store.Model, p SearchParams) ([]SearchResult, error) {
	if err := p.Validate(); err != nil {
		return nil, semerrors.ValidationError(err.Error(), err)
	}

	it := model.Search(ctx, p.Query, p.Limit)
	defer it.Close()

	results := []SearchResult{}
	for len(results) < p.Limit && it.Next() {
		hit := it.Current()
		props, err := model.Resource(ctx, hit.Resource)
		if err != nil {
			return nil, semerrors.New(semerrors.ErrCodeQueryFailed, "failed to resolve search hit", err)
		}
		res := SearchResult{
			Resource:     hit.Resource,
			Score:        hit.Score,
			MatchedTerms: hit.MatchedTerms,
		}
		if urls := props[rdf.NIEURL.Value]; len(urls) > 0 {
			res.URL = urls[0].Value
			if path, err := rdf.PathFromURL(res.URL); err == nil {
				res.Path = path
			}
		}
		if mimes := props[rdf.NIEMimeType.Value]; len(mimes) > 0 {
			res.MimeType = mimes[0].Value
		}
		results = append(results, res)
	}
	if err := it.Err(); err != nil {
		return nil, semerrors.New(semerrors.ErrCodeQueryFailed, "search failed", err)
	}
	return results, nil
}

// Maintain implements RequestHandler.
func (d *Daemon) Maintain(ctx context.Context, p MaintainParams) (MaintainResult, error) {
	if err := d.requireStorage(); err != nil {
		return MaintainResult{}, err
	}
	var res MaintainResult
	if p.Reindex {
		n, err := d.repo.Model().Reindex(ctx)
		if err != nil {
			return MaintainResult{}, semerrors.New(semerrors.ErrCodeMaintenance, "full-text rebuild failed", err)
		}
		slog.Info("fulltext_rebuilt", slog.Int("resources", n))
		res.Reindexed = n
	}
	if p.Wait {
		st, err := d.maint.Run(ctx)
		if err != nil {
			return MaintainResult{}, semerrors.New(semerrors.ErrCodeMaintenance, "graph maintenance failed", err)
		}
		res.Triggered, res.Stats = true, &st
		return res, nil
	}
	if !d.cfg.Maintenance.Enabled {
		if p.Reindex {
			return res, nil
		}
		return MaintainResult{}, semerrors.ValidationError("background maintenance is disabled", nil).
			WithSuggestion("Run 'semdesk maintain --wait' for a synchronous sweep")
	}
	d.maint.Trigger()
	res.Triggered = true
	return res, nil
}

// Writeback implements RequestHandler.
func (d *Daemon) Writeback(ctx context.Context, p WritebackParams) (writeback.Result, error) {
	if err := d.requireStorage(); err != nil {
		return writeback.Result{}, err
	}
	if !d.cfg.Writeback.Enabled {
		return writeback.Result{}, semerrors.ValidationError("writeback is disabled", nil)
	}

	resource := p.Resource
	if p.Path != "" {
		path, err := absPath(p.Path)
		if err != nil {
			return writeback.Result{}, err
		}
		resource, err = d.indexer.ResourceFor(ctx, path)
		if err != nil {
			return writeback.Result{}, semerrors.StoreError("failed to look up resource", err)
		}
		if resource == "" {
			return writeback.Result{}, semerrors.New(semerrors.ErrCodeNotIndexed, fmt.Sprintf("%s is not indexed", path), nil)
		}
	}
	return d.writer.Writeback(ctx, resource)
}

func absPath(p string) (string, error) {
	abs, err := filepath.Abs(config.ExpandHome(p))
	if err != nil {
		return "", semerrors.New(semerrors.ErrCodeInvalidPath, "invalid path", err)
	}
	return abs, nil
}
