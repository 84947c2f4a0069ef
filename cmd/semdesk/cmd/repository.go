package cmd

import (
	"context"
	"log/slog"

	"github.com/Aman-CERP/semdesk/internal/config"
	semerrors "github.com/Aman-CERP/semdesk/internal/errors"
	"github.com/Aman-CERP/semdesk/internal/filter"
	"github.com/Aman-CERP/semdesk/internal/indexer"
	"github.com/Aman-CERP/semdesk/internal/maintenance"
	"github.com/Aman-CERP/semdesk/internal/scheduler"
	"github.com/Aman-CERP/semdesk/internal/store"
	"github.com/Aman-CERP/semdesk/internal/writeback"
)

// localRepo is the repository opened directly by a CLI command when no
// daemon owns it.
type localRepo struct {
	cfg  *config.Config
	repo *store.Repository
}

// repoOptions are the options used by commands that open the repository
// themselves. Tests shorten the lock wait.
var repoOptions store.Options

func openLocal(ctx context.Context, cfg *config.Config) (*localRepo, error) {
	repo, err := store.Open(ctx, cfg.Storage.Path, cfg.Storage.Name, repoOptions)
	if err != nil {
		return nil, err
	}
	return &localRepo{cfg: cfg, repo: repo}, nil
}

func (l *localRepo) Close() error {
	return l.repo.Close()
}

func (l *localRepo) model() *store.Model {
	return l.repo.Model()
}

func (l *localRepo) newIndexer() (*indexer.FileIndexer, error) {
	ix, err := indexer.New(l.model(), indexer.Config{
		MaxTextBytes: l.cfg.Indexing.MaxTextBytes,
		MaxFileSize:  l.cfg.Indexing.MaxFileSize,
		CacheSize:    l.cfg.Indexing.LookupCacheSize,
	})
	if err != nil {
		return nil, semerrors.InternalError("failed to create indexer", err)
	}
	return ix, nil
}

// newScheduler builds a scheduler for a one-shot pass. It never pauses for
// user activity: the user asked for the work.
func (l *localRepo) newScheduler(ix *indexer.FileIndexer) (*scheduler.Scheduler, error) {
	f, err := filter.New(l.cfg.Indexing)
	if err != nil {
		return nil, semerrors.ConfigError("invalid indexing configuration", err)
	}
	return scheduler.New(ix, f, scheduler.Config{
		SuspendOnActivity: false,
		RateLimit:         l.cfg.Scheduler.RateLimit,
	}), nil
}

func (l *localRepo) newMaintainer() *maintenance.GraphMaintainer {
	def := maintenance.DefaultConfig()
	return maintenance.New(l.model(), maintenance.Config{
		BatchSize: l.cfg.Maintenance.BatchSize,
		Sleep:     config.Duration(l.cfg.Maintenance.Sleep, def.Sleep),
	})
}

func (l *localRepo) newWriter() (*writeback.Writer, error) {
	registry := writeback.NewRegistry()
	if l.cfg.Writeback.Sidecar {
		if err := registry.Register(writeback.NewSidecarPlugin()); err != nil {
			return nil, semerrors.InternalError("failed to register writeback plugin", err)
		}
	}
	return writeback.NewWriter(l.model(), registry), nil
}

// closeLocal closes l and logs a failure; used in defers.
func closeLocal(l *localRepo) {
	if err := l.Close(); err != nil {
		slog.Warn("repository_close_failed", slog.String("error", err.Error()))
	}
}
