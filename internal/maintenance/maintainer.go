// Package maintenance reclaims instance-base graphs that no longer hold
// any statements.
//
// Reindexing a file moves its statements into a new graph and leaves the
// old one empty. The GraphMaintainer sweeps those graphs, together with
// their metadata graphs, in bounded batches with a pause between batches.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	semerrors "github.com/Aman-CERP/semdesk/internal/errors"
)

// Store is the subset of the repository model the maintainer needs.
// RemoveGraphs must remove all given graphs in one transaction.
type Store interface {
	EmptyInstanceBases(ctx context.Context, limit int, skip []string) ([]string, error)
	MetadataGraphsFor(ctx context.Context, graph string) ([]string, error)
	RemoveGraphs(ctx context.Context, graphs ...string) (int64, error)
}

// Config configures a GraphMaintainer.
type Config struct {
	// BatchSize is the number of candidate graphs fetched per query.
	BatchSize int
	// Sleep is the pause between batches.
	Sleep time.Duration
}

// DefaultConfig returns the default batch size and pause.
func DefaultConfig() Config {
	return Config{BatchSize: 100, Sleep: 200 * time.Millisecond}
}

// Stats reports the outcome of a sweep.
type Stats struct {
	GraphsRemoved     int           `json:"graphs_removed"`
	StatementsRemoved int64         `json:"statements_removed"`
	Failures          int           `json:"failures"`
	Batches           int           `json:"batches"`
	Canceled          bool          `json:"canceled"`
	StartedAt         time.Time     `json:"started_at"`
	Duration          time.Duration `json:"duration"`
}

// GraphMaintainer runs empty-graph sweeps, either on demand through Run or
// in a background goroutine driven by Trigger.
type GraphMaintainer struct {
	store Store
	cfg   Config

	// canceled is checked between batches and between graphs.
	canceled atomic.Bool
	stopCh   chan struct{}
	trigger  chan struct{}

	sweepMu sync.Mutex // one sweep at a time
	running atomic.Bool

	statsMu sync.Mutex
	last    Stats
	total   Stats

	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates a maintainer over store.
func New(store Store, cfg Config) *GraphMaintainer {
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.Sleep < 0 {
		cfg.Sleep = def.Sleep
	}
	return &GraphMaintainer{
		store:   store,
		cfg:     cfg,
		stopCh:  make(chan struct{}),
		trigger: make(chan struct{}, 1),
	}
}

// Name identifies the maintainer in the service registry.
func (m *GraphMaintainer) Name() string { return "maintenance" }

// Start launches the background loop, which sweeps once immediately and
// then again on every Trigger.
func (m *GraphMaintainer) Start(ctx context.Context) error {
	m.startOnce.Do(func() {
		m.wg.Add(1)
		go m.loop(ctx)
		m.Trigger()
		slog.Debug("graph_maintainer_started",
			slog.Int("batch_size", m.cfg.BatchSize),
			slog.Duration("sleep", m.cfg.Sleep))
	})
	return nil
}

// Stop sets the canceled flag and waits for the background loop and any
// running sweep to finish. The maintainer cannot be restarted.
func (m *GraphMaintainer) Stop() error {
	m.stopOnce.Do(func() {
		m.canceled.Store(true)
		close(m.stopCh)
		m.wg.Wait()
		slog.Debug("graph_maintainer_stopped")
	})
	return nil
}

// Trigger requests a background sweep. Requests made while one is pending
// collapse into it.
func (m *GraphMaintainer) Trigger() {
	select {
	case m.trigger <- struct{}{}:
	default:
	}
}

// Running reports whether a sweep is in progress.
func (m *GraphMaintainer) Running() bool {
	return m.running.Load()
}

// LastStats returns the result of the most recent sweep.
func (m *GraphMaintainer) LastStats() Stats {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	return m.last
}

// TotalStats returns counters accumulated over every sweep.
func (m *GraphMaintainer) TotalStats() Stats {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	return m.total
}

func (m *GraphMaintainer) loop(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		case <-m.trigger:
			if _, err := m.Run(ctx); err != nil && !m.canceled.Load() && ctx.Err() == nil {
				slog.Warn("graph_maintenance_failed", semerrors.LogAttr(err))
			}
		}
	}
}

// Run performs one sweep synchronously and returns its statistics. It
// returns early, with Stats.Canceled set, once Stop is called or ctx ends.
func (m *GraphMaintainer) Run(ctx context.Context) (Stats, error) {
	m.sweepMu.Lock()
	defer m.sweepMu.Unlock()
	m.running.Store(true)
	defer m.running.Store(false)

	st := Stats{StartedAt: time.Now()}
	err := m.sweep(ctx, &st)
	st.Duration = time.Since(st.StartedAt)

	if st.Failures > 0 {
		slog.Warn("graph_maintenance_summary",
			slog.Int("graphs_removed", st.GraphsRemoved),
			slog.Int64("statements_removed", st.StatementsRemoved),
			slog.Int("failures", st.Failures))
	} else if st.GraphsRemoved > 0 {
		slog.Info("graph_maintenance_summary",
			slog.Int("graphs_removed", st.GraphsRemoved),
			slog.Int64("statements_removed", st.StatementsRemoved),
			slog.Duration("duration", st.Duration))
	}

	m.statsMu.Lock()
	m.last = st
	m.total.GraphsRemoved += st.GraphsRemoved
	m.total.StatementsRemoved += st.StatementsRemoved
	m.total.Failures += st.Failures
	m.total.Batches += st.Batches
	m.total.Duration += st.Duration
	m.statsMu.Unlock()

	return st, err
}

func (m *GraphMaintainer) stopped(ctx context.Context) bool {
	return m.canceled.Load() || ctx.Err() != nil
}

func (m *GraphMaintainer) sweep(ctx context.Context, st *Stats) error {
	// Graphs that failed or removed nothing are not retried within this
	// sweep.
	var skip []string

	for {
		if m.stopped(ctx) {
			st.Canceled = true
			return nil
		}

		graphs, err := m.store.EmptyInstanceBases(ctx, m.cfg.BatchSize, skip)
		if err != nil {
			if m.stopped(ctx) {
				st.Canceled = true
				return nil
			}
			return semerrors.New(semerrors.ErrCodeMaintenance, "failed to query empty graphs", err)
		}
		if len(graphs) == 0 {
			return nil
		}
		st.Batches++

		for _, g := range graphs {
			if m.stopped(ctx) {
				st.Canceled = true
				return nil
			}

			n, err := m.removeGraph(ctx, g)
			if err != nil {
				st.Failures++
				skip = append(skip, g)
				slog.Warn("graph_removal_failed",
					slog.String("graph", g),
					semerrors.LogAttr(err))
				continue
			}
			if n == 0 {
				skip = append(skip, g)
				slog.Debug("graph_removal_empty", slog.String("graph", g))
				continue
			}
			st.GraphsRemoved++
			st.StatementsRemoved += n
		}

		if !m.pause(ctx) {
			st.Canceled = true
			return nil
		}
	}
}

// removeGraph deletes g and its metadata graphs in one transaction.
func (m *GraphMaintainer) removeGraph(ctx context.Context, g string) (int64, error) {
	metas, err := m.store.MetadataGraphsFor(ctx, g)
	if err != nil {
		return 0, fmt.Errorf("metadata graphs for %s: %w", g, err)
	}
	return m.store.RemoveGraphs(ctx, append(metas, g)...)
}

// pause sleeps between batches; it returns false if woken by cancellation.
func (m *GraphMaintainer) pause(ctx context.Context) bool {
	if m.cfg.Sleep <= 0 {
		return !m.stopped(ctx)
	}
	t := time.NewTimer(m.cfg.Sleep)
	defer t.Stop()
	select {
	case <-t.C:
		return !m.stopped(ctx)
	case <-m.stopCh:
		return false
	case <-ctx.Done():
		return false
	}
}
