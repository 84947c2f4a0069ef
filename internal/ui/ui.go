// Package ui provides terminal rendering for indexing progress and daemon
// status.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage represents what an indexing run is doing.
type Stage int

const (
	// StageIndexing is crawling folders and indexing files.
	StageIndexing Stage = iota
	// StageRemoving is dropping files that no longer exist.
	StageRemoving
	// StageMaintenance is the empty-graph sweep after indexing.
	StageMaintenance
	// StageComplete indicates the run is complete.
	StageComplete
)

// String returns the human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageIndexing:
		return "Indexing"
	case StageRemoving:
		return "Removing"
	case StageMaintenance:
		return "Maintenance"
	case StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Icon returns the short stage tag for plain text output.
func (s Stage) Icon() string {
	switch s {
	case StageIndexing:
		return "INDEX"
	case StageRemoving:
		return "REMOVE"
	case StageMaintenance:
		return "SWEEP"
	case StageComplete:
		return "DONE"
	default:
		return "???"
	}
}

// ProgressEvent reports one processed path and the running totals.
type ProgressEvent struct {
	Stage   Stage
	Path    string
	Indexed int
	Removed int
	Failed  int
	// Queued is the number of files still waiting, when known.
	Queued  int
	Message string
}

// ErrorEvent represents a path that could not be processed.
type ErrorEvent struct {
	Path   string
	Err    error
	IsWarn bool
}

// CompletionStats contains final statistics of an indexing run.
type CompletionStats struct {
	Folders  int
	Indexed  int
	Skipped  int
	Failed   int
	Removed  int
	Duration time.Duration
	// GraphsRemoved is set when a maintenance sweep followed the run.
	GraphsRemoved int
}

// Renderer defines the interface for progress display.
type Renderer interface {
	// Start initializes the renderer.
	Start(ctx context.Context) error

	// UpdateProgress updates progress display.
	UpdateProgress(event ProgressEvent)

	// AddError adds an error to display.
	AddError(event ErrorEvent)

	// Complete marks rendering as complete with summary.
	Complete(stats CompletionStats)

	// Stop stops the renderer and cleans up.
	Stop() error
}

// Config configures the UI renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	// Refresh is the tick interval of the terminal UI.
	Refresh time.Duration
}

// ConfigOption is a function that modifies Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain text output.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) {
		c.ForcePlain = force
	}
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) {
		c.NoColor = noColor
	}
}

// NewConfig creates a new Config with the given output and options.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{
		Output:  output,
		Refresh: 100 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}

// NewRenderer creates an appropriate renderer based on config and environment.
// It returns the bubbletea renderer for interactive terminals, and a plain
// text renderer for CI environments, pipes, or when --plain is given.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}
	r, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return r
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}

	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}

	return false
}

// DetectNoColor checks if NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}
	for _, v := range ciVars {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
