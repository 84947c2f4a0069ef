package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// PlainRenderer outputs one line per event (for CI and pipes).
type PlainRenderer struct {
	mu     sync.Mutex
	out    io.Writer
	errors []ErrorEvent
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(context.Context) error {
	return nil
}

// UpdateProgress implements Renderer.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg := event.Message
	if msg == "" {
		msg = event.Path
	}
	if msg == "" {
		return
	}
	_, _ = fmt.Fprintf(r.out, "[%s] %s\n", event.Stage.Icon(), msg)
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors = append(r.errors, event)

	prefix := "ERROR"
	if event.IsWarn {
		prefix = "WARN"
	}
	if event.Path != "" {
		_, _ = fmt.Fprintf(r.out, "%s: %s: %v\n", prefix, event.Path, event.Err)
	} else {
		_, _ = fmt.Fprintf(r.out, "%s: %v\n", prefix, event.Err)
	}
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintln(r.out, summaryLine(stats))
	if stats.GraphsRemoved > 0 {
		_, _ = fmt.Fprintf(r.out, "Maintenance: %d empty graphs removed\n", stats.GraphsRemoved)
	}
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}

// Errors returns the errors reported so far.
func (r *PlainRenderer) Errors() []ErrorEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ErrorEvent(nil), r.errors...)
}

func summaryLine(stats CompletionStats) string {
	line := fmt.Sprintf("Complete: %d indexed, %d unchanged, %d removed in %s",
		stats.Indexed, stats.Skipped, stats.Removed, stats.Duration.Round(100*time.Millisecond))
	if stats.Failed > 0 {
		line += fmt.Sprintf(" (%d failed)", stats.Failed)
	}
	return line
}
