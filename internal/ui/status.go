package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// StatusInfo is the daemon and repository state shown by `semdesk status`.
type StatusInfo struct {
	Running bool   `json:"running"`
	PID     int    `json:"pid,omitempty"`
	Uptime  string `json:"uptime,omitempty"`

	// Storage is "available" or "unavailable".
	Storage      string `json:"storage"`
	StorageError string `json:"storage_error,omitempty"`
	StoragePath  string `json:"storage_path"`

	HeapBytes  int64 `json:"heap_bytes,omitempty"`
	Goroutines int   `json:"goroutines,omitempty"`

	Statements int64  `json:"statements"`
	Resources  int64  `json:"resources"`
	Graphs     int64  `json:"graphs"`
	Documents  uint64 `json:"documents"`
	StoreBytes int64  `json:"store_bytes"`
	IndexBytes int64  `json:"index_bytes"`

	SchedulerStatus string    `json:"scheduler_status,omitempty"`
	QueuedFolders   int       `json:"queued_folders"`
	QueuedFiles     int       `json:"queued_files"`
	TotalIndexed    int       `json:"total_indexed"`
	TotalFailed     int       `json:"total_failed"`
	LastPass        time.Time `json:"last_pass,omitempty"`

	MaintenanceRunning bool `json:"maintenance_running"`
	GraphsRemoved      int  `json:"graphs_removed"`

	// WatchedDirs is -1 when the watcher is off.
	WatchedDirs int `json:"watched_dirs"`
}

// StatusRenderer displays daemon status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:    out,
		styles: GetStyles(noColor),
	}
}

// Render displays status info to terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	if !info.Running {
		_, _ = fmt.Fprintf(r.out, "%s %s\n", r.styles.Header.Render("Daemon:"), r.renderStatus("stopped"))
		return nil
	}

	_, _ = fmt.Fprintf(r.out, "%s %s (pid %d, up %s)\n\n",
		r.styles.Header.Render("Daemon:"), r.renderStatus("running"), info.PID, info.Uptime)

	_, _ = fmt.Fprintf(r.out, "  Storage:      %s\n", r.renderStatus(info.Storage))
	_, _ = fmt.Fprintf(r.out, "  Path:         %s\n", info.StoragePath)
	if info.HeapBytes > 0 {
		_, _ = fmt.Fprintf(r.out, "  Memory:       %s heap, %d goroutines\n", FormatBytes(info.HeapBytes), info.Goroutines)
	}
	if info.StorageError != "" {
		_, _ = fmt.Fprintf(r.out, "  Error:        %s\n", r.styles.Error.Render(info.StorageError))
		return nil
	}
	_, _ = fmt.Fprintf(r.out, "  Resources:    %d\n", info.Resources)
	_, _ = fmt.Fprintf(r.out, "  Statements:   %d in %d graphs\n", info.Statements, info.Graphs)
	_, _ = fmt.Fprintf(r.out, "  Documents:    %d\n", info.Documents)
	_, _ = fmt.Fprintf(r.out, "  Size:         %s store, %s index\n", FormatBytes(info.StoreBytes), FormatBytes(info.IndexBytes))
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Indexer:")
	_, _ = fmt.Fprintf(r.out, "    Status:     %s\n", r.renderStatus(info.SchedulerStatus))
	_, _ = fmt.Fprintf(r.out, "    Queued:     %d folders, %d files\n", info.QueuedFolders, info.QueuedFiles)
	_, _ = fmt.Fprintf(r.out, "    Indexed:    %d (%d failed)\n", info.TotalIndexed, info.TotalFailed)
	if !info.LastPass.IsZero() {
		_, _ = fmt.Fprintf(r.out, "    Last pass:  %s\n", formatTime(info.LastPass))
	}
	_, _ = fmt.Fprintln(r.out)

	maint := "idle"
	if info.MaintenanceRunning {
		maint = "running"
	}
	_, _ = fmt.Fprintf(r.out, "  Maintenance:  %s (%d graphs removed)\n", r.renderStatus(maint), info.GraphsRemoved)
	if info.WatchedDirs >= 0 {
		_, _ = fmt.Fprintf(r.out, "  Watcher:      %s (%d directories)\n", r.renderStatus("running"), info.WatchedDirs)
	} else {
		_, _ = fmt.Fprintf(r.out, "  Watcher:      %s\n", r.renderStatus("off"))
	}
	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

// renderStatus formats a status string with color.
func (r *StatusRenderer) renderStatus(status string) string {
	switch {
	case status == "available" || status == "running" || status == "Idle":
		return r.styles.Success.Render(status)
	case status == "stopped" || status == "off" || status == "Suspended" || strings.HasPrefix(status, "Paused"):
		return r.styles.Warning.Render(status)
	case status == "unavailable" || status == "error":
		return r.styles.Error.Render(status)
	default:
		return status
	}
}

// formatTime formats a time for display.
func formatTime(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("2006-01-02 15:04")
	}
}

// FormatBytes formats a byte count in IEC units ("1.5 KiB", "300 MiB").
func FormatBytes(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}
