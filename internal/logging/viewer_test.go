package logging

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logLine(level, msg string, attrs string) string {
	return fmt.Sprintf(`{"time":"2026-03-01T10:20:30.123Z","level":"%s","msg":"%s"%s}`, level, msg, attrs)
}

func writeLog(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "semdesk.log")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func TestViewer_Tail_LastN(t *testing.T) {
	// Given: a log with five entries
	var lines []string
	for i := 0; i < 5; i++ {
		lines = append(lines, logLine("INFO", fmt.Sprintf("event_%d", i), ""))
	}
	path := writeLog(t, lines...)

	// When: tailing three
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})
	entries, err := v.Tail(path, 3)

	// Then: the last three are returned in order
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "event_2", entries[0].Msg)
	assert.Equal(t, "event_4", entries[2].Msg)
}

func TestViewer_Tail_LevelAndPattern(t *testing.T) {
	path := writeLog(t,
		logLine("DEBUG", "scheduler_state_changed", ""),
		logLine("INFO", "daemon_started", ""),
		logLine("WARN", "watcher_batch_dropped", ""),
		logLine("ERROR", "storage_unavailable", ""),
		"not json at all",
	)

	v := NewViewer(ViewerConfig{Level: "warn", NoColor: true}, &bytes.Buffer{})
	entries, err := v.Tail(path, 10)
	require.NoError(t, err)
	var msgs []string
	for _, e := range entries {
		msgs = append(msgs, e.Msg)
	}
	assert.Equal(t, []string{"watcher_batch_dropped", "storage_unavailable", ""}, msgs)

	v = NewViewer(ViewerConfig{Pattern: regexp.MustCompile("daemon_"), NoColor: true}, &bytes.Buffer{})
	entries, err = v.Tail(path, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "daemon_started", entries[0].Msg)
}

func TestViewer_Tail_MissingFile(t *testing.T) {
	v := NewViewer(ViewerConfig{}, &bytes.Buffer{})
	_, err := v.Tail(filepath.Join(t.TempDir(), "nope.log"), 10)
	assert.Error(t, err)
}

func TestViewer_FormatEntry(t *testing.T) {
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})

	entry := parseLine(logLine("INFO", "file_indexed", `,"path":"/docs/a.txt","bytes":12`))
	got := v.FormatEntry(entry)

	ts := entry.Time.Format("15:04:05.000")
	assert.Equal(t, ts+" INFO  file_indexed bytes=12 path=/docs/a.txt", got)

	raw := parseLine("plain text")
	assert.False(t, raw.IsValid)
	assert.Equal(t, "plain text", v.FormatEntry(raw))
}

func TestViewer_Print(t *testing.T) {
	buf := &bytes.Buffer{}
	v := NewViewer(ViewerConfig{NoColor: true}, buf)

	v.Print([]LogEntry{parseLine("a"), parseLine("b")})

	assert.Equal(t, "a\nb\n", buf.String())
}

func TestViewer_Follow(t *testing.T) {
	// Given: an existing log being followed
	path := writeLog(t, logLine("INFO", "old_entry", ""))
	v := NewViewer(ViewerConfig{NoColor: true, PollInterval: 10 * time.Millisecond}, &bytes.Buffer{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	entries := make(chan LogEntry, 10)
	done := make(chan error, 1)
	go func() { done <- v.Follow(ctx, path, entries) }()

	// Give Follow time to seek to the end before appending
	time.Sleep(50 * time.Millisecond)

	// When: a new entry is appended
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(logLine("INFO", "new_entry", "") + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	// Then: only the new entry is delivered
	select {
	case e := <-entries:
		assert.Equal(t, "new_entry", e.Msg)
	case <-time.After(2 * time.Second):
		t.Fatal("no entry followed")
	}

	cancel()
	assert.NoError(t, <-done)
}
