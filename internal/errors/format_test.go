package errors

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForCLI(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains []string
		absent   []string
	}{
		{
			name:     "structured error with hint",
			err:      New(ErrCodeRepositoryLocked, "storage is in use", nil).WithSuggestion("Stop the daemon first"),
			contains: []string{"Error: storage is in use\n", "  Hint: Stop the daemon first\n", "  Code: " + ErrCodeRepositoryLocked},
		},
		{
			name:     "no hint line without suggestion",
			err:      New(ErrCodeNotIndexed, "file is not indexed", nil),
			contains: []string{"Error: file is not indexed\n"},
			absent:   []string{"Hint:"},
		},
		{
			name:     "wrapped structured error keeps its code",
			err:      fmt.Errorf("export: %w", New(ErrCodeIndexUnavailable, "index closed", nil)),
			contains: []string{"Code: " + ErrCodeIndexUnavailable},
		},
		{
			name:     "plain error is internal",
			err:      errors.New("disk on fire"),
			contains: []string{"Error: disk on fire\n", "Code: " + ErrCodeInternal},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatForCLI(tt.err)
			for _, s := range tt.contains {
				assert.Contains(t, got, s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, got, s)
			}
		})
	}

	assert.Empty(t, FormatForCLI(nil))
}

func TestFormatJSON(t *testing.T) {
	// Given: a structured error with detail, suggestion and cause
	err := New(ErrCodeRepositoryLocked, "storage is in use", errors.New("lock held")).
		WithDetail("path", "/tmp/store").
		WithSuggestion("Stop the daemon first")

	// When: rendering it as JSON
	data, ferr := FormatJSON(fmt.Errorf("index: %w", err))
	require.NoError(t, ferr)

	// Then: every field lands under "error"
	var got struct {
		Error jsonError `json:"error"`
	}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, ErrCodeRepositoryLocked, got.Error.Code)
	assert.Equal(t, "storage is in use", got.Error.Message)
	assert.Equal(t, "lock held", got.Error.Cause)
	assert.Equal(t, "/tmp/store", got.Error.Details["path"])
	assert.Equal(t, "Stop the daemon first", got.Error.Suggestion)
	assert.True(t, got.Error.Retryable)
	assert.NotEmpty(t, got.Error.Category)
}

func TestFormatJSON_PlainError(t *testing.T) {
	data, err := FormatJSON(errors.New("boom"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"code": "`+ErrCodeInternal+`"`)
	assert.Contains(t, string(data), `"message": "boom"`)

	data, err = FormatJSON(nil)
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}

func TestLogAttr(t *testing.T) {
	// Given: a JSON logger
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	// When: logging a wrapped structured error
	err := fmt.Errorf("pass: %w", New(ErrCodeStoreBusy, "store busy", errors.New("SQLITE_BUSY")))
	logger.Warn("index_file_failed", LogAttr(err))

	// Then: the error is a group with its code and cause
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	group, ok := rec["error"].(map[string]any)
	require.True(t, ok, "error should be a group: %s", buf.String())
	assert.Equal(t, ErrCodeStoreBusy, group["code"])
	assert.Equal(t, "store busy", group["message"])
	assert.Equal(t, "SQLITE_BUSY", group["cause"])
}

func TestLogAttr_PlainError(t *testing.T) {
	attr := LogAttr(errors.New("permission denied"))
	assert.Equal(t, "error", attr.Key)
	assert.Equal(t, "permission denied", attr.Value.String())

	assert.Equal(t, "", LogAttr(nil).Value.String())
}
