package preflight

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecker_CheckFileDescriptors(t *testing.T) {
	result := New().CheckFileDescriptors()

	assert.Equal(t, "file_descriptors", result.Name)
	assert.True(t, result.Required)
	assert.Contains(t, result.Message, "minimum: 1024")
}

func TestChecker_CheckWatchLimit(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("inotify limits only apply on Linux")
	}

	tests := []struct {
		name    string
		content string
		status  CheckStatus
	}{
		{name: "plenty", content: "524288\n", status: StatusPass},
		{name: "too low", content: "4096\n", status: StatusWarn},
		{name: "garbage", content: "lots\n", status: StatusWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: a fake watch limit file
			path := filepath.Join(t.TempDir(), "max_user_watches")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			prev := inotifyWatchesPath
			inotifyWatchesPath = path
			t.Cleanup(func() { inotifyWatchesPath = prev })

			// When: checking the limit
			result := New().CheckWatchLimit()

			// Then: low or unreadable limits only warn
			assert.Equal(t, tt.status, result.Status)
			assert.False(t, result.IsCritical())
		})
	}
}

func TestChecker_CheckDiskSpace(t *testing.T) {
	result := New().CheckDiskSpace(t.TempDir())

	assert.Equal(t, "disk_space", result.Name)
	assert.Contains(t, result.Message, "free")
}

func TestChecker_CheckDiskSpace_MissingPath(t *testing.T) {
	result := New().CheckDiskSpace(filepath.Join(t.TempDir(), "missing"))

	assert.Equal(t, StatusFail, result.Status)
	assert.Contains(t, result.Message, "failed to check disk space")
}
