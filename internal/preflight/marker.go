package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// MarkerFile is the name of the file that indicates preflight checks have passed.
const MarkerFile = ".preflight-passed"

// NeedsCheck returns true if the marker file is missing from the storage
// directory.
func NeedsCheck(storageDir string) bool {
	_, err := os.Stat(filepath.Join(storageDir, MarkerFile))
	return os.IsNotExist(err)
}

// MarkPassed creates the marker file to indicate preflight checks passed.
func MarkPassed(storageDir string) error {
	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return fmt.Errorf("create marker directory: %w", err)
	}

	content := []byte(time.Now().Format(time.RFC3339))
	return os.WriteFile(filepath.Join(storageDir, MarkerFile), content, 0o644)
}

// MarkerAge returns how long ago the preflight check passed.
// Returns zero if marker doesn't exist.
func MarkerAge(storageDir string) time.Duration {
	content, err := os.ReadFile(filepath.Join(storageDir, MarkerFile))
	if err != nil {
		return 0
	}

	t, err := time.Parse(time.RFC3339, string(content))
	if err != nil {
		return 0
	}

	return time.Since(t)
}
