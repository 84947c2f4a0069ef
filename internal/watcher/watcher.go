package watcher

import (
	"time"
)

// Operation is the kind of change observed on a path.
type Operation int

const (
	// OpCreate indicates a new file or directory.
	OpCreate Operation = iota
	// OpModify indicates an existing file changed or was replaced.
	OpModify
	// OpDelete indicates a path was removed or renamed away.
	OpDelete
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is a change to one absolute path.
type FileEvent struct {
	Path      string
	Operation Operation
	IsDir     bool
	Timestamp time.Time
}

// Target receives the requests derived from file events. The scheduler
// implements it.
type Target interface {
	IndexFile(path string) bool
	RemoveFile(path string)
	UpdateFolder(path string, recursive, forced bool) bool
}

// Options configures the watcher.
type Options struct {
	// Debounce is how long a path must be quiet before its event is
	// delivered. Default: 500ms
	Debounce time.Duration

	// BatchBuffer is the number of debounced batches that may wait for
	// dispatch. Default: 16
	BatchBuffer int
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		Debounce:    500 * time.Millisecond,
		BatchBuffer: 16,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.Debounce <= 0 {
		o.Debounce = defaults.Debounce
	}
	if o.BatchBuffer <= 0 {
		o.BatchBuffer = defaults.BatchBuffer
	}
	return o
}
