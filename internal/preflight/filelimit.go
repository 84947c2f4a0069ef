package preflight

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// MinFileDescriptors is the minimum required file descriptor limit.
const MinFileDescriptors = 1024

// MinInotifyWatches is the watch budget below which large home folders
// exhaust inotify.
const MinInotifyWatches = 8192

// inotifyWatchesPath is a variable so tests can point it elsewhere.
var inotifyWatchesPath = "/proc/sys/fs/inotify/max_user_watches"

// CheckFileDescriptors checks if the file descriptor limit is sufficient.
func (c *Checker) CheckFileDescriptors() CheckResult {
	result := CheckResult{
		Name:     "file_descriptors",
		Required: true,
	}

	var rLimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rLimit); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check file descriptor limit: %v", err)
		return result
	}

	result.Message = fmt.Sprintf("%d (minimum: %d)", rLimit.Cur, MinFileDescriptors)
	if rLimit.Cur < MinFileDescriptors {
		result.Status = StatusFail
		result.Details = "Run 'ulimit -n 10240' to increase the limit"
		return result
	}

	result.Status = StatusPass
	return result
}

// CheckWatchLimit reports the inotify watch budget. One watch is used per
// directory under an indexed folder; running out only degrades the watcher,
// so the check is never critical.
func (c *Checker) CheckWatchLimit() CheckResult {
	result := CheckResult{Name: "watch_limit"}

	if runtime.GOOS != "linux" {
		result.Status = StatusPass
		result.Message = "not limited on " + runtime.GOOS
		return result
	}

	data, err := os.ReadFile(inotifyWatchesPath)
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("failed to read watch limit: %v", err)
		return result
	}
	limit, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("unexpected watch limit %q", strings.TrimSpace(string(data)))
		return result
	}

	result.Message = fmt.Sprintf("%d (minimum: %d)", limit, MinInotifyWatches)
	if limit < MinInotifyWatches {
		result.Status = StatusWarn
		result.Details = "Raise fs.inotify.max_user_watches with sysctl"
		return result
	}
	result.Status = StatusPass
	return result
}
