// Package preflight checks that the host can run the indexer before the
// daemon starts working on a storage directory.
//
// The package validates:
//   - Free disk space under the storage path
//   - Write permissions in the storage path
//   - File descriptor limits
//   - The inotify watch budget (Linux, when the watcher is enabled)
//   - That configured folders exist
//
// The daemon runs the checks once per storage directory and remembers a
// pass with a marker file; `semdesk doctor` runs them on demand:
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, cfg)
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
