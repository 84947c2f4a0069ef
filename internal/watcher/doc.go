// Package watcher turns file system notifications into indexing requests.
//
// An fsnotify watch is placed on every configured folder that the filter
// says is indexed. Events are debounced so that editors saving a file
// several times in a row cause a single reindex, then routed to a Target:
//
//	create/modify file -> IndexFile
//	create directory   -> UpdateFolder(dir, recursive, unforced)
//	delete/rename      -> RemoveFile
//
// Usage:
//
//	w, err := watcher.New(f, sched, watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	if err := w.Start(ctx); err != nil {
//	    return err
//	}
//	defer w.Stop()
package watcher
