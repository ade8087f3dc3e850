// Package watcher reports MARC files dropped into, changed in, or removed
// from a directory tree.
//
// fsnotify is used where it works; polling is the fallback for network
// mounts and container volumes. Dot-directories (the data directory, .git)
// are never watched, and only files whose base name matches one of the
// configured globs are reported. A Settler holds each file back until a
// quiet window passes with its size unchanged, so a file still being copied
// is reported once, after it settles.
//
// Usage:
//
//	w, err := watcher.NewHybridWatcher(watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	go func() { _ = w.Start(ctx, "/srv/marc/incoming") }()
//
//	for batch := range w.Events() {
//	    for _, ev := range batch {
//	        // ev.Path is relative to the watched directory
//	    }
//	}
package watcher
