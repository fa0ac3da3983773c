package config

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/isrc101/crew/internal/roles"
)

// RolesWatcher reloads the role catalog overlay whenever its file changes,
// so long-running sessions pick up catalog edits without a restart.
type RolesWatcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// WatchRolesFile starts watching path and reloads reg on every write or
// create of that file. onReload, if non-nil, is called with the reload error
// (nil on success).
func WatchRolesFile(path string, reg *roles.Registry, onReload func(error)) (*RolesWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	// Watch the directory: editors replace files on save, which would
	// invalidate a watch on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	w := &RolesWatcher{watcher: watcher, done: make(chan struct{})}
	target := filepath.Clean(path)
	go func() {
		defer close(w.done)
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				err := reg.LoadFile(path)
				if onReload != nil {
					onReload(err)
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return w, nil
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *RolesWatcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}
