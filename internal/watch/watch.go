// Package watch re-runs a callback when a file changes.
package watch

import (
	"context"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"
)

// DefaultDebounce collapses the burst of events an editor save produces.
const DefaultDebounce = 200 * time.Millisecond

// File calls fn once, then again after every change to path, until ctx is
// done. The parent directory is watched so that atomic saves (write to a
// temp file, rename over the original) are seen. Errors from fn are logged
// and do not stop the loop.
func File(ctx context.Context, path string, debounce time.Duration, log logr.Logger, fn func() error) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrapf(err, "resolve %s", path)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return errors.Wrapf(err, "watch %s", filepath.Dir(abs))
	}

	run := func() {
		if err := fn(); err != nil {
			log.Error(err, "render failed", "path", path)
		}
	}
	run()

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !relevant(ev.Op) {
				continue
			}
			log.V(1).Info("file changed", "path", path, "op", ev.Op.String())
			timer.Reset(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Error(err, "watcher error")
		case <-timer.C:
			run()
		}
	}
}

func relevant(op fsnotify.Op) bool {
	return op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0
}
