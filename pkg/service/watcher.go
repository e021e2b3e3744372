package service

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/babybob/babybob/pkg/review"
)

// defaultDebounce coalesces the burst of filesystem events a single SQLite
// transaction produces (db, -wal, -shm) into one refresh.
const defaultDebounce = 250 * time.Millisecond

// WatchStore invokes onChange after the store file changes on disk, until
// the context is canceled. Changes are debounced: a quiet period of the
// given duration must pass before the callback fires. A non-positive
// debounce uses the default.
//
// The watch is placed on the containing directory rather than the file
// itself so that rewrites and WAL checkpoints are not missed.
func (s *Service) WatchStore(ctx context.Context, debounce time.Duration, onChange func()) error {
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	path := s.store.Path()
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return review.NewStoreError("watch", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return review.NewStoreError("watch", err)
	}

	log := s.log.WithField("path", path)
	log.Debug("watching store file")

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !storeFileEvent(path, event) {
				continue
			}
			// Restart the quiet-period timer on every relevant event.
			if pending && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(debounce)
			pending = true

		case <-timer.C:
			pending = false
			onChange()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("store watch error")

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// storeFileEvent reports whether the event touches the store file or one of
// its SQLite siblings (-wal, -shm, -journal).
func storeFileEvent(path string, event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
		return false
	}
	name := filepath.Clean(event.Name)
	return name == filepath.Clean(path) || strings.HasPrefix(name, filepath.Clean(path)+"-")
}
