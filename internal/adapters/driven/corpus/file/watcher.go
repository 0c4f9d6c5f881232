package file

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/lorekeeper/internal/logger"
)

// Watch calls onChange after the corpus file is written, created or replaced,
// until ctx is done. Bursts of events within the debounce window produce a
// single call.
//
// The parent directory is watched rather than the file itself: editors that
// save by renaming a temp file over the original would otherwise detach the
// watch.
func (s *Source) Watch(ctx context.Context, onChange func()) error {
	target, err := s.absPath()
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	if err := w.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(target), err)
	}
	logger.Debug("Watching %s for changes", target)

	timer := time.NewTimer(s.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if pending && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(s.debounce)
			pending = true

		case <-timer.C:
			pending = false
			logger.Debug("Corpus file %s changed", target)
			onChange()

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Corpus watcher error: %v", err)
		}
	}
}
