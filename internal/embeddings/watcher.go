package embeddings

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"attendance/internal/logger"
)

// Watcher observes the face dataset directory and requests a store reload
// when images change. Rapid bursts of events (a folder of photos being
// copied in) collapse into a single reload via the debounce window.
type Watcher struct {
	store    *Store
	dir      string
	debounce time.Duration
	logger   *logger.Logger
}

func NewWatcher(store *Store, dir string, debounce time.Duration, logger *logger.Logger) *Watcher {
	return &Watcher{
		store:    store,
		dir:      dir,
		debounce: debounce,
		logger:   logger,
	}
}

// Run watches until the context is cancelled. fsnotify watches are not
// recursive, so each identity sub-directory is registered individually and
// newly created ones are picked up from their create events.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return err
	}
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			if err := fw.Add(filepath.Join(w.dir, entry.Name())); err != nil {
				w.logger.Warning("Could not watch %s: %v", entry.Name(), err)
			}
		}
	}

	w.logger.Info("Watching face dataset: %s", w.dir)

	var pending *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := fw.Add(event.Name); err != nil {
						w.logger.Warning("Could not watch new directory %s: %v", event.Name, err)
					}
					continue
				}
			}
			if !isImageFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug("Dataset change: %s %s", event.Op, event.Name)
			if pending == nil {
				pending = time.NewTimer(w.debounce)
				fire = pending.C
			} else {
				if !pending.Stop() {
					select {
					case <-pending.C:
					default:
					}
				}
				pending.Reset(w.debounce)
			}

		case <-fire:
			pending = nil
			fire = nil
			w.logger.Info("Face dataset changed, scheduling reload")
			w.store.RequestReload()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Dataset watcher error: %v", err)
		}
	}
}
