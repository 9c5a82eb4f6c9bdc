// Package watcher reloads the snapshot file when another process rewrites it.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"OmniSpectrum/internal/domain/models"
	drepo "OmniSpectrum/internal/domain/repository"
	"OmniSpectrum/pkg/logger"
)

const defaultDebounce = 250 * time.Millisecond

// FileWatcher watches the directory holding a file-backed store and tells
// listeners about snapshots they have not seen yet. It only reads.
type FileWatcher struct {
	path      string
	store     drepo.SnapshotStore
	log       *logger.Logger
	debounce  time.Duration
	listeners []drepo.SnapshotListener

	mu   sync.Mutex
	last *models.Document
}

func NewFileWatcher(path string, store drepo.SnapshotStore, log *logger.Logger, listeners ...drepo.SnapshotListener) *FileWatcher {
	if log == nil {
		log = logger.NewNop()
	}
	return &FileWatcher{
		path:      filepath.Clean(path),
		store:     store,
		log:       log.With(logger.String("component", "file_watcher")),
		debounce:  defaultDebounce,
		listeners: listeners,
	}
}

// OnSnapshot records doc as seen so the write that follows does not echo.
func (w *FileWatcher) OnSnapshot(doc *models.Document) {
	w.mu.Lock()
	w.last = doc
	w.mu.Unlock()
}

// Run blocks until ctx is cancelled.
func (w *FileWatcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.log.Info("watching snapshot file", logger.String("path", w.path))

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", logger.Error(err))
		case <-fire:
			fire = nil
			w.reload(ctx)
		}
	}
}

func (w *FileWatcher) reload(ctx context.Context) {
	doc, err := w.store.Read(ctx)
	if err != nil {
		if !errors.Is(err, models.ErrSnapshotNotFound) {
			w.log.Warn("reload snapshot", logger.Error(err))
		}
		return
	}
	w.mu.Lock()
	seen := w.last.Equal(doc)
	if !seen {
		w.last = doc
	}
	w.mu.Unlock()
	if seen {
		return
	}
	w.log.Info("snapshot file changed", logger.Float64("close", doc.Snapshot.Close))
	for _, l := range w.listeners {
		l.OnSnapshot(doc)
	}
}
