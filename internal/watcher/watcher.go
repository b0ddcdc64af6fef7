// Package watcher observes a local directory and uploads files as they
// appear or change. Events are debounced per path so a file still being
// written is uploaded once, after it goes quiet.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// UploadFunc sends one local file to the backend. Invoked after a path has
// been quiet for the debounce interval.
type UploadFunc func(ctx context.Context, path string) error

// Watcher uploads files dropped into a directory.
type Watcher struct {
	dir      string
	debounce time.Duration
	upload   UploadFunc
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// New creates a Watcher over dir. debounce is how long a path must stay
// quiet before its upload fires.
func New(dir string, debounce time.Duration, upload UploadFunc, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		dir:      dir,
		debounce: debounce,
		upload:   upload,
		logger:   logger,
		pending:  make(map[string]*time.Timer),
	}
}

// Run watches until ctx is canceled. Returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: creating filesystem watcher: %w", err)
	}
	defer fsWatcher.Close()

	if err := fsWatcher.Add(w.dir); err != nil {
		return fmt.Errorf("watcher: watching %s: %w", w.dir, err)
	}

	w.logger.Info("watching directory",
		slog.String("dir", w.dir),
		slog.Duration("debounce", w.debounce),
	)

	defer w.stopAllTimers()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsWatcher.Events:
			if !ok {
				return nil
			}

			w.handleEvent(ctx, event)

		case watchErr, ok := <-fsWatcher.Errors:
			if !ok {
				return nil
			}

			w.logger.Warn("filesystem watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

// handleEvent schedules or reschedules the debounced upload for a path.
// Only Create and Write matter — removes and renames have nothing to send.
func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	name := filepath.Base(event.Name)
	if skipName(name) {
		w.logger.Debug("skipping excluded file", slog.String("name", name))

		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[event.Name]; ok {
		timer.Reset(w.debounce)

		return
	}

	path := event.Name
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.fire(ctx, path)
	})
}

// fire runs the upload for a path whose debounce window elapsed.
func (w *Watcher) fire(ctx context.Context, path string) {
	w.mu.Lock()
	delete(w.pending, path)
	w.mu.Unlock()

	if ctx.Err() != nil {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		// Removed before the window elapsed.
		w.logger.Debug("stat failed for watched path",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)

		return
	}

	if info.IsDir() {
		return
	}

	if err := w.upload(ctx, path); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}

		w.logger.Warn("watched upload failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)

		return
	}

	w.logger.Info("watched upload complete",
		slog.String("path", path),
		slog.Int64("size", info.Size()),
	)
}

func (w *Watcher) stopAllTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
}

// skipName reports whether a file name is excluded from watching: hidden
// files and in-progress download artifacts.
func skipName(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".partial")
}
