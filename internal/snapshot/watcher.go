package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/fsnotify/fsnotify"
)

// Watcher delivers the parsed snapshot every time the file is replaced or
// written.
type Watcher struct {
	path     string
	dir      string
	onChange func([]Entry)
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
}

// NewWatcher watches the directory containing path. The directory is
// created if missing so the watch can be armed before the daemon's first
// publish.
func NewWatcher(path string, onChange func([]Entry), logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve snapshot path: %w", err)
	}
	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	return &Watcher{
		path:     absPath,
		dir:      dir,
		onChange: onChange,
		logger:   logger,
		watcher:  fw,
	}, nil
}

// Run delivers the current snapshot, if any, and then one reload per
// relevant change until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	w.reload()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug("snapshot changed", "path", w.path, "op", ev.Op.String())
			w.reload()
			w.rearm()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("snapshot watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	entries, err := Load(w.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			w.logger.Warn("failed to read snapshot", "path", w.path, "error", err)
		}
		return
	}
	w.onChange(entries)
}

// rearm re-adds the directory watch if the backend dropped it.
func (w *Watcher) rearm() {
	if slices.Contains(w.watcher.WatchList(), w.dir) {
		return
	}
	if err := w.watcher.Add(w.dir); err != nil {
		w.logger.Warn("failed to re-arm snapshot watch", "path", w.dir, "error", err)
	}
}

// Close stops watching the snapshot directory.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
