// Package watch keeps the graph current by running an incremental update
// shortly after files under the root change.
package watch

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/skelly-dev/codegraph/internal/graph"
)

const DefaultDebounce = 300 * time.Millisecond

// Updater is the part of graph.Mapper the watcher drives.
type Updater interface {
	Root() string
	Accepts(rel string, isDir bool) bool
	Update(ctx context.Context) (*graph.UpdateSummary, error)
}

type Options struct {
	Debounce time.Duration
	Logger   *slog.Logger
	// OnUpdate is called after every update that changed the graph.
	OnUpdate func(*graph.UpdateSummary)
}

// Watcher turns bursts of filesystem events into single updates. Events are
// filtered with the updater's include, exclude and ignore rules.
type Watcher struct {
	updater  Updater
	watcher  *fsnotify.Watcher
	root     string
	debounce time.Duration
	logger   *slog.Logger
	onUpdate func(*graph.UpdateSummary)
}

// New registers watches on every accepted directory under the updater's
// root. The root must already be scanned.
func New(updater Updater, opts Options) (*Watcher, error) {
	root := updater.Root()
	if root == "" {
		return nil, graph.ErrNotScanned
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		updater:  updater,
		watcher:  fsw,
		root:     root,
		debounce: opts.Debounce,
		logger:   logger,
		onUpdate: opts.OnUpdate,
	}
	if err := w.addRecursive(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run processes events until ctx is cancelled or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if w.relevant(event) {
				pending = true
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)

		case <-timer.C:
			if !pending {
				continue
			}
			pending = false
			w.update(ctx)
		}
	}
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) update(ctx context.Context) {
	summary, err := w.updater.Update(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			w.logger.Warn("watch update failed", "error", err)
		}
		return
	}
	if !summary.Changed() {
		return
	}
	w.logger.Info("graph updated",
		"run_id", summary.RunID,
		"generation", summary.Generation,
		"reparsed", len(summary.Reparsed),
		"removed", len(summary.Removed),
	)
	if w.onUpdate != nil {
		w.onUpdate(summary)
	}
}

// relevant reports whether event can change the graph. New directories are
// added to the watch list as a side effect.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil || rel == "." {
		return false
	}
	rel = filepath.ToSlash(rel)

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !w.updater.Accepts(rel, true) {
				return false
			}
			if err := w.addRecursive(event.Name); err != nil {
				w.logger.Warn("watch directory", "path", rel, "error", err)
			}
			// Files may have landed before the watch was added.
			return true
		}
	}
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		// The path is gone, so it cannot be classified as file or directory.
		return w.updater.Accepts(rel, false) || w.updater.Accepts(rel, true)
	}
	if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
		return w.updater.Accepts(rel, false)
	}
	return false
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root {
			rel, err := filepath.Rel(w.root, path)
			if err == nil && !w.updater.Accepts(filepath.ToSlash(rel), true) {
				return filepath.SkipDir
			}
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Debug("skip watch", "path", path, "error", err)
		}
		return nil
	})
}
