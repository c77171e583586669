package session

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
)

// DefaultDebounce is how long the watcher waits for a burst of events to
// settle before reporting it.
const DefaultDebounce = 200 * time.Millisecond

// Ignore matches paths the watcher never reports. A pattern applies to
// every path segment and to the whole relative path.
type Ignore struct {
	patterns []glob.Glob
}

// NewIgnore compiles patterns such as ".git", "*.swp" or "build/**".
func NewIgnore(patterns ...string) (*Ignore, error) {
	ig := &Ignore{patterns: make([]glob.Glob, 0, len(patterns))}

	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("compile ignore pattern %q: %w", p, err)
		}

		ig.patterns = append(ig.patterns, g)
	}

	return ig, nil
}

// Match reports whether rel, a slash separated path relative to the watched
// root, is ignored.
func (ig *Ignore) Match(rel string) bool {
	if ig == nil {
		return false
	}

	rel = filepath.ToSlash(rel)

	for _, g := range ig.patterns {
		if g.Match(rel) {
			return true
		}

		for seg := range strings.SplitSeq(rel, "/") {
			if g.Match(seg) {
				return true
			}
		}
	}

	return false
}

// Watcher reports files changed below a directory tree.
type Watcher struct {
	root     string
	ignore   *Ignore
	debounce time.Duration
	logger   *slog.Logger
	fsw      *fsnotify.Watcher
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the settle time for event bursts.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithWatcherLogger sets the logger.
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = logger }
}

// NewWatcher watches root and every directory below it that is not ignored.
func NewWatcher(root string, ignore *Ignore, opts ...WatcherOption) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &Watcher{
		root:     root,
		ignore:   ignore,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		fsw:      fsw,
	}

	for _, opt := range opts {
		opt(w)
	}

	if err := w.addTree(root); err != nil {
		_ = fsw.Close()

		return nil, err
	}

	return w, nil
}

// addTree registers dir and its subdirectories.
func (w *Watcher) addTree(dir string) error {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == dir {
				return walkErr
			}

			return nil
		}

		if !d.IsDir() {
			return nil
		}

		if path != w.root && w.ignore.Match(w.rel(path)) {
			return filepath.SkipDir
		}

		if addErr := w.fsw.Add(path); addErr != nil {
			return fmt.Errorf("watch %s: %w", path, addErr)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", dir, err)
	}

	return nil
}

func (w *Watcher) rel(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return path
	}

	return filepath.ToSlash(rel)
}

// Run delivers debounced batches of changed paths, relative to the root,
// to emit until ctx is done or the watcher fails.
func (w *Watcher) Run(ctx context.Context, emit func(paths []string)) error {
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	defer timer.Stop()

	pending := make(map[string]struct{})

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}

			rel := w.rel(event.Name)
			if rel == "." || w.ignore.Match(rel) {
				continue
			}

			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						w.logger.WarnContext(ctx, "cannot watch new directory", "path", rel, "error", err)
					}

					continue
				}
			}

			if event.Op == fsnotify.Chmod {
				continue
			}

			pending[rel] = struct{}{}

			timer.Reset(w.debounce)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}

			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}

			clear(pending)
			emit(paths)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}

			w.logger.WarnContext(ctx, "watcher error", "error", err)
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	if err := w.fsw.Close(); err != nil {
		return fmt.Errorf("close watcher: %w", err)
	}

	return nil
}
