// Package watch reruns a callback when specifications change.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for more events before it
// reports a batch
const DefaultDebounce = 100 * time.Millisecond

// Handler is called with the changed files of one batch, sorted. An error is
// logged and does not stop the watcher.
type Handler func(ctx context.Context, changed []string) error

// Watcher watches directory trees for changes to matching files
type Watcher struct {
	roots    []string
	match    func(path string) bool
	debounce time.Duration
	logger   *slog.Logger
	skip     func(name string) bool
}

// Option configures a Watcher
type Option func(*Watcher)

// WithDebounce sets the quiet period before a batch is reported
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithMatch sets which files are reported
func WithMatch(match func(path string) bool) Option {
	return func(w *Watcher) {
		if match != nil {
			w.match = match
		}
	}
}

// WithSkipDir sets which directories are not descended into
func WithSkipDir(skip func(name string) bool) Option {
	return func(w *Watcher) {
		if skip != nil {
			w.skip = skip
		}
	}
}

// New creates a watcher over roots. By default every file is reported and
// hidden directories are skipped.
func New(roots []string, opts ...Option) *Watcher {
	w := &Watcher{
		roots:    roots,
		match:    func(string) bool { return true },
		debounce: DefaultDebounce,
		logger:   slog.New(slog.DiscardHandler),
		skip:     func(name string) bool { return strings.HasPrefix(name, ".") },
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx is done, calling handle once per batch of changes.
// It returns nil when ctx is canceled.
func (w *Watcher) Run(ctx context.Context, handle Handler) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = fsw.Close() }()

	for _, root := range w.roots {
		if err := w.addTree(fsw, root); err != nil {
			return err
		}
	}
	w.logger.Debug("watching", "roots", w.roots)

	pending := make(map[string]bool)
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(fsw, event.Name); err != nil {
						w.logger.Warn("cannot watch directory", "dir", event.Name, "error", err)
					}
					continue
				}
			}
			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}
			if !w.match(event.Name) {
				continue
			}
			w.logger.Debug("change", "file", event.Name, "op", event.Op.String())
			pending[event.Name] = true
			timer.Reset(w.debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)

		case <-timer.C:
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			slices.Sort(changed)
			clear(pending)

			if err := handle(ctx, changed); err != nil {
				w.logger.Error("rebuild failed", "error", err)
			}
		}
	}
}

func (w *Watcher) addTree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Directories may vanish while the tree is walked.
			if path != root && errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.skip(d.Name()) {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}
