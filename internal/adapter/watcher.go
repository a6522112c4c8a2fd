package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	m "snare.dev/pkg/snare/internal/model"
)

// DefaultDebounce is how long the watcher waits for a burst of events to settle.
const DefaultDebounce = 300 * time.Millisecond

// Watcher calls onChange after files under the watched paths change.
type Watcher interface {
	// Watch blocks until ctx is done. Bursts of events collapse into one call.
	Watch(ctx context.Context, paths []m.Path, onChange func()) error
}

// FSWatcher watches directories with fsnotify.
type FSWatcher struct {
	debounce time.Duration
	ignore   []string
}

// NewFSWatcher creates a watcher. Events on paths containing one of the
// ignore fragments (a report directory, for example) are dropped.
func NewFSWatcher(debounce time.Duration, ignore ...string) *FSWatcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &FSWatcher{debounce: debounce, ignore: ignore}
}

// Watch adds every directory under paths and fires onChange once per
// settled burst of events. onChange never runs concurrently with itself.
func (w *FSWatcher) Watch(ctx context.Context, paths []m.Path, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch init failed: %w", err)
	}

	defer func() { _ = watcher.Close() }()

	for _, p := range paths {
		root := strings.TrimSuffix(strings.TrimSuffix(string(p), "..."), "/")
		if root == "" {
			root = "."
		}

		if err := w.addRecursive(watcher, root); err != nil {
			return fmt.Errorf("watch %s: %w", root, err)
		}
	}

	var (
		mu    sync.Mutex
		timer *time.Timer
		runMu sync.Mutex
	)

	trigger := func() {
		if ctx.Err() != nil {
			return
		}

		runMu.Lock()
		defer runMu.Unlock()

		onChange()
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if w.ignored(ev.Name) {
				continue
			}

			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = w.addRecursive(watcher, ev.Name)
				}
			}

			slog.Debug("Watch event", "path", ev.Name, "op", ev.Op.String())

			mu.Lock()
			if timer != nil {
				timer.Stop()
			}

			timer = time.AfterFunc(w.debounce, trigger)
			mu.Unlock()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			slog.Error("Watch error", "error", err)
		}
	}
}

func (w *FSWatcher) ignored(path string) bool {
	for _, fragment := range w.ignore {
		if fragment != "" && strings.Contains(path, fragment) {
			return true
		}
	}

	return false
}

func (w *FSWatcher) addRecursive(watcher *fsnotify.Watcher, root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		return watcher.Add(filepath.Dir(root))
	}

	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}

		if !info.IsDir() {
			return nil
		}

		if path != root && (skipDir(info.Name()) || w.ignored(path)) {
			return filepath.SkipDir
		}

		return watcher.Add(path)
	})
}
