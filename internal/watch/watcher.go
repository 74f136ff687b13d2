// Package watch monitors a documentation tree and re-checks pages as
// they change. Rapid saves are debounced so editors that write a file
// several times in quick succession trigger a single re-check.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"docnerd/internal/logging"
)

// ChangeHandler receives root-relative paths of pages whose changes
// have settled past the debounce window. Deleted pages are reported
// with removed=true.
type ChangeHandler func(ctx context.Context, rel string, removed bool)

// SourceChangeHandler receives the absolute path of a changed snippet
// source file. Source files are watched without an extension filter:
// any file a transclusion can reference counts.
type SourceChangeHandler func(ctx context.Context, path string)

// DocsWatcher watches a docs root for page changes.
type DocsWatcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	root        string
	extensions  map[string]bool
	excludeDirs map[string]bool
	onChange    ChangeHandler
	sourceRoots []string
	onSource    SourceChangeHandler
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	stats Stats
}

// Stats tracks watcher activity.
type Stats struct {
	FilesCreated  int
	FilesModified int
	FilesDeleted  int
	ChecksRun     int
	Errors        int
	LastEventTime time.Time
	LastEventPath string
	LastEventType string
}

// NewDocsWatcher creates a watcher over the docs root. onChange is
// invoked once per settled page change.
func NewDocsWatcher(root string, extensions, excludeDirs []string, debounce time.Duration, onChange ChangeHandler) (*DocsWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	w := &DocsWatcher{
		watcher:     watcher,
		root:        root,
		extensions:  make(map[string]bool),
		excludeDirs: make(map[string]bool),
		onChange:    onChange,
		debounceMap: make(map[string]time.Time),
		debounceDur: debounce,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	for _, ext := range extensions {
		w.extensions[strings.ToLower(ext)] = true
	}
	for _, dir := range excludeDirs {
		w.excludeDirs[dir] = true
	}
	return w, nil
}

// WatchSources adds snippet source directories to the watch set.
// Changes under them bypass the page extension filter and fire
// onSource instead of the page handler. Must be called before Start.
func (w *DocsWatcher) WatchSources(roots []string, onSource SourceChangeHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sourceRoots = append(w.sourceRoots, roots...)
	w.onSource = onSource
}

// Start begins watching the docs tree. Non-blocking; the event loop
// runs in a goroutine until Stop or context cancellation.
func (w *DocsWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addRecursive(w.root); err != nil {
		logging.Get(logging.CategoryWatch).Warn("Initial watch of %s incomplete: %v", w.root, err)
	} else {
		logging.Watch("Watching docs tree: %s", w.root)
	}
	for _, root := range w.sourceRoots {
		if err := w.addRecursive(root); err != nil {
			logging.Get(logging.CategoryWatch).Warn("Watch of snippet root %s incomplete: %v", root, err)
		} else {
			logging.Watch("Watching snippet root: %s", root)
		}
	}

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for cleanup.
func (w *DocsWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.Get(logging.CategoryWatch).Error("Error closing watcher: %v", err)
	}
	logging.Watch("Watcher stopped")
}

// IsWatching returns true if the watcher is currently running.
func (w *DocsWatcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// GetStats returns the current watcher statistics.
func (w *DocsWatcher) GetStats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

// WatchedDirs returns the directories being watched.
func (w *DocsWatcher) WatchedDirs() []string {
	return w.watcher.WatchList()
}

// addRecursive adds the root and every non-excluded subdirectory.
func (w *DocsWatcher) addRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		name := info.Name()
		if path != root {
			if w.excludeDirs[name] || (strings.HasPrefix(name, ".") && name != ".") {
				return filepath.SkipDir
			}
		}
		if err := w.watcher.Add(path); err != nil {
			logging.WatchDebug("Failed to watch %s: %v", path, err)
		}
		return nil
	})
}

// run is the main event loop for the watcher.
func (w *DocsWatcher) run(ctx context.Context) {
	defer close(w.doneCh)

	debounceTicker := time.NewTicker(100 * time.Millisecond)
	defer debounceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Watch("Watcher context cancelled")
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryWatch).Error("Watcher error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-debounceTicker.C:
			w.processDebouncedEvents(ctx)
		}
	}
}

// handleEvent processes a single filesystem event.
func (w *DocsWatcher) handleEvent(event fsnotify.Event) {
	// New directories must be added to the watch set.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			name := filepath.Base(event.Name)
			if !w.excludeDirs[name] && !strings.HasPrefix(name, ".") {
				if err := w.addRecursive(event.Name); err != nil {
					logging.WatchDebug("Failed to watch new dir %s: %v", event.Name, err)
				}
			}
			return
		}
	}

	if !w.extensions[strings.ToLower(filepath.Ext(event.Name))] && !w.underSourceRoot(event.Name) {
		return
	}

	var eventType string
	switch {
	case event.Op&fsnotify.Create != 0:
		eventType = "create"
	case event.Op&fsnotify.Write != 0:
		eventType = "modify"
	case event.Op&fsnotify.Remove != 0:
		eventType = "delete"
	case event.Op&fsnotify.Rename != 0:
		eventType = "rename"
	default:
		return // Ignore chmod, etc.
	}

	logging.WatchDebug("%s event for %s", eventType, event.Name)

	w.mu.Lock()
	w.stats.LastEventTime = time.Now()
	w.stats.LastEventPath = event.Name
	w.stats.LastEventType = eventType

	switch eventType {
	case "create":
		w.stats.FilesCreated++
	case "modify":
		w.stats.FilesModified++
	case "delete", "rename":
		w.stats.FilesDeleted++
	}

	w.debounceMap[event.Name] = time.Now()
	w.mu.Unlock()
}

// processDebouncedEvents fires the change handler for events that have
// settled past the debounce window.
func (w *DocsWatcher) processDebouncedEvents(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	toProcess := make([]string, 0)

	for path, eventTime := range w.debounceMap {
		if now.Sub(eventTime) >= w.debounceDur {
			toProcess = append(toProcess, path)
			delete(w.debounceMap, path)
		}
	}
	w.mu.Unlock()

	for _, path := range toProcess {
		w.mu.Lock()
		w.stats.ChecksRun++
		w.mu.Unlock()

		rel, err := filepath.Rel(w.root, path)
		isPage := err == nil && !strings.HasPrefix(rel, "..") &&
			w.extensions[strings.ToLower(filepath.Ext(path))]
		if !isPage {
			// Settled change under a snippet source root.
			if w.onSource != nil {
				w.onSource(ctx, path)
			}
			continue
		}
		rel = filepath.ToSlash(rel)

		_, statErr := os.Stat(path)
		removed := os.IsNotExist(statErr)

		if w.onChange != nil {
			w.onChange(ctx, rel, removed)
		}
	}
}

// underSourceRoot reports whether path falls inside a registered
// snippet source root.
func (w *DocsWatcher) underSourceRoot(path string) bool {
	for _, root := range w.sourceRoots {
		if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
			return true
		}
	}
	return false
}
