package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// fsnotify's inotify reader goroutine outlives Close on some
		// kernels; tolerate it rather than flaking.
		goleak.IgnoreTopFunction("github.com/fsnotify/fsnotify.(*Watcher).readEvents"),
		goleak.IgnoreTopFunction("github.com/fsnotify/fsnotify.(*inotify).readEvents"),
	)
}

func TestStartStop(t *testing.T) {
	root := t.TempDir()

	w, err := NewDocsWatcher(root, []string{".md"}, nil, 50*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewDocsWatcher failed: %v", err)
	}

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !w.IsWatching() {
		t.Error("Expected watcher to be running")
	}
	if len(w.WatchedDirs()) == 0 {
		t.Error("Expected at least the root to be watched")
	}

	w.Stop()
	if w.IsWatching() {
		t.Error("Expected watcher to be stopped")
	}

	// Second stop is a no-op.
	w.Stop()
}

func TestChangeDebounced(t *testing.T) {
	root := t.TempDir()

	var mu sync.Mutex
	got := make(map[string]bool)
	handler := func(ctx context.Context, rel string, removed bool) {
		mu.Lock()
		got[rel] = removed
		mu.Unlock()
	}

	w, err := NewDocsWatcher(root, []string{".md"}, nil, 50*time.Millisecond, handler)
	if err != nil {
		t.Fatalf("NewDocsWatcher failed: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	page := filepath.Join(root, "guide.md")
	if err := os.WriteFile(page, []byte("# Guide\n"), 0644); err != nil {
		t.Fatalf("Failed to write page: %v", err)
	}
	// Rapid follow-up writes collapse into one settled change.
	if err := os.WriteFile(page, []byte("# Guide v2\n"), 0644); err != nil {
		t.Fatalf("Failed to rewrite page: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for {
		mu.Lock()
		removed, ok := got["guide.md"]
		mu.Unlock()
		if ok {
			if removed {
				t.Error("Existing page reported as removed")
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("Timed out waiting for change notification")
		case <-time.After(20 * time.Millisecond):
		}
	}

	stats := w.GetStats()
	if stats.ChecksRun == 0 {
		t.Error("Expected at least one check")
	}
	if stats.LastEventPath == "" {
		t.Error("Expected last event path recorded")
	}
}

func TestNonPageFilesIgnored(t *testing.T) {
	root := t.TempDir()

	var mu sync.Mutex
	calls := 0
	handler := func(ctx context.Context, rel string, removed bool) {
		mu.Lock()
		calls++
		mu.Unlock()
	}

	w, err := NewDocsWatcher(root, []string{".md"}, nil, 50*time.Millisecond, handler)
	if err != nil {
		t.Fatalf("NewDocsWatcher failed: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("hi"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	time.Sleep(300 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Errorf("Expected no notifications for non-page files, got %d", calls)
	}
}

func TestSourceChangeReported(t *testing.T) {
	root := t.TempDir()
	srcRoot := t.TempDir()

	script := filepath.Join(srcRoot, "script.py")
	if err := os.WriteFile(script, []byte("print('hi')\n"), 0644); err != nil {
		t.Fatalf("Failed to write script: %v", err)
	}

	var mu sync.Mutex
	pageCalls := 0
	var sourceGot string
	pageHandler := func(ctx context.Context, rel string, removed bool) {
		mu.Lock()
		pageCalls++
		mu.Unlock()
	}
	sourceHandler := func(ctx context.Context, path string) {
		mu.Lock()
		sourceGot = path
		mu.Unlock()
	}

	w, err := NewDocsWatcher(root, []string{".md"}, nil, 50*time.Millisecond, pageHandler)
	if err != nil {
		t.Fatalf("NewDocsWatcher failed: %v", err)
	}
	w.WatchSources([]string{srcRoot}, sourceHandler)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	// A referenced script shrinking can invalidate line-range checks,
	// so source edits must settle into a notification despite not
	// matching the page extensions.
	if err := os.WriteFile(script, []byte("print('changed')\n"), 0644); err != nil {
		t.Fatalf("Failed to rewrite script: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for {
		mu.Lock()
		got := sourceGot
		mu.Unlock()
		if got != "" {
			if got != script {
				t.Errorf("Expected source path %s, got %s", script, got)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("Timed out waiting for source change notification")
		case <-time.After(20 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if pageCalls != 0 {
		t.Errorf("Source change routed to the page handler %d times", pageCalls)
	}
}

func TestRemovalReported(t *testing.T) {
	root := t.TempDir()

	page := filepath.Join(root, "guide.md")
	if err := os.WriteFile(page, []byte("# Guide\n"), 0644); err != nil {
		t.Fatalf("Failed to write page: %v", err)
	}

	var mu sync.Mutex
	var removedFlag *bool
	handler := func(ctx context.Context, rel string, removed bool) {
		mu.Lock()
		if rel == "guide.md" {
			v := removed
			removedFlag = &v
		}
		mu.Unlock()
	}

	w, err := NewDocsWatcher(root, []string{".md"}, nil, 50*time.Millisecond, handler)
	if err != nil {
		t.Fatalf("NewDocsWatcher failed: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	if err := os.Remove(page); err != nil {
		t.Fatalf("Failed to remove page: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for {
		mu.Lock()
		flag := removedFlag
		mu.Unlock()
		if flag != nil {
			if !*flag {
				t.Error("Deleted page not reported as removed")
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("Timed out waiting for removal notification")
		case <-time.After(20 * time.Millisecond):
		}
	}
}
