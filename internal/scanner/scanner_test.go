package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", rel, err)
		}
	}
	return root
}

func TestScanTree(t *testing.T) {
	root := writeTree(t, map[string]string{
		"guide.md":              "---\ntitle: Guide\n---\n\n# Guide\n",
		"how_to/connect.mdx":    "---\ntitle: Connect\n---\n\n# Connect\n",
		"scripts/example.py":    "print('hi')\n",
		"node_modules/dep.md":   "# Not docs\n",
		".git/internal.md":      "# Skip\n",
		".docnerd/logs/note.md": "# Skip\n",
	})

	s := NewScanner([]string{".md", ".mdx"}, []string{"node_modules"})
	result, err := s.ScanTree(context.Background(), root)
	if err != nil {
		t.Fatalf("ScanTree failed: %v", err)
	}

	if result.PageCount != 2 {
		t.Errorf("Expected 2 pages, got %d: %v", result.PageCount, result.PagePaths())
	}
	if _, ok := result.Pages["guide.md"]; !ok {
		t.Error("Expected guide.md in results")
	}
	if _, ok := result.Pages["how_to/connect.mdx"]; !ok {
		t.Error("Expected how_to/connect.mdx in results")
	}
	if _, ok := result.Pages["node_modules/dep.md"]; ok {
		t.Error("Excluded directory was scanned")
	}
	if result.Pages["guide.md"].Title != "Guide" {
		t.Errorf("Expected parsed title, got %q", result.Pages["guide.md"].Title)
	}
	if result.Hashes["guide.md"] == "" {
		t.Error("Expected a content hash for guide.md")
	}
	if len(result.ParseErrors) != 0 {
		t.Errorf("Unexpected parse errors: %v", result.ParseErrors)
	}
}

func TestScanTreeCacheReuse(t *testing.T) {
	root := writeTree(t, map[string]string{
		"guide.md": "---\ntitle: Guide\n---\n",
	})

	s := NewScanner([]string{".md"}, nil)
	first, err := s.ScanTree(context.Background(), root)
	if err != nil {
		t.Fatalf("First scan failed: %v", err)
	}

	manifest := filepath.Join(root, ".docnerd", "cache", "manifest.json")
	if _, err := os.Stat(manifest); err != nil {
		t.Fatalf("Cache manifest not written: %v", err)
	}

	second, err := s.ScanTree(context.Background(), root)
	if err != nil {
		t.Fatalf("Second scan failed: %v", err)
	}

	if first.Hashes["guide.md"] != second.Hashes["guide.md"] {
		t.Errorf("Hash changed across scans: %s vs %s",
			first.Hashes["guide.md"], second.Hashes["guide.md"])
	}
}

func TestScanTreeCancelled(t *testing.T) {
	root := writeTree(t, map[string]string{
		"guide.md": "# Guide\n",
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewScanner([]string{".md"}, nil)
	if _, err := s.ScanTree(ctx, root); err == nil {
		t.Error("Expected error from cancelled context")
	}
}

func TestScanPage(t *testing.T) {
	root := writeTree(t, map[string]string{
		"guide.md": "---\ntitle: Guide\n---\n",
	})

	s := NewScanner([]string{".md"}, nil)
	p, hash, err := s.ScanPage(root, "guide.md")
	if err != nil {
		t.Fatalf("ScanPage failed: %v", err)
	}
	if p.Title != "Guide" {
		t.Errorf("Expected title Guide, got %q", p.Title)
	}
	if hash == "" {
		t.Error("Expected a content hash")
	}

	if _, _, err := s.ScanPage(root, "missing.md"); err == nil {
		t.Error("Expected error for missing page")
	}
}

func TestPageCacheRoundTrip(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "file.md")
	if err := os.WriteFile(path, []byte("content"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Failed to stat: %v", err)
	}

	cache := openPageCache(root)
	if _, hit := cache.Hash("file.md", info); hit {
		t.Error("Fresh cache should miss")
	}

	cache.Remember("file.md", info, "abc123")
	if hash, hit := cache.Hash("file.md", info); !hit || hash != "abc123" {
		t.Errorf("Expected cache hit with abc123, got %q hit=%v", hash, hit)
	}

	if err := cache.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	reloaded := openPageCache(root)
	if hash, hit := reloaded.Hash("file.md", info); !hit || hash != "abc123" {
		t.Errorf("Expected persisted hit with abc123, got %q hit=%v", hash, hit)
	}
}

func TestPageCachePrunesRemovedPages(t *testing.T) {
	root := writeTree(t, map[string]string{
		"guide.md": "---\ntitle: Guide\n---\n",
		"extra.md": "---\ntitle: Extra\n---\n",
	})

	s := NewScanner([]string{".md"}, nil)
	if _, err := s.ScanTree(context.Background(), root); err != nil {
		t.Fatalf("First scan failed: %v", err)
	}

	if err := os.Remove(filepath.Join(root, "extra.md")); err != nil {
		t.Fatalf("Failed to remove page: %v", err)
	}
	if _, err := s.ScanTree(context.Background(), root); err != nil {
		t.Fatalf("Second scan failed: %v", err)
	}

	cache := openPageCache(root)
	if _, ok := cache.entries["extra.md"]; ok {
		t.Error("Expected removed page pruned from the manifest")
	}
	if _, ok := cache.entries["guide.md"]; !ok {
		t.Error("Expected surviving page kept in the manifest")
	}
}
