package scanner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"docnerd/internal/logging"
	"docnerd/internal/page"
)

// Scanner walks a documentation tree and parses every page it finds.
type Scanner struct {
	extensions  map[string]bool
	excludeDirs map[string]bool
}

// NewScanner creates a scanner that picks up files with the given
// extensions (".md", ".mdx") and skips the given directory names.
func NewScanner(extensions, excludeDirs []string) *Scanner {
	s := &Scanner{
		extensions:  make(map[string]bool),
		excludeDirs: make(map[string]bool),
	}
	for _, ext := range extensions {
		s.extensions[strings.ToLower(ext)] = true
	}
	for _, dir := range excludeDirs {
		s.excludeDirs[dir] = true
	}
	return s
}

// ScanResult represents the result of a docs tree scan.
type ScanResult struct {
	PageCount      int
	DirectoryCount int
	ParseErrors    map[string]error
	Pages          map[string]*page.Page // keyed by root-relative path
	Hashes         map[string]string     // root-relative path -> sha256
}

// PagePaths returns the sorted root-relative paths of all scanned pages.
func (r *ScanResult) PagePaths() []string {
	paths := make([]string, 0, len(r.Pages))
	for p := range r.Pages {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// ScanTree walks root and parses every documentation page beneath it.
// File hashes are cached under .docnerd/cache to avoid re-hashing
// unchanged files on repeated scans.
func (s *Scanner) ScanTree(ctx context.Context, root string) (*ScanResult, error) {
	timer := logging.StartTimer(logging.CategoryScan, "ScanTree")
	defer timer.Stop()

	result := &ScanResult{
		ParseErrors: make(map[string]error),
		Pages:       make(map[string]*page.Page),
		Hashes:      make(map[string]string),
	}
	var mu sync.Mutex // Protects result
	cache := openPageCache(root)
	defer func() {
		if err := cache.Flush(); err != nil {
			logging.ScanDebug("Failed to write hash manifest: %v", err)
		}
	}()

	var wg sync.WaitGroup
	sem := make(chan struct{}, 20) // Limit concurrency

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return err
		}

		if info.IsDir() {
			name := info.Name()
			if s.excludeDirs[name] && path != root {
				return filepath.SkipDir
			}
			// Allow specific hidden directories that may carry docs
			if strings.HasPrefix(name, ".") && name != "." {
				allowed := map[string]bool{
					".github":  true,
					".docnerd": false, // Internal, always skip
					".git":     false, // Always skip
				}

				if allow, exists := allowed[name]; exists {
					if !allow {
						return filepath.SkipDir
					}
					return nil
				}
				return filepath.SkipDir
			}
			mu.Lock()
			result.DirectoryCount++
			mu.Unlock()
			return nil
		}

		if !s.extensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		wg.Add(1)
		go func(path, rel string, info os.FileInfo) {
			defer wg.Done()
			sem <- struct{}{}        // Acquire token
			defer func() { <-sem }() // Release token

			data, err := os.ReadFile(path)
			if err != nil {
				mu.Lock()
				result.ParseErrors[rel] = err
				mu.Unlock()
				return
			}

			hash, hit := cache.Hash(rel, info)
			if !hit {
				hash = hashBytes(data)
				cache.Remember(rel, info, hash)
			}

			p, err := page.Parse(rel, data)
			if err != nil {
				logging.ScanDebug("Parse failed for %s: %v", rel, err)
				mu.Lock()
				result.ParseErrors[rel] = err
				mu.Unlock()
				return
			}

			mu.Lock()
			result.PageCount++
			result.Pages[rel] = p
			result.Hashes[rel] = hash
			mu.Unlock()
		}(path, rel, info)

		return nil
	})

	wg.Wait()
	if err != nil {
		return nil, err
	}

	logging.Scan("Scanned %s: %d pages, %d directories, %d parse errors",
		root, result.PageCount, result.DirectoryCount, len(result.ParseErrors))
	return result, nil
}

// ScanPage re-reads and re-parses a single page under root, returning
// the updated page and its content hash. Used by the watcher after a
// change settles.
func (s *Scanner) ScanPage(root, rel string) (*page.Page, string, error) {
	path := filepath.Join(root, filepath.FromSlash(rel))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read page %s: %w", rel, err)
	}
	p, err := page.Parse(rel, data)
	if err != nil {
		return nil, "", err
	}
	return p, hashBytes(data), nil
}

func hashBytes(data []byte) string {
	h := sha256.New()
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// HashFile computes the sha256 of a file on disk.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
