// Package snippet resolves transclusion references against example source
// files: by inclusive line range (L57-L63) or by named snippet markers
// embedded in comments.
package snippet

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"docnerd/internal/logging"
	"docnerd/internal/page"
)

// Sentinel errors for the distinct resolution failures. Callers (the lint
// rules) map these onto rule IDs.
var (
	ErrFileMissing      = errors.New("snippet file not found")
	ErrInvalidRange     = errors.New("invalid snippet line range")
	ErrRangeOutOfBounds = errors.New("snippet line range out of bounds")
	ErrNameMissing      = errors.New("named snippet marker not found")
	ErrNameUnterminated = errors.New("named snippet marker not terminated")
	ErrEmptyReference   = errors.New("snippet reference names no file")
)

// Extract is a resolved snippet: the exact referenced lines, dedented.
type Extract struct {
	Path      string   // Resolved absolute or root-relative file path
	Lines     []string // Extracted lines, common indentation removed
	StartLine int      // 1-based first extracted line in the source file
	EndLine   int      // 1-based last extracted line
}

// Text returns the extracted snippet joined with newlines.
func (e *Extract) Text() string {
	return strings.Join(e.Lines, "\n")
}

// Resolver locates and extracts snippets for a docs tree.
type Resolver struct {
	// Roots are tried in order when a file= path does not resolve
	// relative to the referencing page's directory.
	Roots []string
}

// NewResolver returns a resolver with the given fallback roots.
func NewResolver(roots []string) *Resolver {
	return &Resolver{Roots: roots}
}

// Locate finds the file a reference points at, trying the page directory
// first and then each configured root.
func (r *Resolver) Locate(baseDir string, ref page.SnippetRef) (string, error) {
	if ref.File == "" {
		return "", ErrEmptyReference
	}

	candidates := []string{filepath.Join(baseDir, ref.File)}
	for _, root := range r.Roots {
		candidates = append(candidates, filepath.Join(root, ref.File))
	}

	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrFileMissing, ref.File)
}

// Resolve locates the referenced file and extracts the referenced lines.
func (r *Resolver) Resolve(baseDir string, ref page.SnippetRef) (*Extract, error) {
	path, err := r.Locate(baseDir, ref)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileMissing, ref.File)
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")

	logging.SnippetDebug("resolving %s (range=%d-%d name=%q) -> %s",
		ref.File, ref.StartLine, ref.EndLine, ref.Name, path)

	switch {
	case ref.Name != "":
		return extractNamed(path, lines, ref.Name)
	case ref.HasRange():
		return extractRange(path, lines, ref.StartLine, ref.EndLine)
	default:
		// Whole file
		return &Extract{Path: path, Lines: dedent(lines), StartLine: 1, EndLine: len(lines)}, nil
	}
}

// extractRange extracts the inclusive 1-based range [start, end].
func extractRange(path string, lines []string, start, end int) (*Extract, error) {
	if start < 1 || end < start {
		return nil, fmt.Errorf("%w: L%d-L%d", ErrInvalidRange, start, end)
	}
	if end > len(lines) {
		return nil, fmt.Errorf("%w: L%d-L%d (file has %d lines)", ErrRangeOutOfBounds, start, end, len(lines))
	}
	return &Extract{
		Path:      path,
		Lines:     dedent(lines[start-1 : end]),
		StartLine: start,
		EndLine:   end,
	}, nil
}

// Named snippet markers live in comments and are comment-leader agnostic:
//
//	# <snippet name="setup">
//	...
//	# </snippet>
var (
	openMarkerRe  = regexp.MustCompile(`<snippet\s+name\s*=\s*["']([^"']+)["']\s*>`)
	closeMarkerRe = regexp.MustCompile(`</snippet>`)
)

// extractNamed extracts the lines between a named marker pair.
// The marker lines themselves are excluded.
func extractNamed(path string, lines []string, name string) (*Extract, error) {
	start := -1
	for i, line := range lines {
		if m := openMarkerRe.FindStringSubmatch(line); m != nil && m[1] == name {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return nil, fmt.Errorf("%w: %q in %s", ErrNameMissing, name, filepath.Base(path))
	}

	for i := start; i < len(lines); i++ {
		if openMarkerRe.MatchString(lines[i]) {
			// Nested opens are not supported; treat as unterminated.
			return nil, fmt.Errorf("%w: %q in %s", ErrNameUnterminated, name, filepath.Base(path))
		}
		if closeMarkerRe.MatchString(lines[i]) {
			return &Extract{
				Path:      path,
				Lines:     dedent(lines[start:i]),
				StartLine: start + 1,
				EndLine:   i,
			}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q in %s", ErrNameUnterminated, name, filepath.Base(path))
}

// ListNames returns every named snippet marker declared in a file.
func ListNames(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, line := range strings.Split(string(data), "\n") {
		if m := openMarkerRe.FindStringSubmatch(line); m != nil {
			names = append(names, m[1])
		}
	}
	return names, nil
}

// dedent removes the common leading whitespace of the non-blank lines.
func dedent(lines []string) []string {
	common := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := len(line) - len(strings.TrimLeft(line, " \t"))
		if common < 0 || indent < common {
			common = indent
		}
	}
	if common <= 0 {
		out := make([]string, len(lines))
		copy(out, lines)
		return out
	}

	out := make([]string, len(lines))
	for i, line := range lines {
		if len(line) >= common {
			out[i] = line[common:]
		} else {
			out[i] = strings.TrimLeft(line, " \t")
		}
	}
	return out
}
