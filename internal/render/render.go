// Package render turns documentation pages and lint reports into
// terminal output. Page previews are flattened first: snippet
// references are expanded inline, one tab of each tab group is
// selected, and glossary tags are reduced to their display text.
package render

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/glamour"

	"docnerd/internal/glossary"
	"docnerd/internal/logging"
	"docnerd/internal/page"
	"docnerd/internal/snippet"
)

// Options controls page preview rendering.
type Options struct {
	Width    int    // word wrap width, 0 for default
	TabValue string // tab to show, empty for each group's default
	Plain    bool   // skip terminal styling, emit flattened markdown
}

const defaultWidth = 100

// Renderer renders pages for the terminal.
type Renderer struct {
	resolver *snippet.Resolver
	glossary *glossary.Glossary
}

// NewRenderer creates a page renderer. The glossary may be nil, in
// which case tags render with their literal text.
func NewRenderer(resolver *snippet.Resolver, gl *glossary.Glossary) *Renderer {
	return &Renderer{resolver: resolver, glossary: gl}
}

// Preview renders a page for the terminal. baseDir is the directory
// the page's relative snippet references resolve against.
func (r *Renderer) Preview(source []byte, baseDir string, opts Options) (string, error) {
	timer := logging.StartTimer(logging.CategoryRender, "Preview")
	defer timer.Stop()

	flat := r.Flatten(source, baseDir, opts)
	if opts.Plain {
		return flat, nil
	}

	width := opts.Width
	if width <= 0 {
		width = defaultWidth
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("failed to build renderer: %w", err)
	}

	out, err := renderer.Render(flat)
	if err != nil {
		// Fall back to the flattened markdown rather than failing the
		// whole preview.
		logging.Get(logging.CategoryRender).Warn("Terminal render failed: %v", err)
		return flat, nil
	}
	return out, nil
}

var (
	technicalTagRe = regexp.MustCompile(`<TechnicalTag\b[^>]*/>`)
	tagAttrRe      = regexp.MustCompile(`tag\s*=\s*["']([^"']+)["']`)
	textAttrRe     = regexp.MustCompile(`text\s*=\s*["']([^"']+)["']`)
	tabsOpenRe     = regexp.MustCompile(`^\s*<Tabs\b`)
	tabItemOpenRe  = regexp.MustCompile(`^\s*<TabItem\s+value\s*=\s*["']([^"']+)["']`)
	tabItemCloseRe = regexp.MustCompile(`^\s*</TabItem>`)
	tabsCloseRe    = regexp.MustCompile(`^\s*</Tabs>`)
)

// Flatten rewrites page source into plain markdown: front matter
// removed, snippet references expanded, tab groups reduced to a single
// tab, glossary tags reduced to text.
func (r *Renderer) Flatten(source []byte, baseDir string, opts Options) string {
	lines := strings.Split(string(source), "\n")
	lines = stripFrontMatter(lines)

	var out []string
	inFence := false
	var fenceRef *page.SnippetRef

	// Tab reduction state. keep is false while skipping a non-selected
	// TabItem's content.
	inTabs := false
	tabsBuf := ""
	tabsDone := true
	selected := ""
	keep := true

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if inFence {
			if strings.HasPrefix(trimmed, "```") {
				inFence = false
				if fenceRef != nil {
					if keep {
						out = append(out, r.expandSnippet(fenceRef, baseDir)...)
					}
					fenceRef = nil
				}
				if keep {
					out = append(out, line)
				}
				continue
			}
			if fenceRef == nil && keep {
				out = append(out, line)
			}
			continue
		}

		if !tabsDone {
			tabsBuf += " " + trimmed
			if tagComplete(tabsBuf) {
				tabsDone = true
				selected = selectTab(tabsBuf, opts.TabValue)
			}
			continue
		}

		if strings.HasPrefix(trimmed, "```") {
			inFence = true
			if ref := page.ParseSnippetRef(trimmed, 0); ref != nil {
				// References in skipped tabs stay unresolved.
				if keep {
					fenceRef = ref
					out = append(out, "```"+ref.Lang)
				}
			} else if keep {
				out = append(out, line)
			}
			continue
		}

		switch {
		case tabsOpenRe.MatchString(line):
			inTabs = true
			tabsBuf = trimmed
			tabsDone = tagComplete(tabsBuf)
			if tabsDone {
				selected = selectTab(tabsBuf, opts.TabValue)
			}
			continue
		case inTabs && tabsCloseRe.MatchString(line):
			inTabs = false
			keep = true
			continue
		case inTabs:
			if m := tabItemOpenRe.FindStringSubmatch(line); m != nil {
				keep = selected == "" || m[1] == selected
				if keep && selected != "" {
					out = append(out, fmt.Sprintf("**[%s]**", m[1]), "")
				}
				continue
			}
			if tabItemCloseRe.MatchString(line) {
				keep = true
				continue
			}
		}

		if !keep {
			continue
		}
		out = append(out, r.reduceTags(line))
	}

	return strings.TrimRight(strings.Join(out, "\n"), "\n") + "\n"
}

// expandSnippet returns the referenced lines, or a placeholder comment
// when the reference cannot be resolved.
func (r *Renderer) expandSnippet(ref *page.SnippetRef, baseDir string) []string {
	if r.resolver == nil {
		return []string{fmt.Sprintf("# snippet %s not resolved", ref.File)}
	}
	ext, err := r.resolver.Resolve(baseDir, *ref)
	if err != nil {
		logging.Get(logging.CategoryRender).Warn("Snippet %s unresolved: %v", ref.File, err)
		return []string{fmt.Sprintf("# snippet %s unresolved: %v", ref.File, err)}
	}
	return ext.Lines
}

// reduceTags replaces glossary tag markup with the term's display text.
func (r *Renderer) reduceTags(line string) string {
	return technicalTagRe.ReplaceAllStringFunc(line, func(tag string) string {
		text := ""
		if m := textAttrRe.FindStringSubmatch(tag); m != nil {
			text = m[1]
		}
		if r.glossary != nil {
			if m := tagAttrRe.FindStringSubmatch(tag); m != nil {
				if term, ok := r.glossary.Lookup(m[1]); ok {
					if text == "" {
						text = term.Name
					}
					return fmt.Sprintf("**%s**", text)
				}
			}
		}
		if text == "" {
			return ""
		}
		return fmt.Sprintf("**%s**", text)
	})
}

func stripFrontMatter(lines []string) []string {
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return lines
	}
	for n := 1; n < len(lines); n++ {
		if strings.TrimSpace(lines[n]) == "---" {
			return lines[n+1:]
		}
	}
	return lines
}

// tagComplete reports whether a buffered JSX-style tag has balanced
// braces and a closing angle bracket.
func tagComplete(buf string) bool {
	depth := 0
	for _, c := range buf {
		switch c {
		case '{':
			depth++
		case '}':
			depth--
		}
	}
	return depth == 0 && strings.HasSuffix(strings.TrimSpace(buf), ">")
}

var tabPairRe = regexp.MustCompile(`{\s*label:\s*['"]([^'"]+)['"]\s*,\s*value:\s*['"]([^'"]+)['"]\s*}`)
var defaultValueRe = regexp.MustCompile(`defaultValue\s*=\s*["']([^"']+)["']`)

// selectTab picks the tab value to keep from a buffered <Tabs> opener:
// the requested value if the group declares it, else the declared
// default, else the first declared value, else everything.
func selectTab(opener, requested string) string {
	var values []string
	for _, m := range tabPairRe.FindAllStringSubmatch(opener, -1) {
		values = append(values, m[2])
	}
	if requested != "" {
		for _, v := range values {
			if v == requested {
				return v
			}
		}
	}
	if m := defaultValueRe.FindStringSubmatch(opener); m != nil {
		return m[1]
	}
	if len(values) > 0 {
		return values[0]
	}
	return ""
}
