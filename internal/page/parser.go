package page

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"docnerd/internal/logging"

	"golang.org/x/net/html"
	"gopkg.in/yaml.v3"
)

// frontMatter mirrors the YAML front matter block.
type frontMatter struct {
	Title       string `yaml:"title"`
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
}

var (
	headingRe   = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*#*\s*$`)
	fenceRe     = regexp.MustCompile("^```")
	fenceInfoRe = regexp.MustCompile("^```\\s*([A-Za-z0-9_+-]*)\\s*(.*)$")
	fileAttrRe  = regexp.MustCompile(`file=([^\s#]+)(?:#L(\d+)-L?(\d+))?`)
	nameAttrRe  = regexp.MustCompile(`name=["']?([A-Za-z0-9_.\-]+)["']?`)

	tabsOpenRe     = regexp.MustCompile(`<Tabs\b`)
	tabsCloseRe    = regexp.MustCompile(`</Tabs>`)
	tabItemRe      = regexp.MustCompile(`<TabItem\b[^>]*\bvalue\s*=\s*["']([^"']+)["']`)
	defaultValRe   = regexp.MustCompile(`defaultValue\s*=\s*["']([^"']*)["']`)
	tabPairRe      = regexp.MustCompile(`label\s*:\s*['"]([^'"]*)['"]\s*,\s*value\s*:\s*['"]([^'"]*)['"]`)
	technicalTagRe = regexp.MustCompile(`<TechnicalTag\b[^>]*>`)
	attrRes        = map[string]*regexp.Regexp{
		"tag":  regexp.MustCompile(`\btag\s*=\s*["']([^"']*)["']`),
		"text": regexp.MustCompile(`\btext\s*=\s*["']([^"']*)["']`),
	}

	// Inline markdown links; image links excluded by the leading capture.
	mdLinkRe = regexp.MustCompile(`(^|[^!])\[[^\]]*\]\(([^)\s]+)[^)]*\)`)
)

// Parse parses a documentation page into its structured model.
// Line numbers are 1-based against the original content.
func Parse(path string, content []byte) (*Page, error) {
	p := &Page{Path: path}

	lines := strings.Split(string(content), "\n")
	p.LineCount = len(lines)

	body := 0 // index of first body line
	if len(lines) > 0 && strings.TrimSpace(lines[0]) == "---" {
		end := -1
		for i := 1; i < len(lines); i++ {
			if strings.TrimSpace(lines[i]) == "---" {
				end = i
				break
			}
		}
		if end > 0 {
			var fm frontMatter
			if err := yaml.Unmarshal([]byte(strings.Join(lines[1:end], "\n")), &fm); err != nil {
				return nil, fmt.Errorf("invalid front matter in %s: %w", path, err)
			}
			p.Title = fm.Title
			p.ID = fm.ID
			p.Description = fm.Description
			body = end + 1
		}
	}

	inFence := false
	var openGroup *TabGroup     // Most recent unclosed <Tabs>
	var tabsBuf strings.Builder // Accumulates a multiline <Tabs ...> opening tag
	tabsLine := 0

	// Non-fence lines only, blanked in place so raw-HTML line numbers hold.
	htmlLines := make([]string, len(lines))

	for i := body; i < len(lines); i++ {
		line := lines[i]
		lineNo := i + 1

		if fenceRe.MatchString(strings.TrimLeft(line, " \t")) {
			if !inFence {
				if ref, ok := parseSnippetRef(strings.TrimLeft(line, " \t"), lineNo); ok {
					p.Snippets = append(p.Snippets, ref)
				}
			}
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		htmlLines[i] = line

		// A <Tabs ...> opening tag may span several lines (the values
		// array usually does). Buffer until the tag closes.
		if tabsBuf.Len() > 0 {
			tabsBuf.WriteString(" ")
			tabsBuf.WriteString(line)
			if tagComplete(tabsBuf.String()) {
				g := parseTabsOpen(tabsBuf.String(), tabsLine)
				p.TabGroups = append(p.TabGroups, g)
				openGroup = &p.TabGroups[len(p.TabGroups)-1]
				tabsBuf.Reset()
			}
			continue
		}
		if loc := tabsOpenRe.FindStringIndex(line); loc != nil {
			frag := line[loc[0]:]
			if tagComplete(frag) {
				g := parseTabsOpen(frag, lineNo)
				p.TabGroups = append(p.TabGroups, g)
				openGroup = &p.TabGroups[len(p.TabGroups)-1]
			} else {
				tabsBuf.WriteString(frag)
				tabsLine = lineNo
			}
		}
		if m := tabItemRe.FindStringSubmatch(line); m != nil {
			if openGroup != nil {
				openGroup.Items = append(openGroup.Items, TabItem{Value: m[1], Line: lineNo})
			} else {
				logging.Get(logging.CategoryParse).Warn("%s:%d: TabItem outside <Tabs> group", path, lineNo)
			}
		}
		if tabsCloseRe.MatchString(line) {
			openGroup = nil
		}

		if m := headingRe.FindStringSubmatch(line); m != nil {
			text := m[2]
			p.Headings = append(p.Headings, Heading{
				Level: len(m[1]),
				Text:  text,
				Slug:  Slugify(text),
				Line:  lineNo,
			})
		}

		for _, tag := range technicalTagRe.FindAllString(line, -1) {
			p.Terms = append(p.Terms, TermTag{
				Line: lineNo,
				Tag:  extractAttr(tag, "tag"),
				Text: extractAttr(tag, "text"),
			})
		}

		for _, m := range mdLinkRe.FindAllStringSubmatch(line, -1) {
			if link, ok := makeLink(m[2], lineNo); ok {
				p.Links = append(p.Links, link)
			}
		}
	}

	parseRawHTML(p, strings.Join(htmlLines, "\n"))

	return p, nil
}

// tagComplete reports whether an accumulated JSX-ish opening tag fragment
// has closed: it contains '>' with balanced braces before it.
func tagComplete(frag string) bool {
	depth := 0
	for _, r := range frag {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
		case '>':
			if depth == 0 {
				return true
			}
		}
	}
	return false
}

// parseTabsOpen extracts defaultValue and the declared label/value pairs
// from a complete <Tabs ...> opening tag.
func parseTabsOpen(tag string, line int) TabGroup {
	g := TabGroup{Line: line}
	if m := defaultValRe.FindStringSubmatch(tag); m != nil {
		g.DefaultValue = m[1]
		g.HasDefault = true
	}
	for _, pair := range tabPairRe.FindAllStringSubmatch(tag, -1) {
		g.Values = append(g.Values, TabValue{Label: pair[1], Value: pair[2]})
	}
	return g
}

// ParseSnippetRef parses a fence opener line for a transclusion
// reference. Returns nil when the fence is a plain code block.
func ParseSnippetRef(fenceLine string, lineNo int) *SnippetRef {
	ref, ok := parseSnippetRef(fenceLine, lineNo)
	if !ok {
		return nil
	}
	return &ref
}

// parseSnippetRef parses a fence opener info string for a transclusion
// reference. Returns false when the fence is a plain code block.
func parseSnippetRef(fenceLine string, lineNo int) (SnippetRef, bool) {
	m := fenceInfoRe.FindStringSubmatch(fenceLine)
	if m == nil {
		return SnippetRef{}, false
	}
	ref := SnippetRef{Line: lineNo, Lang: m[1]}
	rest := m[2]

	if fm := fileAttrRe.FindStringSubmatch(rest); fm != nil {
		ref.File = fm[1]
		if fm[2] != "" {
			ref.StartLine, _ = strconv.Atoi(fm[2])
			ref.EndLine, _ = strconv.Atoi(fm[3])
		}
	}
	if nm := nameAttrRe.FindStringSubmatch(rest); nm != nil {
		ref.Name = nm[1]
	}

	if ref.File == "" && ref.Name == "" {
		return SnippetRef{}, false
	}
	return ref, true
}

func extractAttr(tag, name string) string {
	if m := attrRes[name].FindStringSubmatch(tag); m != nil {
		return m[1]
	}
	return ""
}

// makeLink splits a raw link target into file and anchor parts, dropping
// absolute URLs and mail links (external targets are out of scope).
func makeLink(target string, line int) (Link, bool) {
	lower := strings.ToLower(target)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "mailto:") {
		return Link{}, false
	}

	link := Link{Line: line, Target: target}
	if i := strings.IndexByte(target, '#'); i >= 0 {
		link.File = target[:i]
		link.Anchor = target[i+1:]
	} else {
		link.File = target
	}
	return link, true
}

// parseRawHTML tokenizes the page's non-fenced content and collects raw
// <a href> links plus explicit id="..." anchor targets. MDX pages mix raw
// HTML freely with markdown, so the tokenizer runs over everything the
// markdown pass saw.
func parseRawHTML(p *Page, content string) {
	z := html.NewTokenizer(strings.NewReader(content))
	line := 1
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return
		}
		raw := string(z.Raw())

		if tt == html.StartTagToken || tt == html.SelfClosingTagToken {
			tok := z.Token()
			for _, attr := range tok.Attr {
				switch {
				case attr.Key == "href" && tok.Data == "a":
					if link, ok := makeLink(attr.Val, line); ok {
						p.Links = append(p.Links, link)
					}
				case attr.Key == "id" && attr.Val != "":
					p.ExtraAnchors = append(p.ExtraAnchors, Anchor{ID: attr.Val, Line: line})
				}
			}
		}

		line += strings.Count(raw, "\n")
	}
}

var slugStripRe = regexp.MustCompile("[^a-z0-9 _-]")

// Slugify produces a github-style anchor slug for a heading.
func Slugify(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = strings.ReplaceAll(s, "`", "")
	s = slugStripRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, " ", "-")
	return s
}

// disambiguate appends the github-style duplicate suffix.
func disambiguate(slug string, n int) string {
	return fmt.Sprintf("%s-%d", slug, n)
}
