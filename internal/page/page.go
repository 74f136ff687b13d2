// Package page defines the parsed documentation page model.
// A page is markdown/MDX with three docNERD-checked directive families:
// tab groups, snippet transclusions, and glossary term tags.
package page

// Page is the root of a parsed documentation page.
type Page struct {
	Path        string // Path as given to Parse (usually relative to docs root)
	Title       string // From front matter
	ID          string // From front matter (optional)
	Description string // From front matter (optional)

	Headings     []Heading
	ExtraAnchors []Anchor // Explicit id="..." attributes in raw HTML
	TabGroups    []TabGroup
	Snippets     []SnippetRef
	Terms        []TermTag
	Links        []Link

	LineCount int
}

// Heading is a markdown heading with its generated base slug.
type Heading struct {
	Level int
	Text  string
	Slug  string // Base slug before duplicate disambiguation
	Line  int
}

// Anchor is an explicit anchor target (id attribute).
type Anchor struct {
	ID   string
	Line int
}

// TabGroup is a <Tabs> directive with its declared values and items.
type TabGroup struct {
	Line         int
	DefaultValue string
	HasDefault   bool
	Values       []TabValue
	Items        []TabItem
}

// TabValue is one declared label/value pair.
type TabValue struct {
	Label string
	Value string
}

// TabItem is a <TabItem value="..."> block inside a group.
type TabItem struct {
	Value string
	Line  int
}

// SnippetRef is a transclusion reference on a fenced code block:
// either file + inclusive line range (file=script.py#L57-L63) or a
// named snippet marker (name=setup) resolved inside the file.
type SnippetRef struct {
	Line      int
	Lang      string
	File      string
	StartLine int // 0 when the whole file or a named snippet is referenced
	EndLine   int
	Name      string
}

// HasRange reports whether the reference carries an explicit line range.
func (r SnippetRef) HasRange() bool {
	return r.StartLine != 0 || r.EndLine != 0
}

// TermTag is a glossary tooltip tag, e.g.
// <TechnicalTag tag="datasource" text="Datasource" />.
type TermTag struct {
	Line int
	Tag  string
	Text string
}

// Link is a relative markdown or raw-HTML link.
// Target is the raw link target; File and Anchor are its split parts.
// File is empty for same-page anchor links.
type Link struct {
	Line   int
	Target string
	File   string
	Anchor string
}

// DeclaredValue reports whether value appears in the group's values list.
func (g TabGroup) DeclaredValue(value string) bool {
	for _, v := range g.Values {
		if v.Value == value {
			return true
		}
	}
	return false
}

// DefaultMatches counts how many declared values match the default.
func (g TabGroup) DefaultMatches() int {
	n := 0
	for _, v := range g.Values {
		if v.Value == g.DefaultValue {
			n++
		}
	}
	return n
}

// AnchorSet returns every anchor the page exposes: heading slugs after
// github-style duplicate disambiguation (slug, slug-1, slug-2, ...) plus
// explicit id attributes.
func (p *Page) AnchorSet() map[string]bool {
	anchors := make(map[string]bool, len(p.Headings)+len(p.ExtraAnchors))
	seen := make(map[string]int)
	for _, h := range p.Headings {
		slug := h.Slug
		if n, ok := seen[h.Slug]; ok {
			slug = disambiguate(h.Slug, n)
		}
		seen[h.Slug]++
		anchors[slug] = true
	}
	for _, a := range p.ExtraAnchors {
		anchors[a.ID] = true
	}
	return anchors
}

// DuplicateHeadings returns headings whose base slug collides with an
// earlier heading on the same page.
func (p *Page) DuplicateHeadings() []Heading {
	var dups []Heading
	seen := make(map[string]bool)
	for _, h := range p.Headings {
		if seen[h.Slug] {
			dups = append(dups, h)
		}
		seen[h.Slug] = true
	}
	return dups
}
