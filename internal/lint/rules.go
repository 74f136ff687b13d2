package lint

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"docnerd/internal/glossary"
	"docnerd/internal/page"
	"docnerd/internal/snippet"
)

// Context carries everything a rule may need to check one page.
type Context struct {
	// Page under check
	Page *page.Page

	// Absolute directory of the page, for snippet/link resolution
	BaseDir string

	// Root of the docs tree
	Root string

	// All parsed pages of the tree, keyed by cleaned path relative to
	// Root. Used for cross-page link and anchor checks.
	Pages map[string]*page.Page

	Snippets *snippet.Resolver
	Glossary *glossary.Glossary
}

// Rule checks one aspect of a page and reports findings.
type Rule interface {
	// ID is the rule family prefix, e.g. "snippet". Individual findings
	// carry the full rule ID.
	ID() string

	Check(ctx *Context) []Finding
}

// DefaultRules returns all built-in rules.
func DefaultRules() []Rule {
	return []Rule{
		SnippetRule{},
		TabsRule{},
		TermRule{},
		LinkRule{},
		PageRule{},
	}
}

// =============================================================================
// SNIPPET TRANSCLUSION CHECKS
// =============================================================================

// SnippetRule verifies that every transclusion reference resolves: the
// referenced file exists and the referenced line range (or named marker)
// is within bounds.
type SnippetRule struct{}

func (SnippetRule) ID() string { return "snippet" }

func (SnippetRule) Check(ctx *Context) []Finding {
	var findings []Finding
	for _, ref := range ctx.Page.Snippets {
		_, err := ctx.Snippets.Resolve(ctx.BaseDir, ref)
		if err == nil {
			continue
		}

		rule := RuleSnippetFileMissing
		switch {
		case errors.Is(err, snippet.ErrInvalidRange):
			rule = RuleSnippetRangeInvalid
		case errors.Is(err, snippet.ErrRangeOutOfBounds):
			rule = RuleSnippetRangeOutOfBounds
		case errors.Is(err, snippet.ErrNameMissing), errors.Is(err, snippet.ErrNameUnterminated):
			rule = RuleSnippetNameMissing
		}

		findings = append(findings, Finding{
			Page:     ctx.Page.Path,
			Line:     ref.Line,
			Rule:     rule,
			Severity: SeverityError,
			Message:  err.Error(),
		})
	}
	return findings
}

// =============================================================================
// TAB GROUP CHECKS
// =============================================================================

// TabsRule verifies tab group declarations: the default tab must match
// exactly one declared value, values must be unique, and every TabItem
// must reference a declared value.
type TabsRule struct{}

func (TabsRule) ID() string { return "tabs" }

func (TabsRule) Check(ctx *Context) []Finding {
	var findings []Finding
	for _, g := range ctx.Page.TabGroups {
		seen := make(map[string]bool)
		for _, v := range g.Values {
			if seen[v.Value] {
				findings = append(findings, Finding{
					Page:     ctx.Page.Path,
					Line:     g.Line,
					Rule:     RuleTabsDuplicateValue,
					Severity: SeverityError,
					Message:  fmt.Sprintf("tab value %q declared more than once", v.Value),
				})
			}
			seen[v.Value] = true
		}

		switch {
		case !g.HasDefault:
			findings = append(findings, Finding{
				Page:     ctx.Page.Path,
				Line:     g.Line,
				Rule:     RuleTabsMissingDefault,
				Severity: SeverityWarning,
				Message:  "tab group declares no defaultValue",
			})
		case !g.DeclaredValue(g.DefaultValue):
			findings = append(findings, Finding{
				Page:     ctx.Page.Path,
				Line:     g.Line,
				Rule:     RuleTabsDefaultUnmatched,
				Severity: SeverityError,
				Message:  fmt.Sprintf("defaultValue %q matches no declared tab value", g.DefaultValue),
			})
		}

		for _, item := range g.Items {
			if !g.DeclaredValue(item.Value) {
				findings = append(findings, Finding{
					Page:     ctx.Page.Path,
					Line:     item.Line,
					Rule:     RuleTabsUnknownItem,
					Severity: SeverityError,
					Message:  fmt.Sprintf("TabItem value %q not declared by its tab group", item.Value),
				})
			}
		}
	}
	return findings
}

// =============================================================================
// GLOSSARY TERM CHECKS
// =============================================================================

// TermRule verifies that every glossary tag resolves to a defined term,
// suggesting near matches for typos, and that the display text matches
// the registered term name.
type TermRule struct{}

func (TermRule) ID() string { return "term" }

func (TermRule) Check(ctx *Context) []Finding {
	var findings []Finding
	for _, tag := range ctx.Page.Terms {
		term, ok := ctx.Glossary.Lookup(tag.Tag)
		if !ok {
			msg := fmt.Sprintf("unknown glossary term %q", tag.Tag)
			if suggestions := ctx.Glossary.Suggest(tag.Tag, 3); len(suggestions) > 0 {
				msg += fmt.Sprintf(" (did you mean %s?)", strings.Join(suggestions, ", "))
			}
			findings = append(findings, Finding{
				Page:     ctx.Page.Path,
				Line:     tag.Line,
				Rule:     RuleTermUnknown,
				Severity: SeverityError,
				Message:  msg,
			})
			continue
		}

		if tag.Text != "" && tag.Text != term.Name {
			findings = append(findings, Finding{
				Page:     ctx.Page.Path,
				Line:     tag.Line,
				Rule:     RuleTermTextMismatch,
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("tag text %q differs from term name %q", tag.Text, term.Name),
			})
		}
	}
	return findings
}

// =============================================================================
// CROSS-PAGE LINK CHECKS
// =============================================================================

// LinkRule verifies relative links: the target page must exist in the
// scanned tree and a referenced anchor must exist on the target page.
type LinkRule struct{}

func (LinkRule) ID() string { return "link" }

func (LinkRule) Check(ctx *Context) []Finding {
	var findings []Finding
	for _, link := range ctx.Page.Links {
		target := ctx.Page
		if link.File != "" {
			rel := resolveRelative(ctx.Page.Path, link.File)
			var ok bool
			target, ok = ctx.Pages[rel]
			if !ok {
				findings = append(findings, Finding{
					Page:     ctx.Page.Path,
					Line:     link.Line,
					Rule:     RuleLinkFileMissing,
					Severity: SeverityError,
					Message:  fmt.Sprintf("link target %q not found in docs tree", link.Target),
				})
				continue
			}
		}

		if link.Anchor != "" && !target.AnchorSet()[link.Anchor] {
			findings = append(findings, Finding{
				Page:     ctx.Page.Path,
				Line:     link.Line,
				Rule:     RuleLinkAnchorMissing,
				Severity: SeverityError,
				Message:  fmt.Sprintf("anchor #%s not found on %s", link.Anchor, target.Path),
			})
		}
	}
	return findings
}

// resolveRelative resolves a link target against the linking page's
// directory, normalized to the docs-root-relative key used by Context.Pages.
func resolveRelative(pagePath, target string) string {
	return filepath.ToSlash(filepath.Clean(filepath.Join(filepath.Dir(pagePath), target)))
}

// =============================================================================
// PAGE-LEVEL CHECKS
// =============================================================================

// PageRule covers page-level hygiene: duplicate heading anchors and a
// missing front matter title.
type PageRule struct{}

func (PageRule) ID() string { return "page" }

func (PageRule) Check(ctx *Context) []Finding {
	var findings []Finding

	if strings.TrimSpace(ctx.Page.Title) == "" {
		findings = append(findings, Finding{
			Page:     ctx.Page.Path,
			Line:     1,
			Rule:     RulePageMissingTitle,
			Severity: SeverityWarning,
			Message:  "page has no front matter title",
		})
	}

	for _, h := range ctx.Page.DuplicateHeadings() {
		findings = append(findings, Finding{
			Page:     ctx.Page.Path,
			Line:     h.Line,
			Rule:     RulePageDuplicateAnchor,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("heading %q duplicates an earlier anchor (#%s)", h.Text, h.Slug),
		})
	}

	return findings
}
