package lint

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"docnerd/internal/glossary"
	"docnerd/internal/page"
	"docnerd/internal/snippet"
)

const testGlossary = `
datasource:
  name: Datasource
  definition: An external storage or compute location from which data batches are read.
validator:
  name: Validator
  definition: An object that executes validation logic against loaded data.
`

const testScript = `line 1
line 2
# <snippet name="setup">
line 4
# </snippet>
line 6
line 7
line 8
`

// buildTree writes a docs tree into a temp dir and returns the parsed
// pages keyed by root-relative path.
func buildTree(t *testing.T, files map[string]string) (string, map[string]*page.Page) {
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

	pages := make(map[string]*page.Page)
	for rel := range files {
		if !strings.HasSuffix(rel, ".md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(root, rel))
		if err != nil {
			t.Fatalf("Failed to read %s: %v", rel, err)
		}
		p, err := page.Parse(rel, data)
		if err != nil {
			t.Fatalf("Failed to parse %s: %v", rel, err)
		}
		pages[rel] = p
	}
	return root, pages
}

func loadGlossary(t *testing.T, content string) *glossary.Glossary {
	t.Helper()
	path := filepath.Join(t.TempDir(), "glossary.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write glossary: %v", err)
	}
	g, err := glossary.Load(path)
	if err != nil {
		t.Fatalf("Failed to load glossary: %v", err)
	}
	return g
}

func runLint(t *testing.T, root string, pages map[string]*page.Page, gl *glossary.Glossary, opts ...Option) *Report {
	t.Helper()
	runner := NewRunner(opts...)
	report, err := runner.Run(context.Background(), root, pages, gl, snippet.NewResolver(nil))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return report
}

func findRule(report *Report, rule string) []Finding {
	var out []Finding
	for _, f := range report.Findings {
		if f.Rule == rule {
			out = append(out, f)
		}
	}
	return out
}

func TestCleanPage(t *testing.T) {
	root, pages := buildTree(t, map[string]string{
		"guide.md":  "---\ntitle: Guide\n---\n\n# Guide\n\n```python file=script.py#L1-L2\n```\n\nA <TechnicalTag tag=\"datasource\" text=\"Datasource\" /> link to [self](#guide).\n",
		"script.py": testScript,
	})

	report := runLint(t, root, pages, loadGlossary(t, testGlossary))

	if len(report.Findings) != 0 {
		t.Errorf("Expected clean report, got %v", report.Findings)
	}
	if report.Failed(false) {
		t.Error("Clean report should not fail")
	}
	if report.Pages != 1 {
		t.Errorf("Expected 1 page, got %d", report.Pages)
	}
	if report.RunID == "" {
		t.Error("Expected a run ID")
	}
}

func TestSnippetFindings(t *testing.T) {
	root, pages := buildTree(t, map[string]string{
		"guide.md": "---\ntitle: G\n---\n" +
			"```python file=missing.py#L1-L2\n```\n" +
			"```python file=script.py#L5-L3\n```\n" +
			"```python file=script.py#L7-L99\n```\n" +
			"```python file=script.py name=ghost\n```\n",
		"script.py": testScript,
	})

	report := runLint(t, root, pages, loadGlossary(t, testGlossary))

	for rule, want := range map[string]int{
		RuleSnippetFileMissing:      1,
		RuleSnippetRangeInvalid:     1,
		RuleSnippetRangeOutOfBounds: 1,
		RuleSnippetNameMissing:      1,
	} {
		if got := len(findRule(report, rule)); got != want {
			t.Errorf("Expected %d %s findings, got %d", want, rule, got)
		}
	}
	if !report.Failed(false) {
		t.Error("Snippet errors should fail the run")
	}
}

func TestTabsFindings(t *testing.T) {
	root, pages := buildTree(t, map[string]string{
		"tabs.md": "---\ntitle: T\n---\n" +
			"<Tabs defaultValue=\"nope\" values={[{label: 'A', value: 'a'}, {label: 'B', value: 'a'}]}>\n" +
			"<TabItem value=\"b\">\n</TabItem>\n</Tabs>\n" +
			"<Tabs values={[{label: 'C', value: 'c'}]}>\n<TabItem value=\"c\">\n</TabItem>\n</Tabs>\n",
	})

	report := runLint(t, root, pages, loadGlossary(t, testGlossary))

	if got := len(findRule(report, RuleTabsDefaultUnmatched)); got != 1 {
		t.Errorf("Expected 1 default-unmatched, got %d", got)
	}
	if got := len(findRule(report, RuleTabsDuplicateValue)); got != 1 {
		t.Errorf("Expected 1 duplicate-value, got %d", got)
	}
	if got := len(findRule(report, RuleTabsUnknownItem)); got != 1 {
		t.Errorf("Expected 1 unknown-item, got %d", got)
	}
	if got := len(findRule(report, RuleTabsMissingDefault)); got != 1 {
		t.Errorf("Expected 1 missing-default, got %d", got)
	}
}

func TestTermFindings(t *testing.T) {
	root, pages := buildTree(t, map[string]string{
		"terms.md": "---\ntitle: T\n---\n" +
			"<TechnicalTag tag=\"datasorce\" text=\"Datasource\" />\n" +
			"<TechnicalTag tag=\"validator\" text=\"The Validator\" />\n",
	})

	report := runLint(t, root, pages, loadGlossary(t, testGlossary))

	unknown := findRule(report, RuleTermUnknown)
	if len(unknown) != 1 {
		t.Fatalf("Expected 1 unknown term, got %d", len(unknown))
	}
	if !strings.Contains(unknown[0].Message, "did you mean datasource") {
		t.Errorf("Expected suggestion in message, got %q", unknown[0].Message)
	}

	mismatch := findRule(report, RuleTermTextMismatch)
	if len(mismatch) != 1 {
		t.Fatalf("Expected 1 text mismatch, got %d", len(mismatch))
	}
	if mismatch[0].Severity != SeverityWarning {
		t.Errorf("Text mismatch should be a warning, got %s", mismatch[0].Severity)
	}
}

func TestLinkFindings(t *testing.T) {
	root, pages := buildTree(t, map[string]string{
		"how_to/verify.md": "---\ntitle: V\n---\n" +
			"See [terms](../terms/batch.md#structure), [missing](../terms/nope.md), and [bad anchor](../terms/batch.md#nope).\n" +
			"Also [self](#nothing).\n",
		"terms/batch.md": "---\ntitle: B\n---\n\n## Structure\n\nBody.\n",
	})

	report := runLint(t, root, pages, loadGlossary(t, testGlossary))

	if got := len(findRule(report, RuleLinkFileMissing)); got != 1 {
		t.Errorf("Expected 1 file-missing, got %d", got)
	}
	// #nope on batch.md and #nothing on the page itself
	if got := len(findRule(report, RuleLinkAnchorMissing)); got != 2 {
		t.Errorf("Expected 2 anchor-missing, got %d: %v", got, findRule(report, RuleLinkAnchorMissing))
	}
}

func TestPageFindings(t *testing.T) {
	root, pages := buildTree(t, map[string]string{
		"untitled.md": "# One\n\n# One\n",
	})

	report := runLint(t, root, pages, loadGlossary(t, testGlossary))

	if got := len(findRule(report, RulePageMissingTitle)); got != 1 {
		t.Errorf("Expected 1 missing-title, got %d", got)
	}
	if got := len(findRule(report, RulePageDuplicateAnchor)); got != 1 {
		t.Errorf("Expected 1 duplicate-anchor, got %d", got)
	}
	if report.Failed(false) {
		t.Error("Warnings alone should not fail")
	}
	if !report.Failed(true) {
		t.Error("Warnings should fail with warnings_as_errors")
	}
}

func TestDisabledRules(t *testing.T) {
	root, pages := buildTree(t, map[string]string{
		"untitled.md": "# One\n",
	})

	report := runLint(t, root, pages, loadGlossary(t, testGlossary),
		WithDisabledRules([]string{RulePageMissingTitle}))

	if len(report.Findings) != 0 {
		t.Errorf("Disabled rule still reported: %v", report.Findings)
	}
}

func TestFindingsSorted(t *testing.T) {
	root, pages := buildTree(t, map[string]string{
		"b.md": "# H\n\n[x](./nope.md)\n",
		"a.md": "# H\n\n[x](./nope.md)\n[y](./gone.md)\n",
	})

	report := runLint(t, root, pages, loadGlossary(t, testGlossary),
		WithDisabledRules([]string{RulePageMissingTitle}))

	if len(report.Findings) != 3 {
		t.Fatalf("Expected 3 findings, got %d", len(report.Findings))
	}
	if report.Findings[0].Page != "a.md" || report.Findings[2].Page != "b.md" {
		t.Errorf("Findings not sorted by page: %v", report.Findings)
	}
	if report.Findings[0].Line > report.Findings[1].Line {
		t.Error("Findings not sorted by line within page")
	}

	if report.RuleCounts[RuleLinkFileMissing] != 3 {
		t.Errorf("Expected rule count 3, got %d", report.RuleCounts[RuleLinkFileMissing])
	}
}
