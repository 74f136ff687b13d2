package browse

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"docnerd/internal/lint"
)

func sampleReport() *lint.Report {
	return &lint.Report{
		RunID: "run-1",
		Root:  "docs",
		Pages: 1,
		Findings: []lint.Finding{
			{Page: "guide.md", Line: 3, Rule: lint.RuleTermUnknown,
				Severity: lint.SeverityError, Message: "unknown glossary term \"datasorce\""},
			{Page: "guide.md", Line: 5, Rule: lint.RulePageMissingTitle,
				Severity: lint.SeverityWarning, Message: "page has no front matter title"},
		},
	}
}

func TestModelListsFindings(t *testing.T) {
	m := NewModel(t.TempDir(), sampleReport())
	m.SetSize(120, 40)

	view := m.View()
	if !strings.Contains(view, "guide.md:3") {
		t.Errorf("Expected finding location in view:\n%s", view)
	}
}

func TestModelEmptyReport(t *testing.T) {
	report := &lint.Report{RunID: "run-1", Root: "docs", Pages: 2}
	m := NewModel(t.TempDir(), report)

	view := m.View()
	if !strings.Contains(view, "No findings") {
		t.Errorf("Expected clean message, got:\n%s", view)
	}
}

func TestSelectionShowsSource(t *testing.T) {
	root := t.TempDir()
	source := "---\ntitle missing here\n<TechnicalTag tag=\"datasorce\" />\nmore\ncontent\n"
	if err := os.WriteFile(filepath.Join(root, "guide.md"), []byte(source), 0644); err != nil {
		t.Fatalf("Failed to write page: %v", err)
	}

	m := NewModel(root, sampleReport())
	m.SetSize(120, 40)

	// A nil message routes through Update and syncs the selection.
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = updated.(Model)

	view := m.View()
	if !strings.Contains(view, "datasorce") {
		t.Errorf("Expected source excerpt in view:\n%s", view)
	}
}

func TestTabTogglesFocus(t *testing.T) {
	m := NewModel(t.TempDir(), sampleReport())
	m.SetSize(120, 40)

	if m.focusViewport {
		t.Fatal("List should be focused initially")
	}
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = updated.(Model)
	if !m.focusViewport {
		t.Error("Tab should move focus to the viewport")
	}
}

func TestQuitKey(t *testing.T) {
	m := NewModel(t.TempDir(), sampleReport())

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("Expected quit command")
	}
	if msg := cmd(); msg != tea.Quit() {
		t.Errorf("Expected tea.Quit, got %T", msg)
	}
}
