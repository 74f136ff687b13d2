package render

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"docnerd/internal/lint"
)

const timeRound = time.Millisecond

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC107"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A")).Bold(true)
	pageStyle    = lipgloss.NewStyle().Bold(true).Underline(true)
	mutedStyle   = lipgloss.NewStyle().Faint(true)
)

// FormatReport renders a lint report for the terminal, findings grouped
// by page with a summary line at the end.
func FormatReport(report *lint.Report, warningsAsErrors bool) string {
	var b strings.Builder

	currentPage := ""
	for _, f := range report.Findings {
		if f.Page != currentPage {
			if currentPage != "" {
				b.WriteString("\n")
			}
			currentPage = f.Page
			b.WriteString(pageStyle.Render(f.Page))
			b.WriteString("\n")
		}
		b.WriteString(formatFinding(f))
		b.WriteString("\n")
	}

	if len(report.Findings) > 0 {
		b.WriteString("\n")
	}
	b.WriteString(formatSummary(report, warningsAsErrors))
	b.WriteString("\n")
	return b.String()
}

func formatFinding(f lint.Finding) string {
	badge := warningStyle.Render("warn ")
	if f.Severity == lint.SeverityError {
		badge = errorStyle.Render("error")
	}
	return fmt.Sprintf("  %s  %s  %s %s",
		badge,
		mutedStyle.Render(fmt.Sprintf("L%-4d", f.Line)),
		f.Message,
		mutedStyle.Render("["+f.Rule+"]"))
}

func formatSummary(report *lint.Report, warningsAsErrors bool) string {
	errors := report.Errors()
	warnings := report.Warnings()

	if report.Failed(warningsAsErrors) {
		return errorStyle.Render(fmt.Sprintf("✗ %d error(s), %d warning(s) across %d page(s) in %s",
			errors, warnings, report.Pages, report.Duration().Round(timeRound)))
	}
	if warnings > 0 {
		return warningStyle.Render(fmt.Sprintf("✓ no errors, %d warning(s) across %d page(s) in %s",
			warnings, report.Pages, report.Duration().Round(timeRound)))
	}
	return successStyle.Render(fmt.Sprintf("✓ %d page(s) clean in %s",
		report.Pages, report.Duration().Round(timeRound)))
}

// FormatRuleCounts renders a per-rule breakdown, most frequent first.
func FormatRuleCounts(counts map[string]int) string {
	type entry struct {
		rule  string
		count int
	}
	entries := make([]entry, 0, len(counts))
	for rule, count := range counts {
		entries = append(entries, entry{rule, count})
	}
	sort.Slice(entries, func(a, b int) bool {
		if entries[a].count != entries[b].count {
			return entries[a].count > entries[b].count
		}
		return entries[a].rule < entries[b].rule
	})

	var b strings.Builder
	for _, e := range entries {
		b.WriteString(fmt.Sprintf("  %4d  %s\n", e.count, e.rule))
	}
	return b.String()
}
