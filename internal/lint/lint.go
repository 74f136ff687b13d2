// Package lint implements the documentation integrity rules and the runner
// that applies them across a docs tree. The checks are content-linting
// checks: every finding points at a page, a line, and a rule ID.
package lint

import (
	"fmt"
	"sort"
	"time"
)

// Severity classifies a finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Rule IDs. Stable identifiers suitable for disabled_rules config.
const (
	RuleSnippetFileMissing      = "snippet/file-missing"
	RuleSnippetRangeInvalid     = "snippet/range-invalid"
	RuleSnippetRangeOutOfBounds = "snippet/range-out-of-bounds"
	RuleSnippetNameMissing      = "snippet/name-missing"

	RuleTabsDefaultUnmatched = "tabs/default-unmatched"
	RuleTabsDuplicateValue   = "tabs/duplicate-value"
	RuleTabsUnknownItem      = "tabs/unknown-item"
	RuleTabsMissingDefault   = "tabs/missing-default"

	RuleTermUnknown      = "term/unknown"
	RuleTermTextMismatch = "term/text-mismatch"

	RuleLinkFileMissing   = "link/file-missing"
	RuleLinkAnchorMissing = "link/anchor-missing"

	RulePageDuplicateAnchor = "page/duplicate-anchor"
	RulePageMissingTitle    = "page/missing-title"
)

// Finding is one integrity violation.
type Finding struct {
	Page     string   `json:"page"`
	Line     int      `json:"line"`
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

func (f Finding) String() string {
	return fmt.Sprintf("%s:%d: [%s] %s", f.Page, f.Line, f.Rule, f.Message)
}

// Report is the outcome of one lint run.
type Report struct {
	RunID      string         `json:"run_id"`
	Root       string         `json:"root"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Pages      int            `json:"pages"`
	Findings   []Finding      `json:"findings"`
	RuleCounts map[string]int `json:"rule_counts"`
}

// Errors returns the number of error-severity findings.
func (r *Report) Errors() int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == SeverityError {
			n++
		}
	}
	return n
}

// Warnings returns the number of warning-severity findings.
func (r *Report) Warnings() int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == SeverityWarning {
			n++
		}
	}
	return n
}

// Failed reports whether the run should exit nonzero.
func (r *Report) Failed(warningsAsErrors bool) bool {
	if r.Errors() > 0 {
		return true
	}
	return warningsAsErrors && r.Warnings() > 0
}

// Duration returns the wall time of the run.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// sortFindings orders findings by page, line, then rule for stable output.
func sortFindings(findings []Finding) {
	sort.Slice(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.Page != b.Page {
			return a.Page < b.Page
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Rule < b.Rule
	})
}
