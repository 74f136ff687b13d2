package store

import (
	"path/filepath"
	"testing"
	"time"

	"docnerd/internal/lint"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open index: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func sampleReport(id string, start time.Time) *lint.Report {
	return &lint.Report{
		RunID:      id,
		Root:       "docs",
		StartedAt:  start,
		FinishedAt: start.Add(120 * time.Millisecond),
		Pages:      2,
		Findings: []lint.Finding{
			{Page: "guide.md", Line: 57, Rule: lint.RuleSnippetRangeOutOfBounds,
				Severity: lint.SeverityError, Message: "range exceeds file"},
			{Page: "guide.md", Line: 12, Rule: lint.RulePageMissingTitle,
				Severity: lint.SeverityWarning, Message: "page has no front matter title"},
		},
		RuleCounts: map[string]int{
			lint.RuleSnippetRangeOutOfBounds: 1,
			lint.RulePageMissingTitle:        1,
		},
	}
}

func TestUpsertAndListPages(t *testing.T) {
	idx := openTestIndex(t)

	recs := []PageRecord{
		{Path: "guide.md", Title: "Guide", Hash: "aaa", Headings: 3, Snippets: 2, Terms: 4, TabGroups: 1},
		{Path: "terms/batch.md", Title: "Batch", Hash: "bbb", Headings: 1},
	}
	if err := idx.UpsertPages(recs); err != nil {
		t.Fatalf("UpsertPages failed: %v", err)
	}

	pages, err := idx.Pages()
	if err != nil {
		t.Fatalf("Pages failed: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("Expected 2 pages, got %d", len(pages))
	}
	if pages[0].Path != "guide.md" || pages[0].Snippets != 2 {
		t.Errorf("Unexpected first page: %+v", pages[0])
	}

	// Re-upsert with one page removed prunes the stale row.
	if err := idx.UpsertPages(recs[:1]); err != nil {
		t.Fatalf("Second UpsertPages failed: %v", err)
	}
	pages, err = idx.Pages()
	if err != nil {
		t.Fatalf("Pages failed: %v", err)
	}
	if len(pages) != 1 || pages[0].Path != "guide.md" {
		t.Errorf("Expected only guide.md after prune, got %+v", pages)
	}
}

func TestRecordAndReadRun(t *testing.T) {
	idx := openTestIndex(t)

	start := time.Now().UTC().Truncate(time.Second)
	if err := idx.RecordRun(sampleReport("run-1", start)); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	latest, err := idx.LatestRun()
	if err != nil {
		t.Fatalf("LatestRun failed: %v", err)
	}
	if latest == nil {
		t.Fatal("Expected a latest run")
	}
	if latest.ID != "run-1" || latest.Errors != 1 || latest.Warnings != 1 {
		t.Errorf("Unexpected run record: %+v", latest)
	}
	if latest.RuleCounts[lint.RuleSnippetRangeOutOfBounds] != 1 {
		t.Errorf("Rule counts not round-tripped: %v", latest.RuleCounts)
	}

	findings, err := idx.FindingsForRun("run-1")
	if err != nil {
		t.Fatalf("FindingsForRun failed: %v", err)
	}
	if len(findings) != 2 {
		t.Fatalf("Expected 2 findings, got %d", len(findings))
	}
	// Stored findings come back ordered by page then line.
	if findings[0].Line != 12 || findings[1].Line != 57 {
		t.Errorf("Findings not ordered: %+v", findings)
	}
	if findings[1].Severity != lint.SeverityError {
		t.Errorf("Severity not round-tripped: %s", findings[1].Severity)
	}
}

func TestLatestRunEmpty(t *testing.T) {
	idx := openTestIndex(t)

	latest, err := idx.LatestRun()
	if err != nil {
		t.Fatalf("LatestRun failed: %v", err)
	}
	if latest != nil {
		t.Errorf("Expected nil run on empty index, got %+v", latest)
	}
}

func TestRunHistoryAndPurge(t *testing.T) {
	idx := openTestIndex(t)

	base := time.Now().UTC().Add(-72 * time.Hour).Truncate(time.Second)
	for n, id := range []string{"run-1", "run-2", "run-3"} {
		report := sampleReport(id, base.Add(time.Duration(n)*24*time.Hour))
		if err := idx.RecordRun(report); err != nil {
			t.Fatalf("RecordRun %s failed: %v", id, err)
		}
	}

	history, err := idx.RunHistory(2)
	if err != nil {
		t.Fatalf("RunHistory failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(history))
	}
	if history[0].ID != "run-3" || history[1].ID != "run-2" {
		t.Errorf("History not newest-first: %s, %s", history[0].ID, history[1].ID)
	}

	purged, err := idx.PurgeRunsBefore(base.Add(36 * time.Hour))
	if err != nil {
		t.Fatalf("PurgeRunsBefore failed: %v", err)
	}
	if purged != 1 {
		t.Errorf("Expected 1 purged run, got %d", purged)
	}

	if findings, err := idx.FindingsForRun("run-1"); err != nil || len(findings) != 0 {
		t.Errorf("Expected purged run findings gone, got %d (err %v)", len(findings), err)
	}
}

func TestStats(t *testing.T) {
	idx := openTestIndex(t)

	if err := idx.UpsertPage(PageRecord{Path: "guide.md", Title: "Guide", Hash: "aaa"}); err != nil {
		t.Fatalf("UpsertPage failed: %v", err)
	}
	start := time.Now().UTC().Truncate(time.Second)
	if err := idx.RecordRun(sampleReport("run-1", start)); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	stats, err := idx.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Pages != 1 || stats.Runs != 1 {
		t.Errorf("Unexpected counts: %+v", stats)
	}
	if stats.LastRunID != "run-1" || stats.OpenErrors != 1 {
		t.Errorf("Unexpected latest run stats: %+v", stats)
	}
}

func TestOpenOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "index.db")

	idx, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := idx.UpsertPage(PageRecord{Path: "guide.md", Hash: "aaa"}); err != nil {
		t.Fatalf("UpsertPage failed: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer reopened.Close()

	pages, err := reopened.Pages()
	if err != nil {
		t.Fatalf("Pages failed: %v", err)
	}
	if len(pages) != 1 || pages[0].Path != "guide.md" {
		t.Errorf("Index did not persist: %+v", pages)
	}
}

func TestSnippetRefsAndTermUsages(t *testing.T) {
	idx := openTestIndex(t)

	rec := PageRecord{
		Path: "guide.md", Title: "Guide", Hash: "aaa",
		Snippets: 2, Terms: 1,
		SnippetRefs: []SnippetRefRow{
			{Line: 31, Lang: "python", File: "scripts/verify.py", StartLine: 57, EndLine: 63},
			{Line: 48, Lang: "python", File: "scripts/verify.py", Name: "setup"},
		},
		TermUsages: []TermUsageRow{
			{Line: 12, Tag: "datasource", Text: "Datasource"},
		},
	}
	if err := idx.UpsertPages([]PageRecord{rec}); err != nil {
		t.Fatalf("UpsertPages failed: %v", err)
	}

	refs, err := idx.SnippetRefs("guide.md")
	if err != nil {
		t.Fatalf("SnippetRefs failed: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("Expected 2 snippet refs, got %d", len(refs))
	}
	if refs[0].File != "scripts/verify.py" || refs[0].StartLine != 57 || refs[0].EndLine != 63 {
		t.Errorf("Unexpected first ref: %+v", refs[0])
	}
	if refs[1].Name != "setup" {
		t.Errorf("Named ref not round-tripped: %+v", refs[1])
	}

	usage, err := idx.TermUsageCounts()
	if err != nil {
		t.Fatalf("TermUsageCounts failed: %v", err)
	}
	if usage["datasource"] != 1 {
		t.Errorf("Unexpected term usage counts: %v", usage)
	}

	// Re-upserting the page replaces, not appends, its child rows.
	rec.SnippetRefs = rec.SnippetRefs[:1]
	rec.TermUsages = nil
	if err := idx.UpsertPage(rec); err != nil {
		t.Fatalf("UpsertPage failed: %v", err)
	}
	refs, err = idx.SnippetRefs("guide.md")
	if err != nil {
		t.Fatalf("SnippetRefs failed: %v", err)
	}
	if len(refs) != 1 {
		t.Errorf("Expected child rows replaced, got %d refs", len(refs))
	}
	if usage, _ := idx.TermUsageCounts(); len(usage) != 0 {
		t.Errorf("Expected term usages cleared, got %v", usage)
	}

	stats, err := idx.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.SnippetRefs != 1 || stats.TermUsages != 0 {
		t.Errorf("Unexpected stats counts: %+v", stats)
	}
}

func TestStalePages(t *testing.T) {
	idx := openTestIndex(t)

	recs := []PageRecord{
		{Path: "guide.md", Hash: "aaa"},
		{Path: "terms/batch.md", Hash: "bbb"},
	}
	if err := idx.UpsertPages(recs); err != nil {
		t.Fatalf("UpsertPages failed: %v", err)
	}

	stale, err := idx.StalePages(map[string]string{
		"guide.md":       "aaa",
		"terms/batch.md": "changed",
	})
	if err != nil {
		t.Fatalf("StalePages failed: %v", err)
	}
	if len(stale) != 1 || stale[0] != "terms/batch.md" {
		t.Errorf("Expected terms/batch.md stale, got %v", stale)
	}

	// A page missing from the current tree is stale too.
	stale, err = idx.StalePages(map[string]string{"guide.md": "aaa"})
	if err != nil {
		t.Fatalf("StalePages failed: %v", err)
	}
	if len(stale) != 1 || stale[0] != "terms/batch.md" {
		t.Errorf("Expected removed page stale, got %v", stale)
	}
}
