// Package store persists scan and lint results in a local SQLite index.
// The index backs `docnerd stats` and the findings browser, and lets
// repeated checks report drift without re-reading history from disk.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"docnerd/internal/lint"
	"docnerd/internal/logging"
)

// Index is the SQLite-backed docs index.
type Index struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// PageRecord is a row in the pages table, together with the page's
// snippet references and term usages stored in child tables.
type PageRecord struct {
	Path      string
	Title     string
	Hash      string
	Headings  int
	Snippets  int
	Terms     int
	TabGroups int
	UpdatedAt time.Time

	SnippetRefs []SnippetRefRow
	TermUsages  []TermUsageRow
}

// SnippetRefRow is a row in the snippet_refs table.
type SnippetRefRow struct {
	Line      int
	Lang      string
	File      string
	StartLine int
	EndLine   int
	Name      string
}

// TermUsageRow is a row in the term_usages table.
type TermUsageRow struct {
	Line int
	Tag  string
	Text string
}

// RunRecord is a row in the lint_runs table.
type RunRecord struct {
	ID         string
	Root       string
	StartedAt  time.Time
	FinishedAt time.Time
	Pages      int
	Errors     int
	Warnings   int
	RuleCounts map[string]int
}

// Stats summarizes the index contents.
type Stats struct {
	Pages       int
	SnippetRefs int
	TermUsages  int
	Runs        int
	OpenErrors  int // errors in the most recent run
	LastRunAt   time.Time
	LastRunID   string
	DatabaseRaw int64 // bytes on disk, 0 for :memory:
}

// Open initializes the SQLite index at the given path.
func Open(path string) (*Index, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	logging.Store("Opening docs index at path: %s", path)

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			logging.StoreError("Failed to create directory %s: %v", dir, err)
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		logging.StoreError("Failed to open database at %s: %v", path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}
	// Safe with WAL, which already provides crash recovery.
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
	}

	idx := &Index{db: db, dbPath: path}
	if err := idx.initialize(); err != nil {
		logging.StoreError("Failed to initialize schema: %v", err)
		db.Close()
		return nil, err
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	logging.Store("Docs index ready")
	return idx, nil
}

// initialize creates the required tables.
func (i *Index) initialize() error {
	pagesTable := `
	CREATE TABLE IF NOT EXISTS pages (
		path TEXT PRIMARY KEY,
		title TEXT,
		hash TEXT,
		headings INTEGER DEFAULT 0,
		snippets INTEGER DEFAULT 0,
		terms INTEGER DEFAULT 0,
		tab_groups INTEGER DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_pages_hash ON pages(hash);
	`

	runsTable := `
	CREATE TABLE IF NOT EXISTS lint_runs (
		id TEXT PRIMARY KEY,
		root TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		pages INTEGER DEFAULT 0,
		errors INTEGER DEFAULT 0,
		warnings INTEGER DEFAULT 0,
		rule_counts TEXT DEFAULT '{}'
	);
	CREATE INDEX IF NOT EXISTS idx_lint_runs_started ON lint_runs(started_at);
	`

	findingsTable := `
	CREATE TABLE IF NOT EXISTS findings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		page TEXT NOT NULL,
		line INTEGER DEFAULT 0,
		rule TEXT NOT NULL,
		severity TEXT NOT NULL,
		message TEXT,
		FOREIGN KEY (run_id) REFERENCES lint_runs(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_findings_run ON findings(run_id);
	CREATE INDEX IF NOT EXISTS idx_findings_page ON findings(page);
	CREATE INDEX IF NOT EXISTS idx_findings_rule ON findings(rule);
	`

	snippetRefsTable := `
	CREATE TABLE IF NOT EXISTS snippet_refs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		page TEXT NOT NULL,
		line INTEGER DEFAULT 0,
		lang TEXT,
		file TEXT NOT NULL,
		start_line INTEGER DEFAULT 0,
		end_line INTEGER DEFAULT 0,
		name TEXT,
		FOREIGN KEY (page) REFERENCES pages(path) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_snippet_refs_page ON snippet_refs(page);
	CREATE INDEX IF NOT EXISTS idx_snippet_refs_file ON snippet_refs(file);
	`

	termUsagesTable := `
	CREATE TABLE IF NOT EXISTS term_usages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		page TEXT NOT NULL,
		line INTEGER DEFAULT 0,
		tag TEXT NOT NULL,
		text TEXT,
		FOREIGN KEY (page) REFERENCES pages(path) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_term_usages_page ON term_usages(page);
	CREATE INDEX IF NOT EXISTS idx_term_usages_tag ON term_usages(tag);
	`

	for _, schema := range []string{pagesTable, runsTable, findingsTable, snippetRefsTable, termUsagesTable} {
		if _, err := i.db.Exec(schema); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	if _, err := i.db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		logging.StoreDebug("Failed to enable foreign keys: %v", err)
	}
	return nil
}

// Close closes the underlying database.
func (i *Index) Close() error {
	if i.db == nil {
		return nil
	}
	return i.db.Close()
}

// UpsertPage records or refreshes a single page row and its snippet
// reference and term usage rows.
func (i *Index) UpsertPage(rec PageRecord) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	tx, err := i.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO pages (path, title, hash, headings, snippets, terms, tab_groups, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(path) DO UPDATE SET
			title = excluded.title,
			hash = excluded.hash,
			headings = excluded.headings,
			snippets = excluded.snippets,
			terms = excluded.terms,
			tab_groups = excluded.tab_groups,
			updated_at = CURRENT_TIMESTAMP`,
		rec.Path, rec.Title, rec.Hash, rec.Headings, rec.Snippets, rec.Terms, rec.TabGroups)
	if err != nil {
		return fmt.Errorf("failed to upsert page %s: %w", rec.Path, err)
	}
	if err := replaceChildRows(tx, rec); err != nil {
		return err
	}
	return tx.Commit()
}

// replaceChildRows rewrites the snippet_refs and term_usages rows for a
// page inside an open transaction.
func replaceChildRows(tx *sql.Tx, rec PageRecord) error {
	if _, err := tx.Exec("DELETE FROM snippet_refs WHERE page = ?", rec.Path); err != nil {
		return fmt.Errorf("failed to clear snippet refs for %s: %w", rec.Path, err)
	}
	if _, err := tx.Exec("DELETE FROM term_usages WHERE page = ?", rec.Path); err != nil {
		return fmt.Errorf("failed to clear term usages for %s: %w", rec.Path, err)
	}
	for _, ref := range rec.SnippetRefs {
		if _, err := tx.Exec(`
			INSERT INTO snippet_refs (page, line, lang, file, start_line, end_line, name)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.Path, ref.Line, ref.Lang, ref.File, ref.StartLine, ref.EndLine, ref.Name); err != nil {
			return fmt.Errorf("failed to insert snippet ref for %s: %w", rec.Path, err)
		}
	}
	for _, u := range rec.TermUsages {
		if _, err := tx.Exec(`
			INSERT INTO term_usages (page, line, tag, text) VALUES (?, ?, ?, ?)`,
			rec.Path, u.Line, u.Tag, u.Text); err != nil {
			return fmt.Errorf("failed to insert term usage for %s: %w", rec.Path, err)
		}
	}
	return nil
}

// UpsertPages records or refreshes a batch of page rows in one
// transaction, and removes rows for pages no longer present.
func (i *Index) UpsertPages(recs []PageRecord) error {
	timer := logging.StartTimer(logging.CategoryStore, "UpsertPages")
	defer timer.Stop()

	i.mu.Lock()
	defer i.mu.Unlock()

	tx, err := i.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO pages (path, title, hash, headings, snippets, terms, tab_groups, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(path) DO UPDATE SET
			title = excluded.title,
			hash = excluded.hash,
			headings = excluded.headings,
			snippets = excluded.snippets,
			terms = excluded.terms,
			tab_groups = excluded.tab_groups,
			updated_at = CURRENT_TIMESTAMP`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	seen := make([]interface{}, 0, len(recs))
	for _, rec := range recs {
		if _, err := stmt.Exec(rec.Path, rec.Title, rec.Hash,
			rec.Headings, rec.Snippets, rec.Terms, rec.TabGroups); err != nil {
			return fmt.Errorf("failed to upsert page %s: %w", rec.Path, err)
		}
		if err := replaceChildRows(tx, rec); err != nil {
			return err
		}
		seen = append(seen, rec.Path)
	}

	// Drop index rows for pages that no longer exist in the tree.
	if len(seen) > 0 {
		placeholders := ""
		for n := range seen {
			if n > 0 {
				placeholders += ","
			}
			placeholders += "?"
		}
		for _, table := range []string{"snippet_refs", "term_usages"} {
			query := fmt.Sprintf("DELETE FROM %s WHERE page NOT IN (%s)", table, placeholders)
			if _, err := tx.Exec(query, seen...); err != nil {
				return fmt.Errorf("failed to prune removed pages: %w", err)
			}
		}
		query := fmt.Sprintf("DELETE FROM pages WHERE path NOT IN (%s)", placeholders)
		if _, err := tx.Exec(query, seen...); err != nil {
			return fmt.Errorf("failed to prune removed pages: %w", err)
		}
	} else {
		for _, table := range []string{"snippet_refs", "term_usages", "pages"} {
			if _, err := tx.Exec("DELETE FROM " + table); err != nil {
				return fmt.Errorf("failed to prune removed pages: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit page upserts: %w", err)
	}

	logging.StoreDebug("Upserted %d page rows", len(recs))
	return nil
}

// Pages returns all indexed pages ordered by path.
func (i *Index) Pages() ([]PageRecord, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	rows, err := i.db.Query(`
		SELECT path, title, hash, headings, snippets, terms, tab_groups, updated_at
		FROM pages ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer rows.Close()

	var recs []PageRecord
	for rows.Next() {
		var rec PageRecord
		if err := rows.Scan(&rec.Path, &rec.Title, &rec.Hash,
			&rec.Headings, &rec.Snippets, &rec.Terms, &rec.TabGroups, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan page row: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// SnippetRefs returns the stored snippet references for a page, in
// page order.
func (i *Index) SnippetRefs(pagePath string) ([]SnippetRefRow, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	rows, err := i.db.Query(`
		SELECT line, lang, file, start_line, end_line, name
		FROM snippet_refs WHERE page = ? ORDER BY line`, pagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to query snippet refs: %w", err)
	}
	defer rows.Close()

	var refs []SnippetRefRow
	for rows.Next() {
		var ref SnippetRefRow
		if err := rows.Scan(&ref.Line, &ref.Lang, &ref.File, &ref.StartLine, &ref.EndLine, &ref.Name); err != nil {
			return nil, fmt.Errorf("failed to scan snippet ref row: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// TermUsageCounts returns how many times each glossary tag is used
// across the indexed tree.
func (i *Index) TermUsageCounts() (map[string]int, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	rows, err := i.db.Query("SELECT tag, COUNT(*) FROM term_usages GROUP BY tag")
	if err != nil {
		return nil, fmt.Errorf("failed to query term usages: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var tag string
		var n int
		if err := rows.Scan(&tag, &n); err != nil {
			return nil, fmt.Errorf("failed to scan term usage row: %w", err)
		}
		counts[tag] = n
	}
	return counts, rows.Err()
}

// StalePages returns the indexed pages whose stored hash differs from
// the current tree, plus indexed pages no longer present. current maps
// page path to content hash.
func (i *Index) StalePages(current map[string]string) ([]string, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	rows, err := i.db.Query("SELECT path, hash FROM pages")
	if err != nil {
		return nil, fmt.Errorf("failed to query page hashes: %w", err)
	}
	defer rows.Close()

	var stale []string
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, fmt.Errorf("failed to scan page hash row: %w", err)
		}
		if h, ok := current[path]; !ok || h != hash {
			stale = append(stale, path)
		}
	}
	return stale, rows.Err()
}

// RecordRun persists a lint report and its findings.
func (i *Index) RecordRun(report *lint.Report) error {
	timer := logging.StartTimer(logging.CategoryStore, "RecordRun")
	defer timer.Stop()

	i.mu.Lock()
	defer i.mu.Unlock()

	counts, err := json.Marshal(report.RuleCounts)
	if err != nil {
		return fmt.Errorf("failed to encode rule counts: %w", err)
	}

	tx, err := i.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO lint_runs (id, root, started_at, finished_at, pages, errors, warnings, rule_counts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		report.RunID, report.Root, report.StartedAt, report.FinishedAt,
		report.Pages, report.Errors(), report.Warnings(), string(counts)); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", report.RunID, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO findings (run_id, page, line, rule, severity, message)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare finding insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range report.Findings {
		if _, err := stmt.Exec(report.RunID, f.Page, f.Line, f.Rule, string(f.Severity), f.Message); err != nil {
			return fmt.Errorf("failed to insert finding: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	logging.Store("Recorded run %s: %d findings across %d pages",
		report.RunID, len(report.Findings), report.Pages)
	return nil
}

// LatestRun returns the most recent lint run, or nil if none exist.
func (i *Index) LatestRun() (*RunRecord, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	row := i.db.QueryRow(`
		SELECT id, root, started_at, finished_at, pages, errors, warnings, rule_counts
		FROM lint_runs ORDER BY started_at DESC, id DESC LIMIT 1`)

	rec, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// RunHistory returns up to limit runs, newest first.
func (i *Index) RunHistory(limit int) ([]RunRecord, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := i.db.Query(`
		SELECT id, root, started_at, finished_at, pages, errors, warnings, rule_counts
		FROM lint_runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query run history: %w", err)
	}
	defer rows.Close()

	var recs []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

// FindingsForRun returns the stored findings of a run, ordered the way
// the lint runner orders them.
func (i *Index) FindingsForRun(runID string) ([]lint.Finding, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	rows, err := i.db.Query(`
		SELECT page, line, rule, severity, message
		FROM findings WHERE run_id = ? ORDER BY page, line, rule`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query findings: %w", err)
	}
	defer rows.Close()

	var findings []lint.Finding
	for rows.Next() {
		var f lint.Finding
		var severity string
		if err := rows.Scan(&f.Page, &f.Line, &f.Rule, &severity, &f.Message); err != nil {
			return nil, fmt.Errorf("failed to scan finding row: %w", err)
		}
		f.Severity = lint.Severity(severity)
		findings = append(findings, f)
	}
	return findings, rows.Err()
}

// PurgeRunsBefore deletes runs (and their findings, via cascade) older
// than the cutoff. Returns the number of runs removed.
func (i *Index) PurgeRunsBefore(cutoff time.Time) (int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	// Cascade needs foreign_keys on; delete findings explicitly so
	// retention works even on connections where the pragma was lost.
	tx, err := i.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		DELETE FROM findings WHERE run_id IN
		(SELECT id FROM lint_runs WHERE started_at < ?)`, cutoff); err != nil {
		return 0, fmt.Errorf("failed to purge findings: %w", err)
	}

	res, err := tx.Exec("DELETE FROM lint_runs WHERE started_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge runs: %w", err)
	}
	n, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit purge: %w", err)
	}

	if n > 0 {
		logging.Store("Purged %d lint runs older than %s", n, cutoff.Format(time.RFC3339))
	}
	return int(n), nil
}

// Stats summarizes the index for `docnerd stats`.
func (i *Index) Stats() (*Stats, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	stats := &Stats{}
	if err := i.db.QueryRow("SELECT COUNT(*) FROM pages").Scan(&stats.Pages); err != nil {
		return nil, fmt.Errorf("failed to count pages: %w", err)
	}
	if err := i.db.QueryRow("SELECT COUNT(*) FROM snippet_refs").Scan(&stats.SnippetRefs); err != nil {
		return nil, fmt.Errorf("failed to count snippet refs: %w", err)
	}
	if err := i.db.QueryRow("SELECT COUNT(*) FROM term_usages").Scan(&stats.TermUsages); err != nil {
		return nil, fmt.Errorf("failed to count term usages: %w", err)
	}
	if err := i.db.QueryRow("SELECT COUNT(*) FROM lint_runs").Scan(&stats.Runs); err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}

	row := i.db.QueryRow(`
		SELECT id, errors, started_at FROM lint_runs
		ORDER BY started_at DESC, id DESC LIMIT 1`)
	var startedAt time.Time
	err := row.Scan(&stats.LastRunID, &stats.OpenErrors, &startedAt)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to read latest run: %w", err)
	}
	if err == nil {
		stats.LastRunAt = startedAt
	}

	if i.dbPath != ":memory:" {
		if info, err := os.Stat(i.dbPath); err == nil {
			stats.DatabaseRaw = info.Size()
		}
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var rec RunRecord
	var counts string
	if err := row.Scan(&rec.ID, &rec.Root, &rec.StartedAt, &rec.FinishedAt,
		&rec.Pages, &rec.Errors, &rec.Warnings, &counts); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run row: %w", err)
	}
	rec.RuleCounts = make(map[string]int)
	if err := json.Unmarshal([]byte(counts), &rec.RuleCounts); err != nil {
		logging.StoreDebug("Corrupt rule_counts for run %s: %v", rec.ID, err)
	}
	return &rec, nil
}
