package store

import (
	"database/sql"
	"fmt"

	"docnerd/internal/logging"
)

// Schema versions:
// v1: pages, lint_runs, findings tables
// v2: Added rule_counts column to lint_runs
// v3: Added tab_groups column to pages
const CurrentSchemaVersion = 3

// Migration defines a database schema migration.
type Migration struct {
	Table  string
	Column string
	Def    string
}

// pendingMigrations lists all schema migrations to apply.
// These handle cases where tables exist but are missing newer columns.
var pendingMigrations = []Migration{
	{"lint_runs", "rule_counts", "TEXT DEFAULT '{}'"},
	{"pages", "tab_groups", "INTEGER DEFAULT 0"},
}

// RunMigrations applies schema migrations for existing databases.
func RunMigrations(db *sql.DB) error {
	timer := logging.StartTimer(logging.CategoryStore, "RunMigrations")
	defer timer.Stop()

	appliedCount := 0
	skippedCount := 0

	for _, m := range pendingMigrations {
		if !tableExists(db, m.Table) {
			logging.StoreDebug("Table missing, skipping migration: %s.%s", m.Table, m.Column)
			skippedCount++
			continue
		}

		if !columnExists(db, m.Table, m.Column) {
			query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
			if _, err := db.Exec(query); err != nil {
				logging.Get(logging.CategoryStore).Warn("Migration failed (may already exist): %s.%s: %v", m.Table, m.Column, err)
				skippedCount++
			} else {
				logging.Store("Migration applied: added %s.%s", m.Table, m.Column)
				appliedCount++
			}
		} else {
			skippedCount++
		}
	}

	logging.StoreDebug("Schema migrations complete: applied=%d, skipped=%d", appliedCount, skippedCount)
	return nil
}

// columnExists checks if a column exists in a table using PRAGMA table_info.
func columnExists(db *sql.DB, table, column string) bool {
	query := fmt.Sprintf("PRAGMA table_info(%s)", table)
	rows, err := db.Query(query)
	if err != nil {
		logging.StoreDebug("PRAGMA table_info(%s) failed: %v", table, err)
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}

// tableExists checks if a table exists in the database.
func tableExists(db *sql.DB, table string) bool {
	var name string
	err := db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
	return err == nil
}
