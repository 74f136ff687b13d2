package store

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

func TestMigrationsAddMissingColumns(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	// A v1-era schema without the rule_counts and tab_groups columns.
	_, err = db.Exec(`
		CREATE TABLE lint_runs (
			id TEXT PRIMARY KEY,
			root TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			finished_at DATETIME NOT NULL,
			pages INTEGER DEFAULT 0,
			errors INTEGER DEFAULT 0,
			warnings INTEGER DEFAULT 0
		);
		CREATE TABLE pages (
			path TEXT PRIMARY KEY,
			title TEXT,
			hash TEXT
		);`)
	require.NoError(t, err)

	require.False(t, columnExists(db, "lint_runs", "rule_counts"))
	require.False(t, columnExists(db, "pages", "tab_groups"))

	require.NoError(t, RunMigrations(db))

	require.True(t, columnExists(db, "lint_runs", "rule_counts"))
	require.True(t, columnExists(db, "pages", "tab_groups"))

	// Running again is a no-op.
	require.NoError(t, RunMigrations(db))
}

func TestTableExists(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	require.False(t, tableExists(db, "pages"))
	_, err = db.Exec("CREATE TABLE pages (path TEXT PRIMARY KEY)")
	require.NoError(t, err)
	require.True(t, tableExists(db, "pages"))
}
