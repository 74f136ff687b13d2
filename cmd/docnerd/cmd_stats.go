package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"docnerd/internal/render"
	"docnerd/internal/store"
)

var statsHistory int

// statsCmd shows index statistics
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show docs index statistics and recent lint runs",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().IntVar(&statsHistory, "history", 5, "Number of recent runs to show")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, ws, err := loadConfig()
	if err != nil {
		return err
	}

	idx, err := store.Open(databasePath(cfg, ws))
	if err != nil {
		return err
	}
	defer idx.Close()

	stats, err := idx.Stats()
	if err != nil {
		return err
	}

	fmt.Printf("Docs index: %s\n", databasePath(cfg, ws))
	fmt.Printf("  Pages indexed: %d\n", stats.Pages)
	fmt.Printf("  Snippet refs:  %d\n", stats.SnippetRefs)
	fmt.Printf("  Term usages:   %d\n", stats.TermUsages)
	fmt.Printf("  Lint runs:     %d\n", stats.Runs)
	if stats.DatabaseRaw > 0 {
		fmt.Printf("  Size on disk:  %.1f KiB\n", float64(stats.DatabaseRaw)/1024)
	}
	if stats.LastRunID == "" {
		fmt.Println("\nNo lint runs recorded yet. Run 'docnerd check' first.")
		return nil
	}

	fmt.Printf("\nLatest run %s (%s)\n", stats.LastRunID, stats.LastRunAt.Local().Format(time.RFC822))
	fmt.Printf("  Open errors: %d\n", stats.OpenErrors)

	latest, err := idx.LatestRun()
	if err != nil {
		return err
	}
	if latest != nil && len(latest.RuleCounts) > 0 {
		fmt.Println("\nFindings by rule:")
		fmt.Print(render.FormatRuleCounts(latest.RuleCounts))
	}

	usage, err := idx.TermUsageCounts()
	if err != nil {
		return err
	}
	if len(usage) > 0 {
		fmt.Println("\nGlossary term usage:")
		fmt.Print(render.FormatRuleCounts(usage))
	}

	history, err := idx.RunHistory(statsHistory)
	if err != nil {
		return err
	}
	if len(history) > 1 {
		fmt.Println("\nRecent runs:")
		for _, run := range history {
			fmt.Printf("  %s  %3d errors  %3d warnings  %d pages\n",
				run.StartedAt.Local().Format("2006-01-02 15:04"),
				run.Errors, run.Warnings, run.Pages)
		}
	}
	return nil
}
