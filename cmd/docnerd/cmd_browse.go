package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"docnerd/internal/browse"
	"docnerd/internal/lint"
	"docnerd/internal/store"
)

var browseFresh bool

// browseCmd opens the interactive findings browser
var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse lint findings interactively",
	Long: `Opens a terminal browser over the latest recorded lint run: a list
of findings with the offending page source alongside.

With --fresh, a new check runs first instead of loading the last
recorded run.`,
	RunE: runBrowse,
}

func init() {
	browseCmd.Flags().BoolVar(&browseFresh, "fresh", false, "Run a new check instead of loading the last recorded run")
	rootCmd.AddCommand(browseCmd)
}

func runBrowse(cmd *cobra.Command, args []string) error {
	if browseFresh {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		run, err := runLint(ctx)
		if err != nil {
			return err
		}
		return browse.Run(run.cfg.Docs.Root, run.report)
	}

	cfg, ws, err := loadConfig()
	if err != nil {
		return err
	}

	idx, err := store.Open(databasePath(cfg, ws))
	if err != nil {
		return err
	}
	defer idx.Close()

	latest, err := idx.LatestRun()
	if err != nil {
		return err
	}
	if latest == nil {
		return fmt.Errorf("no recorded lint runs; run 'docnerd check' first or use --fresh")
	}

	findings, err := idx.FindingsForRun(latest.ID)
	if err != nil {
		return err
	}

	report := &lint.Report{
		RunID:      latest.ID,
		Root:       latest.Root,
		StartedAt:  latest.StartedAt,
		FinishedAt: latest.FinishedAt,
		Pages:      latest.Pages,
		Findings:   findings,
		RuleCounts: latest.RuleCounts,
	}
	return browse.Run(cfg.Docs.Root, report)
}
