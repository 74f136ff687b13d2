package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"docnerd/internal/config"
	"docnerd/internal/lint"
	"docnerd/internal/render"
	"docnerd/internal/scanner"
	"docnerd/internal/store"
)

var (
	checkWarningsAsErrors bool
	checkNoIndex          bool
	checkRules            []string
)

// checkCmd lints the docs tree
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Scan the docs tree and verify snippets, tabs, terms, and links",
	Long: `Runs all lint rules over every page in the docs tree:

  snippet/*  transcluded files exist and line ranges or named markers resolve
  tabs/*     tab groups declare consistent values and a matching default
  term/*     glossary tags reference known terms
  link/*     relative links point at existing pages and anchors
  page/*     pages carry titles and unique heading anchors

The run is recorded in the local SQLite index unless --no-index is set.
Exit status is non-zero when errors (or warnings, with
--warnings-as-errors) are found.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&checkWarningsAsErrors, "warnings-as-errors", false, "Fail on warnings as well as errors")
	checkCmd.Flags().BoolVar(&checkNoIndex, "no-index", false, "Skip recording the run in the SQLite index")
	checkCmd.Flags().StringSliceVar(&checkRules, "disable-rule", nil, "Disable a lint rule by ID (repeatable)")

	rootCmd.AddCommand(checkCmd)
}

// checkRun bundles everything a completed lint pass produced.
type checkRun struct {
	cfg    *config.Config
	ws     string
	scan   *scanner.ScanResult
	report *lint.Report
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	run, err := runLint(ctx)
	if err != nil {
		return err
	}

	warningsAsErrors := checkWarningsAsErrors || run.cfg.Lint.WarningsAsErrors
	fmt.Print(render.FormatReport(run.report, warningsAsErrors))

	if !checkNoIndex {
		if err := recordRun(run); err != nil {
			logger.Warn("Failed to record run", zap.Error(err))
		}
	}

	if run.report.Failed(warningsAsErrors) {
		return fmt.Errorf("%d error(s) found", run.report.Errors())
	}
	return nil
}

// runLint scans and lints the configured docs tree.
func runLint(ctx context.Context) (*checkRun, error) {
	cfg, ws, err := loadConfig()
	if err != nil {
		return nil, err
	}

	gl, err := loadGlossary(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load glossary: %w", err)
	}

	s := scanner.NewScanner(cfg.Docs.Extensions, cfg.Docs.ExcludeDirs)
	result, err := s.ScanTree(ctx, cfg.Docs.Root)
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	for rel, perr := range result.ParseErrors {
		logger.Warn("Page not parseable", zap.String("page", rel), zap.Error(perr))
	}

	disabled := append([]string{}, cfg.Lint.DisabledRules...)
	disabled = append(disabled, checkRules...)

	runner := lint.NewRunner(
		lint.WithDisabledRules(disabled),
		lint.WithConcurrency(cfg.Lint.Concurrency),
	)

	lintCtx, cancel := context.WithTimeout(ctx, cfg.GetLintTimeout())
	defer cancel()

	report, err := runner.Run(lintCtx, cfg.Docs.Root, result.Pages, gl, buildResolver(cfg))
	if err != nil {
		return nil, fmt.Errorf("lint failed: %w", err)
	}

	return &checkRun{cfg: cfg, ws: ws, scan: result, report: report}, nil
}

// recordRun writes the run and refreshed page rows to the index, then
// applies run retention.
func recordRun(run *checkRun) error {
	idx, err := store.Open(databasePath(run.cfg, run.ws))
	if err != nil {
		return err
	}
	defer idx.Close()

	if stale, err := idx.StalePages(run.scan.Hashes); err == nil && len(stale) > 0 {
		logger.Debug("Pages changed since last index", zap.Int("count", len(stale)))
	}

	recs := make([]store.PageRecord, 0, len(run.scan.Pages))
	for rel, p := range run.scan.Pages {
		rec := store.PageRecord{
			Path:      rel,
			Title:     p.Title,
			Hash:      run.scan.Hashes[rel],
			Headings:  len(p.Headings),
			Snippets:  len(p.Snippets),
			Terms:     len(p.Terms),
			TabGroups: len(p.TabGroups),
		}
		for _, ref := range p.Snippets {
			rec.SnippetRefs = append(rec.SnippetRefs, store.SnippetRefRow{
				Line: ref.Line, Lang: ref.Lang, File: ref.File,
				StartLine: ref.StartLine, EndLine: ref.EndLine, Name: ref.Name,
			})
		}
		for _, u := range p.Terms {
			rec.TermUsages = append(rec.TermUsages, store.TermUsageRow{
				Line: u.Line, Tag: u.Tag, Text: u.Text,
			})
		}
		recs = append(recs, rec)
	}
	if err := idx.UpsertPages(recs); err != nil {
		return err
	}
	if err := idx.RecordRun(run.report); err != nil {
		return err
	}

	cutoff := time.Now().Add(-run.cfg.GetRunRetention())
	if _, err := idx.PurgeRunsBefore(cutoff); err != nil {
		logger.Warn("Run retention purge failed", zap.Error(err))
	}
	return nil
}
