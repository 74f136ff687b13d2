package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"docnerd/internal/config"
	"docnerd/internal/glossary"
	"docnerd/internal/lint"
	"docnerd/internal/page"
	"docnerd/internal/render"
	"docnerd/internal/scanner"
	"docnerd/internal/snippet"
	"docnerd/internal/watch"
)

// watchCmd re-checks pages as they change
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the docs tree and re-check pages as they change",
	Long: `Performs a full check, then watches the docs tree and re-lints
whenever a page settles after editing. Rapid saves are debounced. The
whole tree is re-linted on each change so cross-page link checks stay
accurate.

Press Ctrl+C to stop.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	gl, err := loadGlossary(cfg)
	if err != nil {
		return fmt.Errorf("failed to load glossary: %w", err)
	}

	s := scanner.NewScanner(cfg.Docs.Extensions, cfg.Docs.ExcludeDirs)
	result, err := s.ScanTree(ctx, cfg.Docs.Root)
	if err != nil {
		return fmt.Errorf("initial scan failed: %w", err)
	}

	session := &watchSession{
		cfg:      cfg,
		scanner:  s,
		glossary: gl,
		resolver: buildResolver(cfg),
		runner: lint.NewRunner(
			lint.WithDisabledRules(cfg.Lint.DisabledRules),
			lint.WithConcurrency(cfg.Lint.Concurrency),
		),
		pages: result.Pages,
	}

	report, err := session.runner.Run(ctx, cfg.Docs.Root, session.pages, gl, session.resolver)
	if err != nil {
		return fmt.Errorf("initial lint failed: %w", err)
	}
	fmt.Print(render.FormatReport(report, cfg.Lint.WarningsAsErrors))

	w, err := watch.NewDocsWatcher(
		cfg.Docs.Root,
		cfg.Docs.Extensions,
		cfg.Docs.ExcludeDirs,
		cfg.GetWatchDebounce(),
		session.onChange,
	)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	// Referenced scripts invalidate snippet checks when they change, so
	// the snippet roots are watched alongside the docs tree.
	w.WatchSources(session.resolver.Roots, session.onSourceChange)
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	fmt.Printf("\nWatching %s (Ctrl+C to stop)\n", cfg.Docs.Root)
	<-sigCh
	logger.Info("Received shutdown signal")
	return nil
}

// watchSession holds the state a running watch shares across change
// notifications.
type watchSession struct {
	mu       sync.Mutex
	cfg      *config.Config
	scanner  *scanner.Scanner
	runner   *lint.Runner
	resolver *snippet.Resolver
	glossary *glossary.Glossary
	pages    map[string]*page.Page
}

// onChange re-parses the settled page, refreshes the page set, and
// re-lints the tree.
func (ws *watchSession) onChange(ctx context.Context, rel string, removed bool) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if removed {
		delete(ws.pages, rel)
		fmt.Printf("\n%s removed, re-checking tree\n", rel)
	} else {
		p, _, err := ws.scanner.ScanPage(ws.cfg.Docs.Root, rel)
		if err != nil {
			logger.Warn("Changed page not parseable", zap.String("page", rel), zap.Error(err))
			return
		}
		ws.pages[rel] = p
		fmt.Printf("\n%s changed, re-checking tree\n", rel)
	}

	ws.relint(ctx)
}

// onSourceChange re-lints the tree after a snippet source file
// settles. Pages are unchanged; only resolution results can differ.
func (ws *watchSession) onSourceChange(ctx context.Context, path string) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	fmt.Printf("\n%s changed, re-checking tree\n", path)
	ws.relint(ctx)
}

// relint runs the rules over the current page set. Callers hold ws.mu.
func (ws *watchSession) relint(ctx context.Context) {
	report, err := ws.runner.Run(ctx, ws.cfg.Docs.Root, ws.pages, ws.glossary, ws.resolver)
	if err != nil {
		logger.Warn("Re-check failed", zap.Error(err))
		return
	}
	fmt.Print(render.FormatReport(report, ws.cfg.Lint.WarningsAsErrors))
}
