package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"docnerd/internal/config"
	"docnerd/internal/glossary"
	"docnerd/internal/logging"
	"docnerd/internal/snippet"
)

var (
	// Global flags
	verbose    bool
	workspace  string
	configPath string
	timeout    time.Duration

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "docnerd",
	Short: "docNERD - Documentation integrity toolchain",
	Long: `docNERD keeps large documentation trees honest.

It scans markdown/MDX pages and verifies the machinery modern docs rely
on: line-range and named snippet transclusions, tab groups with declared
defaults, glossary term tags, and cross-page links. Results are stored
in a local SQLite index so drift between runs is visible.

Run 'docnerd check' to lint the docs tree, or 'docnerd watch' to
re-check pages as they change.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		zapConfig := zap.NewProductionConfig()
		if verbose {
			zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapConfig.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		ws, err := resolveWorkspace()
		if err != nil {
			return err
		}
		if err := logging.Initialize(ws); err != nil {
			logger.Warn("File logging unavailable", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: <workspace>/.docnerd/config.yml)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// resolveWorkspace returns the absolute workspace directory.
func resolveWorkspace() (string, error) {
	ws := workspace
	if ws == "" {
		var err error
		ws, err = os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to determine workspace: %w", err)
		}
	}
	return filepath.Abs(ws)
}

// loadConfig loads the workspace configuration, falling back to
// defaults when no config file exists.
func loadConfig() (*config.Config, string, error) {
	ws, err := resolveWorkspace()
	if err != nil {
		return nil, "", err
	}

	path := configPath
	if path == "" {
		path = filepath.Join(ws, ".docnerd", "config.yml")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}

	// Resolve the docs root against the workspace.
	if !filepath.IsAbs(cfg.Docs.Root) {
		cfg.Docs.Root = filepath.Join(ws, cfg.Docs.Root)
	}
	return cfg, ws, nil
}

// buildResolver constructs the snippet resolver from config, snippet
// roots resolved against the docs root.
func buildResolver(cfg *config.Config) *snippet.Resolver {
	roots := make([]string, 0, len(cfg.Docs.SnippetRoots))
	for _, root := range cfg.Docs.SnippetRoots {
		if !filepath.IsAbs(root) {
			root = filepath.Join(cfg.Docs.Root, root)
		}
		roots = append(roots, root)
	}
	return snippet.NewResolver(roots)
}

// loadGlossary loads the configured glossary. A missing glossary file
// yields an empty glossary, so term checks degrade to unknown-term
// findings rather than hard failures.
func loadGlossary(cfg *config.Config) (*glossary.Glossary, error) {
	return glossary.Load(cfg.GlossaryFile())
}

// databasePath resolves the index path against the workspace.
func databasePath(cfg *config.Config, ws string) string {
	if filepath.IsAbs(cfg.Index.DatabasePath) {
		return cfg.Index.DatabasePath
	}
	return filepath.Join(ws, cfg.Index.DatabasePath)
}
