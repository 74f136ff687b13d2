package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"docnerd/internal/config"
)

const starterGlossary = `# Glossary terms available to <TechnicalTag> tags.
# Each key is the slug pages reference; name is the canonical display
# text and definition feeds the rendered tooltip.
datasource:
  name: Datasource
  definition: >
    An object that brings together a way of interacting with data (an
    execution engine) and a way of addressing it (connectors), so
    batches can be requested consistently.
validator:
  name: Validator
  definition: >
    The object used to run an expectation suite against a batch of
    data.
batch-request:
  name: Batch Request
  definition: >
    A request describing which batch of data to load from a data
    asset.
data-asset:
  name: Data Asset
  definition: >
    A collection of records within a datasource that can be queried
    for batches.
`

// initCmd initializes docNERD in a workspace
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize docNERD in the current workspace",
	Long: `Sets up a workspace for docs checking:

  1. Creates the .docnerd/ directory (index, cache, logs)
  2. Writes a default config to .docnerd/config.yml
  3. Creates the docs root if it does not exist
  4. Seeds a starter glossary when none is present

Run this once per documentation project. Existing files are left
untouched.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}

	for _, dir := range []string{
		filepath.Join(ws, ".docnerd"),
		filepath.Join(ws, ".docnerd", "cache"),
		filepath.Join(ws, ".docnerd", "logs"),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	cfgPath := filepath.Join(ws, ".docnerd", "config.yml")
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := config.DefaultConfig().Save(cfgPath); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", cfgPath)
	} else {
		fmt.Printf("Config already exists: %s\n", cfgPath)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	docsRoot := cfg.Docs.Root
	if !filepath.IsAbs(docsRoot) {
		docsRoot = filepath.Join(ws, docsRoot)
	}
	if err := os.MkdirAll(docsRoot, 0755); err != nil {
		return fmt.Errorf("failed to create docs root: %w", err)
	}

	glossaryPath := cfg.Docs.GlossaryPath
	if !filepath.IsAbs(glossaryPath) {
		glossaryPath = filepath.Join(docsRoot, glossaryPath)
	}
	if _, err := os.Stat(glossaryPath); os.IsNotExist(err) {
		if err := os.WriteFile(glossaryPath, []byte(starterGlossary), 0644); err != nil {
			return fmt.Errorf("failed to write glossary: %w", err)
		}
		fmt.Printf("Wrote %s\n", glossaryPath)
	}

	fmt.Println("\nWorkspace ready. Try 'docnerd check'.")
	return nil
}
