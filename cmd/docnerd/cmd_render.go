package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"docnerd/internal/render"
)

var (
	renderTab   string
	renderWidth int
	renderPlain bool
)

// renderCmd previews a page in the terminal
var renderCmd = &cobra.Command{
	Use:   "render [page]",
	Short: "Preview a docs page in the terminal",
	Long: `Renders a page the way a reader would see it: snippet references
are expanded from their source files, one tab of each tab group is
shown (the declared default, or --tab), and glossary tags are reduced
to their display text.

The page argument is relative to the configured docs root.

Example:
  docnerd render how_to/verify_datasource.md --tab data-asset`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	renderCmd.Flags().StringVar(&renderTab, "tab", "", "Tab value to show (default: each group's declared default)")
	renderCmd.Flags().IntVar(&renderWidth, "width", 0, "Word wrap width (default: from config)")
	renderCmd.Flags().BoolVar(&renderPlain, "plain", false, "Emit flattened markdown without terminal styling")

	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	rel := filepath.FromSlash(args[0])
	path := filepath.Join(cfg.Docs.Root, rel)
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read page %s: %w", args[0], err)
	}

	gl, err := loadGlossary(cfg)
	if err != nil {
		return fmt.Errorf("failed to load glossary: %w", err)
	}

	width := renderWidth
	if width == 0 {
		width = cfg.Render.Width
	}

	r := render.NewRenderer(buildResolver(cfg), gl)
	out, err := r.Preview(source, filepath.Dir(path), render.Options{
		Width:    width,
		TabValue: renderTab,
		Plain:    renderPlain,
	})
	if err != nil {
		return err
	}

	fmt.Print(out)
	return nil
}
