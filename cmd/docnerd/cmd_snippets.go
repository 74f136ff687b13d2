package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"docnerd/internal/page"
	"docnerd/internal/snippet"
)

// snippetsCmd groups snippet inspection commands
var snippetsCmd = &cobra.Command{
	Use:   "snippets",
	Short: "Inspect snippet source files and references",
}

// snippetsNamesCmd lists named markers in a source file
var snippetsNamesCmd = &cobra.Command{
	Use:   "names [file]",
	Short: "List named snippet markers in a source file",
	Long: `Lists every named snippet marker declared in a source file.

Markers are comment lines of the form:
  # <snippet name="get_validator">
  ...
  # </snippet>`,
	Args: cobra.ExactArgs(1),
	RunE: runSnippetNames,
}

// snippetsShowCmd resolves a reference and prints the extracted lines
var snippetsShowCmd = &cobra.Command{
	Use:   "show [reference]",
	Short: "Resolve a snippet reference and print the extracted lines",
	Long: `Resolves a snippet reference the way a page fence would and prints
the extracted, dedented lines.

Reference forms:
  path/to/file.py              whole file
  path/to/file.py#L57-L63      inclusive line range
  path/to/file.py:name         named marker

Example:
  docnerd snippets show scripts/checkpoint.py#L57-L63`,
	Args: cobra.ExactArgs(1),
	RunE: runSnippetShow,
}

func init() {
	snippetsCmd.AddCommand(snippetsNamesCmd)
	snippetsCmd.AddCommand(snippetsShowCmd)
	rootCmd.AddCommand(snippetsCmd)
}

func runSnippetNames(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	resolver := buildResolver(cfg)
	ref := page.SnippetRef{File: args[0]}
	path, err := resolver.Locate(cfg.Docs.Root, ref)
	if err != nil {
		return err
	}

	names, err := snippet.ListNames(path)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Printf("No named snippets in %s\n", args[0])
		return nil
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func runSnippetShow(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	ref, err := parseRefArg(args[0])
	if err != nil {
		return err
	}

	ext, err := buildResolver(cfg).Resolve(cfg.Docs.Root, ref)
	if err != nil {
		return err
	}

	fmt.Printf("%s (L%d-L%d)\n", ext.Path, ext.StartLine, ext.EndLine)
	fmt.Println(ext.Text())
	return nil
}

// parseRefArg parses the CLI reference forms into a SnippetRef.
func parseRefArg(arg string) (page.SnippetRef, error) {
	if fence := page.ParseSnippetRef("```text file="+arg, 0); fence != nil && fence.HasRange() {
		return *fence, nil
	}
	// path:name form
	if dir, base := filepath.Split(arg); base != "" {
		for n := len(base) - 1; n >= 0; n-- {
			if base[n] == ':' {
				return page.SnippetRef{File: dir + base[:n], Name: base[n+1:]}, nil
			}
		}
	}
	return page.SnippetRef{File: arg}, nil
}
