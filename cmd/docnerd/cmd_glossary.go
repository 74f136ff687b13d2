package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// glossaryCmd groups glossary commands
var glossaryCmd = &cobra.Command{
	Use:   "glossary",
	Short: "Inspect the glossary used for term tags",
}

var glossaryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all glossary terms",
	RunE:  runGlossaryList,
}

var glossaryShowCmd = &cobra.Command{
	Use:   "show [slug]",
	Short: "Show a glossary term's definition",
	Args:  cobra.ExactArgs(1),
	RunE:  runGlossaryShow,
}

func init() {
	glossaryCmd.AddCommand(glossaryListCmd)
	glossaryCmd.AddCommand(glossaryShowCmd)
	rootCmd.AddCommand(glossaryCmd)
}

func runGlossaryList(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	gl, err := loadGlossary(cfg)
	if err != nil {
		return err
	}

	if gl.Len() == 0 {
		fmt.Printf("Glossary is empty (%s)\n", cfg.GlossaryFile())
		return nil
	}
	for _, slug := range gl.Slugs() {
		term, _ := gl.Lookup(slug)
		fmt.Printf("%-24s %s\n", slug, term.Name)
	}
	return nil
}

func runGlossaryShow(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	gl, err := loadGlossary(cfg)
	if err != nil {
		return err
	}

	slug := args[0]
	term, ok := gl.Lookup(slug)
	if !ok {
		msg := fmt.Sprintf("unknown term %q", slug)
		if suggestions := gl.Suggest(slug, 3); len(suggestions) > 0 {
			msg += fmt.Sprintf(" (did you mean %s?)", strings.Join(suggestions, ", "))
		}
		return fmt.Errorf("%s", msg)
	}

	fmt.Printf("%s (%s)\n\n%s\n", term.Name, slug, term.Definition)
	if term.URL != "" {
		fmt.Printf("\n%s\n", term.URL)
	}
	return nil
}
