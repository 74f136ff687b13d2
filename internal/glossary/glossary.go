// Package glossary loads and queries the docs glossary: the registry of
// technical terms that <TechnicalTag> tooltips resolve against.
package glossary

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"docnerd/internal/logging"

	"github.com/agnivade/levenshtein"
	"gopkg.in/yaml.v3"
)

// Term is one glossary entry, keyed by its slug in the YAML file:
//
//	datasource:
//	  name: Datasource
//	  definition: An external storage or compute location from which data batches are read.
//	  url: /glossary#datasource
type Term struct {
	Slug       string `yaml:"-"`
	Name       string `yaml:"name"`
	Definition string `yaml:"definition"`
	URL        string `yaml:"url,omitempty"`
}

// Glossary is the loaded term registry.
type Glossary struct {
	terms map[string]Term
	slugs []string // Sorted for deterministic iteration
}

// Load reads and validates a glossary YAML file.
// A missing file yields an empty glossary: docs trees without a glossary
// simply have every term tag flagged by lint.
func Load(path string) (*Glossary, error) {
	g := &Glossary{terms: make(map[string]Term)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Get(logging.CategoryGlossary).Warn("glossary file not found: %s", path)
			return g, nil
		}
		return nil, fmt.Errorf("failed to read glossary: %w", err)
	}

	raw := make(map[string]Term)
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse glossary: %w", err)
	}

	for slug, term := range raw {
		term.Slug = slug
		if err := validateTerm(term); err != nil {
			return nil, fmt.Errorf("glossary term %q: %w", slug, err)
		}
		g.terms[slug] = term
		g.slugs = append(g.slugs, slug)
	}
	sort.Strings(g.slugs)

	logging.Get(logging.CategoryGlossary).Info("loaded %d glossary terms from %s", len(g.terms), path)
	return g, nil
}

func validateTerm(t Term) error {
	if strings.TrimSpace(t.Slug) == "" {
		return fmt.Errorf("empty slug")
	}
	if strings.ContainsAny(t.Slug, " \t") {
		return fmt.Errorf("slug contains whitespace")
	}
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("missing name")
	}
	if strings.TrimSpace(t.Definition) == "" {
		return fmt.Errorf("missing definition")
	}
	return nil
}

// Lookup returns the term for a slug.
func (g *Glossary) Lookup(slug string) (Term, bool) {
	t, ok := g.terms[slug]
	return t, ok
}

// Slugs returns all term slugs in sorted order.
func (g *Glossary) Slugs() []string {
	out := make([]string, len(g.slugs))
	copy(out, g.slugs)
	return out
}

// Terms returns all terms in slug order.
func (g *Glossary) Terms() []Term {
	out := make([]Term, 0, len(g.slugs))
	for _, slug := range g.slugs {
		out = append(out, g.terms[slug])
	}
	return out
}

// Len returns the number of terms.
func (g *Glossary) Len() int {
	return len(g.terms)
}

// maxSuggestionDistance bounds how far a did-you-mean candidate may be.
const maxSuggestionDistance = 3

// Suggest returns up to max slugs closest to the unknown slug by
// Levenshtein distance, nearest first. Ties break alphabetically via the
// sorted slug order.
func (g *Glossary) Suggest(slug string, max int) []string {
	type candidate struct {
		slug string
		dist int
	}

	var candidates []candidate
	for _, s := range g.slugs {
		d := levenshtein.ComputeDistance(strings.ToLower(slug), strings.ToLower(s))
		if d <= maxSuggestionDistance {
			candidates = append(candidates, candidate{slug: s, dist: d})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].dist < candidates[j].dist
	})

	var out []string
	for _, c := range candidates {
		if len(out) >= max {
			break
		}
		out = append(out, c.slug)
	}
	return out
}
