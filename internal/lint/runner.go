package lint

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"docnerd/internal/glossary"
	"docnerd/internal/logging"
	"docnerd/internal/page"
	"docnerd/internal/snippet"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Runner applies the rule set to a set of parsed pages.
type Runner struct {
	rules       []Rule
	disabled    map[string]bool
	concurrency int
}

// Option configures a Runner.
type Option func(*Runner)

// WithRules replaces the default rule set.
func WithRules(rules []Rule) Option {
	return func(r *Runner) { r.rules = rules }
}

// WithDisabledRules skips findings whose full rule ID is listed.
func WithDisabledRules(ids []string) Option {
	return func(r *Runner) {
		for _, id := range ids {
			r.disabled[id] = true
		}
	}
}

// WithConcurrency bounds how many pages are checked in parallel.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// NewRunner returns a runner with the default rules.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		rules:       DefaultRules(),
		disabled:    make(map[string]bool),
		concurrency: 8,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run lints every page and aggregates a report. Pages are checked
// concurrently; findings are stable-sorted by page, line, and rule.
func (r *Runner) Run(
	ctx context.Context,
	root string,
	pages map[string]*page.Page,
	gl *glossary.Glossary,
	resolver *snippet.Resolver,
) (*Report, error) {
	timer := logging.StartTimer(logging.CategoryLint, "lint run")
	defer timer.Stop()

	report := &Report{
		RunID:      uuid.NewString(),
		Root:       root,
		StartedAt:  time.Now(),
		RuleCounts: make(map[string]int),
		Pages:      len(pages),
	}

	logging.Lint("run %s: linting %d pages under %s", report.RunID, len(pages), root)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for rel, p := range pages {
		rel, p := rel, p
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			pctx := &Context{
				Page:     p,
				BaseDir:  filepath.Join(root, filepath.Dir(rel)),
				Root:     root,
				Pages:    pages,
				Snippets: resolver,
				Glossary: gl,
			}

			var pageFindings []Finding
			for _, rule := range r.rules {
				for _, f := range rule.Check(pctx) {
					if r.disabled[f.Rule] {
						continue
					}
					pageFindings = append(pageFindings, f)
				}
			}

			if len(pageFindings) > 0 {
				logging.LintDebug("%s: %d findings", rel, len(pageFindings))
				mu.Lock()
				report.Findings = append(report.Findings, pageFindings...)
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sortFindings(report.Findings)
	for _, f := range report.Findings {
		report.RuleCounts[f.Rule]++
	}
	report.FinishedAt = time.Now()

	logging.Lint("run %s: %d errors, %d warnings in %v",
		report.RunID, report.Errors(), report.Warnings(), report.Duration())

	return report, nil
}
