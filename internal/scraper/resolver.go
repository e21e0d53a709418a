package scraper

import (
	"context"
	"fmt"

	"github.com/dlclark/regexp2"
	"go.uber.org/zap"

	"table-scraper/internal/browser"
	"table-scraper/internal/config"
)

// Brittle-selector heuristics. Positional indices and text-content
// predicates break on the first reorder or copy change; root-anchored XPath
// breaks on any wrapper element. The html root is allowed since it cannot
// move.
var unstablePatterns = []struct {
	re     *regexp2.Regexp
	reason string
}{
	{regexp2.MustCompile(`:nth-(child|of-type)\(`, regexp2.None), "positional index"},
	{regexp2.MustCompile(`//.*text\(\)\s*=`, regexp2.None), "text-content predicate"},
	{regexp2.MustCompile(`^/{1,2}(?!html)`, regexp2.None), "root-anchored xpath"},
}

// StabilityReason reports why a selector is considered brittle, or "" when
// it passes the heuristics.
func StabilityReason(selector string) string {
	for _, p := range unstablePatterns {
		if ok, _ := p.re.MatchString(selector); ok {
			return p.reason
		}
	}
	return ""
}

// Match records which candidate won a resolution, so fallback order stays
// observable to callers and logs.
type Match struct {
	Element   browser.Element
	Candidate config.SelectorCandidate
	Index     int
}

// Resolver turns selector sets into element handles. It is stateless; one
// instance serves a whole run.
type Resolver struct {
	logger *zap.Logger
}

func NewResolver(logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{logger: logger}
}

// Locate tries each candidate in order and returns the first that reaches
// its required state within its own timeout. Brittle candidates are skipped
// unless whitelisted. A candidate expected to be singular that currently
// matches several elements degrades to waiting on the first match. Each
// candidate gets exactly one attempt; when all fail the error lists every
// attempted selector.
func (r *Resolver) Locate(ctx context.Context, root browser.Node, set config.SelectorSet) (*Match, error) {
	var (
		attempted []string
		last      error
	)
	for i, c := range set.Candidates {
		attempted = append(attempted, c.Selector)

		if reason := StabilityReason(c.Selector); reason != "" && !c.AllowUnstable {
			r.logger.Debug("skipping unstable selector",
				zap.String("selector", c.Selector),
				zap.String("reason", reason))
			last = fmt.Errorf("unstable selector (%s): %s", reason, c.Selector)
			continue
		}

		if !c.MultiMatch {
			if n, err := root.Count(c.Engine, c.Selector); err == nil && n > 1 {
				r.logger.Debug("selector matches multiple elements, waiting on first",
					zap.String("selector", c.Selector),
					zap.Int("count", n))
			}
		}

		el, err := root.WaitFor(ctx, c.Engine, c.Selector, c.State, c.Timeout())
		if err != nil || el == nil {
			if err != nil {
				last = err
			}
			r.logger.Debug("selector candidate failed",
				zap.String("selector", c.Selector),
				zap.Int("index", i),
				zap.Error(err))
			continue
		}

		r.logger.Debug("selector candidate matched",
			zap.String("selector", c.Selector),
			zap.Int("index", i))
		return &Match{Element: el, Candidate: c, Index: i}, nil
	}
	return nil, &NoCandidateMatchedError{Attempted: attempted, Last: last}
}

// Maybe is Locate with every failure flattened to nil. Used wherever
// absence is expected and non-fatal.
func (r *Resolver) Maybe(ctx context.Context, root browser.Node, set config.SelectorSet) *Match {
	m, err := r.Locate(ctx, root, set)
	if err != nil {
		return nil
	}
	return m
}
