package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"table-scraper/internal/browser"
)

// Document formats accepted by Parse.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Load reads a job document from disk, picking the format by file extension
// (.yaml/.yml or .json), and returns a normalized, validated RunConfig.
func Load(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	format := FormatJSON
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = FormatYAML
	}
	cfg, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a document onto defaults, fills derived fields and validates.
// The returned error is a *ValidationError when the document decoded but
// described an invalid job.
func Parse(data []byte, format string) (*RunConfig, error) {
	cfg := Default()
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config format %q", format)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalize fills per-candidate defaults and derived fields after decoding.
func (c *RunConfig) normalize() {
	for key, set := range c.Selectors {
		normalizeSet(&set)
		c.Selectors[key] = set
	}
	normalizeCandidates(c.WaitTargets)
	normalizeCandidates(c.SpinnersToHide)
	for i := range c.PreActions {
		if c.PreActions[i].Target != nil {
			normalizeSet(c.PreActions[i].Target)
		}
	}

	if nb := c.Pagination.NextButton; nb != nil {
		normalizeSet(&nb.Button)
		if len(nb.DisabledChecks) == 0 {
			nb.DisabledChecks = []string{CheckAriaDisabled, CheckPropertyDisabled}
		}
	}
	if lm := c.Pagination.LoadMore; lm != nil {
		normalizeSet(&lm.Button)
	}
	if n := c.Pagination.Numbered; n != nil {
		normalizeSet(&n.Container)
		if n.NextPagePattern == "" {
			n.NextPagePattern = "a[aria-label='Page {n}']"
		}
		if n.StartFrom == 0 {
			n.StartFrom = 2
		}
	}
	if is := c.Pagination.InfiniteScroll; is != nil {
		if is.ScrollStepPx == 0 {
			is.ScrollStepPx = 1200
		}
		if is.IdleMs == 0 {
			is.IdleMs = 800
		}
		if is.MaxScrolls == 0 {
			is.MaxScrolls = 50
		}
	}

	if rp := c.RowsPerPage; rp != nil {
		if rp.Control != nil {
			normalizeSet(rp.Control)
		}
		if rp.Value == 0 {
			rp.Value = 100
		}
	}

	if c.Session.SiteHost == "" && c.BaseURL != "" {
		if u, err := url.Parse(c.BaseURL); err == nil {
			c.Session.SiteHost = u.Host
		}
	}
}

func normalizeSet(set *SelectorSet) {
	normalizeCandidates(set.Candidates)
}

func normalizeCandidates(cands []SelectorCandidate) {
	for i := range cands {
		if cands[i].Engine == "" {
			cands[i].Engine = browser.EngineCSS
		}
		if cands[i].State == "" {
			cands[i].State = browser.StateAttached
		}
		if cands[i].TimeoutMs == 0 {
			cands[i].TimeoutMs = 10000
		}
	}
}
