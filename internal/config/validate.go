package config

import (
	"fmt"
	"sort"
	"strings"

	"table-scraper/internal/browser"
)

// FieldError names one offending config field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError collects every problem found in a document so authors fix
// a config in one round trip instead of one field at a time.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "invalid config"
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "invalid config: " + strings.Join(parts, "; ")
}

var knownStrategies = map[string]bool{
	StrategyNextButton:     true,
	StrategyLoadMore:       true,
	StrategyNumbered:       true,
	StrategyInfiniteScroll: true,
}

var knownChecks = map[string]bool{
	CheckAriaDisabled:     true,
	CheckPropertyDisabled: true,
}

var knownActions = map[string]bool{
	ActionNavigate: true,
	ActionClick:    true,
	ActionFill:     true,
	ActionSelect:   true,
}

var requiredSelectorKeys = []string{KeyTableContainer, KeyRow, KeyCell}

// Validate checks the whole config and returns a *ValidationError listing
// every offending field, or nil when the job is well formed.
func (c *RunConfig) Validate() error {
	var v ValidationError
	add := func(field, format string, args ...interface{}) {
		v.Fields = append(v.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if c.BaseURL == "" {
		add("base_url", "required")
	}
	switch c.Browser {
	case "chromium", "chrome":
	default:
		add("browser", "unsupported %q (expected chromium or chrome)", c.Browser)
	}

	for _, key := range requiredSelectorKeys {
		if set, ok := c.Selectors[key]; !ok {
			add("selectors."+key, "required selector group missing")
		} else if len(set.Candidates) == 0 {
			add("selectors."+key, "empty candidate list")
		}
	}
	keys := make([]string, 0, len(c.Selectors))
	for key := range c.Selectors {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		validateSet(&v, "selectors."+key, c.Selectors[key])
	}

	validateCandidates(&v, "wait_targets", c.WaitTargets)
	validateCandidates(&v, "spinners_to_hide", c.SpinnersToHide)

	for i, a := range c.PreActions {
		field := fmt.Sprintf("pre_actions[%d]", i)
		if !knownActions[a.Action] {
			add(field+".action", "unknown action %q", a.Action)
			continue
		}
		if a.Action == ActionNavigate && a.URL == "" {
			add(field+".url", "required for navigate")
		}
		if a.Action != ActionNavigate {
			if a.Target == nil || len(a.Target.Candidates) == 0 {
				add(field+".target", "required for %s", a.Action)
			} else {
				validateSet(&v, field+".target", *a.Target)
			}
		}
	}

	if !knownStrategies[c.Pagination.Strategy] {
		add("pagination.strategy", "unknown strategy %q", c.Pagination.Strategy)
	}
	if nb := c.Pagination.NextButton; nb != nil {
		validateSet(&v, "pagination.next_button.button", nb.Button)
		for i, check := range nb.DisabledChecks {
			if !knownChecks[check] {
				add(fmt.Sprintf("pagination.next_button.disabled_checks[%d]", i), "unknown check %q", check)
			}
		}
	}
	if lm := c.Pagination.LoadMore; lm != nil {
		validateSet(&v, "pagination.load_more.button", lm.Button)
	}
	if n := c.Pagination.Numbered; n != nil {
		validateSet(&v, "pagination.numbered.container", n.Container)
		if !strings.Contains(n.NextPagePattern, "{n}") {
			add("pagination.numbered.next_page_pattern", "missing {n} placeholder")
		}
		if n.StartFrom < 1 {
			add("pagination.numbered.start_from", "must be >= 1")
		}
	}
	if is := c.Pagination.InfiniteScroll; is != nil {
		if is.ScrollStepPx < 0 {
			add("pagination.infinite_scroll.scroll_step_px", "must be >= 0")
		}
		if is.IdleMs < 0 {
			add("pagination.infinite_scroll.idle_ms", "must be >= 0")
		}
		if is.MaxScrolls < 0 {
			add("pagination.infinite_scroll.max_scrolls", "must be >= 0")
		}
	}

	if rp := c.RowsPerPage; rp != nil {
		if rp.Control != nil {
			validateSet(&v, "rows_per_page.control", *rp.Control)
		}
		if rp.Value < 0 {
			add("rows_per_page.value", "must be >= 0")
		}
	}

	n := c.Normalization
	if n.MaxPages < 0 {
		add("data_normalization.max_pages", "must be >= 0")
	}
	if n.MaxRows < 0 {
		add("data_normalization.max_rows", "must be >= 0")
	}
	if n.WaitForTableSeconds <= 0 {
		add("data_normalization.wait_for_table_s", "must be > 0")
	}
	if c.Session.AuthTimeoutSeconds <= 0 {
		add("session.auth_timeout_s", "must be > 0")
	}
	if c.RateLimitRPS < 0 {
		add("rate_limit_rps", "must be >= 0")
	}

	if len(v.Fields) > 0 {
		return &v
	}
	return nil
}

func validateSet(v *ValidationError, field string, set SelectorSet) {
	if len(set.Candidates) == 0 {
		v.Fields = append(v.Fields, FieldError{Field: field, Message: "empty candidate list"})
		return
	}
	validateCandidates(v, field+".candidates", set.Candidates)
}

func validateCandidates(v *ValidationError, field string, cands []SelectorCandidate) {
	for i, c := range cands {
		sub := fmt.Sprintf("%s[%d]", field, i)
		if c.Selector == "" {
			v.Fields = append(v.Fields, FieldError{Field: sub + ".selector", Message: "required"})
		}
		switch c.Engine {
		case browser.EngineCSS, browser.EngineXPath:
		default:
			v.Fields = append(v.Fields, FieldError{Field: sub + ".engine", Message: fmt.Sprintf("unknown engine %q", c.Engine)})
		}
		switch c.State {
		case browser.StateAttached, browser.StateVisible, browser.StateHidden:
		default:
			v.Fields = append(v.Fields, FieldError{Field: sub + ".state", Message: fmt.Sprintf("unknown state %q", c.State)})
		}
		if c.TimeoutMs < 0 {
			v.Fields = append(v.Fields, FieldError{Field: sub + ".timeout_ms", Message: "must be >= 0"})
		}
	}
}
