// Package config holds the typed scrape-job model and its document loader.
// A job is authored as JSON or YAML, decoded onto defaults, then validated
// in one pass before any browser work starts.
package config

import (
	"time"

	"table-scraper/internal/browser"
)

// Well-known selector map keys. table_container, row and cell are required
// for every job; the rest are optional.
const (
	KeyTableContainer = "table_container"
	KeyHeaderCells    = "header_cells"
	KeyRow            = "row"
	KeyCell           = "cell"
	KeyLoggedInGuard  = "logged_in_guard"
	KeySSOEmail       = "ms_email"
	KeySSONext        = "ms_next"
	KeySSOPassword    = "ms_password"
	KeySSOSignin      = "ms_signin"
	KeySSOAppSignin   = "ms_app_signin"
)

// Pagination strategy tags.
const (
	StrategyNextButton     = "next_button"
	StrategyLoadMore       = "load_more"
	StrategyNumbered       = "numbered"
	StrategyInfiniteScroll = "infinite_scroll"
)

// Disabled-state checks for the next_button strategy.
const (
	CheckAriaDisabled     = "aria_disabled"
	CheckPropertyDisabled = "property_disabled"
)

// Pre-action verbs.
const (
	ActionNavigate = "navigate"
	ActionClick    = "click"
	ActionFill     = "fill"
	ActionSelect   = "select"
)

// SelectorCandidate is one concrete rule for locating an element: query
// engine, pattern, required DOM state and a wait budget.
type SelectorCandidate struct {
	Selector      string          `json:"selector" yaml:"selector"`
	Engine        browser.Engine  `json:"engine,omitempty" yaml:"engine,omitempty"`
	State         browser.State   `json:"state,omitempty" yaml:"state,omitempty"`
	TimeoutMs     int             `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
	AllowUnstable bool            `json:"allow_unstable,omitempty" yaml:"allow_unstable,omitempty"`
	MultiMatch    bool            `json:"multi_match,omitempty" yaml:"multi_match,omitempty"`
}

// Timeout returns the candidate's wait budget as a duration.
func (c SelectorCandidate) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// SelectorSet is an ordered fallback list; the first candidate that resolves
// wins, so order is semantically significant.
type SelectorSet struct {
	Candidates []SelectorCandidate `json:"candidates" yaml:"candidates"`
}

// PaginationConfig is a tagged union: Strategy names the active variant and
// the matching payload carries its parameters. Payloads for other variants
// are ignored.
type PaginationConfig struct {
	Strategy       string                `json:"strategy" yaml:"strategy"`
	NextButton     *NextButtonConfig     `json:"next_button,omitempty" yaml:"next_button,omitempty"`
	LoadMore       *LoadMoreConfig       `json:"load_more,omitempty" yaml:"load_more,omitempty"`
	Numbered       *NumberedConfig       `json:"numbered,omitempty" yaml:"numbered,omitempty"`
	InfiniteScroll *InfiniteScrollConfig `json:"infinite_scroll,omitempty" yaml:"infinite_scroll,omitempty"`
}

type NextButtonConfig struct {
	Button         SelectorSet `json:"button" yaml:"button"`
	DisabledChecks []string    `json:"disabled_checks,omitempty" yaml:"disabled_checks,omitempty"`
}

type LoadMoreConfig struct {
	Button SelectorSet `json:"button" yaml:"button"`
}

type NumberedConfig struct {
	Container       SelectorSet `json:"container" yaml:"container"`
	NextPagePattern string      `json:"next_page_pattern,omitempty" yaml:"next_page_pattern,omitempty"`
	StartFrom       int         `json:"start_from,omitempty" yaml:"start_from,omitempty"`
}

type InfiniteScrollConfig struct {
	ScrollStepPx int `json:"scroll_step_px,omitempty" yaml:"scroll_step_px,omitempty"`
	IdleMs       int `json:"idle_ms,omitempty" yaml:"idle_ms,omitempty"`
	MaxScrolls   int `json:"max_scrolls,omitempty" yaml:"max_scrolls,omitempty"`
}

// SessionConfig drives storage-state reuse and the headed-first-run escape
// hatch for manual or MFA logins.
type SessionConfig struct {
	Path               string `json:"path,omitempty" yaml:"path,omitempty"`
	User               string `json:"user,omitempty" yaml:"user,omitempty"`
	SiteHost           string `json:"site_host,omitempty" yaml:"site_host,omitempty"`
	Reuse              bool   `json:"reuse" yaml:"reuse"`
	SaveOnSuccess      bool   `json:"save_on_success" yaml:"save_on_success"`
	AuthTimeoutSeconds int    `json:"auth_timeout_s,omitempty" yaml:"auth_timeout_s,omitempty"`
	HeadedOnFirstRun   bool   `json:"headed_on_first_run" yaml:"headed_on_first_run"`
}

// FrameEntry descends into an iframe, either by a substring of its src URL
// or by a CSS selector. Exactly one of the two should be set.
type FrameEntry struct {
	URLSubstring string `json:"url_substring,omitempty" yaml:"url_substring,omitempty"`
	Selector     string `json:"selector,omitempty" yaml:"selector,omitempty"`
}

// PreAction is one best-effort UI priming step executed after the initial
// navigation and before authentication.
type PreAction struct {
	Action string       `json:"action" yaml:"action"`
	URL    string       `json:"url,omitempty" yaml:"url,omitempty"`
	Target *SelectorSet `json:"target,omitempty" yaml:"target,omitempty"`
	Value  string       `json:"value,omitempty" yaml:"value,omitempty"`
}

// RowsPerPage configures the optional page-size control.
type RowsPerPage struct {
	Control *SelectorSet `json:"control,omitempty" yaml:"control,omitempty"`
	Value   int          `json:"value,omitempty" yaml:"value,omitempty"`
}

// Normalization holds the extraction and loop-termination switches.
type Normalization struct {
	TrimWhitespace      bool `json:"trim_whitespace" yaml:"trim_whitespace"`
	CollapseSpaces      bool `json:"collapse_spaces" yaml:"collapse_spaces"`
	DedupeRows          bool `json:"dedupe_rows" yaml:"dedupe_rows"`
	MaxPages            int  `json:"max_pages,omitempty" yaml:"max_pages,omitempty"`
	MaxRows             int  `json:"max_rows,omitempty" yaml:"max_rows,omitempty"`
	WaitForTableSeconds int  `json:"wait_for_table_s,omitempty" yaml:"wait_for_table_s,omitempty"`
}

// RunConfig is the full description of one scrape job. It is created once
// from a document and never mutated mid-run, except by ForceHeadless at a
// server boundary.
type RunConfig struct {
	Browser        string                 `json:"browser,omitempty" yaml:"browser,omitempty"`
	Headless       bool                   `json:"headless" yaml:"headless"`
	BaseURL        string                 `json:"base_url" yaml:"base_url"`
	Session        SessionConfig          `json:"session" yaml:"session"`
	Frames         []FrameEntry           `json:"frames,omitempty" yaml:"frames,omitempty"`
	WaitTargets    []SelectorCandidate    `json:"wait_targets,omitempty" yaml:"wait_targets,omitempty"`
	SpinnersToHide []SelectorCandidate    `json:"spinners_to_hide,omitempty" yaml:"spinners_to_hide,omitempty"`
	PreActions     []PreAction            `json:"pre_actions,omitempty" yaml:"pre_actions,omitempty"`
	Selectors      map[string]SelectorSet `json:"selectors" yaml:"selectors"`
	RowsPerPage    *RowsPerPage           `json:"rows_per_page,omitempty" yaml:"rows_per_page,omitempty"`
	Pagination     PaginationConfig       `json:"pagination" yaml:"pagination"`
	Normalization  Normalization          `json:"data_normalization" yaml:"data_normalization"`
	RateLimitRPS   float64                `json:"rate_limit_rps,omitempty" yaml:"rate_limit_rps,omitempty"`
}

// Default returns a RunConfig with every defaulted field prefilled. Loaders
// decode documents on top of it so absent fields keep their defaults.
func Default() RunConfig {
	return RunConfig{
		Browser:  "chromium",
		Headless: true,
		Session: SessionConfig{
			Reuse:              true,
			SaveOnSuccess:      true,
			AuthTimeoutSeconds: 180,
			HeadedOnFirstRun:   true,
		},
		Pagination: PaginationConfig{
			Strategy: StrategyNextButton,
		},
		Normalization: Normalization{
			TrimWhitespace:      true,
			CollapseSpaces:      true,
			DedupeRows:          true,
			WaitForTableSeconds: 20,
		},
	}
}

// ForceHeadless makes the job safe to run inside a service: no visible
// window, no first-run headed escape hatch.
func (c *RunConfig) ForceHeadless() {
	c.Headless = true
	c.Session.HeadedOnFirstRun = false
}

// AuthTimeout returns the login-guard poll budget as a duration.
func (c *RunConfig) AuthTimeout() time.Duration {
	return time.Duration(c.Session.AuthTimeoutSeconds) * time.Second
}

// WaitForTable returns the table-wait budget as a duration.
func (c *RunConfig) WaitForTable() time.Duration {
	return time.Duration(c.Normalization.WaitForTableSeconds) * time.Second
}
