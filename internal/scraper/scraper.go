// Package scraper is the engine: selector resolution with ordered fallbacks,
// pluggable authentication, four pagination strategies, per-page extraction
// and the orchestrating run loop that ties them into one deterministic,
// resumable scrape.
package scraper

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"table-scraper/internal/browser"
	"table-scraper/internal/browser/rod"
	"table-scraper/internal/config"
	"table-scraper/internal/session"
)

const (
	// settleDelay is the fixed pause after a page advance, letting the DOM
	// stabilize before the next read.
	settleDelay = 250 * time.Millisecond
	// frameTimeout bounds each configured frame entry.
	frameTimeout = 30 * time.Second
	// recoveryTableWaitFloor is the minimum budget of the post-recovery
	// table wait.
	recoveryTableWaitFloor = 5 * time.Second
)

// Scraper owns one browser for one run. Construct with New, drive with Run,
// always Close.
type Scraper struct {
	cfg      *config.RunConfig
	logger   *zap.Logger
	res      *Resolver
	auth     AuthStrategy
	store    *session.Store
	launcher browser.Launcher
	limiter  *rate.Limiter
	progress func(page, rows int)

	browser browser.Browser
	bctx    browser.Context
	page    browser.Page
	root    browser.Node
	reused  bool
	closed  bool
}

// Option configures a Scraper at construction.
type Option func(*Scraper)

// WithAuth sets the authentication strategy. Default is NoopAuth.
func WithAuth(a AuthStrategy) Option {
	return func(s *Scraper) {
		if a != nil {
			s.auth = a
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Scraper) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLauncher swaps the browser driver. Default launches through rod.
func WithLauncher(l browser.Launcher) Option {
	return func(s *Scraper) {
		if l != nil {
			s.launcher = l
		}
	}
}

// WithProgress installs a per-page callback fed the page number and the
// total rows collected so far.
func WithProgress(fn func(page, rows int)) Option {
	return func(s *Scraper) { s.progress = fn }
}

// New validates the job, launches the browser and prepares a page. A first
// run with headedOnFirstRun set comes up with a visible window so a human
// can finish login or MFA; once a reusable session exists on disk the
// configured headless flag applies.
func New(ctx context.Context, cfg *config.RunConfig, opts ...Option) (*Scraper, error) {
	s := &Scraper{
		cfg:      cfg,
		logger:   zap.NewNop(),
		auth:     NoopAuth{},
		launcher: rod.NewLauncher(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.res = NewResolver(s.logger)

	for _, key := range []string{config.KeyTableContainer, config.KeyRow, config.KeyCell} {
		if set, ok := cfg.Selectors[key]; !ok || len(set.Candidates) == 0 {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("missing required selector group %q", key)}
		}
	}
	switch cfg.Pagination.Strategy {
	case config.StrategyNextButton, config.StrategyLoadMore, config.StrategyNumbered, config.StrategyInfiniteScroll:
	default:
		return nil, &ConfigurationError{Reason: fmt.Sprintf("unknown pagination strategy %q", cfg.Pagination.Strategy)}
	}

	if cfg.RateLimitRPS > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), 1)
	}
	s.store = session.NewStore(cfg.Session, s.logger)

	headless := cfg.Headless
	if cfg.Session.HeadedOnFirstRun && !(cfg.Session.Reuse && s.store.Exists()) {
		s.logger.Info("no reusable session, forcing headed browser for first run")
		headless = false
	}

	b, err := s.launcher.Launch(ctx, browser.LaunchOptions{Headless: headless})
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	s.browser = b

	bctx, reused, err := s.store.LoadContext(b)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.bctx, s.reused = bctx, reused

	pg, err := bctx.NewPage(ctx)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}
	s.page = pg
	s.root = pg
	return s, nil
}

// Run executes the whole scrape: authenticate, enter frames, wait for
// readiness, then extract and paginate until a stop condition holds.
func (s *Scraper) Run(ctx context.Context) (*Result, error) {
	s.logger.Info("run starting",
		zap.String("url", s.cfg.BaseURL),
		zap.String("strategy", s.cfg.Pagination.Strategy),
		zap.Bool("session_reused", s.reused))

	if err := s.authenticate(ctx); err != nil {
		return nil, err
	}
	if err := s.enterFrames(ctx); err != nil {
		return nil, err
	}
	s.awaitReady(ctx)
	if err := s.awaitTable(ctx); err != nil {
		return nil, err
	}
	return s.collect(ctx)
}

// Close releases the context and browser. Safe to call more than once and on
// every exit path.
func (s *Scraper) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	var first error
	if s.bctx != nil {
		if err := s.bctx.Close(); err != nil {
			first = err
		}
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// authenticate opens the base URL, primes the UI and, when the session was
// not reused and the guard says logged out, runs the auth strategy and polls
// the guard. A confirmed login is persisted; a never-confirmed one is logged
// and the run carries on to fail naturally later if auth truly was required.
func (s *Scraper) authenticate(ctx context.Context) error {
	s.pace(ctx)
	if err := s.page.Goto(ctx, s.cfg.BaseURL); err != nil {
		return fmt.Errorf("open base url: %w", err)
	}
	s.runPreActions(ctx)

	if s.reused || session.IsLoggedIn(ctx, s.page, s.cfg) {
		return nil
	}
	s.logger.Info("not logged in, running auth strategy")
	s.auth.Login(ctx, s.page, s.cfg, s.res)

	confirmed := session.WaitUntil(ctx, func() bool {
		return session.IsLoggedIn(ctx, s.page, s.cfg)
	}, s.cfg.AuthTimeout())
	if !confirmed {
		s.logger.Warn("login never confirmed, continuing unauthenticated",
			zap.Duration("waited", s.cfg.AuthTimeout()))
		return nil
	}
	s.logger.Info("login confirmed")
	if err := s.store.SaveContext(ctx, s.bctx); err != nil {
		return fmt.Errorf("persist session state: %w", err)
	}
	return nil
}

// runPreActions executes the configured priming steps in order. Each step is
// best-effort: a failure is logged and the remaining steps still run.
func (s *Scraper) runPreActions(ctx context.Context) {
	for i, a := range s.cfg.PreActions {
		if err := s.preAction(ctx, a); err != nil {
			s.logger.Warn("pre-action failed",
				zap.Int("index", i),
				zap.String("action", a.Action),
				zap.Error(err))
		}
	}
}

func (s *Scraper) preAction(ctx context.Context, a config.PreAction) error {
	if a.Action == config.ActionNavigate {
		s.pace(ctx)
		return s.page.Goto(ctx, a.URL)
	}
	if a.Target == nil {
		return fmt.Errorf("%s action has no target", a.Action)
	}
	m, err := s.res.Locate(ctx, s.page, *a.Target)
	if err != nil {
		return err
	}
	switch a.Action {
	case config.ActionClick:
		return m.Element.Click()
	case config.ActionFill:
		return m.Element.Fill(a.Value)
	case config.ActionSelect:
		return m.Element.SelectOption(a.Value)
	default:
		return fmt.Errorf("unknown pre-action %q", a.Action)
	}
}

// enterFrames descends into the configured iframes in order; each entry
// replaces the working root with that frame's content root.
func (s *Scraper) enterFrames(ctx context.Context) error {
	s.root = s.page
	for _, f := range s.cfg.Frames {
		cur, ok := s.root.(browser.Page)
		if !ok {
			return fmt.Errorf("frame entry needs a page root")
		}
		var (
			next browser.Page
			err  error
		)
		switch {
		case f.URLSubstring != "":
			next, err = cur.FrameByURL(ctx, f.URLSubstring, frameTimeout)
		case f.Selector != "":
			next, err = cur.FrameBySelector(ctx, f.Selector, frameTimeout)
		default:
			continue
		}
		if err != nil {
			return fmt.Errorf("enter frame: %w", err)
		}
		s.root = next
		s.logger.Info("entered frame",
			zap.String("url_substring", f.URLSubstring),
			zap.String("selector", f.Selector))
	}
	return nil
}

// awaitReady waits for the first readiness target that resolves, asks each
// configured spinner to go hidden, and applies the rows-per-page control.
// All of it is best-effort.
func (s *Scraper) awaitReady(ctx context.Context) {
	for _, c := range s.cfg.WaitTargets {
		el, err := s.root.WaitFor(ctx, c.Engine, c.Selector, c.State, c.Timeout())
		if err == nil && (el != nil || c.State == browser.StateHidden) {
			s.logger.Debug("readiness target resolved", zap.String("selector", c.Selector))
			break
		}
		s.logger.Debug("readiness target failed", zap.String("selector", c.Selector), zap.Error(err))
	}
	for _, c := range s.cfg.SpinnersToHide {
		if _, err := s.root.WaitFor(ctx, c.Engine, c.Selector, browser.StateHidden, c.Timeout()); err != nil {
			s.logger.Debug("spinner still visible", zap.String("selector", c.Selector))
		}
	}
	s.applyRowsPerPage(ctx)
}

// applyRowsPerPage sets the page-size control when one is configured: select
// controls get an option change, text inputs get click+fill+enter.
func (s *Scraper) applyRowsPerPage(ctx context.Context) {
	rp := s.cfg.RowsPerPage
	if rp == nil || rp.Control == nil {
		return
	}
	m := s.res.Maybe(ctx, s.root, *rp.Control)
	if m == nil {
		s.logger.Debug("rows-per-page control not found")
		return
	}
	value := strconv.Itoa(rp.Value)
	var err error
	if tagName(m.Element) == "select" {
		err = m.Element.SelectOption(value)
	} else {
		if err = m.Element.Click(); err == nil {
			if err = m.Element.Fill(value); err == nil {
				err = m.Element.PressEnter()
			}
		}
	}
	if err != nil {
		s.logger.Debug("rows-per-page control failed", zap.Error(err))
		return
	}
	s.logger.Info("rows per page set", zap.String("value", value))
	s.settle(ctx)
}

// awaitTable polls for the table container, re-navigating once on failure
// before giving up with full diagnostics.
func (s *Scraper) awaitTable(ctx context.Context) error {
	wait := s.cfg.WaitForTable()
	if s.tableAppears(ctx, wait) {
		return nil
	}

	s.logger.Warn("table not found, re-navigating once", zap.Duration("waited", wait))
	s.pace(ctx)
	if err := s.page.Goto(ctx, s.cfg.BaseURL); err != nil {
		s.logger.Warn("recovery navigation failed", zap.Error(err))
	} else {
		if err := s.enterFrames(ctx); err != nil {
			s.logger.Warn("recovery frame entry failed", zap.Error(err))
		}
		s.awaitReady(ctx)
	}

	retry := wait / 2
	if retry < recoveryTableWaitFloor {
		retry = recoveryTableWaitFloor
	}
	if s.tableAppears(ctx, retry) {
		return nil
	}

	snippet, screenshot := captureDiagnostics(s.page)
	set := s.cfg.Selectors[config.KeyTableContainer]
	attempted := make([]string, len(set.Candidates))
	for i, c := range set.Candidates {
		attempted[i] = c.Selector
	}
	return &TableNotFoundError{
		Attempted:      attempted,
		Snippet:        snippet,
		ScreenshotPath: screenshot,
	}
}

func (s *Scraper) tableAppears(ctx context.Context, timeout time.Duration) bool {
	set := s.cfg.Selectors[config.KeyTableContainer]
	deadline := time.Now().Add(timeout)
	for {
		if m := s.res.Maybe(ctx, s.root, set); m != nil {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(settleDelay):
		}
	}
}

// collect is the extraction loop: read, dedupe, honor row and page caps,
// advance, settle, repeat. Extraction failures after the first page stop the
// run gracefully with the rows gathered so far.
func (s *Scraper) collect(ctx context.Context) (*Result, error) {
	ext, err := newExtractor(s.cfg, s.root, s.res, s.logger)
	if err != nil {
		return nil, err
	}
	pag, err := newPaginator(s.cfg.Pagination, s.root, s.rootPage(), s.res, s.logger)
	if err != nil {
		return nil, err
	}

	norm := s.cfg.Normalization
	seen := make(map[string]bool)
	var (
		header    []string
		rows      [][]string
		pageCount int
	)

	for {
		pageCount++
		s.logger.Info("reading page", zap.Int("page", pageCount), zap.Int("rows_so_far", len(rows)))

		pageHeader, pageRows, err := ext.readPage(ctx)
		if err != nil {
			s.logger.Warn("extraction failed, stopping with collected rows",
				zap.Int("page", pageCount),
				zap.Error(err))
			break
		}
		if header == nil && len(pageHeader) > 0 {
			header = pageHeader
		}

		capped := false
		for _, row := range pageRows {
			if norm.DedupeRows {
				key := strings.Join(row, "\x1f")
				if seen[key] {
					continue
				}
				seen[key] = true
			}
			rows = append(rows, row)
			if norm.MaxRows > 0 && len(rows) >= norm.MaxRows {
				capped = true
				break
			}
		}
		if s.progress != nil {
			s.progress(pageCount, len(rows))
		}

		if capped {
			s.logger.Info("row limit reached", zap.Int("max_rows", norm.MaxRows))
			break
		}
		if norm.MaxPages > 0 && pageCount >= norm.MaxPages {
			s.logger.Info("page limit reached", zap.Int("max_pages", norm.MaxPages))
			break
		}

		s.pace(ctx)
		if !pag.NextPage(ctx) {
			s.logger.Info("no further pages", zap.Int("pages", pageCount))
			break
		}
		s.settle(ctx)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	result := newResult(header, rows, pageCount)
	s.logger.Info("run complete",
		zap.Int("pages", result.PageCount),
		zap.Int("rows", len(result.Rows)),
		zap.Int("cols", result.Width()))
	return result, nil
}

// rootPage returns the page that owns the working root, for window-level
// operations.
func (s *Scraper) rootPage() browser.Page {
	if pg, ok := s.root.(browser.Page); ok {
		return pg
	}
	return s.page
}

func (s *Scraper) settle(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(settleDelay):
	}
}

func (s *Scraper) pace(ctx context.Context) {
	if s.limiter != nil {
		_ = s.limiter.Wait(ctx)
	}
}

func tagName(el browser.Element) string {
	v, err := el.Eval(`() => this.tagName.toLowerCase()`)
	if err != nil {
		return ""
	}
	return v.Str()
}
