package scraper

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"table-scraper/internal/browser"
	"table-scraper/internal/config"
)

// numberedLinkWait is how long a numbered paginator waits for the next page
// link to become visible before giving up.
const numberedLinkWait = 3 * time.Second

// Paginator advances to the next page. True means "an advance was attempted,
// re-extract"; false means "no more pages". Failures inside an advance are
// never errors, only false.
type Paginator interface {
	NextPage(ctx context.Context) bool
}

// newPaginator dispatches the tagged config into a concrete strategy once at
// run start. root is the working root (page or frame); page is the page that
// owns it, used for window-level scrolling.
func newPaginator(cfg config.PaginationConfig, root browser.Node, page browser.Page, res *Resolver, logger *zap.Logger) (Paginator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Strategy {
	case config.StrategyNextButton:
		p := &nextButtonPaginator{root: root, res: res, logger: logger}
		if nb := cfg.NextButton; nb != nil {
			p.button = nb.Button
			p.checks = nb.DisabledChecks
		}
		if len(p.checks) == 0 {
			p.checks = []string{config.CheckAriaDisabled, config.CheckPropertyDisabled}
		}
		return p, nil
	case config.StrategyLoadMore:
		p := &loadMorePaginator{root: root, res: res, logger: logger}
		if lm := cfg.LoadMore; lm != nil {
			p.button = lm.Button
		}
		return p, nil
	case config.StrategyNumbered:
		p := &numberedPaginator{
			root:    root,
			res:     res,
			pattern: "a[aria-label='Page {n}']",
			next:    2,
			logger:  logger,
		}
		if n := cfg.Numbered; n != nil {
			p.container = n.Container
			if n.NextPagePattern != "" {
				p.pattern = n.NextPagePattern
			}
			if n.StartFrom > 0 {
				p.next = n.StartFrom
			}
		}
		return p, nil
	case config.StrategyInfiniteScroll:
		p := &infiniteScrollPaginator{
			root:   root,
			page:   page,
			step:   1200,
			idle:   800 * time.Millisecond,
			max:    50,
			logger: logger,
		}
		if is := cfg.InfiniteScroll; is != nil {
			if is.ScrollStepPx > 0 {
				p.step = is.ScrollStepPx
			}
			if is.IdleMs > 0 {
				p.idle = time.Duration(is.IdleMs) * time.Millisecond
			}
			if is.MaxScrolls > 0 {
				p.max = is.MaxScrolls
			}
		}
		return p, nil
	default:
		return nil, &ConfigurationError{Reason: fmt.Sprintf("unknown pagination strategy %q", cfg.Strategy)}
	}
}

type nextButtonPaginator struct {
	root   browser.Node
	res    *Resolver
	button config.SelectorSet
	checks []string
	logger *zap.Logger
}

func (p *nextButtonPaginator) NextPage(ctx context.Context) bool {
	m := p.res.Maybe(ctx, p.root, p.button)
	if m == nil {
		p.logger.Debug("pagination: next button not found")
		return false
	}
	if p.disabled(m.Element) {
		p.logger.Debug("pagination: next button disabled")
		return false
	}
	if err := m.Element.Click(); err != nil {
		p.logger.Debug("pagination: next button click failed", zap.Error(err))
		return false
	}
	return true
}

func (p *nextButtonPaginator) disabled(el browser.Element) bool {
	for _, check := range p.checks {
		switch check {
		case config.CheckPropertyDisabled:
			v, err := el.Property("disabled")
			if err != nil {
				continue
			}
			if b, ok := v.Val().(bool); ok && b {
				return true
			}
		case config.CheckAriaDisabled:
			v, err := el.Attribute("aria-disabled")
			if err == nil && v != nil && strings.EqualFold(*v, "true") {
				return true
			}
		}
	}
	return false
}

type loadMorePaginator struct {
	root   browser.Node
	res    *Resolver
	button config.SelectorSet
	logger *zap.Logger
}

func (p *loadMorePaginator) NextPage(ctx context.Context) bool {
	m := p.res.Maybe(ctx, p.root, p.button)
	if m == nil {
		p.logger.Debug("pagination: load-more button not found")
		return false
	}
	if err := m.Element.Click(); err != nil {
		p.logger.Debug("pagination: load-more click failed", zap.Error(err))
		return false
	}
	return true
}

// numberedPaginator clicks page links built from a pattern with a {n}
// placeholder. The counter advances only after a successful click.
type numberedPaginator struct {
	root      browser.Node
	res       *Resolver
	container config.SelectorSet
	pattern   string
	next      int
	logger    *zap.Logger
}

func (p *numberedPaginator) NextPage(ctx context.Context) bool {
	var root browser.Node = p.root
	if len(p.container.Candidates) > 0 {
		m := p.res.Maybe(ctx, p.root, p.container)
		if m == nil {
			p.logger.Debug("pagination: page-link container not found")
			return false
		}
		root = m.Element
	}
	selector := strings.ReplaceAll(p.pattern, "{n}", strconv.Itoa(p.next))
	link, err := root.WaitFor(ctx, browser.EngineCSS, selector, browser.StateVisible, numberedLinkWait)
	if err != nil || link == nil {
		p.logger.Debug("pagination: page link not visible", zap.String("selector", selector))
		return false
	}
	if err := link.Click(); err != nil {
		p.logger.Debug("pagination: page link click failed", zap.String("selector", selector), zap.Error(err))
		return false
	}
	p.next++
	return true
}

// infiniteScrollPaginator never inspects the DOM to decide termination; it
// stops purely on the attempt cap. Callers combine it with dedupe and row
// limits to bound runs against endless feeds.
type infiniteScrollPaginator struct {
	root   browser.Node
	page   browser.Page
	step   int
	idle   time.Duration
	max    int
	done   int
	logger *zap.Logger
}

func (p *infiniteScrollPaginator) NextPage(ctx context.Context) bool {
	if p.done >= p.max {
		p.logger.Debug("pagination: scroll attempt cap reached", zap.Int("max", p.max))
		return false
	}
	if !p.scroll() {
		return false
	}
	p.done++
	select {
	case <-ctx.Done():
		return false
	case <-time.After(p.idle):
	}
	return true
}

// scroll moves the root element when it has its own scroll container, else
// the window.
func (p *infiniteScrollPaginator) scroll() bool {
	if el, ok := p.root.(browser.Element); ok {
		if _, err := el.Eval(`(step) => this.scrollBy(0, step)`, p.step); err == nil {
			return true
		}
	}
	if p.page == nil {
		return false
	}
	if _, err := p.page.Eval(`(step) => window.scrollBy(0, step)`, p.step); err != nil {
		p.logger.Debug("pagination: scroll failed", zap.Error(err))
		return false
	}
	return true
}
