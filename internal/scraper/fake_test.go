package scraper

// In-memory browser driver for engine tests. Queries hit a selector-keyed
// element map and state waits resolve against the current map immediately,
// so tests never wait on wall-clock timeouts. Click handlers mutate the map
// synchronously, which is how tests model page transitions.

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ysmood/gson"

	"table-scraper/internal/browser"
	"table-scraper/internal/config"
)

type fakeLauncher struct {
	browser   *fakeBrowser
	opts      browser.LaunchOptions
	launchErr error
}

func (l *fakeLauncher) Launch(ctx context.Context, opts browser.LaunchOptions) (browser.Browser, error) {
	l.opts = opts
	if l.launchErr != nil {
		return nil, l.launchErr
	}
	return l.browser, nil
}

type fakeBrowser struct {
	page   *fakePage
	seed   *browser.StorageState
	state  *browser.StorageState
	ctxErr error
	closed bool
}

func (b *fakeBrowser) NewContext(state *browser.StorageState) (browser.Context, error) {
	b.seed = state
	if b.ctxErr != nil {
		return nil, b.ctxErr
	}
	return &fakeContext{browser: b}, nil
}

func (b *fakeBrowser) Close() error {
	b.closed = true
	return nil
}

type fakeContext struct {
	browser  *fakeBrowser
	stateErr error
	exports  int
	closed   bool
}

func (c *fakeContext) NewPage(ctx context.Context) (browser.Page, error) {
	return c.browser.page, nil
}

func (c *fakeContext) StorageState(ctx context.Context) (*browser.StorageState, error) {
	c.exports++
	if c.stateErr != nil {
		return nil, c.stateErr
	}
	if c.browser.state != nil {
		return c.browser.state, nil
	}
	return &browser.StorageState{}, nil
}

func (c *fakeContext) Close() error {
	c.closed = true
	return nil
}

// fakeDOM is the shared query surface of fake pages and fake elements.
// Elements are registered per selector; both engines share one namespace.
type fakeDOM struct {
	mu    sync.Mutex
	nodes map[string][]*fakeElement
}

func (d *fakeDOM) set(selector string, els ...*fakeElement) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.nodes == nil {
		d.nodes = make(map[string][]*fakeElement)
	}
	d.nodes[selector] = els
}

func (d *fakeDOM) remove(selector string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.nodes, selector)
}

func (d *fakeDOM) lookup(selector string) []*fakeElement {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.nodes[selector]
}

func (d *fakeDOM) Find(engine browser.Engine, selector string) (browser.Element, error) {
	els := d.lookup(selector)
	if len(els) == 0 {
		return nil, browser.ErrNoMatch
	}
	return els[0], nil
}

func (d *fakeDOM) FindAll(engine browser.Engine, selector string) ([]browser.Element, error) {
	els := d.lookup(selector)
	out := make([]browser.Element, len(els))
	for i, el := range els {
		out[i] = el
	}
	return out, nil
}

func (d *fakeDOM) Count(engine browser.Engine, selector string) (int, error) {
	return len(d.lookup(selector)), nil
}

// WaitFor resolves against the current map without sleeping: handlers mutate
// the DOM synchronously, so a state that does not hold now never will.
func (d *fakeDOM) WaitFor(ctx context.Context, engine browser.Engine, selector string, state browser.State, timeout time.Duration) (browser.Element, error) {
	els := d.lookup(selector)
	switch state {
	case browser.StateHidden:
		if len(els) == 0 {
			return nil, nil
		}
		if !els[0].visible {
			return els[0], nil
		}
		return nil, fmt.Errorf("wait for %q (hidden): %w", selector, browser.ErrWaitTimeout)
	case browser.StateVisible:
		for _, el := range els {
			if el.visible {
				return el, nil
			}
		}
		return nil, fmt.Errorf("wait for %q (visible): %w", selector, browser.ErrWaitTimeout)
	default:
		if len(els) > 0 {
			return els[0], nil
		}
		return nil, fmt.Errorf("wait for %q (attached): %w", selector, browser.ErrWaitTimeout)
	}
}

type fakePage struct {
	fakeDOM
	url     string
	html    string
	shot    []byte
	shotErr error
	gotos   []string
	evals   []string
	onGoto  func(url string)
	gotoErr error
	frames  map[string]*fakePage
	closed  bool
}

func newFakePage() *fakePage {
	return &fakePage{url: "about:blank"}
}

func (p *fakePage) Goto(ctx context.Context, target string) error {
	p.gotos = append(p.gotos, target)
	if p.gotoErr != nil {
		return p.gotoErr
	}
	p.url = target
	if p.onGoto != nil {
		p.onGoto(target)
	}
	return nil
}

func (p *fakePage) URL() string { return p.url }

func (p *fakePage) Content() (string, error) { return p.html, nil }

func (p *fakePage) Screenshot() ([]byte, error) {
	if p.shotErr != nil {
		return nil, p.shotErr
	}
	return p.shot, nil
}

func (p *fakePage) Eval(js string, args ...interface{}) (gson.JSON, error) {
	p.evals = append(p.evals, js)
	return gson.New(nil), nil
}

func (p *fakePage) FrameByURL(ctx context.Context, substr string, timeout time.Duration) (browser.Page, error) {
	if f, ok := p.frames[substr]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("frame not found: %s: %w", substr, browser.ErrWaitTimeout)
}

func (p *fakePage) FrameBySelector(ctx context.Context, selector string, timeout time.Duration) (browser.Page, error) {
	if f, ok := p.frames[selector]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("frame not found: %s: %w", selector, browser.ErrWaitTimeout)
}

func (p *fakePage) Close() error {
	p.closed = true
	return nil
}

type fakeElement struct {
	fakeDOM
	tag      string
	text     string
	attrs    map[string]string
	props    map[string]interface{}
	visible  bool
	clicks   int
	filled   []string
	selected []string
	enters   int
	onClick  func()
	clickErr error
	evalFn   func(js string, args ...interface{}) (gson.JSON, error)
}

func el(text string) *fakeElement {
	return &fakeElement{text: text, visible: true}
}

func (e *fakeElement) Click() error {
	e.clicks++
	if e.clickErr != nil {
		return e.clickErr
	}
	if e.onClick != nil {
		e.onClick()
	}
	return nil
}

func (e *fakeElement) Fill(text string) error {
	e.filled = append(e.filled, text)
	return nil
}

func (e *fakeElement) SelectOption(value string) error {
	e.selected = append(e.selected, value)
	return nil
}

func (e *fakeElement) PressEnter() error {
	e.enters++
	return nil
}

func (e *fakeElement) Text() (string, error) { return e.text, nil }

func (e *fakeElement) Attribute(name string) (*string, error) {
	if v, ok := e.attrs[name]; ok {
		return &v, nil
	}
	return nil, nil
}

func (e *fakeElement) Property(name string) (gson.JSON, error) {
	return gson.New(e.props[name]), nil
}

func (e *fakeElement) Eval(js string, args ...interface{}) (gson.JSON, error) {
	if e.evalFn != nil {
		return e.evalFn(js, args...)
	}
	if strings.Contains(js, "tagName") {
		return gson.New(e.tag), nil
	}
	return gson.New(nil), nil
}

func (e *fakeElement) Visible() (bool, error) { return e.visible, nil }

// css builds a candidate with an instant-resolving budget; the fake never
// sleeps, but a small timeout keeps any accidental real-driver use bounded.
func css(selector string) config.SelectorCandidate {
	return config.SelectorCandidate{
		Selector:  selector,
		Engine:    browser.EngineCSS,
		State:     browser.StateAttached,
		TimeoutMs: 50,
	}
}

func selSet(selectors ...string) config.SelectorSet {
	set := config.SelectorSet{}
	for _, s := range selectors {
		set.Candidates = append(set.Candidates, css(s))
	}
	return set
}

var (
	_ browser.Launcher = (*fakeLauncher)(nil)
	_ browser.Browser  = (*fakeBrowser)(nil)
	_ browser.Context  = (*fakeContext)(nil)
	_ browser.Page     = (*fakePage)(nil)
	_ browser.Element  = (*fakeElement)(nil)
)
