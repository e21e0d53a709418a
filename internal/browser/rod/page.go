package rod

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"table-scraper/internal/browser"
)

// pollInterval is the step used by state waits.
const pollInterval = 100 * time.Millisecond

var _ browser.Page = (*Page)(nil)

// Page wraps a rod page or frame root. owner is nil for frame roots.
type Page struct {
	page  *rod.Page
	owner *Context
}

func (p *Page) Goto(ctx context.Context, target string) error {
	pg := p.page.Context(ctx)
	if err := pg.Navigate(target); err != nil {
		return fmt.Errorf("navigation failed: %s: %w", target, err)
	}
	if err := pg.WaitLoad(); err != nil {
		return fmt.Errorf("load wait failed: %s: %w", target, err)
	}
	p.restoreStorage()
	return nil
}

func (p *Page) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (p *Page) Content() (string, error) {
	html, err := p.page.HTML()
	if err != nil {
		return "", fmt.Errorf("failed to get HTML: %w", err)
	}
	return html, nil
}

func (p *Page) Screenshot() ([]byte, error) {
	data, err := p.page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: gson.Int(80),
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return data, nil
}

func (p *Page) Eval(js string, args ...interface{}) (gson.JSON, error) {
	res, err := p.page.Eval(js, args...)
	if err != nil {
		return gson.New(nil), err
	}
	return res.Value, nil
}

func (p *Page) Find(engine browser.Engine, selector string) (browser.Element, error) {
	els, err := p.FindAll(engine, selector)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, browser.ErrNoMatch
	}
	return els[0], nil
}

func (p *Page) FindAll(engine browser.Engine, selector string) ([]browser.Element, error) {
	var (
		els rod.Elements
		err error
	)
	if engine == browser.EngineXPath {
		els, err = p.page.ElementsX(selector)
	} else {
		els, err = p.page.Elements(selector)
	}
	if err != nil {
		return nil, fmt.Errorf("query failed: %s: %w", selector, err)
	}
	return wrapElements(els), nil
}

func (p *Page) Count(engine browser.Engine, selector string) (int, error) {
	els, err := p.FindAll(engine, selector)
	if err != nil {
		return 0, err
	}
	return len(els), nil
}

func (p *Page) WaitFor(ctx context.Context, engine browser.Engine, selector string, state browser.State, timeout time.Duration) (browser.Element, error) {
	return waitFor(ctx, p, engine, selector, state, timeout)
}

func (p *Page) FrameByURL(ctx context.Context, substr string, timeout time.Duration) (browser.Page, error) {
	return p.FrameBySelector(ctx, fmt.Sprintf("iframe[src*='%s']", substr), timeout)
}

func (p *Page) FrameBySelector(ctx context.Context, selector string, timeout time.Duration) (browser.Page, error) {
	el, err := p.WaitFor(ctx, browser.EngineCSS, selector, browser.StateAttached, timeout)
	if err != nil {
		return nil, fmt.Errorf("frame not found: %s: %w", selector, err)
	}
	fe, ok := el.(*Element)
	if !ok || fe == nil {
		return nil, fmt.Errorf("frame not found: %s", selector)
	}
	fp, err := fe.el.Frame()
	if err != nil {
		return nil, fmt.Errorf("failed to enter frame: %s: %w", selector, err)
	}
	return &Page{page: fp}, nil
}

func (p *Page) Close() error {
	return p.page.Close()
}

// restoreStorage writes any pending saved localStorage for the page's
// current origin. Called after navigations; origins are applied once.
func (p *Page) restoreStorage() {
	if p.owner == nil {
		return
	}
	origin := originOf(p.URL())
	if origin == "" {
		return
	}
	saved, ok := p.owner.takePendingOrigin(origin)
	if !ok {
		return
	}
	for _, item := range saved.LocalStorage {
		_, _ = p.page.Eval(`(k, v) => localStorage.setItem(k, v)`, item.Name, item.Value)
	}
}

func (p *Page) localStorageItems() ([]browser.LocalStorageItem, error) {
	res, err := p.page.Eval(`() => {
		const items = [];
		for (let i = 0; i < localStorage.length; i++) {
			const k = localStorage.key(i);
			items.push({ name: k, value: localStorage.getItem(k) });
		}
		return items;
	}`)
	if err != nil {
		return nil, err
	}
	var items []browser.LocalStorageItem
	for _, it := range res.Value.Arr() {
		items = append(items, browser.LocalStorageItem{
			Name:  it.Get("name").Str(),
			Value: it.Get("value").Str(),
		})
	}
	return items, nil
}

// queryRoot is the shared query surface of pages and elements.
type queryRoot interface {
	Find(engine browser.Engine, selector string) (browser.Element, error)
}

// waitFor polls immediate queries until the wanted state holds. Polling over
// fresh queries keeps the semantics exact for elements that are re-rendered
// between checks.
func waitFor(ctx context.Context, root queryRoot, engine browser.Engine, selector string, state browser.State, timeout time.Duration) (browser.Element, error) {
	deadline := time.Now().Add(timeout)
	for {
		el, err := root.Find(engine, selector)
		switch state {
		case browser.StateHidden:
			if err != nil || el == nil {
				return nil, nil
			}
			if vis, verr := el.Visible(); verr == nil && !vis {
				return el, nil
			}
		case browser.StateVisible:
			if err == nil && el != nil {
				if vis, verr := el.Visible(); verr == nil && vis {
					return el, nil
				}
			}
		default:
			if err == nil && el != nil {
				return el, nil
			}
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("wait for %s %q (%s): %w", engine, selector, state, browser.ErrWaitTimeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func wrapElements(els rod.Elements) []browser.Element {
	out := make([]browser.Element, len(els))
	for i, el := range els {
		out[i] = &Element{el: el}
	}
	return out
}
