// Package rod implements the browser capability set on top of go-rod.
package rod

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"table-scraper/internal/browser"
)

var _ browser.Launcher = (*Launcher)(nil)

// Launcher starts Chromium-family browsers through the rod launcher.
type Launcher struct{}

func NewLauncher() *Launcher {
	return &Launcher{}
}

func (Launcher) Launch(ctx context.Context, opts browser.LaunchOptions) (browser.Browser, error) {
	l := launcher.New().
		Headless(opts.Headless).
		NoSandbox(true).
		Delete("use-mock-keychain").
		Set("disable-web-security").
		Set("allow-running-insecure-content").
		Set("disable-setuid-sandbox")
	if opts.BinPath != "" {
		l = l.Bin(opts.BinPath)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if opts.SlowMotion > 0 {
		b = b.SlowMotion(opts.SlowMotion)
	}
	if err := b.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect browser: %w", err)
	}

	return &Browser{browser: b, launcher: l}, nil
}

var _ browser.Browser = (*Browser)(nil)

// Browser wraps one rod browser process together with its launcher so the
// process is killed and its temp data cleaned up on Close.
type Browser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
}

func (b *Browser) NewContext(state *browser.StorageState) (browser.Context, error) {
	inc, err := b.browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("failed to open incognito context: %w", err)
	}
	c := &Context{browser: inc}
	if state != nil {
		if err := c.applyCookies(state.Cookies); err != nil {
			return nil, fmt.Errorf("failed to restore cookies: %w", err)
		}
		c.pendingOrigins = append(c.pendingOrigins, state.Origins...)
	}
	return c, nil
}

func (b *Browser) Close() error {
	err := b.browser.Close()
	if b.launcher != nil {
		b.launcher.Kill()
		b.launcher.Cleanup()
	}
	return err
}

var _ browser.Context = (*Context)(nil)

// Context is an incognito browsing context. Saved localStorage cannot be
// written before a page of the owning origin exists, so restored origins are
// held pending and applied after the first navigation that reaches them.
type Context struct {
	browser        *rod.Browser
	pendingOrigins []browser.OriginState
	pages          []*Page
}

func (c *Context) NewPage(ctx context.Context) (browser.Page, error) {
	p, err := c.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	pg := &Page{page: p.Context(ctx), owner: c}
	c.pages = append(c.pages, pg)
	return pg, nil
}

func (c *Context) StorageState(ctx context.Context) (*browser.StorageState, error) {
	cookies, err := c.browser.GetCookies()
	if err != nil {
		return nil, fmt.Errorf("failed to export cookies: %w", err)
	}
	state := &browser.StorageState{}
	for _, ck := range cookies {
		state.Cookies = append(state.Cookies, browser.Cookie{
			Name:     ck.Name,
			Value:    ck.Value,
			Domain:   ck.Domain,
			Path:     ck.Path,
			Expires:  float64(ck.Expires),
			HTTPOnly: ck.HTTPOnly,
			Secure:   ck.Secure,
			SameSite: string(ck.SameSite),
		})
	}

	seen := make(map[string]bool)
	for _, pg := range c.pages {
		origin := originOf(pg.URL())
		if origin == "" || seen[origin] {
			continue
		}
		items, err := pg.localStorageItems()
		if err != nil {
			// opaque origins (about:blank) have no storage
			continue
		}
		seen[origin] = true
		if len(items) == 0 {
			continue
		}
		state.Origins = append(state.Origins, browser.OriginState{
			Origin:       origin,
			LocalStorage: items,
		})
	}
	return state, nil
}

func (c *Context) Close() error {
	var first error
	for _, pg := range c.pages {
		if err := pg.Close(); err != nil && first == nil {
			first = err
		}
	}
	c.pages = nil
	return first
}

func (c *Context) applyCookies(cookies []browser.Cookie) error {
	if len(cookies) == 0 {
		return nil
	}
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, ck := range cookies {
		p := &proto.NetworkCookieParam{
			Name:     ck.Name,
			Value:    ck.Value,
			Domain:   ck.Domain,
			Path:     ck.Path,
			Secure:   ck.Secure,
			HTTPOnly: ck.HTTPOnly,
		}
		if ck.Expires > 0 {
			p.Expires = proto.TimeSinceEpoch(ck.Expires)
		}
		switch strings.ToLower(ck.SameSite) {
		case "lax":
			p.SameSite = proto.NetworkCookieSameSiteLax
		case "strict":
			p.SameSite = proto.NetworkCookieSameSiteStrict
		case "none":
			p.SameSite = proto.NetworkCookieSameSiteNone
		}
		params = append(params, p)
	}
	return c.browser.SetCookies(params)
}

// takePendingOrigin removes and returns the saved storage for origin, if any.
func (c *Context) takePendingOrigin(origin string) (browser.OriginState, bool) {
	for i, o := range c.pendingOrigins {
		if o.Origin == origin {
			c.pendingOrigins = append(c.pendingOrigins[:i], c.pendingOrigins[i+1:]...)
			return o, true
		}
	}
	return browser.OriginState{}, false
}

func originOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
