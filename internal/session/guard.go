package session

import (
	"context"
	"strings"
	"time"

	"table-scraper/internal/browser"
	"table-scraper/internal/config"
)

// identityHosts are the known identity-provider domains of the built-in SSO
// flow. A page on any of them is mid-login, not logged in.
var identityHosts = []string{
	"login.microsoftonline.com",
	"login.live.com",
	"login.microsoft.com",
}

// guardPoll is the step used by WaitUntil and the guard's visibility wait.
const (
	guardPoll    = 250 * time.Millisecond
	guardTimeout = 1 * time.Second
)

// IsIdentityHost reports whether the URL points at a known identity
// provider.
func IsIdentityHost(rawURL string) bool {
	u := strings.ToLower(rawURL)
	for _, host := range identityHosts {
		if strings.Contains(u, host) {
			return true
		}
	}
	return false
}

// IsLoggedIn decides whether the page is in an authenticated state. A
// configured logged-in guard selector is authoritative: its first candidate
// must become visible within a short window. Without one, the URL heuristic
// applies: off the identity provider and on the configured site host.
func IsLoggedIn(ctx context.Context, pg browser.Page, cfg *config.RunConfig) bool {
	if set, ok := cfg.Selectors[config.KeyLoggedInGuard]; ok && len(set.Candidates) > 0 {
		c := set.Candidates[0]
		el, err := pg.WaitFor(ctx, c.Engine, c.Selector, browser.StateVisible, guardTimeout)
		return err == nil && el != nil
	}
	u := pg.URL()
	if IsIdentityHost(u) {
		return false
	}
	return cfg.Session.SiteHost != "" && strings.Contains(u, cfg.Session.SiteHost)
}

// WaitUntil polls pred until it holds or the timeout elapses.
func WaitUntil(ctx context.Context, pred func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if pred() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(guardPoll):
		}
	}
}
