package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/ysmood/gson"

	"table-scraper/internal/browser"
	"table-scraper/internal/config"
)

// stubPage satisfies browser.Page with just enough behavior for the guard
// checks: a current URL and a set of visible selectors.
type stubPage struct {
	url     string
	visible map[string]bool
}

func (p *stubPage) Find(engine browser.Engine, selector string) (browser.Element, error) {
	return nil, browser.ErrNoMatch
}

func (p *stubPage) FindAll(engine browser.Engine, selector string) ([]browser.Element, error) {
	return nil, nil
}

func (p *stubPage) Count(engine browser.Engine, selector string) (int, error) { return 0, nil }

func (p *stubPage) WaitFor(ctx context.Context, engine browser.Engine, selector string, state browser.State, timeout time.Duration) (browser.Element, error) {
	if p.visible[selector] {
		return stubElement{}, nil
	}
	return nil, browser.ErrWaitTimeout
}

func (p *stubPage) Goto(ctx context.Context, url string) error { p.url = url; return nil }
func (p *stubPage) URL() string                                { return p.url }
func (p *stubPage) Content() (string, error)                   { return "", nil }
func (p *stubPage) Screenshot() ([]byte, error)                { return nil, nil }
func (p *stubPage) Eval(js string, args ...interface{}) (gson.JSON, error) {
	return gson.New(nil), nil
}
func (p *stubPage) FrameByURL(ctx context.Context, substr string, timeout time.Duration) (browser.Page, error) {
	return nil, browser.ErrNoMatch
}
func (p *stubPage) FrameBySelector(ctx context.Context, selector string, timeout time.Duration) (browser.Page, error) {
	return nil, browser.ErrNoMatch
}
func (p *stubPage) Close() error { return nil }

type stubElement struct{}

func (stubElement) Find(browser.Engine, string) (browser.Element, error)        { return nil, browser.ErrNoMatch }
func (stubElement) FindAll(browser.Engine, string) ([]browser.Element, error)   { return nil, nil }
func (stubElement) Count(browser.Engine, string) (int, error)                   { return 0, nil }
func (stubElement) WaitFor(context.Context, browser.Engine, string, browser.State, time.Duration) (browser.Element, error) {
	return nil, browser.ErrWaitTimeout
}
func (stubElement) Click() error                                 { return nil }
func (stubElement) Fill(string) error                            { return nil }
func (stubElement) SelectOption(string) error                    { return nil }
func (stubElement) PressEnter() error                            { return nil }
func (stubElement) Text() (string, error)                        { return "", nil }
func (stubElement) Attribute(string) (*string, error)            { return nil, nil }
func (stubElement) Property(string) (gson.JSON, error)           { return gson.New(nil), nil }
func (stubElement) Eval(string, ...interface{}) (gson.JSON, error) {
	return gson.New(nil), nil
}
func (stubElement) Visible() (bool, error) { return true, nil }

var (
	_ browser.Page    = (*stubPage)(nil)
	_ browser.Element = stubElement{}
)

func TestIsIdentityHost(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected bool
	}{
		{"microsoftonline", "https://login.microsoftonline.com/common/oauth2/authorize", true},
		{"live", "https://login.live.com/login.srf", true},
		{"microsoft", "https://login.microsoft.com/", true},
		{"mixed case", "https://LOGIN.MICROSOFTONLINE.COM/tenant", true},
		{"application", "https://app.example.com/reports", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsIdentityHost(tt.url))
		})
	}
}

func guardConfig(siteHost string, withGuard bool) *config.RunConfig {
	cfg := config.Default()
	cfg.Session.SiteHost = siteHost
	if withGuard {
		cfg.Selectors = map[string]config.SelectorSet{
			config.KeyLoggedInGuard: {Candidates: []config.SelectorCandidate{{
				Selector: "#avatar",
				Engine:   browser.EngineCSS,
				State:    browser.StateVisible,
			}}},
		}
	}
	return &cfg
}

func TestIsLoggedIn_GuardAuthoritative(t *testing.T) {
	ctx := context.Background()

	pg := &stubPage{url: "https://app.example.com/home", visible: map[string]bool{"#avatar": true}}
	assert.True(t, IsLoggedIn(ctx, pg, guardConfig("app.example.com", true)))

	// on the right host but the guard is missing: not logged in
	pg = &stubPage{url: "https://app.example.com/home"}
	assert.False(t, IsLoggedIn(ctx, pg, guardConfig("app.example.com", true)))

	// guard visible wins even on an odd URL
	pg = &stubPage{url: "https://cdn.example.net/shell", visible: map[string]bool{"#avatar": true}}
	assert.True(t, IsLoggedIn(ctx, pg, guardConfig("app.example.com", true)))
}

func TestIsLoggedIn_URLHeuristic(t *testing.T) {
	ctx := context.Background()

	pg := &stubPage{url: "https://login.microsoftonline.com/common"}
	assert.False(t, IsLoggedIn(ctx, pg, guardConfig("app.example.com", false)))

	pg = &stubPage{url: "https://app.example.com/reports"}
	assert.True(t, IsLoggedIn(ctx, pg, guardConfig("app.example.com", false)))

	pg = &stubPage{url: "https://elsewhere.example.org/"}
	assert.False(t, IsLoggedIn(ctx, pg, guardConfig("app.example.com", false)))

	// no host to compare against: never logged in by URL alone
	pg = &stubPage{url: "https://app.example.com/reports"}
	assert.False(t, IsLoggedIn(ctx, pg, guardConfig("", false)))
}

func TestWaitUntil(t *testing.T) {
	ctx := context.Background()

	assert.True(t, WaitUntil(ctx, func() bool { return true }, time.Second))

	calls := 0
	flips := func() bool {
		calls++
		return calls >= 3
	}
	assert.True(t, WaitUntil(ctx, flips, 5*time.Second))
	assert.GreaterOrEqual(t, calls, 3)

	start := time.Now()
	assert.False(t, WaitUntil(ctx, func() bool { return false }, 300*time.Millisecond))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestWaitUntil_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	assert.False(t, WaitUntil(ctx, func() bool { return false }, 10*time.Second))
	assert.Less(t, time.Since(start), time.Second)
}
