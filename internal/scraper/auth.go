package scraper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"table-scraper/internal/browser"
	"table-scraper/internal/config"
	"table-scraper/internal/session"
)

// AuthStrategy drives a login flow on the freshly opened page. It never
// returns an error: identity-provider UIs change unpredictably, so the
// caller's logged-in guard is the only authority on success.
type AuthStrategy interface {
	Login(ctx context.Context, pg browser.Page, cfg *config.RunConfig, res *Resolver)
}

// NoopAuth skips authentication entirely.
type NoopAuth struct{}

func (NoopAuth) Login(ctx context.Context, pg browser.Page, cfg *config.RunConfig, res *Resolver) {}

const (
	defaultSSOTimeout      = 60 * time.Second
	defaultSSORedirectWait = 8 * time.Second
	ssoPoll                = 250 * time.Millisecond
)

// MicrosoftSSO fills the Microsoft enterprise sign-in form: email, next,
// password, sign in, then waits to be redirected back to the application.
type MicrosoftSSO struct {
	username     string
	password     string
	timeout      time.Duration
	redirectWait time.Duration
	logger       *zap.Logger
}

// SSOOption tweaks a MicrosoftSSO strategy.
type SSOOption func(*MicrosoftSSO)

// WithSSOTimeout bounds the whole automated flow.
func WithSSOTimeout(d time.Duration) SSOOption {
	return func(a *MicrosoftSSO) { a.timeout = d }
}

// WithSSORedirectWait bounds the wait for the app-to-provider redirect.
func WithSSORedirectWait(d time.Duration) SSOOption {
	return func(a *MicrosoftSSO) { a.redirectWait = d }
}

func WithSSOLogger(l *zap.Logger) SSOOption {
	return func(a *MicrosoftSSO) { a.logger = l }
}

func NewMicrosoftSSO(username, password string, opts ...SSOOption) *MicrosoftSSO {
	a := &MicrosoftSSO{
		username: username,
		password: password,
		timeout:  defaultSSOTimeout,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.redirectWait <= 0 {
		a.redirectWait = defaultSSORedirectWait
		if a.redirectWait > a.timeout {
			a.redirectWait = a.timeout
		}
	}
	return a
}

// Login runs the form flow. Every selector step may fail without aborting:
// failures are logged and the flow moves on, leaving the verdict to the
// caller's guard.
func (a *MicrosoftSSO) Login(ctx context.Context, pg browser.Page, cfg *config.RunConfig, res *Resolver) {
	if a.username == "" || a.password == "" {
		a.logger.Info("sso: credentials not configured, skipping login")
		return
	}
	for _, key := range []string{config.KeySSOEmail, config.KeySSONext, config.KeySSOPassword, config.KeySSOSignin} {
		if set, ok := cfg.Selectors[key]; !ok || len(set.Candidates) == 0 {
			a.logger.Warn("sso: selector group not configured, skipping login", zap.String("selector", key))
			return
		}
	}

	deadline := time.Now().Add(a.timeout)

	if !session.IsIdentityHost(pg.URL()) {
		a.triggerRedirect(ctx, pg, cfg, res)
		a.waitForIdentityHost(ctx, pg, a.redirectWait)
	}
	if !session.IsIdentityHost(pg.URL()) {
		a.logger.Warn("sso: identity provider page never appeared", zap.String("url", pg.URL()))
		return
	}
	a.logger.Info("sso: on identity provider, filling sign-in form")

	if m := res.Maybe(ctx, pg, cfg.Selectors[config.KeySSOEmail]); m != nil {
		if err := m.Element.Fill(a.username); err != nil {
			a.logger.Warn("sso: failed to fill email", zap.Error(err))
		}
		if next := res.Maybe(ctx, pg, cfg.Selectors[config.KeySSONext]); next != nil {
			if err := next.Element.Click(); err != nil {
				a.logger.Warn("sso: failed to click next", zap.Error(err))
			}
		}
	} else {
		a.logger.Warn("sso: email field not found")
	}

	if m := res.Maybe(ctx, pg, cfg.Selectors[config.KeySSOPassword]); m != nil {
		if err := m.Element.Fill(a.password); err != nil {
			a.logger.Warn("sso: failed to fill password", zap.Error(err))
		}
		if signin := res.Maybe(ctx, pg, cfg.Selectors[config.KeySSOSignin]); signin != nil {
			if err := signin.Element.Click(); err != nil {
				a.logger.Warn("sso: failed to click sign in", zap.Error(err))
			}
		}
	} else {
		a.logger.Warn("sso: password field not found")
	}

	for time.Now().Before(deadline) {
		if !session.IsIdentityHost(pg.URL()) {
			a.logger.Info("sso: left identity provider", zap.String("url", pg.URL()))
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(ssoPoll):
		}
	}
	a.logger.Warn("sso: still on identity provider at deadline", zap.String("url", pg.URL()))
}

// triggerRedirect clicks the application's sign-in control, when one is
// configured, to start the provider redirect. Failures are swallowed.
func (a *MicrosoftSSO) triggerRedirect(ctx context.Context, pg browser.Page, cfg *config.RunConfig, res *Resolver) {
	set, ok := cfg.Selectors[config.KeySSOAppSignin]
	if !ok || len(set.Candidates) == 0 {
		set, ok = cfg.Selectors[config.KeySSOSignin]
	}
	if !ok || len(set.Candidates) == 0 {
		return
	}
	m := res.Maybe(ctx, pg, set)
	if m == nil {
		a.logger.Debug("sso: app sign-in control not found")
		return
	}
	if err := m.Element.Click(); err != nil {
		a.logger.Debug("sso: app sign-in click failed", zap.Error(err))
	}
}

func (a *MicrosoftSSO) waitForIdentityHost(ctx context.Context, pg browser.Page, wait time.Duration) {
	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		if session.IsIdentityHost(pg.URL()) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(ssoPoll):
		}
	}
}
