package scraper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"table-scraper/internal/config"
)

const (
	testAppURL      = "https://app.example.com/reports"
	testIdentityURL = "https://login.microsoftonline.com/common/oauth2/authorize"
)

// ssoFixture builds a page on the application with a sign-in link that
// redirects to a Microsoft login form; submitting the form redirects back.
type ssoFixture struct {
	page       *fakePage
	signinLink *fakeElement
	email      *fakeElement
	next       *fakeElement
	password   *fakeElement
	submit     *fakeElement
	cfg        *config.RunConfig
}

func newSSOFixture() *ssoFixture {
	f := &ssoFixture{
		page:       newFakePage(),
		signinLink: el("Sign in"),
		email:      el(""),
		next:       el("Next"),
		password:   el(""),
		submit:     el("Sign in"),
	}
	f.page.url = testAppURL

	f.signinLink.onClick = func() {
		f.page.url = testIdentityURL
		f.page.set("#email", f.email)
		f.page.set("#next-btn", f.next)
		f.page.set("#password", f.password)
		f.page.set("#submit-btn", f.submit)
	}
	f.submit.onClick = func() {
		f.page.url = testAppURL
	}
	f.page.set("#signin-link", f.signinLink)

	cfg := config.Default()
	cfg.Selectors = map[string]config.SelectorSet{
		config.KeySSOEmail:     selSet("#email"),
		config.KeySSONext:      selSet("#next-btn"),
		config.KeySSOPassword:  selSet("#password"),
		config.KeySSOSignin:    selSet("#submit-btn"),
		config.KeySSOAppSignin: selSet("#signin-link"),
	}
	f.cfg = &cfg
	return f
}

func TestMicrosoftSSO_FullFlow(t *testing.T) {
	f := newSSOFixture()
	auth := NewMicrosoftSSO("user@corp.com", "hunter2", WithSSOTimeout(2*time.Second))

	auth.Login(context.Background(), f.page, f.cfg, NewResolver(nil))

	assert.Equal(t, 1, f.signinLink.clicks)
	assert.Equal(t, []string{"user@corp.com"}, f.email.filled)
	assert.Equal(t, 1, f.next.clicks)
	assert.Equal(t, []string{"hunter2"}, f.password.filled)
	assert.Equal(t, 1, f.submit.clicks)
	assert.Equal(t, testAppURL, f.page.URL())
}

func TestMicrosoftSSO_SkipsWithoutCredentials(t *testing.T) {
	f := newSSOFixture()
	auth := NewMicrosoftSSO("user@corp.com", "")

	auth.Login(context.Background(), f.page, f.cfg, NewResolver(nil))

	assert.Zero(t, f.signinLink.clicks)
	assert.Empty(t, f.email.filled)
}

func TestMicrosoftSSO_SkipsWithoutSelectorGroups(t *testing.T) {
	f := newSSOFixture()
	delete(f.cfg.Selectors, config.KeySSOPassword)
	auth := NewMicrosoftSSO("user@corp.com", "hunter2")

	auth.Login(context.Background(), f.page, f.cfg, NewResolver(nil))

	assert.Zero(t, f.signinLink.clicks)
	assert.Empty(t, f.email.filled)
}

func TestMicrosoftSSO_AlreadyOnIdentityHost(t *testing.T) {
	f := newSSOFixture()
	// land mid-login: form already up, no redirect needed
	f.signinLink.onClick()
	f.signinLink.clicks = 0
	auth := NewMicrosoftSSO("user@corp.com", "hunter2", WithSSOTimeout(2*time.Second))

	auth.Login(context.Background(), f.page, f.cfg, NewResolver(nil))

	assert.Zero(t, f.signinLink.clicks, "redirect trigger must be skipped on the provider page")
	assert.Equal(t, []string{"user@corp.com"}, f.email.filled)
	assert.Equal(t, testAppURL, f.page.URL())
}

func TestMicrosoftSSO_RedirectNeverHappens(t *testing.T) {
	f := newSSOFixture()
	f.page.remove("#signin-link")
	auth := NewMicrosoftSSO("user@corp.com", "hunter2",
		WithSSOTimeout(time.Second),
		WithSSORedirectWait(50*time.Millisecond))

	auth.Login(context.Background(), f.page, f.cfg, NewResolver(nil))

	assert.Empty(t, f.email.filled, "form must not be touched off the provider page")
	assert.Equal(t, testAppURL, f.page.URL())
}

func TestMicrosoftSSO_StuckOnProviderReturnsAtDeadline(t *testing.T) {
	f := newSSOFixture()
	f.submit.onClick = nil
	auth := NewMicrosoftSSO("user@corp.com", "hunter2", WithSSOTimeout(300*time.Millisecond))

	start := time.Now()
	auth.Login(context.Background(), f.page, f.cfg, NewResolver(nil))

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 1, f.submit.clicks)
	assert.Equal(t, testIdentityURL, f.page.URL())
}

func TestMicrosoftSSO_RedirectWaitCappedByTimeout(t *testing.T) {
	auth := NewMicrosoftSSO("u", "p", WithSSOTimeout(time.Second))
	assert.Equal(t, time.Second, auth.redirectWait)

	auth = NewMicrosoftSSO("u", "p")
	assert.Equal(t, defaultSSORedirectWait, auth.redirectWait)
}
