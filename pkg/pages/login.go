package pages

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/entrhq/flowcheck/pkg/locator"
	"github.com/entrhq/flowcheck/pkg/wait"
)

// The sign-in flow is served by a slow identity provider.
const (
	loginNavigationTimeout = 190 * time.Second
	loginFieldTimeout      = 130 * time.Second
	loginSettleTimeout     = 160 * time.Second
	continuePromptTimeout  = 5 * time.Second
	continueSettleTimeout  = 150 * time.Second
)

// UsernamePolicy is how long VerifyLogin waits for the signed-in user's name:
// up to twelve probes ten seconds apart, probing first.
var UsernamePolicy = wait.Policy{Interval: 10 * time.Second, MaxAttempts: 12, Immediate: true}

var (
	loginUsername     = locator.CSS("input#LogOnUserName")
	loginNext         = locator.CSS(`input[type="submit"][value="Next"]`)
	loginPassword     = locator.CSS("input#Input_Password")
	loginSubmit       = locator.CSS(`input[type="submit"][value="Log In"]`)
	loginContinue     = locator.Role("link", "Continue")
	loginUserNameMenu = locator.CSS("#userInfoMenus .k-button-text")
)

// LoginPage is the two-step sign-in screen.
type LoginPage struct {
	base
	url string
}

var _ Authenticator = (*LoginPage)(nil)

func newLoginPage(doc locator.Document, opts Options) *LoginPage {
	return &LoginPage{base: newBase(doc, opts), url: opts.LoginURL()}
}

// Navigate opens the sign-in page and waits for the username field.
func (p *LoginPage) Navigate(ctx context.Context) error {
	err := p.doc.Goto(ctx, p.url, locator.GotoOptions{
		WaitUntil: locator.LoadStateDOMContentLoaded,
		Timeout:   loginNavigationTimeout,
	})
	if err != nil {
		return fmt.Errorf("open sign-in page: %w", err)
	}
	return p.loc(loginUsername).WaitUntil(ctx, locator.StateVisible, loginFieldTimeout)
}

// Login submits the username, then the password, and dismisses the "already
// signed in" prompt when the application shows it.
func (p *LoginPage) Login(ctx context.Context, creds Credentials) error {
	if err := p.loc(loginUsername).Fill(ctx, creds.Username, loginFieldTimeout); err != nil {
		return fmt.Errorf("enter username: %w", err)
	}
	if err := p.loc(loginNext).Click(ctx, locator.ClickOptions{Timeout: loginFieldTimeout}); err != nil {
		return fmt.Errorf("submit username: %w", err)
	}

	password := p.loc(loginPassword)
	if err := password.WaitUntil(ctx, locator.StateVisible, loginFieldTimeout); err != nil {
		return fmt.Errorf("password field: %w", err)
	}
	if err := password.Fill(ctx, creds.Password, loginFieldTimeout); err != nil {
		return fmt.Errorf("enter password: %w", err)
	}
	if err := p.loc(loginSubmit).Click(ctx, locator.ClickOptions{Timeout: loginSettleTimeout}); err != nil {
		return fmt.Errorf("submit password: %w", err)
	}
	if err := p.doc.WaitForLoadState(ctx, locator.LoadStateNetworkIdle, loginSettleTimeout); err != nil {
		return fmt.Errorf("wait for sign-in: %w", err)
	}

	cont := p.loc(loginContinue)
	prompted, err := cont.IsVisible(ctx, continuePromptTimeout)
	if err != nil {
		return fmt.Errorf("check continue prompt: %w", err)
	}
	if prompted {
		p.log.Infof("Session already active, continuing")
		if err := cont.Click(ctx, locator.ClickOptions{}); err != nil {
			return fmt.Errorf("continue existing session: %w", err)
		}
		if err := p.doc.WaitForLoadState(ctx, locator.LoadStateNetworkIdle, continueSettleTimeout); err != nil {
			return fmt.Errorf("wait after continue: %w", err)
		}
	}

	if err := p.loc(loginUserNameMenu).WaitUntil(ctx, locator.StateVisible, loginSettleTimeout); err != nil {
		return fmt.Errorf("wait for user menu: %w", err)
	}
	return nil
}

// VerifyLogin polls the user menu until it shows expectedName. It fails with
// ErrNotObserved when the name never appears.
func (p *LoginPage) VerifyLogin(ctx context.Context, expectedName string) error {
	menu := p.loc(loginUserNameMenu)

	out, err := wait.Poll(ctx, p.clock, UsernamePolicy, func(ctx context.Context, attempt int) (bool, error) {
		visible, err := menu.Is(locator.StateVisible)
		if err != nil || !visible {
			p.log.Infof("Waiting for username to appear (attempt %d/%d)...", attempt, UsernamePolicy.MaxAttempts)
			return false, err
		}
		text, err := menu.InnerText(ctx, time.Second)
		if err != nil {
			return false, err
		}
		return strings.TrimSpace(text) == expectedName, nil
	})
	if err != nil {
		return err
	}
	if !out.OK {
		return fmt.Errorf("username %q did not appear after %d attempts: %w", expectedName, out.Attempts, ErrNotObserved)
	}
	return nil
}

// DisplayedUsername returns the name shown in the user menu.
func (p *LoginPage) DisplayedUsername(ctx context.Context) (string, error) {
	text, err := p.loc(loginUserNameMenu).InnerText(ctx, locator.DefaultTimeout)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
