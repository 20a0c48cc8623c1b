// Package pages holds the page objects for the document review application.
//
// Each page object owns the locators of one screen and exposes intent-level
// operations ("create a limited text field", "mass edit a field"). Page
// objects keep no state between calls: everything is re-read from the live
// document. Scenarios reach them through the Registry and depend only on the
// capability interfaces declared in capabilities.go.
//
// Most intents fail hard and return the first error. Annotation-set creation
// is best effort: its steps log a warning and carry on.
package pages

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/entrhq/flowcheck/pkg/locator"
	"github.com/entrhq/flowcheck/pkg/wait"
)

// ErrNotObserved is returned when a verification exhausts its attempts without
// seeing the expected state.
var ErrNotObserved = errors.New("expected state not observed")

// Logger receives progress and soft-failure messages.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...any) {}
func (nopLogger) Warnf(string, ...any) {}

// DefaultBaseURL is the application under test.
const DefaultBaseURL = "https://v11support.iconect.com"

// DefaultLoginPath is the sign-in route relative to the base URL.
const DefaultLoginPath = "/account/signin?ReturnUrl=%2F"

// Options configures the page objects built by NewRegistry.
type Options struct {
	BaseURL   string
	LoginPath string

	// Clock drives pauses and polls. Tests use a wait.FakeClock.
	Clock wait.Clock

	Log Logger
}

func (o Options) withDefaults() Options {
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	if o.LoginPath == "" {
		o.LoginPath = DefaultLoginPath
	}
	if o.Clock == nil {
		o.Clock = wait.RealClock{}
	}
	if o.Log == nil {
		o.Log = nopLogger{}
	}
	return o
}

// LoginURL joins the base URL and the login path.
func (o Options) LoginURL() string {
	return strings.TrimRight(o.BaseURL, "/") + "/" + strings.TrimLeft(o.LoginPath, "/")
}

// base is embedded by every page object.
type base struct {
	doc   locator.Document
	clock wait.Clock
	log   Logger
}

func newBase(doc locator.Document, opts Options) base {
	return base{doc: doc, clock: opts.Clock, log: opts.Log}
}

func (b *base) loc(c locator.Criteria) *locator.Locator {
	return locator.New(b.doc, c, locator.WithClock(b.clock))
}

// pause is for places where the application gives no observable signal that
// a server-side effect has propagated.
func (b *base) pause(ctx context.Context, d time.Duration) error {
	return wait.Pause(ctx, b.clock, d)
}

// soft runs a best-effort step, logging instead of returning its failure.
func (b *base) soft(step string, fn func() error) bool {
	if err := fn(); err != nil {
		b.log.Warnf("Failed to %s - %v", step, err)
		return false
	}
	return true
}
