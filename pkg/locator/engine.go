package locator

import (
	"context"
	"errors"
	"time"
)

// ErrDeadline is wrapped by engine errors caused by an engine-side timeout.
// Adapters translate their engine's timeout error into it.
var ErrDeadline = errors.New("engine deadline exceeded")

// LoadState is a document load milestone.
type LoadState string

const (
	LoadStateLoad             LoadState = "load"
	LoadStateDOMContentLoaded LoadState = "domcontentloaded"
	LoadStateNetworkIdle      LoadState = "networkidle"
)

// Modifier is a keyboard modifier held during a click.
type Modifier string

const (
	ModifierShift   Modifier = "Shift"
	ModifierControl Modifier = "Control"
	ModifierAlt     Modifier = "Alt"
	ModifierMeta    Modifier = "Meta"
)

// ClickOptions configures Click.
type ClickOptions struct {
	// Force skips actionability checks; the target only has to be attached.
	Force bool

	Modifiers []Modifier

	// Timeout bounds the wait for the target. Zero uses DefaultTimeout.
	Timeout time.Duration
}

// GotoOptions configures Document.Goto.
type GotoOptions struct {
	WaitUntil LoadState
	Timeout   time.Duration
}

// Element is the engine's lazily resolved handle for one Criteria. Probe
// methods (Count, IsVisible, IsEnabled, IsChecked) must not block.
type Element interface {
	Count() (int, error)
	IsVisible() (bool, error)
	IsEnabled() (bool, error)
	IsChecked() (bool, error)

	// WaitFor blocks until the element reaches state. On timeout the returned
	// error wraps ErrDeadline.
	WaitFor(state State, timeout time.Duration) error

	Click(opts ClickOptions) error
	Fill(text string, timeout time.Duration) error
	Check(timeout time.Duration) error
	Press(key string, timeout time.Duration) error
	InnerText(timeout time.Duration) (string, error)
	InnerHTML(timeout time.Duration) (string, error)
	ScrollIntoView(timeout time.Duration) error
}

// Document is the live page a browsing session drives.
type Document interface {
	Resolve(c Criteria) Element
	Goto(ctx context.Context, url string, opts GotoOptions) error
	WaitForLoadState(ctx context.Context, state LoadState, timeout time.Duration) error
	URL() string
	Title() (string, error)
}
