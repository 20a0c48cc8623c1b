// Package locator wraps element selection with state-aware waits.
//
// A Locator pairs a Criteria with the Document it is resolved against. Every
// operation resolves the criteria again, so a Locator survives re-renders of
// the page. State-changing operations wait for the target to be visible (or
// attached, for forced clicks) before acting, and every wait first probes the
// current state without blocking.
package locator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/entrhq/flowcheck/pkg/wait"
)

// State is a condition a locator can wait for.
type State string

const (
	StateAttached State = "attached"
	StateDetached State = "detached"
	StateVisible  State = "visible"
	StateHidden   State = "hidden"

	// StateEnabled and StateChecked have no engine wait; they are polled.
	StateEnabled State = "enabled"
	StateChecked State = "checked"
)

// DefaultTimeout applies when an operation is given a zero timeout.
const DefaultTimeout = 30 * time.Second

// pollInterval is the probe interval for polled states.
const pollInterval = 250 * time.Millisecond

// Locator is a lazily resolved element handle.
type Locator struct {
	doc      Document
	criteria Criteria
	clock    wait.Clock
}

// Option configures a Locator.
type Option func(*Locator)

// WithClock sets the clock used for polled states.
func WithClock(c wait.Clock) Option {
	return func(l *Locator) {
		l.clock = c
	}
}

// New returns a Locator for c on doc.
func New(doc Document, c Criteria, opts ...Option) *Locator {
	l := &Locator{doc: doc, criteria: c, clock: wait.RealClock{}}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Criteria returns the selection criteria.
func (l *Locator) Criteria() Criteria {
	return l.criteria
}

func (l *Locator) String() string {
	return l.criteria.String()
}

func (l *Locator) derive(c Criteria) *Locator {
	return &Locator{doc: l.doc, criteria: c, clock: l.clock}
}

// Descend returns a locator for descendants matching selector.
func (l *Locator) Descend(selector string) *Locator {
	return l.derive(l.criteria.Descend(selector))
}

// Filter returns a locator keeping only matches that contain text.
func (l *Locator) Filter(text string) *Locator {
	return l.derive(l.criteria.Filter(text))
}

// First returns a locator for the first match.
func (l *Locator) First() *Locator {
	return l.derive(l.criteria.First())
}

// Nth returns a locator for the match at index i.
func (l *Locator) Nth(i int) *Locator {
	return l.derive(l.criteria.Nth(i))
}

func (l *Locator) element() Element {
	return l.doc.Resolve(l.criteria)
}

// probe reports whether state currently holds, without blocking.
func probe(el Element, state State) (bool, error) {
	switch state {
	case StateAttached:
		n, err := el.Count()
		return n > 0, err
	case StateDetached:
		n, err := el.Count()
		return n == 0, err
	case StateVisible:
		return el.IsVisible()
	case StateHidden:
		v, err := el.IsVisible()
		return !v, err
	case StateEnabled:
		return el.IsEnabled()
	case StateChecked:
		return el.IsChecked()
	default:
		return false, fmt.Errorf("unknown locator state %q", state)
	}
}

// WaitUntil blocks until the target reaches state. It returns immediately
// when the state already holds.
func (l *Locator) WaitUntil(ctx context.Context, state State, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	el := l.element()
	ok, err := probe(el, state)
	if err != nil {
		return fmt.Errorf("probe %s: %w", l.criteria, err)
	}
	if ok {
		return nil
	}

	start := l.clock.Now()
	switch state {
	case StateEnabled, StateChecked:
		err = wait.AwaitCondition(ctx, l.clock, func() (bool, error) {
			return probe(el, state)
		}, timeout, pollInterval)
		if errors.Is(err, wait.ErrConditionTimeout) {
			return &TimeoutError{Criteria: l.criteria, State: state, Timeout: timeout, Elapsed: l.clock.Now().Sub(start), Err: err}
		}
		return err
	}

	err = el.WaitFor(state, timeout)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrDeadline) {
		return &TimeoutError{Criteria: l.criteria, State: state, Timeout: timeout, Elapsed: l.clock.Now().Sub(start), Err: err}
	}
	return fmt.Errorf("wait for %s to be %s: %w", l.criteria, state, err)
}

// Click waits for the target and clicks it. Forced clicks only require the
// target to be attached.
func (l *Locator) Click(ctx context.Context, opts ClickOptions) error {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	state := StateVisible
	if opts.Force {
		state = StateAttached
	}
	if err := l.WaitUntil(ctx, state, opts.Timeout); err != nil {
		return err
	}
	if err := l.element().Click(opts); err != nil {
		return l.actionError("click", err, opts.Timeout)
	}
	return nil
}

// Fill waits for the target to be visible and replaces its value with text.
func (l *Locator) Fill(ctx context.Context, text string, timeout time.Duration) error {
	if err := l.WaitUntil(ctx, StateVisible, timeout); err != nil {
		return err
	}
	if err := l.element().Fill(text, orDefault(timeout)); err != nil {
		return l.actionError("fill", err, timeout)
	}
	return nil
}

// Check waits for the target to be visible and checks it.
func (l *Locator) Check(ctx context.Context, timeout time.Duration) error {
	if err := l.WaitUntil(ctx, StateVisible, timeout); err != nil {
		return err
	}
	if err := l.element().Check(orDefault(timeout)); err != nil {
		return l.actionError("check", err, timeout)
	}
	return nil
}

// Press waits for the target to be visible and presses key on it.
func (l *Locator) Press(ctx context.Context, key string, timeout time.Duration) error {
	if err := l.WaitUntil(ctx, StateVisible, timeout); err != nil {
		return err
	}
	if err := l.element().Press(key, orDefault(timeout)); err != nil {
		return l.actionError("press "+key, err, timeout)
	}
	return nil
}

// ScrollIntoView waits for the target to be attached and scrolls it into view.
func (l *Locator) ScrollIntoView(ctx context.Context, timeout time.Duration) error {
	if err := l.WaitUntil(ctx, StateAttached, timeout); err != nil {
		return err
	}
	if err := l.element().ScrollIntoView(orDefault(timeout)); err != nil {
		return l.actionError("scroll", err, timeout)
	}
	return nil
}

// InnerText returns the rendered text of the target once attached.
func (l *Locator) InnerText(ctx context.Context, timeout time.Duration) (string, error) {
	if err := l.WaitUntil(ctx, StateAttached, timeout); err != nil {
		return "", err
	}
	text, err := l.element().InnerText(orDefault(timeout))
	if err != nil {
		return "", l.actionError("read text of", err, timeout)
	}
	return text, nil
}

// InnerHTML returns the markup of the target once attached.
func (l *Locator) InnerHTML(ctx context.Context, timeout time.Duration) (string, error) {
	if err := l.WaitUntil(ctx, StateAttached, timeout); err != nil {
		return "", err
	}
	html, err := l.element().InnerHTML(orDefault(timeout))
	if err != nil {
		return "", l.actionError("read html of", err, timeout)
	}
	return html, nil
}

// Is reports whether state holds right now, without waiting.
func (l *Locator) Is(state State) (bool, error) {
	ok, err := probe(l.element(), state)
	if err != nil {
		return false, fmt.Errorf("probe %s: %w", l.criteria, err)
	}
	return ok, nil
}

// Count returns the number of current matches. It never blocks and zero is a
// valid answer.
func (l *Locator) Count() (int, error) {
	n, err := l.element().Count()
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", l.criteria, err)
	}
	return n, nil
}

// IsVisible reports whether the target becomes visible within timeout. Not
// becoming visible is reported as false, not as an error.
func (l *Locator) IsVisible(ctx context.Context, timeout time.Duration) (bool, error) {
	err := l.WaitUntil(ctx, StateVisible, timeout)
	if err == nil {
		return true, nil
	}
	if IsTimeout(err) {
		return false, nil
	}
	return false, err
}

// ExpectVisible fails with a *TimeoutError unless the target is visible within
// timeout.
func (l *Locator) ExpectVisible(ctx context.Context, timeout time.Duration) error {
	return l.expect(ctx, StateVisible, timeout)
}

// ExpectEnabled fails with a *TimeoutError unless the target is enabled within
// timeout.
func (l *Locator) ExpectEnabled(ctx context.Context, timeout time.Duration) error {
	return l.expect(ctx, StateEnabled, timeout)
}

// ExpectChecked fails with a *TimeoutError unless the target is checked within
// timeout.
func (l *Locator) ExpectChecked(ctx context.Context, timeout time.Duration) error {
	return l.expect(ctx, StateChecked, timeout)
}

// expect polls the probe rather than delegating to the engine, so assertions
// retry across re-renders that detach the element mid-wait.
func (l *Locator) expect(ctx context.Context, state State, timeout time.Duration) error {
	timeout = orDefault(timeout)
	start := l.clock.Now()
	err := wait.AwaitCondition(ctx, l.clock, func() (bool, error) {
		return probe(l.element(), state)
	}, timeout, pollInterval)
	if errors.Is(err, wait.ErrConditionTimeout) {
		return &TimeoutError{Criteria: l.criteria, State: state, Timeout: timeout, Elapsed: l.clock.Now().Sub(start), Err: err}
	}
	return err
}

func (l *Locator) actionError(action string, err error, timeout time.Duration) error {
	if errors.Is(err, ErrDeadline) {
		return &TimeoutError{Criteria: l.criteria, State: StateVisible, Timeout: orDefault(timeout), Err: err}
	}
	return fmt.Errorf("%s %s: %w", action, l.criteria, err)
}

func orDefault(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return DefaultTimeout
	}
	return timeout
}
