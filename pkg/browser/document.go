package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/flowcheck/pkg/locator"
)

// Document adapts a Playwright page to locator.Document.
type Document struct {
	page playwright.Page
}

var _ locator.Document = (*Document)(nil)

// NewDocument wraps page.
func NewDocument(page playwright.Page) *Document {
	return &Document{page: page}
}

// Resolve builds a Playwright locator for c. Playwright locators are lazy,
// which matches the locator package's contract.
func (d *Document) Resolve(c locator.Criteria) locator.Element {
	return &element{loc: build(d.page, c)}
}

func build(page playwright.Page, c locator.Criteria) playwright.Locator {
	var loc playwright.Locator
	switch c.Strategy {
	case locator.ByRole:
		opts := playwright.PageGetByRoleOptions{}
		switch {
		case c.NamePattern != nil:
			opts.Name = c.NamePattern
		case c.Name != "":
			opts.Name = c.Name
		}
		if c.Exact {
			opts.Exact = playwright.Bool(true)
		}
		loc = page.GetByRole(playwright.AriaRole(c.Value), opts)
	case locator.ByText:
		loc = page.GetByText(c.Value, playwright.PageGetByTextOptions{Exact: playwright.Bool(c.Exact)})
	case locator.ByTitle:
		loc = page.GetByTitle(c.Value, playwright.PageGetByTitleOptions{Exact: playwright.Bool(c.Exact)})
	case locator.ByPlaceholder:
		loc = page.GetByPlaceholder(c.Value, playwright.PageGetByPlaceholderOptions{Exact: playwright.Bool(c.Exact)})
	case locator.ByXPath:
		loc = page.Locator("xpath=" + c.Value)
	default:
		loc = page.Locator(c.Value)
	}

	if c.HasText != "" {
		loc = loc.Filter(playwright.LocatorFilterOptions{HasText: c.HasText})
	}

	for _, r := range c.Chain {
		switch r.Kind {
		case locator.Descend:
			loc = loc.Locator(r.Selector)
		case locator.FilterText:
			loc = loc.Filter(playwright.LocatorFilterOptions{HasText: r.Text})
		case locator.First:
			loc = loc.First()
		case locator.Nth:
			loc = loc.Nth(r.Index)
		}
	}
	return loc
}

func (d *Document) Goto(ctx context.Context, url string, opts locator.GotoOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := d.page.Goto(url, gotoOptions(opts))
	if err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, translate(err))
	}
	return nil
}

func gotoOptions(opts locator.GotoOptions) playwright.PageGotoOptions {
	out := playwright.PageGotoOptions{}
	if opts.WaitUntil != "" {
		out.WaitUntil = waitUntil(opts.WaitUntil)
	}
	if opts.Timeout > 0 {
		out.Timeout = playwright.Float(millis(opts.Timeout))
	}
	return out
}

func waitUntil(s locator.LoadState) *playwright.WaitUntilState {
	w := playwright.WaitUntilState(string(s))
	return &w
}

func (d *Document) WaitForLoadState(ctx context.Context, state locator.LoadState, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ls := playwright.LoadState(string(state))
	opts := playwright.PageWaitForLoadStateOptions{State: &ls}
	if timeout > 0 {
		opts.Timeout = playwright.Float(millis(timeout))
	}
	if err := d.page.WaitForLoadState(opts); err != nil {
		return fmt.Errorf("wait for %s: %w", state, translate(err))
	}
	return nil
}

func (d *Document) URL() string {
	return d.page.URL()
}

func (d *Document) Title() (string, error) {
	return d.page.Title()
}

// translate marks Playwright timeouts with locator.ErrDeadline.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %w", locator.ErrDeadline, err)
	}
	return err
}

type element struct {
	loc playwright.Locator
}

func (e *element) Count() (int, error) {
	n, err := e.loc.Count()
	return n, translate(err)
}

func (e *element) IsVisible() (bool, error) {
	v, err := e.loc.IsVisible()
	return v, translate(err)
}

// IsEnabled and IsChecked wait for the element in Playwright; a short timeout
// keeps them non-blocking probes, and absence reads as false.
func (e *element) IsEnabled() (bool, error) {
	n, err := e.loc.Count()
	if err != nil || n == 0 {
		return false, translate(err)
	}
	v, err := e.loc.IsEnabled(playwright.LocatorIsEnabledOptions{Timeout: playwright.Float(probeTimeout)})
	return v, ignoreTimeout(err)
}

func (e *element) IsChecked() (bool, error) {
	n, err := e.loc.Count()
	if err != nil || n == 0 {
		return false, translate(err)
	}
	v, err := e.loc.IsChecked(playwright.LocatorIsCheckedOptions{Timeout: playwright.Float(probeTimeout)})
	return v, ignoreTimeout(err)
}

const probeTimeout = 100.0

func ignoreTimeout(err error) error {
	if errors.Is(err, playwright.ErrTimeout) {
		return nil
	}
	return err
}

func (e *element) WaitFor(state locator.State, timeout time.Duration) error {
	s := playwright.WaitForSelectorState(string(state))
	return translate(e.loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   &s,
		Timeout: playwright.Float(millis(timeout)),
	}))
}

func (e *element) Click(opts locator.ClickOptions) error {
	return translate(e.loc.Click(clickOptions(opts)))
}

func clickOptions(opts locator.ClickOptions) playwright.LocatorClickOptions {
	out := playwright.LocatorClickOptions{}
	if opts.Force {
		out.Force = playwright.Bool(true)
	}
	for _, m := range opts.Modifiers {
		out.Modifiers = append(out.Modifiers, playwright.KeyboardModifier(string(m)))
	}
	if opts.Timeout > 0 {
		out.Timeout = playwright.Float(millis(opts.Timeout))
	}
	return out
}

func (e *element) Fill(text string, timeout time.Duration) error {
	return translate(e.loc.Fill(text, playwright.LocatorFillOptions{Timeout: playwright.Float(millis(timeout))}))
}

func (e *element) Check(timeout time.Duration) error {
	return translate(e.loc.Check(playwright.LocatorCheckOptions{Timeout: playwright.Float(millis(timeout))}))
}

func (e *element) Press(key string, timeout time.Duration) error {
	return translate(e.loc.Press(key, playwright.LocatorPressOptions{Timeout: playwright.Float(millis(timeout))}))
}

func (e *element) InnerText(timeout time.Duration) (string, error) {
	s, err := e.loc.InnerText(playwright.LocatorInnerTextOptions{Timeout: playwright.Float(millis(timeout))})
	return s, translate(err)
}

func (e *element) InnerHTML(timeout time.Duration) (string, error) {
	s, err := e.loc.InnerHTML(playwright.LocatorInnerHTMLOptions{Timeout: playwright.Float(millis(timeout))})
	return s, translate(err)
}

func (e *element) ScrollIntoView(timeout time.Duration) error {
	return translate(e.loc.ScrollIntoViewIfNeeded(playwright.LocatorScrollIntoViewIfNeededOptions{
		Timeout: playwright.Float(millis(timeout)),
	}))
}
