// Package locatortest provides a scripted in-memory locator.Document for
// testing page objects without a browser.
//
// Elements are keyed by their criteria string and created on first use in an
// absent state. Tests script them (Show, SetText, OnClick, ...) and inspect
// the recorded interactions afterwards. Engine waits never sleep: a wait for a
// state that does not hold fails at once with locator.ErrDeadline unless the
// element was scripted to change when waited on.
package locatortest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/flowcheck/pkg/locator"
)

// Element is a scripted element.
type Element struct {
	doc *Document
	key string

	mu        sync.Mutex
	attached  bool
	visible   bool
	enabled   bool
	checked   bool
	count     int
	text      string
	html      string
	value     string
	clicks    int
	waits     int
	lastClick locator.ClickOptions
	presses   []string
	clickErr  error
	onClick   func()
	onWait    func(state locator.State)
}

// Show makes the element attached, visible and enabled.
func (e *Element) Show() *Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attached, e.visible, e.enabled = true, true, true
	return e
}

// Hide keeps the element attached but invisible.
func (e *Element) Hide() *Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attached, e.visible = true, false
	return e
}

// Detach removes the element from the document.
func (e *Element) Detach() *Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attached, e.visible = false, false
	return e
}

// SetCount overrides the match count. A negative n derives the count from the
// attached flag.
func (e *Element) SetCount(n int) *Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.count = n
	if n > 0 {
		e.attached = true
	}
	return e
}

func (e *Element) SetText(s string) *Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.text = s
	return e
}

func (e *Element) SetHTML(s string) *Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.html = s
	return e
}

func (e *Element) SetEnabled(b bool) *Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = b
	return e
}

func (e *Element) SetChecked(b bool) *Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.checked = b
	return e
}

// FailClick makes every click return err.
func (e *Element) FailClick(err error) *Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clickErr = err
	return e
}

// OnClick runs fn after every successful click.
func (e *Element) OnClick(fn func()) *Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onClick = fn
	return e
}

// OnWait runs fn when an engine wait finds the state not yet reached. The
// state is probed again afterwards.
func (e *Element) OnWait(fn func(state locator.State)) *Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onWait = fn
	return e
}

// AppearOnWait shows the element the first time anything waits on it.
func (e *Element) AppearOnWait() *Element {
	return e.OnWait(func(locator.State) { e.Show() })
}

func (e *Element) Clicks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clicks
}

func (e *Element) LastClick() locator.ClickOptions {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastClick
}

// Waits is the number of engine waits made on the element.
func (e *Element) Waits() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.waits
}

// Value is the last filled text.
func (e *Element) Value() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value
}

func (e *Element) Presses() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.presses...)
}

func (e *Element) Count() (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.countLocked(), nil
}

func (e *Element) countLocked() int {
	if e.count > 0 {
		return e.count
	}
	if e.attached {
		return 1
	}
	return 0
}

func (e *Element) IsVisible() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attached && e.visible, nil
}

func (e *Element) IsEnabled() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attached && e.enabled, nil
}

func (e *Element) IsChecked() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attached && e.checked, nil
}

func (e *Element) holds(state locator.State) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch state {
	case locator.StateAttached:
		return e.countLocked() > 0
	case locator.StateDetached:
		return e.countLocked() == 0
	case locator.StateVisible:
		return e.attached && e.visible
	case locator.StateHidden:
		return !(e.attached && e.visible)
	}
	return false
}

func (e *Element) WaitFor(state locator.State, timeout time.Duration) error {
	e.mu.Lock()
	e.waits++
	onWait := e.onWait
	e.mu.Unlock()

	if e.holds(state) {
		return nil
	}
	if onWait != nil {
		onWait(state)
		if e.holds(state) {
			return nil
		}
	}
	return fmt.Errorf("%s not %s after %s: %w", e.key, state, timeout, locator.ErrDeadline)
}

func (e *Element) Click(opts locator.ClickOptions) error {
	e.mu.Lock()
	if e.clickErr != nil {
		err := e.clickErr
		e.mu.Unlock()
		return err
	}
	e.clicks++
	e.lastClick = opts
	onClick := e.onClick
	e.mu.Unlock()

	e.doc.record("click " + e.key)
	if onClick != nil {
		onClick()
	}
	return nil
}

func (e *Element) Fill(text string, timeout time.Duration) error {
	e.mu.Lock()
	e.value = text
	e.mu.Unlock()
	e.doc.record("fill " + e.key)
	return nil
}

func (e *Element) Check(timeout time.Duration) error {
	e.mu.Lock()
	e.checked = true
	e.mu.Unlock()
	e.doc.record("check " + e.key)
	return nil
}

func (e *Element) Press(key string, timeout time.Duration) error {
	e.mu.Lock()
	e.presses = append(e.presses, key)
	e.mu.Unlock()
	e.doc.record("press " + key + " " + e.key)
	return nil
}

func (e *Element) InnerText(timeout time.Duration) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.text, nil
}

func (e *Element) InnerHTML(timeout time.Duration) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.html, nil
}

func (e *Element) ScrollIntoView(timeout time.Duration) error {
	e.doc.record("scroll " + e.key)
	return nil
}

// Document is a scripted locator.Document.
type Document struct {
	mu         sync.Mutex
	elements   map[string]*Element
	url        string
	title      string
	gotos      []string
	loadStates []locator.LoadState
	log        []string
	gotoErr    error
	onGoto     func(url string)
}

var _ locator.Document = (*Document)(nil)

// NewDocument returns an empty document at about:blank.
func NewDocument() *Document {
	return &Document{elements: make(map[string]*Element), url: "about:blank"}
}

// El returns the element for c, creating it absent on first use.
func (d *Document) El(c locator.Criteria) *Element {
	key := c.String()
	d.mu.Lock()
	defer d.mu.Unlock()
	el, ok := d.elements[key]
	if !ok {
		el = &Element{doc: d, key: key}
		d.elements[key] = el
	}
	return el
}

// Resolve implements locator.Document.
func (d *Document) Resolve(c locator.Criteria) locator.Element {
	return d.El(c)
}

func (d *Document) Goto(ctx context.Context, url string, opts locator.GotoOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	if d.gotoErr != nil {
		err := d.gotoErr
		d.mu.Unlock()
		return err
	}
	d.url = url
	d.gotos = append(d.gotos, url)
	d.log = append(d.log, "goto "+url)
	onGoto := d.onGoto
	d.mu.Unlock()

	if onGoto != nil {
		onGoto(url)
	}
	return nil
}

func (d *Document) WaitForLoadState(ctx context.Context, state locator.LoadState, timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loadStates = append(d.loadStates, state)
	return ctx.Err()
}

func (d *Document) URL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url
}

func (d *Document) SetURL(u string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.url = u
}

func (d *Document) Title() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.title, nil
}

func (d *Document) SetTitle(t string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.title = t
}

// FailGoto makes navigation return err.
func (d *Document) FailGoto(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gotoErr = err
}

// OnGoto runs fn after every navigation.
func (d *Document) OnGoto(fn func(url string)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onGoto = fn
}

func (d *Document) Gotos() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.gotos...)
}

func (d *Document) LoadStates() []locator.LoadState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]locator.LoadState(nil), d.loadStates...)
}

// Log returns every recorded interaction in order.
func (d *Document) Log() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.log...)
}

func (d *Document) record(entry string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log = append(d.log, entry)
}
