package pages

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/entrhq/flowcheck/pkg/locator"
)

// Field metadata takes a while to reach the records grid after a field is
// created, so a forced refresh settles longer.
const (
	recordsSettle        = 8 * time.Second
	recordsRefreshSettle = 15 * time.Second
	recordsSelectTimeout = 150 * time.Second
	searchResultTimeout  = 15 * time.Second
	counterTimeout       = 8 * time.Second
)

var (
	recordsLink          = locator.Role("link", "Records").First()
	recordsPrimaryWidget = locator.Text("Primary", true)
	recordsSelectAll     = locator.CSS(`input[type="checkbox"][aria-label="Select All"]`)
	recordsCustomizeView = locator.CSS(`button[title="Customize the View"]`)
	recordsMoveRight     = locator.CSS(`button[title="Move Selected Right"]:not([disabled])`)
	recordsMoveTop       = locator.CSS(`button[title="Move Selected to the Top"]:not([disabled])`)
	recordsApply         = locator.Role("button", "Apply")
	recordsSearchInput   = locator.CSS("input#search_builder_input_widget_datastore_0")
	recordsResultCounter = locator.CSS(`span[title="Active Search Record Count"].x-text_bold`)
	recordsTotalCounter  = locator.CSS(`span[title="Total Record Count"]`)
	recordsRows          = locator.CSS(`tbody tr[role="row"]`)
)

func columnHeader(field string) locator.Criteria {
	return locator.CSS("th span.k-column-title").WithText(field)
}

// SearchCounts are the counters shown above the records grid.
type SearchCounts struct {
	Result int
	Total  int
}

// RecordsPage is the project's records grid.
type RecordsPage struct {
	base
}

var _ RecordEditor = (*RecordsPage)(nil)

func newRecordsPage(doc locator.Document, opts Options) *RecordsPage {
	return &RecordsPage{base: newBase(doc, opts)}
}

// Navigate opens the records grid.
func (p *RecordsPage) Navigate(ctx context.Context) error {
	return p.Open(ctx, false)
}

// Open navigates to the records grid even when it is already shown. With
// forceRefresh it waits long enough for new field metadata to load.
func (p *RecordsPage) Open(ctx context.Context, forceRefresh bool) error {
	link := p.loc(recordsLink)
	if err := link.WaitUntil(ctx, locator.StateVisible, 30*time.Second); err != nil {
		return fmt.Errorf("open records: %w", err)
	}
	if err := link.Click(ctx, locator.ClickOptions{}); err != nil {
		return fmt.Errorf("open records: %w", err)
	}
	if err := p.doc.WaitForLoadState(ctx, locator.LoadStateDOMContentLoaded, 60*time.Second); err != nil {
		return fmt.Errorf("open records: %w", err)
	}

	settle := recordsSettle
	if forceRefresh {
		settle = recordsRefreshSettle
	}
	if err := p.pause(ctx, settle); err != nil {
		return err
	}

	if err := p.loc(recordsPrimaryWidget).ExpectVisible(ctx, 30*time.Second); err != nil {
		return fmt.Errorf("records grid did not load: %w", err)
	}
	return nil
}

// SelectAllRecords ticks the grid's select-all box and waits for the
// selection to register.
func (p *RecordsPage) SelectAllRecords(ctx context.Context) error {
	box := p.loc(recordsSelectAll)
	if err := box.WaitUntil(ctx, locator.StateVisible, recordsSelectTimeout); err != nil {
		return fmt.Errorf("select all: %w", err)
	}
	if err := box.Click(ctx, locator.ClickOptions{Force: true}); err != nil {
		return fmt.Errorf("select all: %w", err)
	}
	if err := p.pause(ctx, 5*time.Second); err != nil {
		return err
	}
	if err := box.ExpectChecked(ctx, recordsSelectTimeout); err != nil {
		return fmt.Errorf("select all: %w", err)
	}
	return nil
}

// RecordsSelected reports whether the select-all box is checked now.
func (p *RecordsPage) RecordsSelected(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return p.loc(recordsSelectAll).Is(locator.StateChecked)
}

// CustomizeViewToShowField moves field into the grid's visible columns, at
// the top of the list.
func (p *RecordsPage) CustomizeViewToShowField(ctx context.Context, field string) error {
	steps := []struct {
		what   string
		target locator.Criteria
		settle time.Duration
	}{
		{"open view settings", recordsCustomizeView, time.Second},
		{"select " + field, locator.Role("gridcell", field), 500 * time.Millisecond},
		{"move right", recordsMoveRight, 500 * time.Millisecond},
		{"move to top", recordsMoveTop, 500 * time.Millisecond},
		{"apply view", recordsApply, 3 * time.Second},
	}

	for _, s := range steps {
		if err := p.loc(s.target).Click(ctx, locator.ClickOptions{Timeout: 30 * time.Second}); err != nil {
			return fmt.Errorf("customize view: %s: %w", s.what, err)
		}
		if err := p.pause(ctx, s.settle); err != nil {
			return err
		}
	}
	return nil
}

// FieldColumnVisible expects a column header for field.
func (p *RecordsPage) FieldColumnVisible(ctx context.Context, field string) (bool, error) {
	if err := p.loc(columnHeader(field)).ExpectVisible(ctx, 8*time.Second); err != nil {
		return false, fmt.Errorf("column %q: %w", field, err)
	}
	return true, nil
}

// CountRowsContaining counts grid rows whose text contains text. It does not
// wait.
func (p *RecordsPage) CountRowsContaining(ctx context.Context, text string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return p.loc(recordsRows).Filter(text).Count()
}

// Search runs query in the search builder.
func (p *RecordsPage) Search(ctx context.Context, query string) error {
	input := p.loc(recordsSearchInput)
	if err := input.Fill(ctx, query, 30*time.Second); err != nil {
		return fmt.Errorf("search %q: %w", query, err)
	}
	if err := input.Press(ctx, "Enter", 30*time.Second); err != nil {
		return fmt.Errorf("search %q: %w", query, err)
	}
	return nil
}

// ExpectSearchResult expects the text expected (for example "179 / 179") to
// be shown.
func (p *RecordsPage) ExpectSearchResult(ctx context.Context, expected string) error {
	if err := p.loc(locator.Text(expected, false)).ExpectVisible(ctx, searchResultTimeout); err != nil {
		return fmt.Errorf("search result %q: %w", expected, err)
	}
	return nil
}

// SearchCounts reads the active and total record counters.
func (p *RecordsPage) SearchCounts(ctx context.Context) (SearchCounts, error) {
	result, err := p.readCounter(ctx, recordsResultCounter)
	if err != nil {
		return SearchCounts{}, fmt.Errorf("result count: %w", err)
	}
	total, err := p.readCounter(ctx, recordsTotalCounter)
	if err != nil {
		return SearchCounts{}, fmt.Errorf("total count: %w", err)
	}
	return SearchCounts{Result: result, Total: total}, nil
}

func (p *RecordsPage) readCounter(ctx context.Context, c locator.Criteria) (int, error) {
	counter := p.loc(c)
	if err := counter.ExpectVisible(ctx, counterTimeout); err != nil {
		return 0, err
	}
	text, err := counter.InnerText(ctx, counterTimeout)
	if err != nil {
		return 0, err
	}
	return parseCount(text)
}

// parseCount reads the leading integer of a counter such as "1,024 records".
func parseCount(text string) (int, error) {
	text = strings.TrimSpace(text)
	end := strings.IndexFunc(text, func(r rune) bool {
		return !unicode.IsDigit(r) && r != ','
	})
	if end < 0 {
		end = len(text)
	}
	digits := strings.ReplaceAll(text[:end], ",", "")
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("counter %q is not a number", text)
	}
	return n, nil
}

// RunSearches runs each query and expects expected after every one.
func (p *RecordsPage) RunSearches(ctx context.Context, queries []string, expected string) error {
	for _, q := range queries {
		if err := p.Search(ctx, q); err != nil {
			return err
		}
		if err := p.ExpectSearchResult(ctx, expected); err != nil {
			return fmt.Errorf("after %q: %w", q, err)
		}
		p.log.Infof("Search query executed: %q - Results: %s", q, expected)
	}
	return nil
}
