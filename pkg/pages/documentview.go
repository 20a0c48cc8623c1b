package pages

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/entrhq/flowcheck/pkg/locator"
	"github.com/entrhq/flowcheck/pkg/wait"
)

// HighlightPolicy looks for search highlights five times, two seconds apart,
// probing first.
var HighlightPolicy = wait.Policy{Interval: 2 * time.Second, MaxAttempts: 5, Immediate: true}

const (
	viewerLoadTimeout   = 80 * time.Second
	viewerRenderSettle  = 5 * time.Second
	recordSettle        = 3 * time.Second
	recordURLTimeout    = 30 * time.Second
	recordInputTimeout  = 30 * time.Second
	viewerButtonTimeout = 30 * time.Second
)

var (
	viewerOpenButton = locator.CSS("button:has(span.k-button-icon.fas.fa-chevron-right)")
	viewerText       = locator.CSS("div.viewer_document.x-flexbox--flex.x-flexbox_column")
	viewerSpinner    = locator.CSS(".loading, .spinner")
	viewerRecord     = locator.CSS("input#docNumInput")
)

// RecordURLPattern matches a URL addressing record n: "/records/<n>" followed
// by a query string or the end of the URL, case-insensitively.
func RecordURLPattern(n string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)/records/` + regexp.QuoteMeta(n) + `(?:\?|$)`)
}

// DocumentViewPage is the single-document viewer.
type DocumentViewPage struct {
	base
}

var _ DocumentViewer = (*DocumentViewPage)(nil)

func newDocumentViewPage(doc locator.Document, opts Options) *DocumentViewPage {
	return &DocumentViewPage{base: newBase(doc, opts)}
}

// Navigate opens the first selected record in the viewer and waits for its
// text to render.
func (p *DocumentViewPage) Navigate(ctx context.Context) error {
	if err := p.loc(viewerOpenButton).Click(ctx, locator.ClickOptions{Timeout: viewerButtonTimeout}); err != nil {
		return fmt.Errorf("open document view: %w", err)
	}

	// Not every load shows a spinner.
	if err := p.loc(viewerSpinner).WaitUntil(ctx, locator.StateDetached, viewerLoadTimeout); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		p.log.Warnf("Loading indicator still present: %v", err)
	}

	if err := p.loc(viewerText).WaitUntil(ctx, locator.StateVisible, viewerLoadTimeout); err != nil {
		return fmt.Errorf("document text did not render: %w", err)
	}
	return nil
}

func (p *DocumentViewPage) highlights(text string) *locator.Locator {
	return p.loc(viewerText).Descend("span").Filter(text)
}

// VerifyHighlights waits for spans containing text in the document and
// scrolls the first into view. It returns the number found, zero when none
// appeared.
func (p *DocumentViewPage) VerifyHighlights(ctx context.Context, text string) (int, error) {
	if err := p.pause(ctx, viewerRenderSettle); err != nil {
		return 0, err
	}
	if err := p.loc(viewerText).WaitUntil(ctx, locator.StateVisible, 30*time.Second); err != nil {
		return 0, fmt.Errorf("document text: %w", err)
	}

	hits := p.highlights(text)
	count := 0
	_, err := wait.Poll(ctx, p.clock, HighlightPolicy, func(ctx context.Context, attempt int) (bool, error) {
		n, err := hits.Count()
		if err != nil {
			return false, err
		}
		count = n
		if n == 0 {
			p.log.Infof("Waiting for highlights to appear (attempt %d/%d)...", attempt, HighlightPolicy.MaxAttempts)
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, nil
	}

	first := hits.First()
	if err := first.ScrollIntoView(ctx, locator.DefaultTimeout); err != nil {
		return count, fmt.Errorf("scroll to highlight: %w", err)
	}
	if err := first.ExpectVisible(ctx, locator.DefaultTimeout); err != nil {
		return count, fmt.Errorf("highlight not visible: %w", err)
	}
	return count, nil
}

// HighlightsInField reports whether every highlight of text sits inside the
// block labelled field. It reads a snapshot of the viewer's markup; no
// highlights at all reports false.
func (p *DocumentViewPage) HighlightsInField(ctx context.Context, text, field string) (bool, error) {
	markup, err := p.loc(viewerText).InnerHTML(ctx, 5*time.Second)
	if err != nil {
		return false, fmt.Errorf("snapshot document: %w", err)
	}

	report, err := analyzeHighlights(markup, text, field)
	if err != nil {
		return false, err
	}
	for i, stray := range report.Stray {
		p.log.Warnf("Highlight %d (%q) not found in %s", i+1, stray, field)
	}
	return report.AllInField(), nil
}

// NavigateToRecord jumps to a record by number.
func (p *DocumentViewPage) NavigateToRecord(ctx context.Context, record string) error {
	input := p.loc(viewerRecord)
	if err := input.WaitUntil(ctx, locator.StateVisible, recordInputTimeout); err != nil {
		return fmt.Errorf("record input: %w", err)
	}
	if err := input.Fill(ctx, "", recordInputTimeout); err != nil {
		return fmt.Errorf("clear record input: %w", err)
	}
	if err := input.Fill(ctx, record, recordInputTimeout); err != nil {
		return fmt.Errorf("enter record %s: %w", record, err)
	}
	if err := input.Press(ctx, "Enter", recordInputTimeout); err != nil {
		return fmt.Errorf("go to record %s: %w", record, err)
	}
	if err := p.doc.WaitForLoadState(ctx, locator.LoadStateDOMContentLoaded, 60*time.Second); err != nil {
		return fmt.Errorf("go to record %s: %w", record, err)
	}
	return p.pause(ctx, recordSettle)
}

// VerifyRecordInURL waits for the URL to address record.
func (p *DocumentViewPage) VerifyRecordInURL(ctx context.Context, record string) (bool, error) {
	re := RecordURLPattern(record)
	err := wait.AwaitCondition(ctx, p.clock, func() (bool, error) {
		return re.MatchString(p.doc.URL()), nil
	}, recordURLTimeout, 500*time.Millisecond)
	if errors.Is(err, wait.ErrConditionTimeout) {
		return false, fmt.Errorf("url %s does not address record %s: %w", p.doc.URL(), record, ErrNotObserved)
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
