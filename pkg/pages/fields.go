package pages

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/entrhq/flowcheck/pkg/locator"
	"github.com/entrhq/flowcheck/pkg/wait"
)

// FieldPolicy is the default wait for a new field to show up in the grid:
// five checks four seconds apart.
var FieldPolicy = wait.Policy{Interval: 4 * time.Second, MaxAttempts: 5}

const (
	fieldsControlTimeout = 8 * time.Second
	fieldsDialogTimeout  = 12 * time.Second
)

var (
	fieldsLink        = locator.Role("link", "Fields")
	fieldsNewButton   = locator.Role("button", "New Field")
	fieldsNameInput   = locator.Placeholder("Name")
	fieldsLengthInput = locator.Role("textbox", "Length")
	fieldsCreate      = locator.Role("button", "Create Field")
	fieldsRows        = locator.CSS("tbody tr")
)

// FieldsPage is the project's field administration screen.
type FieldsPage struct {
	base
}

var _ FieldManager = (*FieldsPage)(nil)

func newFieldsPage(doc locator.Document, opts Options) *FieldsPage {
	return &FieldsPage{base: newBase(doc, opts)}
}

// Navigate opens the fields screen from the project menu.
func (p *FieldsPage) Navigate(ctx context.Context) error {
	if err := p.clickReady(ctx, p.loc(fieldsLink), fieldsControlTimeout); err != nil {
		return fmt.Errorf("open fields: %w", err)
	}
	return nil
}

// CreateLimitedTextField creates a text field capped at length characters.
func (p *FieldsPage) CreateLimitedTextField(ctx context.Context, name string, length int) error {
	if err := p.clickReady(ctx, p.loc(fieldsNewButton), fieldsDialogTimeout); err != nil {
		return fmt.Errorf("new field: %w", err)
	}

	nameInput := p.loc(fieldsNameInput)
	if err := p.expectReady(ctx, nameInput, fieldsControlTimeout); err != nil {
		return fmt.Errorf("field name: %w", err)
	}
	if err := nameInput.Fill(ctx, name, fieldsControlTimeout); err != nil {
		return fmt.Errorf("field name: %w", err)
	}

	lengthInput := p.loc(fieldsLengthInput)
	if err := lengthInput.Click(ctx, locator.ClickOptions{Timeout: fieldsControlTimeout}); err != nil {
		return fmt.Errorf("field length: %w", err)
	}
	if err := p.expectReady(ctx, lengthInput, fieldsControlTimeout); err != nil {
		return fmt.Errorf("field length: %w", err)
	}
	if err := lengthInput.Fill(ctx, strconv.Itoa(length), fieldsControlTimeout); err != nil {
		return fmt.Errorf("field length: %w", err)
	}

	if err := p.clickReady(ctx, p.loc(fieldsCreate), fieldsControlTimeout); err != nil {
		return fmt.Errorf("create field %q: %w", name, err)
	}
	p.log.Infof("Submitted field %q (length %d)", name, length)
	return nil
}

// VerifyFieldCreated polls the field grid for a row mentioning name. Running
// out of attempts yields false, not an error.
func (p *FieldsPage) VerifyFieldCreated(ctx context.Context, name string, policy wait.Policy) (bool, error) {
	rows := p.loc(fieldsRows)

	out, err := wait.Poll(ctx, p.clock, policy, func(ctx context.Context, attempt int) (bool, error) {
		n, err := rows.Count()
		if err != nil {
			return false, err
		}
		for i := 0; i < n; i++ {
			text, err := rows.Nth(i).InnerText(ctx, fieldsControlTimeout)
			if err != nil {
				return false, err
			}
			if strings.Contains(text, name) {
				return true, nil
			}
		}
		if attempt < policy.MaxAttempts {
			p.log.Infof("Retry %d: Field '%s' not found yet, retrying...", attempt, name)
		}
		return false, nil
	})
	if err != nil {
		return false, err
	}
	return out.OK, nil
}

func (p *FieldsPage) expectReady(ctx context.Context, l *locator.Locator, timeout time.Duration) error {
	if err := l.ExpectVisible(ctx, timeout); err != nil {
		return err
	}
	return l.ExpectEnabled(ctx, timeout)
}

func (p *FieldsPage) clickReady(ctx context.Context, l *locator.Locator, timeout time.Duration) error {
	if err := p.expectReady(ctx, l, timeout); err != nil {
		return err
	}
	return l.Click(ctx, locator.ClickOptions{Timeout: timeout})
}
