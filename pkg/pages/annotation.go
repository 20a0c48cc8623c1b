package pages

import (
	"context"
	"regexp"
	"time"

	"github.com/entrhq/flowcheck/pkg/locator"
)

const annotationTimeout = 30 * time.Second

var (
	annotationTab       = locator.RolePattern("listitem", regexp.MustCompile("Annotation Mode")).Descend("svg.icon_annotationDoc")
	annotationDropdown  = locator.Title("Select Annotation Set")
	annotationNewSet    = locator.Role("button", "Create New Set")
	annotationNameInput = locator.CSS(`input#wpcdialog-name-input[type="text"]`)
	annotationCreate    = locator.Role("button", "Create")
)

// AnnotationPage is the viewer's annotation mode. Every step is best effort:
// failures are logged as warnings and reported as false.
type AnnotationPage struct {
	base
}

var _ AnnotationCreator = (*AnnotationPage)(nil)

func newAnnotationPage(doc locator.Document, opts Options) *AnnotationPage {
	return &AnnotationPage{base: newBase(doc, opts)}
}

func (p *AnnotationPage) clickThenSettle(ctx context.Context, c locator.Criteria, settle time.Duration) error {
	target := p.loc(c)
	if err := target.WaitUntil(ctx, locator.StateVisible, annotationTimeout); err != nil {
		return err
	}
	if err := target.Click(ctx, locator.ClickOptions{}); err != nil {
		return err
	}
	return p.pause(ctx, settle)
}

// SwitchToAnnotationTab enters annotation mode.
func (p *AnnotationPage) SwitchToAnnotationTab(ctx context.Context) bool {
	return p.soft("switch to Annotation Tab", func() error {
		return p.clickThenSettle(ctx, annotationTab, 2*time.Second)
	})
}

// OpenDropdown opens the annotation set selector.
func (p *AnnotationPage) OpenDropdown(ctx context.Context) bool {
	return p.soft("open Annotation Dropdown", func() error {
		return p.clickThenSettle(ctx, annotationDropdown, time.Second)
	})
}

// ClickCreateNewSet opens the new set dialog.
func (p *AnnotationPage) ClickCreateNewSet(ctx context.Context) bool {
	return p.soft("click Create New Set", func() error {
		return p.clickThenSettle(ctx, annotationNewSet, time.Second)
	})
}

// FillSetName types the new set's name.
func (p *AnnotationPage) FillSetName(ctx context.Context, name string) bool {
	return p.soft("fill Annotation Set name", func() error {
		input := p.loc(annotationNameInput)
		if err := input.WaitUntil(ctx, locator.StateVisible, annotationTimeout); err != nil {
			return err
		}
		return input.Fill(ctx, name, annotationTimeout)
	})
}

// ClickCreate submits the dialog.
func (p *AnnotationPage) ClickCreate(ctx context.Context) bool {
	return p.soft("click Create button", func() error {
		return p.clickThenSettle(ctx, annotationCreate, 2*time.Second)
	})
}

// CreateAnnotationSet runs every step even when an earlier one failed, and
// reports whether all of them succeeded.
func (p *AnnotationPage) CreateAnnotationSet(ctx context.Context, name string) bool {
	ok := p.SwitchToAnnotationTab(ctx)
	ok = p.OpenDropdown(ctx) && ok
	ok = p.ClickCreateNewSet(ctx) && ok
	ok = p.FillSetName(ctx, name) && ok
	ok = p.ClickCreate(ctx) && ok

	p.log.Infof("Annotation set '%s' creation attempted", name)
	return ok
}
