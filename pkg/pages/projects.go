package pages

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/entrhq/flowcheck/pkg/locator"
	"github.com/entrhq/flowcheck/pkg/wait"
)

// HeadingPolicy checks the projects heading up to three times. A heading
// showing other text is re-read at once; one that fails to render costs
// headingRetryDelay before the next attempt.
var HeadingPolicy = wait.Policy{Timeout: 6 * time.Second, MaxAttempts: 3, Immediate: true}

const headingRetryDelay = 2 * time.Second

var (
	projectsHeading  = locator.CSS("div.k-h1.x-flexbox_row span")
	projectsGoToLink = locator.Role("link", "Go to Records")
)

// ProjectsPage is the landing page listing the user's projects.
type ProjectsPage struct {
	base
}

var _ ProjectBrowser = (*ProjectsPage)(nil)

func newProjectsPage(doc locator.Document, opts Options) *ProjectsPage {
	return &ProjectsPage{base: newBase(doc, opts)}
}

// VerifyLoaded reports whether the page heading mentions projects.
func (p *ProjectsPage) VerifyLoaded(ctx context.Context) (bool, error) {
	heading := p.loc(projectsHeading)

	out, err := wait.Poll(ctx, p.clock, HeadingPolicy, func(ctx context.Context, attempt int) (bool, error) {
		if err := heading.WaitUntil(ctx, locator.StateVisible, HeadingPolicy.Timeout); err != nil {
			return false, p.backOff(ctx, err)
		}
		text, err := heading.First().InnerText(ctx, HeadingPolicy.Timeout)
		if err != nil {
			return false, p.backOff(ctx, err)
		}
		return strings.Contains(strings.TrimSpace(text), "Project"), nil
	})
	if err != nil {
		return false, err
	}
	return out.OK, nil
}

// backOff waits headingRetryDelay after a failed heading read and returns
// the failure.
func (p *ProjectsPage) backOff(ctx context.Context, err error) error {
	if pauseErr := p.pause(ctx, headingRetryDelay); pauseErr != nil {
		return pauseErr
	}
	return err
}

// OpenProject enters the project through its "Go to Records" link.
func (p *ProjectsPage) OpenProject(ctx context.Context, name string) error {
	link := p.loc(projectsGoToLink)
	if err := link.WaitUntil(ctx, locator.StateVisible, 30*time.Second); err != nil {
		return fmt.Errorf("open project %q: %w", name, err)
	}
	// The link renders before its handler is bound.
	if err := p.pause(ctx, 2*time.Second); err != nil {
		return err
	}
	if err := link.Click(ctx, locator.ClickOptions{}); err != nil {
		return fmt.Errorf("open project %q: %w", name, err)
	}
	if err := p.doc.WaitForLoadState(ctx, locator.LoadStateDOMContentLoaded, 120*time.Second); err != nil {
		return fmt.Errorf("open project %q: %w", name, err)
	}
	return p.pause(ctx, 5*time.Second)
}

// VerifyProjectOpened reports whether the document title contains
// expectedTitle.
func (p *ProjectsPage) VerifyProjectOpened(ctx context.Context, expectedTitle string) (bool, error) {
	title, err := p.Title(ctx)
	if err != nil {
		return false, err
	}
	return strings.Contains(title, expectedTitle), nil
}

// Title returns the document title.
func (p *ProjectsPage) Title(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	title, err := p.doc.Title()
	if err != nil {
		return "", fmt.Errorf("read page title: %w", err)
	}
	return title, nil
}
