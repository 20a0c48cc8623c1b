package browser

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/flowcheck/pkg/locator"
)

// Session is one isolated browsing session: a browser context and its page.
type Session struct {
	Name      string
	Engine    Engine
	Context   playwright.BrowserContext
	Page      playwright.Page
	CreatedAt time.Time

	tracePath string
	release   func(name string)
	closeOnce sync.Once
	closeErr  error
}

// Document returns the locator.Document driving the session's page.
func (s *Session) Document() locator.Document {
	return &Document{page: s.Page}
}

// TracePath is where the trace archive is written on Close, or "".
func (s *Session) TracePath() string {
	return s.tracePath
}

// Info returns the session's metadata.
func (s *Session) Info() SessionInfo {
	return SessionInfo{
		Name:       s.Name,
		Engine:     s.Engine,
		CurrentURL: s.Page.URL(),
		CreatedAt:  s.CreatedAt,
		Tracing:    s.tracePath != "",
	}
}

// Close stops tracing, writing the archive, and closes the context. Safe to
// call multiple times.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.tracePath != "" {
			if err := s.Context.Tracing().Stop(s.tracePath); err != nil {
				errs = append(errs, fmt.Errorf("failed to save trace: %w", err))
			}
		}
		if err := s.Context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
		if s.release != nil {
			s.release(s.Name)
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
