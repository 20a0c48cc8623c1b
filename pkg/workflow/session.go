package workflow

import (
	"context"

	"github.com/entrhq/flowcheck/pkg/browser"
	"github.com/entrhq/flowcheck/pkg/pages"
)

// Pages is the view of the page registry a journey needs. *pages.Registry
// implements it.
type Pages interface {
	Login() pages.Authenticator
	Projects() pages.ProjectBrowser
	Fields() pages.FieldManager
	Records() pages.RecordEditor
	DocumentView() pages.DocumentViewer
	Annotations() pages.AnnotationCreator
}

var _ Pages = (*pages.Registry)(nil)

// Session is one isolated browsing session with its page objects.
type Session interface {
	Pages() Pages
	Close() error
}

// Opener starts a fresh session for the named scenario. Page objects report
// progress and soft failures to log.
type Opener func(ctx context.Context, name string, log pages.Logger) (Session, error)

type browserSession struct {
	session  *browser.Session
	registry *pages.Registry
}

func (s *browserSession) Pages() Pages { return s.registry }

func (s *browserSession) Close() error { return s.session.Close() }

// BrowserOpener opens sessions on a started launcher and builds a page
// registry over each.
func BrowserOpener(l *browser.Launcher, opts pages.Options) Opener {
	return func(ctx context.Context, name string, log pages.Logger) (Session, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := l.NewSession(name)
		if err != nil {
			return nil, err
		}
		o := opts
		o.Log = log
		return &browserSession{session: s, registry: pages.NewRegistry(s.Document(), o)}, nil
	}
}
