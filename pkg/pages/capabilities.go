package pages

import (
	"context"

	"github.com/entrhq/flowcheck/pkg/wait"
)

// Navigable pages can bring the browser to their screen.
type Navigable interface {
	Navigate(ctx context.Context) error
}

// Credentials for signing in.
type Credentials struct {
	Username string
	Password string
}

// Authenticator signs a user in and confirms who is signed in.
type Authenticator interface {
	Navigable
	Login(ctx context.Context, creds Credentials) error
	VerifyLogin(ctx context.Context, expectedName string) error
	DisplayedUsername(ctx context.Context) (string, error)
}

// ProjectBrowser lists and opens projects.
type ProjectBrowser interface {
	VerifyLoaded(ctx context.Context) (bool, error)
	OpenProject(ctx context.Context, name string) error
	VerifyProjectOpened(ctx context.Context, expectedTitle string) (bool, error)
	Title(ctx context.Context) (string, error)
}

// FieldManager creates project fields.
type FieldManager interface {
	Navigable
	CreateLimitedTextField(ctx context.Context, name string, length int) error
	VerifyFieldCreated(ctx context.Context, name string, policy wait.Policy) (bool, error)
}

// RecordEditor works with the records grid: selection, mass edit, view
// customisation and search.
type RecordEditor interface {
	Navigable
	Open(ctx context.Context, forceRefresh bool) error
	SelectAllRecords(ctx context.Context) error
	RecordsSelected(ctx context.Context) (bool, error)
	PerformMassEdit(ctx context.Context, field, text string) error
	CustomizeViewToShowField(ctx context.Context, field string) error
	FieldColumnVisible(ctx context.Context, field string) (bool, error)
	CountRowsContaining(ctx context.Context, text string) (int, error)
	Search(ctx context.Context, query string) error
	ExpectSearchResult(ctx context.Context, expected string) error
	SearchCounts(ctx context.Context) (SearchCounts, error)
	RunSearches(ctx context.Context, queries []string, expected string) error
}

// DocumentViewer inspects single documents.
type DocumentViewer interface {
	Navigable
	VerifyHighlights(ctx context.Context, text string) (int, error)
	HighlightsInField(ctx context.Context, text, field string) (bool, error)
	NavigateToRecord(ctx context.Context, record string) error
	VerifyRecordInURL(ctx context.Context, record string) (bool, error)
}

// AnnotationCreator creates annotation sets. Creation is best effort: it
// reports whether every step succeeded but never fails.
type AnnotationCreator interface {
	CreateAnnotationSet(ctx context.Context, name string) bool
}
