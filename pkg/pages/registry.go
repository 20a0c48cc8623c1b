package pages

import "github.com/entrhq/flowcheck/pkg/locator"

// Registry holds exactly one instance of every page object for a browsing
// session. All page objects are built up front; the registry never changes
// afterwards.
type Registry struct {
	login        *LoginPage
	projects     *ProjectsPage
	fields       *FieldsPage
	records      *RecordsPage
	documentView *DocumentViewPage
	annotations  *AnnotationPage
}

// NewRegistry builds every page object against doc.
func NewRegistry(doc locator.Document, opts Options) *Registry {
	opts = opts.withDefaults()
	return &Registry{
		login:        newLoginPage(doc, opts),
		projects:     newProjectsPage(doc, opts),
		fields:       newFieldsPage(doc, opts),
		records:      newRecordsPage(doc, opts),
		documentView: newDocumentViewPage(doc, opts),
		annotations:  newAnnotationPage(doc, opts),
	}
}

// Login returns the sign-in page.
func (r *Registry) Login() Authenticator { return r.login }

// Projects returns the project list page.
func (r *Registry) Projects() ProjectBrowser { return r.projects }

// Fields returns the field administration page.
func (r *Registry) Fields() FieldManager { return r.fields }

// Records returns the records grid page.
func (r *Registry) Records() RecordEditor { return r.records }

// DocumentView returns the single-record document viewer.
func (r *Registry) DocumentView() DocumentViewer { return r.documentView }

// Annotations returns the annotation panel of the document viewer.
func (r *Registry) Annotations() AnnotationCreator { return r.annotations }
