package dispatch

import (
	"bytes"
	"fmt"
	"go/format"
	"path/filepath"
	"strings"
	"text/template"
	"unicode"
	"unicode/utf8"

	"github.com/entrhq/flowcheck/pkg/config"
)

var testTemplate = template.Must(template.New("test").Parse(`{{if .BuildTag}}//go:build {{.BuildTag}}

{{end}}package {{.Package}}

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/entrhq/flowcheck/pkg/locator"
	"github.com/entrhq/flowcheck/pkg/scenario"
)

func {{.Func}}(t *testing.T) {
	runScenarios(t, withSession(scenario.Scenario{
		Name: {{printf "%q" .Description}},
		Steps: []scenario.Step{
			{
				Name: "Open the start page",
				Run: func(st *scenario.T) {
					err := documentOf(st).Goto(st.Context(), {{if .URL}}{{printf "%q" .URL}}{{else}}baseURL(){{end}}, locator.GotoOptions{
						WaitUntil: locator.LoadStateDOMContentLoaded,
					})
					require.NoError(st, err)
				},
			},
			// Add your steps here, for example:
			//
			//	{
			//		Name: "Submit the form",
			//		Run: func(st *scenario.T) {
			//			submit := locator.New(documentOf(st), locator.Role("button", "Submit"))
			//			require.NoError(st, submit.Click(st.Context(), locator.ClickOptions{}))
			//		},
			//	},
		},
	}))
}
`))

type testTemplateData struct {
	BuildTag    string
	Package     string
	Func        string
	Description string
	URL         string
}

func renderTest(s *settings, in createTestInput) (string, error) {
	base := strings.TrimSuffix(filepath.Base(in.Filename), testFileSuffix)
	name := exportedName(base)
	if name == "" {
		return "", fmt.Errorf("cannot derive a test name from '%s'", in.Filename)
	}
	description := in.Description
	if description == "" {
		description = strings.Join(strings.FieldsFunc(base, isSeparator), " ")
	}

	args, err := config.SplitCommand(s.cfg.Runner.TestCommand)
	if err != nil {
		return "", err
	}
	return render(testTemplate, testTemplateData{
		BuildTag:    buildTag(args),
		Package:     packageName(filepath.Dir(filepath.Join(s.cfg.Areas.Tests, in.Filename)), "e2e"),
		Func:        "Test" + name,
		Description: description,
		URL:         in.URL,
	})
}

var pageObjectTemplate = template.Must(template.New("page").Parse(`package {{.Package}}

import (
	"context"
	"fmt"

	"github.com/entrhq/flowcheck/pkg/locator"
)

// {{.Type}} is the page object for {{.Name}}.
type {{.Type}} struct {
	doc locator.Document
	url string
{{range .Selectors}}
	{{.Field}} *locator.Locator{{end}}
}

// New{{.Type}} binds the page object to doc.
func New{{.Type}}(doc locator.Document) *{{.Type}} {
	return &{{.Type}}{
		doc: doc,
		url: {{printf "%q" .URL}},
{{- range .Selectors}}
		{{.Field}}: locator.New(doc, locator.CSS({{printf "%q" .Selector}})),
{{- end}}
	}
}

// Navigate opens the page.
func (p *{{.Type}}) Navigate(ctx context.Context) error {
	err := p.doc.Goto(ctx, p.url, locator.GotoOptions{WaitUntil: locator.LoadStateDOMContentLoaded})
	if err != nil {
		return fmt.Errorf("open {{.Name}}: %w", err)
	}
	return nil
}

// Add your page methods here.
`))

type pageObjectData struct {
	Package   string
	Name      string
	Type      string
	URL       string
	Selectors []selectorField
}

type selectorField struct {
	Field    string
	Selector string
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s template: %w", t.Name(), err)
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("generated %s is not valid Go: %w", t.Name(), err)
	}
	return string(src), nil
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// exportedName turns free text such as "checkout page" or "checkoutPage"
// into an exported Go identifier. It returns "" when no identifier can be
// formed.
func exportedName(s string) string {
	var b strings.Builder
	for _, part := range strings.FieldsFunc(s, isSeparator) {
		r, size := utf8.DecodeRuneInString(part)
		b.WriteRune(unicode.ToUpper(r))
		b.WriteString(part[size:])
	}
	name := b.String()
	if r, _ := utf8.DecodeRuneInString(name); !unicode.IsLetter(r) {
		return ""
	}
	return name
}

// snakeCase converts an exported identifier to a file name stem:
// CheckoutPage becomes checkout_page.
func snakeCase(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]))
			nextLower := i > 0 && i+1 < len(runes) && unicode.IsUpper(runes[i-1]) && unicode.IsLower(runes[i+1])
			if prevLower || nextLower {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// packageName derives the Go package name for files in dir, falling back
// when the directory name has no usable letters.
func packageName(dir, fallback string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(filepath.Base(dir)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	name := b.String()
	if r, _ := utf8.DecodeRuneInString(name); !unicode.IsLetter(r) {
		return fallback
	}
	return name
}

// buildTag returns the first build tag a go test command line enables.
func buildTag(args []string) string {
	var tags string
	for i, arg := range args {
		switch {
		case (arg == "-tags" || arg == "--tags") && i+1 < len(args):
			tags = args[i+1]
		case strings.HasPrefix(arg, "-tags="):
			tags = strings.TrimPrefix(arg, "-tags=")
		case strings.HasPrefix(arg, "--tags="):
			tags = strings.TrimPrefix(arg, "--tags=")
		}
	}
	fields := strings.FieldsFunc(tags, func(r rune) bool { return r == ',' || r == ' ' })
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
