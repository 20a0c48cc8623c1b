package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"strings"

	"github.com/entrhq/flowcheck/pkg/workspace"
)

// longTestLines is the length above which a test file is flagged for
// splitting.
const longTestLines = 100

const longTestSuggestion = "Test file is long - consider splitting into multiple files"

// Analysis holds the heuristic findings for one test file.
type Analysis struct {
	File        string
	Tests       []string
	Issues      []string
	Suggestions []string
}

// AnalyzeSource inspects Go test source for common problems.
func AnalyzeSource(filename string, src []byte) *Analysis {
	a := &Analysis{File: filename}

	long := strings.Count(strings.TrimRight(string(src), "\n"), "\n")+1 > longTestLines

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.SkipObjectResolution)
	if err != nil {
		a.Issues = append(a.Issues, fmt.Sprintf("File does not parse: %v", err))
		if long {
			a.Suggestions = append(a.Suggestions, longTestSuggestion)
		}
		return a
	}
	a.Tests = testFuncs(file)

	var grouped, sleeps, asserts bool
	ast.Inspect(file, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.CallExpr:
			pkg, name, ok := selector(n.Fun)
			if !ok {
				return true
			}
			switch {
			case pkg == "time" && name == "Sleep":
				sleeps = true
			case name == "Run" && (pkg == "t" || pkg == "scenario"):
				grouped = true
			case pkg == "require" || pkg == "assert":
				asserts = true
			case pkg == "t" && (strings.HasPrefix(name, "Error") || strings.HasPrefix(name, "Fatal") || strings.HasPrefix(name, "Fail")):
				asserts = true
			}
		case *ast.CompositeLit:
			if pkg, name, ok := selector(n.Type); ok && pkg == "scenario" && (name == "Step" || name == "Scenario") {
				grouped = true
			}
		}
		return true
	})

	if len(a.Tests) == 0 {
		a.Issues = append(a.Issues, "No Test functions found - go test will not run anything in this file")
	}
	if sleeps {
		a.Issues = append(a.Issues, "Avoid time.Sleep - wait for an observable condition with Locator.WaitUntil or wait.AwaitCondition instead")
	}
	if !asserts {
		a.Issues = append(a.Issues, "No assertions found - tests should check outcomes with require or assert")
	}
	if !grouped {
		a.Suggestions = append(a.Suggestions, "Consider grouping related checks into scenario steps or t.Run subtests")
	}
	if long {
		a.Suggestions = append(a.Suggestions, longTestSuggestion)
	}
	return a
}

func selector(expr ast.Expr) (pkg, name string, ok bool) {
	sel, isSel := expr.(*ast.SelectorExpr)
	if !isSel {
		return "", "", false
	}
	if id, isIdent := sel.X.(*ast.Ident); isIdent {
		return id.Name, sel.Sel.Name, true
	}
	return "", sel.Sel.Name, true
}

// testFuncs returns the top-level TestXxx functions of file.
func testFuncs(file *ast.File) []string {
	var names []string
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv != nil || !strings.HasPrefix(fn.Name.Name, "Test") || fn.Name.Name == "TestMain" {
			continue
		}
		names = append(names, fn.Name.Name)
	}
	return names
}

// Report formats the analysis together with the analysed source.
func (a *Analysis) Report(src string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Test Analysis for %s\n\n", a.File)

	if len(a.Issues) > 0 {
		b.WriteString("⚠️ Issues Found:\n")
		for _, issue := range a.Issues {
			fmt.Fprintf(&b, "  - %s\n", issue)
		}
	} else {
		b.WriteString("✅ No major issues found\n")
	}

	if len(a.Suggestions) > 0 {
		b.WriteString("\n💡 Suggestions:\n")
		for _, s := range a.Suggestions {
			fmt.Fprintf(&b, "  - %s\n", s)
		}
	}

	b.WriteString("\n📝 Test Content:\n")
	b.WriteString(codeBlock("go", src))
	return b.String()
}

func (d *Dispatcher) analyzeTest(_ context.Context, args json.RawMessage) (string, error) {
	in, err := decode[fileInput](args)
	if err != nil {
		return "", err
	}
	path, err := d.settings().guard.Resolve(workspace.Tests, in.Filename)
	if err != nil {
		return "", err
	}
	src, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("test file '%s' not found", in.Filename)
		}
		return "", fmt.Errorf("failed to read '%s': %w", in.Filename, err)
	}
	return AnalyzeSource(in.Filename, src).Report(string(src)), nil
}
