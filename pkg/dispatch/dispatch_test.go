package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/flowcheck/pkg/config"
	"github.com/entrhq/flowcheck/pkg/scenario"
	"github.com/entrhq/flowcheck/pkg/workspace"
)

// echoArgs prints every argument appended to the command on its own line.
const echoArgs = `sh -c 'printf "%s\n" "$@"' sh`

func newTestDispatcher(t *testing.T, mutate ...func(*config.Config)) *Dispatcher {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Runner.TestCommand = echoArgs
	cfg.Runner.PlaywrightCommand = echoArgs
	for _, m := range mutate {
		m(cfg)
	}
	d, err := New(t.TempDir(), cfg, nil)
	require.NoError(t, err)
	d.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return d
}

func call(t *testing.T, d *Dispatcher, name string, args any) *Result {
	t.Helper()
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	return d.Call(context.Background(), name, raw)
}

func writeProjectFile(t *testing.T, d *Dispatcher, rel, content string) string {
	t.Helper()
	path := filepath.Join(d.Dir(), filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func readProjectFile(t *testing.T, d *Dispatcher, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(d.Dir(), filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

const passingTest = `package e2e

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogin(t *testing.T) {
	t.Run("valid user", func(t *testing.T) {
		require.True(t, true)
	})
}

func TestLogout(t *testing.T) {
	require.True(t, true)
}
`

func TestParseKind(t *testing.T) {
	for _, k := range Kinds() {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}

	_, err := ParseKind("delete_everything")
	assert.ErrorIs(t, err, ErrUnknownOperation)
	assert.Equal(t, "Kind(99)", Kind(99).String())
}

func TestProfiles(t *testing.T) {
	d := newTestDispatcher(t)

	basic := d.Tools(ProfileBasic)
	var names []string
	for _, tool := range basic {
		names = append(names, tool.Name())
	}
	assert.Equal(t, []string{"list_tests", "read_test", "run_test", "create_test", "update_test", "get_test_results", "get_config"}, names)
	assert.Len(t, d.Tools(ProfileFull), 15)

	assert.Len(t, ProfileBasic.Resources(), 2)
	assert.Len(t, ProfileFull.Resources(), 4)

	p, err := ParseProfile("")
	require.NoError(t, err)
	assert.Equal(t, ProfileFull, p)
	_, err = ParseProfile("admin")
	assert.Error(t, err)
}

// minimalArgs builds the smallest argument object the schema requires.
func minimalArgs(t *testing.T, tool *Tool) json.RawMessage {
	args := map[string]any{}
	for _, name := range tool.Schema.Required {
		prop := tool.Schema.Properties[name]
		require.NotNil(t, prop, "%s: required property %s has no schema", tool.Name(), name)
		switch prop.Type {
		case "string":
			args[name] = "value"
		case "array":
			args[name] = []any{}
		default:
			t.Fatalf("%s: unexpected required type %s", tool.Name(), prop.Type)
		}
	}
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	return raw
}

func TestEveryToolAcceptsRequiredFieldsWithDefaults(t *testing.T) {
	d := newTestDispatcher(t)

	for _, tool := range d.Tools(ProfileFull) {
		t.Run(tool.Name(), func(t *testing.T) {
			assert.Equal(t, "object", tool.Schema.Type)
			assert.NotEmpty(t, tool.Description)

			normalized, err := tool.normalize(minimalArgs(t, tool))
			require.NoError(t, err)

			var got map[string]any
			require.NoError(t, json.Unmarshal(normalized, &got))
			for name, prop := range tool.Schema.Properties {
				if prop.Default != nil {
					assert.Contains(t, got, name, "default for %s not applied", name)
				}
			}
		})
	}
}

func TestDefaultsAreApplied(t *testing.T) {
	d := newTestDispatcher(t)

	tool, err := d.Tool(GenerateTestData)
	require.NoError(t, err)
	normalized, err := tool.normalize(json.RawMessage(`{"dataType":"users"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"dataType":"users","count":5}`, string(normalized))

	tool, err = d.Tool(RunTest)
	require.NoError(t, err)
	normalized, err = tool.normalize(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"headed":false,"debug":false}`, string(normalized))
}

func TestInvalidArguments(t *testing.T) {
	d := newTestDispatcher(t)

	res := call(t, d, "read_test", map[string]any{})
	assert.True(t, res.IsError)
	assert.Contains(t, res.Text, "invalid arguments for read_test")

	res = call(t, d, "generate_test_data", map[string]any{"dataType": "users", "count": 0})
	assert.True(t, res.IsError)

	res = call(t, d, "run_test", map[string]any{"project": "netscape"})
	assert.True(t, res.IsError)

	res = d.Call(context.Background(), "read_test", json.RawMessage(`[1,2]`))
	assert.True(t, res.IsError)
	assert.Contains(t, res.Text, "must be a JSON object")
}

func TestUnknownOperation(t *testing.T) {
	d := newTestDispatcher(t)

	res := call(t, d, "format_disk", nil)
	assert.True(t, res.IsError)
	assert.True(t, strings.HasPrefix(res.Text, "Error: "))
	assert.ErrorIs(t, res.Err, ErrUnknownOperation)

	res = d.Invoke(context.Background(), Kind(-1), nil)
	assert.ErrorIs(t, res.Err, ErrUnknownOperation)

	_, err := d.ReadResource(context.Background(), "flowcheck://secrets")
	assert.ErrorIs(t, err, ErrUnknownOperation)
}

func TestListAndReadTests(t *testing.T) {
	d := newTestDispatcher(t)

	res := call(t, d, "list_tests", nil)
	require.False(t, res.IsError, res.Text)
	assert.Equal(t, "Found 0 test file(s):\nNo tests found", res.Text)

	writeProjectFile(t, d, "e2e/login_test.go", passingTest)
	writeProjectFile(t, d, "e2e/helpers.go", "package e2e\n")
	writeProjectFile(t, d, "e2e/search/search_test.go", "package search\n")

	res = call(t, d, "list_tests", nil)
	require.False(t, res.IsError, res.Text)
	assert.Equal(t, "Found 2 test file(s):\n- login_test.go\n- search/search_test.go", res.Text)

	res = call(t, d, "read_test", map[string]any{"filename": "login_test.go"})
	require.False(t, res.IsError, res.Text)
	assert.True(t, strings.HasPrefix(res.Text, "Content of login_test.go:\n\n```go\npackage e2e"))

	res = call(t, d, "read_test", map[string]any{"filename": "missing_test.go"})
	assert.True(t, res.IsError)
	assert.Contains(t, res.Text, "not found")
}

func TestPathsStayInsideTheirArea(t *testing.T) {
	d := newTestDispatcher(t)
	writeProjectFile(t, d, "go.mod", "module example\n")

	for _, name := range []string{"../go.mod", "/etc/passwd", "nested/../../go.mod"} {
		res := call(t, d, "read_test", map[string]any{"filename": name})
		assert.True(t, res.IsError, name)
		assert.ErrorIs(t, res.Err, workspace.ErrOutsideArea, name)
	}

	res := call(t, d, "update_test", map[string]any{"filename": "../pkg/evil_test.go", "content": "package x"})
	assert.ErrorIs(t, res.Err, workspace.ErrOutsideArea)
	assert.NoFileExists(t, filepath.Join(d.Dir(), "pkg", "evil_test.go"))
}

func TestCreateTestTwiceKeepsFirst(t *testing.T) {
	d := newTestDispatcher(t)

	res := call(t, d, "create_test", map[string]any{"filename": "login_test.go", "content": passingTest})
	require.False(t, res.IsError, res.Text)
	assert.Equal(t, "✅ Successfully created test file: e2e/login_test.go", res.Text)

	res = call(t, d, "create_test", map[string]any{"filename": "login_test.go", "content": "package e2e\n"})
	require.True(t, res.IsError)
	var exists *AlreadyExistsError
	require.ErrorAs(t, res.Err, &exists)
	assert.Equal(t, "e2e/login_test.go", exists.Path)
	assert.ErrorIs(t, res.Err, os.ErrExist)
	assert.Contains(t, res.Text, "update_test")

	assert.Equal(t, passingTest, readProjectFile(t, d, "e2e/login_test.go"))
}

func TestCreateTestRefusesDeclaredNames(t *testing.T) {
	d := newTestDispatcher(t)
	writeProjectFile(t, d, "e2e/full_workflow_test.go", passingTest+"\nfunc TestFullWorkflow(t *testing.T) {}\n")
	writeProjectFile(t, d, "e2e/helpers_test.go", "package e2e\n\nfunc baseURL() string { return \"\" }\n")

	res := call(t, d, "create_test", map[string]any{"filename": "full-workflow_test.go"})
	require.True(t, res.IsError)
	var exists *AlreadyExistsError
	require.ErrorAs(t, res.Err, &exists)
	assert.Equal(t, "TestFullWorkflow", exists.Name)
	assert.Equal(t, "e2e/full_workflow_test.go", exists.Path)
	assert.Contains(t, res.Text, "rename the test")
	assert.NoFileExists(t, filepath.Join(d.Dir(), "e2e", "full-workflow_test.go"))

	res = call(t, d, "create_test", map[string]any{
		"filename": "search_test.go",
		"content":  "package e2e\n\nfunc baseURL() string { return \"x\" }\n",
	})
	require.ErrorAs(t, res.Err, &exists)
	assert.Equal(t, "baseURL", exists.Name)
	assert.Equal(t, "e2e/helpers_test.go", exists.Path)

	res = call(t, d, "create_test", map[string]any{"filename": "search_test.go"})
	require.False(t, res.IsError, res.Text)
}

func TestCreateTestRejectsNonTestFiles(t *testing.T) {
	d := newTestDispatcher(t)
	res := call(t, d, "create_test", map[string]any{"filename": "login.go"})
	assert.True(t, res.IsError)
	assert.Contains(t, res.Text, "_test.go")
}

func TestCreateTestFromTemplate(t *testing.T) {
	d := newTestDispatcher(t, func(c *config.Config) { c.Runner.TestCommand = "go test -tags e2e,slow" })

	res := call(t, d, "create_test", map[string]any{
		"filename":    "checkout_flow_test.go",
		"description": "Checkout with a saved card",
		"url":         "https://shop.example.test/cart",
	})
	require.False(t, res.IsError, res.Text)
	assert.Contains(t, res.Text, "Template:\n```go\n//go:build e2e")

	src := readProjectFile(t, d, "e2e/checkout_flow_test.go")
	_, err := parser.ParseFile(token.NewFileSet(), "checkout_flow_test.go", src, 0)
	require.NoError(t, err)
	assert.Contains(t, src, "func TestCheckoutFlow(t *testing.T) {")
	assert.Regexp(t, `Name:\s+"Checkout with a saved card",`, src)
	assert.Contains(t, src, `"https://shop.example.test/cart"`)

	analysis := AnalyzeSource("checkout_flow_test.go", []byte(src))
	assert.Empty(t, analysis.Issues)
	assert.Empty(t, analysis.Suggestions)
	assert.Equal(t, []string{"TestCheckoutFlow"}, analysis.Tests)
}

func TestCreateTestTemplateWithoutURLOrTags(t *testing.T) {
	d := newTestDispatcher(t, func(c *config.Config) { c.Runner.TestCommand = "go test" })

	res := call(t, d, "create_test", map[string]any{"filename": "smoke_test.go"})
	require.False(t, res.IsError, res.Text)

	src := readProjectFile(t, d, "e2e/smoke_test.go")
	assert.True(t, strings.HasPrefix(src, "package e2e\n"))
	assert.Contains(t, src, "baseURL()")
	assert.Regexp(t, `Name:\s+"smoke",`, src)
}

func TestUpdateTestOverwrites(t *testing.T) {
	d := newTestDispatcher(t)
	writeProjectFile(t, d, "e2e/login_test.go", passingTest)

	res := call(t, d, "update_test", map[string]any{"filename": "login_test.go", "content": "package e2e\n"})
	require.False(t, res.IsError, res.Text)
	assert.Equal(t, "✅ Successfully updated test file: e2e/login_test.go", res.Text)
	assert.Equal(t, "package e2e\n", readProjectFile(t, d, "e2e/login_test.go"))

	// Update also creates.
	res = call(t, d, "update_test", map[string]any{"filename": "new_test.go", "content": "package e2e\n"})
	require.False(t, res.IsError, res.Text)

	res = call(t, d, "update_test", map[string]any{"filename": "notes.txt", "content": "hi"})
	assert.True(t, res.IsError)
}

func TestConcurrentUpdatesAreSerialised(t *testing.T) {
	d := newTestDispatcher(t)

	const writers = 16
	contents := make(map[string]bool, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		content := fmt.Sprintf("package e2e\n\n// writer %d\n%s", i, strings.Repeat("// padding\n", 500))
		contents[content] = true
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := call(t, d, "update_test", map[string]any{"filename": "shared_test.go", "content": content})
			assert.False(t, res.IsError, res.Text)
		}()
	}
	wg.Wait()

	assert.True(t, contents[readProjectFile(t, d, "e2e/shared_test.go")], "file must hold exactly one writer's content")
	assert.Zero(t, d.locks.len())
}

func TestGeneratePageObject(t *testing.T) {
	d := newTestDispatcher(t)
	args := map[string]any{
		"pageName": "checkoutPage",
		"url":      "https://shop.example.test/checkout",
		"selectors": []map[string]string{
			{"name": "submitButton", "selector": "button[type=submit]"},
			{"name": "card number", "selector": "#card"},
		},
	}

	res := call(t, d, "generate_page_object", args)
	require.False(t, res.IsError, res.Text)
	assert.True(t, strings.HasPrefix(res.Text, "✅ Successfully created Page Object: pkg/pages/checkout_page.go"))

	src := readProjectFile(t, d, "pkg/pages/checkout_page.go")
	_, err := parser.ParseFile(token.NewFileSet(), "checkout_page.go", src, 0)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(src, "package pages\n"))
	assert.Contains(t, src, "type CheckoutPage struct {")
	assert.Contains(t, src, "func NewCheckoutPage(doc locator.Document) *CheckoutPage {")
	assert.Regexp(t, `SubmitButton:\s+locator\.New\(doc, locator\.CSS\("button\[type=submit\]"\)\),`, src)
	assert.Regexp(t, `CardNumber:\s+locator\.New\(doc, locator\.CSS\("#card"\)\),`, src)
	assert.Regexp(t, `url:\s+"https://shop\.example\.test/checkout",`, src)

	res = call(t, d, "generate_page_object", args)
	var exists *AlreadyExistsError
	assert.ErrorAs(t, res.Err, &exists)
}

func TestGeneratePageObjectRefusesDeclaredNames(t *testing.T) {
	d := newTestDispatcher(t)
	writeProjectFile(t, d, "pkg/pages/login.go", "package pages\n\ntype LoginPage struct{}\n")
	writeProjectFile(t, d, "pkg/pages/search.go", "package pages\n\nfunc NewSearchPage() {}\n")
	writeProjectFile(t, d, "pkg/pages/export_test.go", "package pages_test\n\ntype ReportPage struct{}\n")

	tests := []struct {
		pageName string
		name     string
		file     string
	}{
		{"Login Page", "LoginPage", "pkg/pages/login.go"},
		{"searchPage", "NewSearchPage", "pkg/pages/search.go"},
	}
	for _, tt := range tests {
		t.Run(tt.pageName, func(t *testing.T) {
			res := call(t, d, "generate_page_object", map[string]any{"pageName": tt.pageName})
			require.True(t, res.IsError)
			var exists *AlreadyExistsError
			require.ErrorAs(t, res.Err, &exists)
			assert.Equal(t, tt.name, exists.Name)
			assert.Equal(t, tt.file, exists.Path)
			assert.Contains(t, res.Text, "is already declared in")
		})
	}
	assert.NoFileExists(t, filepath.Join(d.Dir(), "pkg", "pages", "login_page.go"))
	assert.NoFileExists(t, filepath.Join(d.Dir(), "pkg", "pages", "search_page.go"))

	// An external test package is a separate namespace.
	res := call(t, d, "generate_page_object", map[string]any{"pageName": "Report Page"})
	require.False(t, res.IsError, res.Text)
}

func TestGeneratePageObjectRejectsBadNames(t *testing.T) {
	d := newTestDispatcher(t)

	tests := []map[string]any{
		{"pageName": "123"},
		{"pageName": "search test"},
		{"pageName": "search", "selectors": []map[string]string{{"name": "go", "selector": "a"}, {"name": "Go", "selector": "b"}}},
		{"pageName": "search", "selectors": []map[string]string{{"name": "!!", "selector": "a"}}},
	}
	for _, args := range tests {
		res := call(t, d, "generate_page_object", args)
		assert.True(t, res.IsError, "%v", args)
	}
}

func TestGenerateTestData(t *testing.T) {
	d := newTestDispatcher(t)

	res := call(t, d, "generate_test_data", map[string]any{"dataType": "users"})
	require.False(t, res.IsError, res.Text)
	assert.True(t, strings.HasPrefix(res.Text, "✅ Successfully created test data: fixtures/users.json"))

	var records []testRecord
	require.NoError(t, json.Unmarshal([]byte(readProjectFile(t, d, "fixtures/users.json")), &records))
	require.Len(t, records, 5)
	assert.Equal(t, 1, records[0].ID)
	assert.Equal(t, "users_5", records[4].Name)
	assert.True(t, d.now().Equal(records[0].CreatedAt))

	res = call(t, d, "generate_test_data", map[string]any{"dataType": "users", "count": 2})
	assert.ErrorAs(t, res.Err, new(*AlreadyExistsError))

	res = call(t, d, "generate_test_data", map[string]any{"dataType": "../users"})
	assert.True(t, res.IsError)
}

func TestAnalyzeTest(t *testing.T) {
	d := newTestDispatcher(t)
	writeProjectFile(t, d, "e2e/login_test.go", passingTest)
	writeProjectFile(t, d, "e2e/flaky_test.go", `package e2e

import (
	"testing"
	"time"
)

func TestFlaky(t *testing.T) {
	time.Sleep(5 * time.Second)
}
`)

	res := call(t, d, "analyze_test", map[string]any{"filename": "login_test.go"})
	require.False(t, res.IsError, res.Text)
	assert.Contains(t, res.Text, "📊 Test Analysis for login_test.go")
	assert.Contains(t, res.Text, "✅ No major issues found")
	assert.NotContains(t, res.Text, "💡 Suggestions:")

	res = call(t, d, "analyze_test", map[string]any{"filename": "flaky_test.go"})
	require.False(t, res.IsError, res.Text)
	assert.Contains(t, res.Text, "⚠️ Issues Found:")
	assert.Contains(t, res.Text, "Avoid time.Sleep")
	assert.Contains(t, res.Text, "No assertions found")
	assert.Contains(t, res.Text, "💡 Suggestions:")
	assert.Contains(t, res.Text, "📝 Test Content:\n```go\npackage e2e")
}

func TestAnalyzeSourceHeuristics(t *testing.T) {
	long := "package e2e\n\nimport \"testing\"\n\nfunc TestLong(t *testing.T) {\n" +
		strings.Repeat("\tt.Log(\"x\")\n", 100) + "\tt.Fatal(\"done\")\n}\n"
	a := AnalyzeSource("long_test.go", []byte(long))
	assert.Empty(t, a.Issues)
	assert.Contains(t, a.Suggestions, longTestSuggestion)

	a = AnalyzeSource("broken_test.go", []byte("package e2e\nfunc {"))
	require.Len(t, a.Issues, 1)
	assert.Contains(t, a.Issues[0], "does not parse")

	a = AnalyzeSource("helpers_test.go", []byte("package e2e\n\nfunc helper() error { return nil }\n"))
	assert.Contains(t, a.Issues[0], "No Test functions found")
}

func TestRunTestAssemblesCommand(t *testing.T) {
	d := newTestDispatcher(t)
	writeProjectFile(t, d, "e2e/login_test.go", passingTest)

	res := call(t, d, "run_test", map[string]any{
		"filename": "login_test.go",
		"headed":   true,
		"project":  "firefox",
		"grep":     "Full Workflow.*",
	})
	require.False(t, res.IsError, res.Text)
	assert.True(t, strings.HasPrefix(res.Text, "✅ Test execution completed in "))
	assert.Contains(t, res.Text, "```\n./e2e\n-run\n^(TestLogin|TestLogout)$\n-v\n-timeout=30m0s\n-args\n-headed\n-browser=firefox\n-grep=Full Workflow.*\n```")

	res = call(t, d, "run_test", nil)
	require.False(t, res.IsError, res.Text)
	assert.Contains(t, res.Text, "```\n./e2e\n-v\n-timeout=30m0s\n```")
}

func TestRunTestPassesRunnerTimeout(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		want    string
	}{
		{"configured", 45 * time.Minute, "-timeout=45m0s"},
		{"unlimited", 0, "-timeout=0s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDispatcher(t, func(c *config.Config) { c.Runner.Timeout = tt.timeout })

			args, err := testCommand(d.settings(), runTestInput{Headed: true})
			require.NoError(t, err)
			assert.Contains(t, args, tt.want)

			flag := slices.Index(args, tt.want)
			assert.Less(t, flag, slices.Index(args, "-args"), "go test flags must precede -args")
		})
	}
}

func TestRunTestRejectsFilesWithoutTests(t *testing.T) {
	d := newTestDispatcher(t)
	writeProjectFile(t, d, "e2e/helpers_test.go", "package e2e\n")

	res := call(t, d, "run_test", map[string]any{"filename": "helpers_test.go"})
	assert.True(t, res.IsError)
	assert.Contains(t, res.Text, "no Test functions found")

	res = call(t, d, "run_test", map[string]any{"grep": "("})
	assert.True(t, res.IsError)
	assert.Contains(t, res.Text, "invalid grep pattern")
}

func TestRunTestReportsFailure(t *testing.T) {
	d := newTestDispatcher(t, func(c *config.Config) {
		c.Runner.TestCommand = `sh -c 'echo "--- FAIL: TestLogin"; echo boom >&2; exit 3' sh`
	})

	res := call(t, d, "run_test", nil)
	require.True(t, res.IsError)
	assert.True(t, strings.HasPrefix(res.Text, "❌ Test execution failed:\n\n```\n"))
	assert.Contains(t, res.Text, "--- FAIL: TestLogin")
	assert.Contains(t, res.Text, "boom")
	assert.Contains(t, res.Text, "exit code 3")

	var failure *SubprocessFailure
	require.ErrorAs(t, res.Err, &failure)
	assert.Equal(t, 3, failure.ExitCode)
}

func TestRunnerCapsOutput(t *testing.T) {
	r := NewRunner(t.TempDir(), 10, 0, nil)
	out, err := r.Run(context.Background(), []string{"sh", "-c", "printf 0123456789abcdef"})
	require.NoError(t, err)
	assert.True(t, out.Truncated)
	assert.True(t, strings.HasPrefix(out.Text, "0123456789\n... output truncated at 10 bytes"))
}

func TestRunnerTimeout(t *testing.T) {
	r := NewRunner(t.TempDir(), 0, 100*time.Millisecond, nil)
	_, err := r.Run(context.Background(), []string{"sleep", "5"})

	var failure *SubprocessFailure
	require.ErrorAs(t, err, &failure)
	assert.True(t, failure.TimedOut)
	assert.Contains(t, failure.Error(), "timed out")
}

func TestRunnerMissingBinary(t *testing.T) {
	r := NewRunner(t.TempDir(), 0, 0, nil)
	_, err := r.Run(context.Background(), []string{"flowcheck-no-such-binary"})
	require.Error(t, err)
	var failure *SubprocessFailure
	assert.False(t, errors.As(err, &failure))

	_, err = r.Start(nil)
	assert.Error(t, err)
}

func TestDetachedCommands(t *testing.T) {
	d := newTestDispatcher(t)

	res := call(t, d, "codegen", map[string]any{"url": "https://shop.example.test"})
	require.False(t, res.IsError, res.Text)
	assert.Equal(t, "✅ Playwright Codegen launched! Recording from https://shop.example.test", res.Text)

	res = call(t, d, "codegen", nil)
	require.False(t, res.IsError, res.Text)
	assert.Equal(t, "✅ Playwright Codegen launched! Ready to record", res.Text)

	res = call(t, d, "run_test_ui", nil)
	require.False(t, res.IsError, res.Text)
	assert.Contains(t, res.Text, "Interactive test run launched")
}

func TestShowTraceOpensNewest(t *testing.T) {
	d := newTestDispatcher(t)

	res := call(t, d, "show_trace", nil)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Text, "no trace archives found")

	old := writeProjectFile(t, d, "test-results/traces/old.zip", "PK")
	writeProjectFile(t, d, "test-results/traces/new.zip", "PK")
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	res = call(t, d, "show_trace", nil)
	require.False(t, res.IsError, res.Text)
	assert.Equal(t, "✅ Opening trace test-results/traces/new.zip in the trace viewer...", res.Text)
}

func TestInstallBrowsers(t *testing.T) {
	d := newTestDispatcher(t)
	res := call(t, d, "install_browsers", nil)
	require.False(t, res.IsError, res.Text)
	assert.Equal(t, "✅ Browser installation completed:\n\n```\ninstall\n```", res.Text)

	d = newTestDispatcher(t, func(c *config.Config) { c.Runner.PlaywrightCommand = `sh -c 'echo offline; exit 1' sh` })
	res = call(t, d, "install_browsers", nil)
	require.True(t, res.IsError)
	assert.True(t, strings.HasPrefix(res.Text, "❌ Browser installation failed:"))
	assert.Contains(t, res.Text, "offline")
}

func TestGetTestResults(t *testing.T) {
	d := newTestDispatcher(t)

	res := call(t, d, "get_test_results", nil)
	require.False(t, res.IsError, res.Text)
	assert.Equal(t, noResults, res.Text)

	results := &scenario.Results{
		RunID:     "run-1",
		StartTime: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		Duration:  90 * time.Second,
		Scenarios: []scenario.ScenarioResult{
			{Name: "Login", Status: scenario.StatusPassed},
			{
				Name:   "Full Workflow",
				Status: scenario.StatusFailed,
				Steps: []scenario.StepResult{
					{Name: "Open project", Status: scenario.StatusPassed},
					{Name: "Search", Status: scenario.StatusFailed, Error: "expected 179 / 179"},
					{Name: "Annotate", Status: scenario.StatusNotRun},
				},
			},
		},
	}
	require.NoError(t, scenario.WriteResults(filepath.Join(d.Dir(), "test-results"), results))

	res = call(t, d, "get_test_results", nil)
	require.False(t, res.IsError, res.Text)
	assert.Equal(t, "📊 Test Results (2 result(s)):\n\n  - results.json\n  - summary.md", res.Text)

	res = call(t, d, "get_test_results", map[string]any{"detailed": true})
	require.False(t, res.IsError, res.Text)
	assert.Contains(t, res.Text, "Last run run-1 at 2024-05-01T09:00:00Z (1m30s):")
	assert.Contains(t, res.Text, "Passed: 1  Failed: 1  Not run: 0")
	assert.Contains(t, res.Text, "✗ Full Workflow\n    ✗ Search: expected 179 / 179")
	assert.NotContains(t, res.Text, "Annotate")
}

func TestGetConfig(t *testing.T) {
	d := newTestDispatcher(t)

	res := call(t, d, "get_config", nil)
	require.False(t, res.IsError, res.Text)
	assert.Contains(t, res.Text, "No flowcheck.yaml found")
	assert.Contains(t, res.Text, "base_url: https://v11support.iconect.com")

	writeProjectFile(t, d, config.FileName, "base_url: https://staging.example.test\n")
	res = call(t, d, "get_config", nil)
	require.False(t, res.IsError, res.Text)
	assert.Equal(t, "📝 Flowcheck Configuration:\n\n```yaml\nbase_url: https://staging.example.test\n```", res.Text)
}

func TestUpdateConfig(t *testing.T) {
	d := newTestDispatcher(t)
	writeProjectFile(t, d, config.FileName, "base_url: https://staging.example.test\n")

	res := call(t, d, "update_config", map[string]any{"content": "browser:\n  engine: netscape\n"})
	require.True(t, res.IsError)
	assert.Contains(t, res.Text, "configuration rejected")
	assert.Equal(t, "base_url: https://staging.example.test\n", readProjectFile(t, d, config.FileName))

	res = call(t, d, "update_config", map[string]any{"content": "areas:\n  tests: \"../outside\"\n"})
	require.True(t, res.IsError)

	content := "areas:\n  tests: suites\nrunner:\n  test_command: " + echoArgs + "\n"
	res = call(t, d, "update_config", map[string]any{"content": content})
	require.False(t, res.IsError, res.Text)
	assert.Equal(t, content, readProjectFile(t, d, config.FileName))

	// The new layout takes effect immediately.
	writeProjectFile(t, d, "suites/cart_test.go", "package suites\n")
	res = call(t, d, "list_tests", nil)
	assert.Equal(t, "Found 1 test file(s):\n- cart_test.go", res.Text)
}

func TestReadResources(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()
	writeProjectFile(t, d, "e2e/login_test.go", passingTest)
	writeProjectFile(t, d, "pkg/pages/login.go", "package pages\n")
	writeProjectFile(t, d, "pkg/pages/pages_test.go", "package pages\n")

	content, err := d.ReadResource(ctx, "flowcheck://tests")
	require.NoError(t, err)
	assert.Equal(t, "application/json", content.MIMEType)
	assert.JSONEq(t, `["login_test.go"]`, content.Text)

	content, err = d.ReadResource(ctx, "flowcheck://pages")
	require.NoError(t, err)
	assert.JSONEq(t, `["login.go"]`, content.Text)

	content, err = d.ReadResource(ctx, "flowcheck://results")
	require.NoError(t, err)
	assert.JSONEq(t, `{"totalResults":0,"results":[],"timestamp":"2024-05-01T12:00:00Z","message":"No test results found"}`, content.Text)

	content, err = d.ReadResource(ctx, "flowcheck://config")
	require.NoError(t, err)
	assert.Contains(t, content.Text, "base_url:")
}

func TestPathLocksAreReleased(t *testing.T) {
	locks := newPathLocks()
	unlockA := locks.lock("a")
	unlockB := locks.lock("b")
	assert.Equal(t, 2, locks.len())

	acquired := make(chan struct{})
	go func() {
		unlock := locks.lock("a")
		close(acquired)
		unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("second writer acquired a held lock")
	case <-time.After(50 * time.Millisecond):
	}
	unlockA()
	<-acquired
	unlockB()
	assert.Zero(t, locks.len())
}
