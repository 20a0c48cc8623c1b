package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/jsonschema-go/jsonschema"
)

// handlerFunc performs one operation. args has already been validated
// against the tool's schema, with defaults filled in.
type handlerFunc func(d *Dispatcher, ctx context.Context, args json.RawMessage) (string, error)

// Tool describes one catalog operation.
type Tool struct {
	Kind        Kind
	Description string
	Schema      *jsonschema.Schema

	// failure heads the error envelope when the handler reports a
	// SubprocessFailure.
	failure string

	handle   handlerFunc
	resolved *jsonschema.Resolved
}

// Name returns the wire name of the tool.
func (t *Tool) Name() string {
	return t.Kind.String()
}

type toolSpec struct {
	description string
	schema      func() *jsonschema.Schema
	failure     string
	handle      handlerFunc
}

// catalog maps every Kind to its handler. The array length ties it to the
// Kind enum.
var catalog = [kindCount]toolSpec{
	ListTests: {
		description: "List all test files in the tests area",
		schema:      func() *jsonschema.Schema { return object(nil, nil) },
		handle:      (*Dispatcher).listTests,
	},
	ReadTest: {
		description: "Read the content of a specific test file",
		schema: func() *jsonschema.Schema {
			return object([]string{"filename"}, props{
				"filename": str("Name of the test file relative to the tests area (e.g., login_test.go)"),
			})
		},
		handle: (*Dispatcher).readTest,
	},
	CreateTest: {
		description: "Create a new test file. Without content a scenario skeleton is generated. Fails if the file already exists",
		schema: func() *jsonschema.Schema {
			return object([]string{"filename"}, props{
				"filename":    str("Name of the new test file (e.g., checkout_test.go)"),
				"content":     str("Full Go source for the file (optional)"),
				"description": str("Description of what the test should do"),
				"url":         str("URL the scenario should start from (optional)"),
			})
		},
		handle: (*Dispatcher).createTest,
	},
	UpdateTest: {
		description: "Replace the content of a test file",
		schema: func() *jsonschema.Schema {
			return object([]string{"filename", "content"}, props{
				"filename": str("Name of the test file to update"),
				"content":  str("New content for the test file"),
			})
		},
		handle: (*Dispatcher).updateTest,
	},
	RunTest: {
		description: "Run the test suite or the tests in one file",
		schema: func() *jsonschema.Schema {
			return object(nil, props{
				"filename": str("Test file to run (optional, runs all tests if not specified)"),
				"headed":   boolean("Run tests in headed mode", false),
				"debug":    boolean("Run tests with the Playwright inspector", false),
				"project":  enum("Browser to run against", "chromium", "firefox", "webkit"),
				"grep":     str("Only run scenarios whose name matches this regular expression"),
			})
		},
		failure: "Test execution failed",
		handle:  (*Dispatcher).runTest,
	},
	RunTestUI: {
		description: "Launch an interactive headed test run with the Playwright inspector",
		schema:      func() *jsonschema.Schema { return object(nil, nil) },
		handle:      (*Dispatcher).runTestUI,
	},
	GeneratePageObject: {
		description: "Generate a Page Object Model file in the pages area",
		schema: func() *jsonschema.Schema {
			selector := object([]string{"name", "selector"}, props{
				"name":     str("Field name for the element (e.g., submitButton)"),
				"selector": str("CSS selector for the element"),
			})
			return object([]string{"pageName"}, props{
				"pageName": str("Name of the page (e.g., LoginPage)"),
				"url":      str("URL of the page"),
				"selectors": {
					Type:        "array",
					Description: "Elements the page object exposes",
					Items:       selector,
				},
			})
		},
		handle: (*Dispatcher).generatePageObject,
	},
	GenerateTestData: {
		description: "Generate a JSON fixture file in the fixtures area",
		schema: func() *jsonschema.Schema {
			count := integer("Number of records to generate", 5)
			count.Minimum = ptr(1.0)
			count.Maximum = ptr(float64(maxTestDataCount))
			return object([]string{"dataType"}, props{
				"dataType": str("Type of test data (e.g., users, products); names the fixture file"),
				"count":    count,
			})
		},
		handle: (*Dispatcher).generateTestData,
	},
	AnalyzeTest: {
		description: "Analyze a test file and suggest improvements",
		schema: func() *jsonschema.Schema {
			return object([]string{"filename"}, props{
				"filename": str("Name of the test file to analyze"),
			})
		},
		handle: (*Dispatcher).analyzeTest,
	},
	GetTestResults: {
		description: "List the latest test results",
		schema: func() *jsonschema.Schema {
			return object(nil, props{
				"detailed": boolean("Summarize failures from the last run", false),
			})
		},
		handle: (*Dispatcher).getTestResults,
	},
	ShowTrace: {
		description: "Open the most recent trace archive in the trace viewer",
		schema:      func() *jsonschema.Schema { return object(nil, nil) },
		handle:      (*Dispatcher).showTrace,
	},
	GetConfig: {
		description: "Read the project configuration (flowcheck.yaml)",
		schema:      func() *jsonschema.Schema { return object(nil, nil) },
		handle:      (*Dispatcher).getConfig,
	},
	UpdateConfig: {
		description: "Validate and replace the project configuration (flowcheck.yaml)",
		schema: func() *jsonschema.Schema {
			return object([]string{"content"}, props{
				"content": str("New YAML content for flowcheck.yaml"),
			})
		},
		handle: (*Dispatcher).updateConfig,
	},
	Codegen: {
		description: "Launch the Playwright recorder to generate selectors and actions",
		schema: func() *jsonschema.Schema {
			return object(nil, props{
				"url": str("URL to start recording from"),
			})
		},
		handle: (*Dispatcher).codegen,
	},
	InstallBrowsers: {
		description: "Install the Playwright driver and browsers",
		schema:      func() *jsonschema.Schema { return object(nil, nil) },
		failure:     "Browser installation failed",
		handle:      (*Dispatcher).installBrowsers,
	},
}

// newTools builds and resolves the schema of every catalog entry.
func newTools() ([kindCount]*Tool, error) {
	var tools [kindCount]*Tool
	for k, spec := range catalog {
		if spec.handle == nil {
			return tools, fmt.Errorf("no handler for %s", Kind(k))
		}
		schema := spec.schema()
		resolved, err := schema.Resolve(nil)
		if err != nil {
			return tools, fmt.Errorf("invalid schema for %s: %w", Kind(k), err)
		}
		tools[k] = &Tool{
			Kind:        Kind(k),
			Description: spec.description,
			Schema:      schema,
			failure:     spec.failure,
			handle:      spec.handle,
			resolved:    resolved,
		}
	}
	return tools, nil
}

// normalize applies schema defaults to args and validates the result.
func (t *Tool) normalize(args json.RawMessage) (json.RawMessage, error) {
	v := map[string]any{}
	if trimmed := bytes.TrimSpace(args); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return nil, fmt.Errorf("arguments must be a JSON object: %w", err)
		}
	}
	if err := t.resolved.ApplyDefaults(&v); err != nil {
		return nil, err
	}
	if err := t.resolved.Validate(v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

type props = map[string]*jsonschema.Schema

func object(required []string, properties props) *jsonschema.Schema {
	if properties == nil {
		properties = props{}
	}
	return &jsonschema.Schema{Type: "object", Properties: properties, Required: required}
}

func str(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: description}
}

func enum(description string, values ...string) *jsonschema.Schema {
	s := str(description)
	for _, v := range values {
		s.Enum = append(s.Enum, v)
	}
	return s
}

func boolean(description string, def bool) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "boolean",
		Description: description,
		Default:     json.RawMessage(strconv.FormatBool(def)),
	}
}

func integer(description string, def int) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "integer",
		Description: description,
		Default:     json.RawMessage(strconv.Itoa(def)),
	}
}

func ptr[T any](v T) *T {
	return &v
}

func decode[T any](args json.RawMessage) (T, error) {
	var in T
	if err := json.Unmarshal(args, &in); err != nil {
		return in, fmt.Errorf("failed to parse input: %w", err)
	}
	return in, nil
}
