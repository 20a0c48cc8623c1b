package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/entrhq/flowcheck/pkg/config"
	"github.com/entrhq/flowcheck/pkg/workspace"
)

// ResourceScheme prefixes every resource URI.
const ResourceScheme = "flowcheck://"

// ResourceKind identifies a read-only project view.
type ResourceKind int

const (
	TestsResource ResourceKind = iota
	ConfigResource
	PagesResource
	ResultsResource

	resourceCount
)

// Resource describes one read-only view of the project.
type Resource struct {
	Kind        ResourceKind
	URI         string
	Name        string
	Description string
	MIMEType    string
}

var resourceCatalog = [resourceCount]Resource{
	TestsResource: {
		Kind:        TestsResource,
		URI:         ResourceScheme + "tests",
		Name:        "All Test Files",
		Description: "List of all test files",
		MIMEType:    "application/json",
	},
	ConfigResource: {
		Kind:        ConfigResource,
		URI:         ResourceScheme + "config",
		Name:        "Flowcheck Configuration",
		Description: "Current flowcheck.yaml",
		MIMEType:    "application/yaml",
	},
	PagesResource: {
		Kind:        PagesResource,
		URI:         ResourceScheme + "pages",
		Name:        "Page Objects",
		Description: "All Page Object Model files",
		MIMEType:    "application/json",
	},
	ResultsResource: {
		Kind:        ResultsResource,
		URI:         ResourceScheme + "results",
		Name:        "Test Results",
		Description: "Latest test execution results",
		MIMEType:    "application/json",
	},
}

// ParseResource maps a resource URI to its catalog entry.
func ParseResource(uri string) (Resource, error) {
	for _, r := range resourceCatalog {
		if r.URI == uri {
			return r, nil
		}
	}
	return Resource{}, fmt.Errorf("%w: resource %q", ErrUnknownOperation, uri)
}

// ResourceContent is a snapshot of a resource.
type ResourceContent struct {
	URI      string
	MIMEType string
	Text     string
}

type resultsSummary struct {
	TotalResults int       `json:"totalResults"`
	Results      []string  `json:"results"`
	Timestamp    time.Time `json:"timestamp"`
	Message      string    `json:"message,omitempty"`
}

// ReadResource returns a snapshot of the resource at uri.
func (d *Dispatcher) ReadResource(_ context.Context, uri string) (*ResourceContent, error) {
	r, err := ParseResource(uri)
	if err != nil {
		return nil, err
	}
	s := d.settings()

	var text string
	switch r.Kind {
	case TestsResource:
		entries, err := d.testFiles(s)
		if err != nil {
			return nil, err
		}
		text, err = jsonText(entryNames(entries))
		if err != nil {
			return nil, err
		}
	case ConfigResource:
		text, err = d.readConfig()
		if err != nil {
			return nil, err
		}
		if text == "" {
			data, err := yaml.Marshal(config.DefaultConfig())
			if err != nil {
				return nil, fmt.Errorf("failed to encode defaults: %w", err)
			}
			text = string(data)
		}
	case PagesResource:
		m, err := workspace.NewMatcher([]string{"**.go"}, []string{"**_test.go"})
		if err != nil {
			return nil, err
		}
		entries, err := s.guard.List(workspace.Pages, m)
		if err != nil {
			return nil, err
		}
		text, err = jsonText(entryNames(entries))
		if err != nil {
			return nil, err
		}
	case ResultsResource:
		entries, err := s.guard.List(workspace.Results, nil)
		if err != nil {
			return nil, err
		}
		summary := resultsSummary{
			TotalResults: len(entries),
			Results:      entryNames(entries),
			Timestamp:    d.now().UTC(),
		}
		if len(entries) == 0 {
			summary.Message = "No test results found"
		}
		text, err = jsonText(summary)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: resource %q", ErrUnknownOperation, uri)
	}
	return &ResourceContent{URI: r.URI, MIMEType: r.MIMEType, Text: text}, nil
}

func entryNames(entries []workspace.Entry) []string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return names
}

func jsonText(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode resource: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
