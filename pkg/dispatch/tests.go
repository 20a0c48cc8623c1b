package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/entrhq/flowcheck/pkg/workspace"
)

const testFileSuffix = "_test.go"

var testFilePattern = "**" + testFileSuffix

func (d *Dispatcher) testFiles(s *settings) ([]workspace.Entry, error) {
	m, err := workspace.NewMatcher([]string{testFilePattern}, nil)
	if err != nil {
		return nil, err
	}
	return s.guard.List(workspace.Tests, m)
}

func (d *Dispatcher) listTests(_ context.Context, _ json.RawMessage) (string, error) {
	entries, err := d.testFiles(d.settings())
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "Found 0 test file(s):\nNo tests found", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d test file(s):", len(entries))
	for _, e := range entries {
		fmt.Fprintf(&b, "\n- %s", e.Name)
	}
	return b.String(), nil
}

type fileInput struct {
	Filename string `json:"filename"`
}

func (d *Dispatcher) readTest(_ context.Context, args json.RawMessage) (string, error) {
	in, err := decode[fileInput](args)
	if err != nil {
		return "", err
	}
	s := d.settings()
	path, err := s.guard.Resolve(workspace.Tests, in.Filename)
	if err != nil {
		return "", err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("test file '%s' not found", in.Filename)
		}
		return "", fmt.Errorf("failed to read '%s': %w", in.Filename, err)
	}
	return fmt.Sprintf("Content of %s:\n\n%s", in.Filename, codeBlock("go", string(content))), nil
}

type createTestInput struct {
	Filename    string `json:"filename"`
	Content     string `json:"content"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

func (d *Dispatcher) createTest(_ context.Context, args json.RawMessage) (string, error) {
	in, err := decode[createTestInput](args)
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(in.Filename, testFileSuffix) {
		return "", fmt.Errorf("test file name must end in %s: %s", testFileSuffix, in.Filename)
	}
	s := d.settings()
	path, err := s.guard.Resolve(workspace.Tests, in.Filename)
	if err != nil {
		return "", err
	}

	content := in.Content
	generated := content == ""
	if generated {
		content, err = renderTest(s, in)
		if err != nil {
			return "", err
		}
	}

	if err := d.createFile(s, path, []byte(content)); err != nil {
		var exists *AlreadyExistsError
		if errors.As(err, &exists) {
			if exists.Name != "" {
				return "", fmt.Errorf("%w; rename the test or pick another file name", err)
			}
			return "", fmt.Errorf("test file %w; use update_test to modify it", err)
		}
		return "", err
	}

	msg := fmt.Sprintf("✅ Successfully created test file: %s", s.guard.Rel(path))
	if generated {
		msg += "\n\nTemplate:\n" + codeBlock("go", content)
	}
	return msg, nil
}

type updateTestInput struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

func (d *Dispatcher) updateTest(_ context.Context, args json.RawMessage) (string, error) {
	in, err := decode[updateTestInput](args)
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(in.Filename, ".go") {
		return "", fmt.Errorf("only Go files can be written to the tests area: %s", in.Filename)
	}
	s := d.settings()
	path, err := s.guard.Resolve(workspace.Tests, in.Filename)
	if err != nil {
		return "", err
	}
	if err := d.replaceFile(s, path, []byte(in.Content)); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Successfully updated test file: %s", s.guard.Rel(path)), nil
}
