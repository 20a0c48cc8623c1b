package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/entrhq/flowcheck/pkg/workspace"
)

const maxTestDataCount = 1000

type generatePageObjectInput struct {
	PageName  string `json:"pageName"`
	URL       string `json:"url"`
	Selectors []struct {
		Name     string `json:"name"`
		Selector string `json:"selector"`
	} `json:"selectors"`
}

func (d *Dispatcher) generatePageObject(_ context.Context, args json.RawMessage) (string, error) {
	in, err := decode[generatePageObjectInput](args)
	if err != nil {
		return "", err
	}
	typeName := exportedName(in.PageName)
	if typeName == "" {
		return "", fmt.Errorf("invalid page name '%s'", in.PageName)
	}
	stem := snakeCase(typeName)
	if strings.HasSuffix(stem, "_test") {
		return "", fmt.Errorf("page name '%s' would produce a test file", in.PageName)
	}

	data := pageObjectData{
		Name: in.PageName,
		Type: typeName,
		URL:  in.URL,
	}
	if data.URL == "" {
		data.URL = "YOUR_URL"
	}
	seen := map[string]bool{"doc": true, "url": true}
	for _, sel := range in.Selectors {
		field := exportedName(sel.Name)
		if field == "" {
			return "", fmt.Errorf("invalid selector name '%s'", sel.Name)
		}
		if seen[field] {
			return "", fmt.Errorf("duplicate selector name '%s'", sel.Name)
		}
		seen[field] = true
		data.Selectors = append(data.Selectors, selectorField{Field: field, Selector: sel.Selector})
	}

	s := d.settings()
	path, err := s.guard.Resolve(workspace.Pages, stem+".go")
	if err != nil {
		return "", err
	}
	data.Package = packageName(s.cfg.Areas.Pages, "pages")

	src, err := render(pageObjectTemplate, data)
	if err != nil {
		return "", err
	}
	if err := d.createFile(s, path, []byte(src)); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Successfully created Page Object: %s\n\n%s", s.guard.Rel(path), codeBlock("go", src)), nil
}

var dataTypePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

type generateTestDataInput struct {
	DataType string `json:"dataType"`
	Count    int    `json:"count"`
}

type testRecord struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

func (d *Dispatcher) generateTestData(_ context.Context, args json.RawMessage) (string, error) {
	in, err := decode[generateTestDataInput](args)
	if err != nil {
		return "", err
	}
	if !dataTypePattern.MatchString(in.DataType) {
		return "", fmt.Errorf("invalid data type '%s': use letters, digits, '-' and '_'", in.DataType)
	}
	if in.Count < 1 || in.Count > maxTestDataCount {
		return "", fmt.Errorf("count must be between 1 and %d", maxTestDataCount)
	}

	s := d.settings()
	path, err := s.guard.Resolve(workspace.Fixtures, in.DataType+".json")
	if err != nil {
		return "", err
	}

	created := d.now().UTC()
	records := make([]testRecord, in.Count)
	for i := range records {
		records[i] = testRecord{
			ID:        i + 1,
			Name:      fmt.Sprintf("%s_%d", in.DataType, i+1),
			CreatedAt: created,
		}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode test data: %w", err)
	}

	if err := d.createFile(s, path, data); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Successfully created test data: %s\n\n%s", s.guard.Rel(path), codeBlock("json", string(data))), nil
}
