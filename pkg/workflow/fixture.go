package workflow

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed testdata/lt_text.yaml
var ltTextYAML []byte

// Fixture is the test data for the LT FIELD1 mass edit journey.
type Fixture struct {
	ReplacementText     string   `yaml:"replacementText"`
	ExpectedTextStart   string   `yaml:"expectedTextStart"`
	SearchQueries       []string `yaml:"searchQueries"`
	ExpectedRecordCount int      `yaml:"expectedRecordCount"`
}

// LoadFixture parses the embedded fixture. Each call returns a fresh copy.
func LoadFixture() (Fixture, error) {
	return ParseFixture(ltTextYAML)
}

// ParseFixture decodes and validates fixture YAML.
func ParseFixture(data []byte) (Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Fixture{}, fmt.Errorf("failed to parse fixture: %w", err)
	}
	if err := f.Validate(); err != nil {
		return Fixture{}, err
	}
	return f, nil
}

// Validate checks the fixture is usable.
func (f Fixture) Validate() error {
	var errs []error
	if f.ReplacementText == "" {
		errs = append(errs, errors.New("replacementText is required"))
	}
	if f.ExpectedTextStart == "" {
		errs = append(errs, errors.New("expectedTextStart is required"))
	} else if !strings.HasPrefix(f.ReplacementText, f.ExpectedTextStart) {
		errs = append(errs, errors.New("expectedTextStart must begin replacementText"))
	}
	if len(f.SearchQueries) == 0 {
		errs = append(errs, errors.New("at least one search query is required"))
	}
	if f.ExpectedRecordCount <= 0 {
		errs = append(errs, errors.New("expectedRecordCount must be positive"))
	}
	return errors.Join(errs...)
}

// ExpectedSearchResult is the counter text shown when every record matches,
// such as "179 / 179".
func (f Fixture) ExpectedSearchResult() string {
	return fmt.Sprintf("%d / %d", f.ExpectedRecordCount, f.ExpectedRecordCount)
}

// Preview returns the first n runes of the replacement text.
func (f Fixture) Preview(n int) string {
	r := []rune(f.ReplacementText)
	if len(r) <= n {
		return f.ReplacementText
	}
	return string(r[:n])
}
