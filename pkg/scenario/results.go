package scenario

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Result artifact names inside the results directory.
const (
	ResultsFile = "results.json"
	SummaryFile = "summary.md"
)

// Status of a scenario or step.
type Status string

const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
	StatusNotRun Status = "not run"
)

func (s Status) marker() string {
	switch s {
	case StatusPassed:
		return "✓"
	case StatusFailed:
		return "✗"
	default:
		return "-"
	}
}

// StepResult records one step.
type StepResult struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Error    string        `json:"error,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
	Duration time.Duration `json:"duration"`
}

// ScenarioResult records one scenario, including its setup and teardown.
type ScenarioResult struct {
	Name          string        `json:"name"`
	Status        Status        `json:"status"`
	Error         string        `json:"error,omitempty"`
	SetupError    string        `json:"setup_error,omitempty"`
	TeardownError string        `json:"teardown_error,omitempty"`
	Steps         []StepResult  `json:"steps"`
	StartTime     time.Time     `json:"start_time"`
	Duration      time.Duration `json:"duration"`
}

// Results of a whole run.
type Results struct {
	RunID     string           `json:"run_id"`
	StartTime time.Time        `json:"start_time"`
	EndTime   time.Time        `json:"end_time"`
	Duration  time.Duration    `json:"duration"`
	Scenarios []ScenarioResult `json:"scenarios"`
}

// Counts returns the number of passed, failed and skipped scenarios.
func (r *Results) Counts() (passed, failed, notRun int) {
	for _, sc := range r.Scenarios {
		switch sc.Status {
		case StatusPassed:
			passed++
		case StatusFailed:
			failed++
		default:
			notRun++
		}
	}
	return passed, failed, notRun
}

// Failed reports whether any scenario failed.
func (r *Results) Failed() bool {
	_, failed, _ := r.Counts()
	return failed > 0
}

// ReadResults loads a results.json written by WriteResults.
func ReadResults(path string) (*Results, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var results Results
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &results, nil
}

// WriteResults writes results.json and summary.md into dir.
func WriteResults(dir string, results *Results) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create results directory: %w", err)
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ResultsFile), data, 0600); err != nil {
		return fmt.Errorf("failed to write results JSON: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, SummaryFile), []byte(summaryMarkdown(results)), 0600); err != nil {
		return fmt.Errorf("failed to write summary markdown: %w", err)
	}
	return nil
}

func summaryMarkdown(results *Results) string {
	var md strings.Builder

	passed, failed, notRun := results.Counts()
	md.WriteString("# Flowcheck Run Summary\n\n")
	md.WriteString(fmt.Sprintf("**Run:** %s\n\n", results.RunID))
	md.WriteString(fmt.Sprintf("**Started:** %s\n\n", results.StartTime.Format(time.RFC3339)))
	md.WriteString(fmt.Sprintf("**Duration:** %s\n\n", results.Duration))
	md.WriteString(fmt.Sprintf("**Passed:** %d, **Failed:** %d, **Not run:** %d\n\n", passed, failed, notRun))

	for _, sc := range results.Scenarios {
		icon := "✅"
		switch sc.Status {
		case StatusFailed:
			icon = "❌"
		case StatusNotRun:
			icon = "⏭️"
		}
		md.WriteString(fmt.Sprintf("## %s %s\n\n", icon, sc.Name))
		if sc.SetupError != "" {
			md.WriteString(fmt.Sprintf("**Setup failed:** %s\n\n", sc.SetupError))
		}
		for _, st := range sc.Steps {
			md.WriteString(fmt.Sprintf("- %s %s", st.Status.marker(), st.Name))
			if st.Status != StatusNotRun {
				md.WriteString(fmt.Sprintf(" (%s)", st.Duration.Round(time.Millisecond)))
			}
			md.WriteString("\n")
			if st.Error != "" {
				md.WriteString(fmt.Sprintf("  - Error: %s\n", st.Error))
			}
			for _, w := range st.Warnings {
				md.WriteString(fmt.Sprintf("  - Warning: %s\n", w))
			}
		}
		if sc.TeardownError != "" {
			md.WriteString(fmt.Sprintf("\n**Teardown failed:** %s\n", sc.TeardownError))
		}
		md.WriteString("\n")
	}
	return md.String()
}
