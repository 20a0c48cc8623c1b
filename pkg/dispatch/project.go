package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/entrhq/flowcheck/pkg/config"
	"github.com/entrhq/flowcheck/pkg/scenario"
	"github.com/entrhq/flowcheck/pkg/workspace"
)

const noResults = "📊 No test results found. Run tests first using `run_test`."

type getTestResultsInput struct {
	Detailed bool `json:"detailed"`
}

func (d *Dispatcher) getTestResults(_ context.Context, args json.RawMessage) (string, error) {
	in, err := decode[getTestResultsInput](args)
	if err != nil {
		return "", err
	}
	s := d.settings()
	entries, err := s.guard.List(workspace.Results, nil)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return noResults, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 Test Results (%d result(s)):\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(&b, "\n  - %s", e.Name)
	}
	if !in.Detailed {
		return b.String(), nil
	}

	dir, err := s.guard.Dir(workspace.Results)
	if err != nil {
		return "", err
	}
	results, err := scenario.ReadResults(filepath.Join(dir, scenario.ResultsFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(&b, "\n\nNo %s found; run the suite with flowcheck run to record one.", scenario.ResultsFile)
			return b.String(), nil
		}
		return "", err
	}
	b.WriteString("\n\n")
	b.WriteString(describeResults(results))
	return b.String(), nil
}

// describeResults summarises a recorded run, listing every failure.
func describeResults(r *scenario.Results) string {
	var b strings.Builder
	passed, failed, notRun := r.Counts()
	fmt.Fprintf(&b, "Last run %s at %s (%s):\n", r.RunID, r.StartTime.Format(time.RFC3339), r.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "  Passed: %d  Failed: %d  Not run: %d", passed, failed, notRun)

	if failed == 0 {
		return b.String()
	}
	b.WriteString("\n\nFailures:")
	for _, sc := range r.Scenarios {
		if sc.Status != scenario.StatusFailed {
			continue
		}
		fmt.Fprintf(&b, "\n  ✗ %s", sc.Name)
		if sc.SetupError != "" {
			fmt.Fprintf(&b, "\n    setup: %s", sc.SetupError)
		}
		for _, st := range sc.Steps {
			if st.Status == scenario.StatusFailed {
				fmt.Fprintf(&b, "\n    ✗ %s: %s", st.Name, st.Error)
			}
		}
		if sc.TeardownError != "" {
			fmt.Fprintf(&b, "\n    teardown: %s", sc.TeardownError)
		}
	}
	return b.String()
}

func (d *Dispatcher) getConfig(_ context.Context, _ json.RawMessage) (string, error) {
	content, err := d.readConfig()
	if err != nil {
		return "", err
	}
	if content == "" {
		defaults, err := yaml.Marshal(config.DefaultConfig())
		if err != nil {
			return "", fmt.Errorf("failed to encode defaults: %w", err)
		}
		return fmt.Sprintf("📝 No %s found; the defaults are in effect:\n\n%s", config.FileName, codeBlock("yaml", string(defaults))), nil
	}
	return fmt.Sprintf("📝 Flowcheck Configuration:\n\n%s", codeBlock("yaml", content)), nil
}

// readConfig returns the config file content, or "" when there is none.
func (d *Dispatcher) readConfig() (string, error) {
	data, err := os.ReadFile(d.configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read %s: %w", config.FileName, err)
	}
	return string(data), nil
}

type updateConfigInput struct {
	Content string `json:"content"`
}

func (d *Dispatcher) updateConfig(_ context.Context, args json.RawMessage) (string, error) {
	in, err := decode[updateConfigInput](args)
	if err != nil {
		return "", err
	}
	cfg, err := config.Parse([]byte(in.Content))
	if err != nil {
		return "", fmt.Errorf("configuration rejected: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	next, err := d.newSettings(d.dir, cfg)
	if err != nil {
		return "", fmt.Errorf("configuration rejected: %w", err)
	}
	cfg.Secrets = d.current.cfg.Secrets

	unlock := d.locks.lock(d.configPath)
	defer unlock()
	if err := config.WriteFileAtomic(d.configPath, []byte(in.Content), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", config.FileName, err)
	}
	d.current = next
	d.log.Infof("Updated %s", config.FileName)
	return fmt.Sprintf("✅ Successfully updated %s", config.FileName), nil
}
