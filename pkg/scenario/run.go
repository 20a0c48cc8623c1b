package scenario

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Options configure Run.
type Options struct {
	// Filter is a regular expression selecting scenarios by name. Empty runs
	// every scenario.
	Filter string

	Reporter *Reporter
	Log      Logger

	// RunID identifies the run in results. A random ID is used when empty.
	RunID string
}

// ErrNoScenarios is returned when the filter matches nothing.
var ErrNoScenarios = errors.New("no scenarios match")

type nopLogger struct{}

func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

// Select returns the scenarios whose names match filter.
func Select(scenarios []Scenario, filter string) ([]Scenario, error) {
	if filter == "" {
		return scenarios, nil
	}
	re, err := regexp.Compile(filter)
	if err != nil {
		return nil, fmt.Errorf("invalid grep pattern %q: %w", filter, err)
	}
	var selected []Scenario
	for _, sc := range scenarios {
		if re.MatchString(sc.Name) {
			selected = append(selected, sc)
		}
	}
	return selected, nil
}

// Run executes scenarios one after another. A failing scenario does not stop
// the run; a canceled context marks the rest as not run. The returned error
// covers only invalid options; check Results.Failed for test failures.
func Run(ctx context.Context, scenarios []Scenario, opts Options) (*Results, error) {
	selected, err := Select(scenarios, opts.Filter)
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("%w %q", ErrNoScenarios, opts.Filter)
	}

	if opts.Reporter == nil {
		opts.Reporter = NewReporter(io.Discard, Quiet)
	}
	if opts.Log == nil {
		opts.Log = nopLogger{}
	}
	if opts.RunID == "" {
		opts.RunID = uuid.New().String()
	}

	results := &Results{RunID: opts.RunID, StartTime: time.Now()}
	for _, sc := range selected {
		if ctx.Err() != nil {
			results.Scenarios = append(results.Scenarios, skipped(sc, ctx.Err().Error()))
			continue
		}
		results.Scenarios = append(results.Scenarios, runScenario(ctx, sc, opts))
	}
	results.EndTime = time.Now()
	results.Duration = results.EndTime.Sub(results.StartTime)
	return results, nil
}

func skipped(sc Scenario, reason string) ScenarioResult {
	res := ScenarioResult{Name: sc.Name, Status: StatusNotRun, Error: reason}
	for _, st := range sc.Steps {
		res.Steps = append(res.Steps, StepResult{Name: st.Name, Status: StatusNotRun})
	}
	return res
}

func runScenario(ctx context.Context, sc Scenario, opts Options) ScenarioResult {
	rep := opts.Reporter
	rep.Section(sc.Name)
	opts.Log.Infof("Scenario %q started", sc.Name)

	res := ScenarioResult{Name: sc.Name, Status: StatusPassed, StartTime: time.Now()}
	t := newT(ctx, sc.Name, rep, opts.Log)

	var failure error
	if sc.Setup != nil {
		if _, err := t.call("setup", sc.Setup); err != nil {
			failure = err
			res.SetupError = err.Error()
			rep.Errorf("Setup failed: %v", err)
		}
	}

	for _, st := range sc.Steps {
		if failure != nil {
			res.Steps = append(res.Steps, StepResult{Name: st.Name, Status: StatusNotRun})
			continue
		}

		rep.Step(st.Name)
		start := time.Now()
		warnings, err := t.call(st.Name, st.Run)
		step := StepResult{Name: st.Name, Status: StatusPassed, Warnings: warnings, Duration: time.Since(start)}
		if err != nil {
			failure = err
			step.Status = StatusFailed
			step.Error = err.Error()
			rep.Errorf("%v", err)
		} else {
			rep.Verbosef("%s completed in %s", st.Name, step.Duration.Round(time.Millisecond))
		}
		res.Steps = append(res.Steps, step)
	}

	if sc.Teardown != nil {
		// Cleanup runs even after an interrupt.
		t.ctx = context.WithoutCancel(ctx)
		if _, err := t.call("teardown", sc.Teardown); err != nil {
			res.TeardownError = err.Error()
			rep.Warningf("Teardown failed: %v", err)
		}
	}

	if failure != nil {
		res.Status = StatusFailed
		res.Error = failure.Error()
		opts.Log.Errorf("Scenario %q failed: %v", sc.Name, failure)
	} else {
		rep.Successf("%s passed", sc.Name)
		opts.Log.Infof("Scenario %q passed", sc.Name)
	}
	res.Duration = time.Since(res.StartTime)
	return res
}
