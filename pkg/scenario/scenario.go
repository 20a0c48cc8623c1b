// Package scenario runs end-to-end journeys as ordered, fail-fast steps.
//
// A Scenario is a named list of Steps with an optional Setup and Teardown.
// Setup establishes the baseline (browser session, signed-in user) before the
// first step; Teardown always runs. Steps receive a *T, which satisfies
// testify's require.TestingT, so assertions read the same as in ordinary Go
// tests:
//
//	scenario.Step{Name: "Open project", Run: func(t *scenario.T) {
//		ok, err := pages.Projects().VerifyProjectOpened(t.Context(), name)
//		require.NoError(t, err)
//		require.True(t, ok)
//		t.Successf("Project opened")
//	}}
//
// The first failed step aborts the scenario; the remaining steps are reported
// as not run.
package scenario

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Step is one named unit of a scenario.
type Step struct {
	Name string
	Run  func(t *T)
}

// Scenario is an ordered journey through the application.
type Scenario struct {
	Name string

	// Setup runs before the first step. A setup failure fails the scenario
	// without running any step.
	Setup func(t *T)

	Steps []Step

	// Teardown runs after the steps, whether or not they passed.
	Teardown func(t *T)
}

// AssertionFailure is the failure of one step.
type AssertionFailure struct {
	Scenario string
	Step     string
	Messages []string
}

func (e *AssertionFailure) Error() string {
	msg := strings.Join(e.Messages, "; ")
	if msg == "" {
		msg = "failed"
	}
	return fmt.Sprintf("%s: %s: %s", e.Scenario, e.Step, msg)
}

// failNow is the panic value FailNow uses to unwind a step.
type failNow struct{}

// T is handed to setup, steps and teardown. It is not safe to share across
// goroutines that outlive the step.
type T struct {
	ctx      context.Context
	scenario string
	reporter *Reporter
	log      Logger

	mu       sync.Mutex
	step     string
	failed   bool
	messages []string
	warnings []string
	values   map[string]any
}

// Logger receives every message a T emits, for the run's log file.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

func newT(ctx context.Context, scenario string, reporter *Reporter, log Logger) *T {
	return &T{ctx: ctx, scenario: scenario, reporter: reporter, log: log, values: make(map[string]any)}
}

// Context is canceled when the run is interrupted.
func (t *T) Context() context.Context {
	return t.ctx
}

// Name returns the scenario name.
func (t *T) Name() string {
	return t.scenario
}

// Errorf records a failure and lets the step continue. The step fails when it
// returns.
func (t *T) Errorf(format string, args ...any) {
	msg := strings.TrimSpace(fmt.Sprintf(format, args...))
	t.mu.Lock()
	t.failed = true
	t.messages = append(t.messages, msg)
	t.mu.Unlock()
	t.log.Errorf("%s: %s: %s", t.scenario, t.currentStep(), msg)
}

// FailNow stops the current step.
func (t *T) FailNow() {
	t.mu.Lock()
	t.failed = true
	t.mu.Unlock()
	panic(failNow{})
}

// Fatalf is Errorf followed by FailNow.
func (t *T) Fatalf(format string, args ...any) {
	t.Errorf(format, args...)
	t.FailNow()
}

// Helper marks the caller as a helper. It exists for testify.
func (t *T) Helper() {}

// Successf prints a success marker.
func (t *T) Successf(format string, args ...any) {
	t.reporter.Successf(format, args...)
	t.log.Infof(format, args...)
}

// Infof prints progress.
func (t *T) Infof(format string, args ...any) {
	t.reporter.Infof(format, args...)
	t.log.Infof(format, args...)
}

// Warnf prints a warning and records it against the current step.
func (t *T) Warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	t.mu.Lock()
	t.warnings = append(t.warnings, msg)
	t.mu.Unlock()
	t.reporter.Warningf("%s", msg)
	t.log.Warnf("%s", msg)
}

// Set stores a value for later steps, such as the page registry built in
// setup.
func (t *T) Set(key string, v any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.values[key] = v
}

// Value returns a value stored with Set.
func (t *T) Value(key string) any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.values[key]
}

func (t *T) currentStep() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.step
}

// begin resets per-step state.
func (t *T) begin(step string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.step = step
	t.failed = false
	t.messages = nil
	t.warnings = nil
}

// call runs fn as the named phase and converts a failure or panic into an
// *AssertionFailure.
func (t *T) call(phase string, fn func(*T)) (warnings []string, err error) {
	t.begin(phase)
	defer func() {
		if rec := recover(); rec != nil {
			if _, ok := rec.(failNow); !ok {
				t.mu.Lock()
				t.failed = true
				t.messages = append(t.messages, fmt.Sprintf("panic: %v", rec))
				t.mu.Unlock()
			}
		}

		t.mu.Lock()
		defer t.mu.Unlock()
		warnings = t.warnings
		if t.failed {
			err = &AssertionFailure{Scenario: t.scenario, Step: phase, Messages: t.messages}
		}
	}()

	if ctxErr := t.ctx.Err(); ctxErr != nil {
		t.Errorf("not started: %v", ctxErr)
		return
	}
	fn(t)
	return
}
