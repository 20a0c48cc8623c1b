// Package config loads flowcheck.yaml, the project's test configuration.
//
// Values come from three layers, later ones winning: built-in defaults, the
// YAML file, and FLOWCHECK_* environment variables (which may be supplied by
// a .env file next to the config). Account credentials are only ever read
// from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/entrhq/flowcheck/pkg/browser"
	"github.com/entrhq/flowcheck/pkg/logging"
	"github.com/entrhq/flowcheck/pkg/pages"
	"github.com/entrhq/flowcheck/pkg/workflow"
	"github.com/entrhq/flowcheck/pkg/workspace"
)

// FileName is the config file looked up in the project directory.
const FileName = "flowcheck.yaml"

// DefaultOutputLimit caps the combined output kept from a child process.
const DefaultOutputLimit = 10 << 20

// DefaultPlaywrightCommand runs the playwright-go driver CLI pinned to the
// version this module builds against.
const DefaultPlaywrightCommand = "go run github.com/playwright-community/playwright-go/cmd/playwright@v0.5200.1"

// Config represents flowcheck.yaml.
type Config struct {
	BaseURL   string `yaml:"base_url" json:"base_url"`
	LoginPath string `yaml:"login_path" json:"login_path"`

	Browser  BrowserConfig  `yaml:"browser" json:"browser"`
	Areas    AreasConfig    `yaml:"areas" json:"areas"`
	Runner   RunnerConfig   `yaml:"runner" json:"runner"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
	Workflow WorkflowConfig `yaml:"workflow" json:"workflow"`

	// Secrets are read from the environment, never from the file.
	Secrets Secrets `yaml:"-" json:"-"`
}

// BrowserConfig selects and tunes the browser engine.
type BrowserConfig struct {
	Engine         string         `yaml:"engine" json:"engine"`
	Headless       bool           `yaml:"headless" json:"headless"`
	SlowMo         time.Duration  `yaml:"slow_mo" json:"slow_mo"`
	Viewport       ViewportConfig `yaml:"viewport" json:"viewport"`
	DefaultTimeout time.Duration  `yaml:"default_timeout" json:"default_timeout"`

	// Trace records a trace archive per scenario into the results area.
	Trace bool `yaml:"trace" json:"trace"`
}

type ViewportConfig struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// AreasConfig names the project directories tools may touch, relative to the
// project root.
type AreasConfig struct {
	Tests    string `yaml:"tests" json:"tests"`
	Pages    string `yaml:"pages" json:"pages"`
	Fixtures string `yaml:"fixtures" json:"fixtures"`
	Results  string `yaml:"results" json:"results"`
}

// Layout returns the areas for a workspace guard.
func (a AreasConfig) Layout() workspace.Layout {
	return workspace.Layout{
		workspace.Tests:    a.Tests,
		workspace.Pages:    a.Pages,
		workspace.Fixtures: a.Fixtures,
		workspace.Results:  a.Results,
	}
}

// RunnerConfig describes how tests and the driver CLI are launched.
type RunnerConfig struct {
	// TestCommand is the command prefix that runs a Go test package, such as
	// "go test -tags e2e".
	TestCommand string `yaml:"test_command" json:"test_command"`

	// PlaywrightCommand is the prefix for install, codegen and show-trace.
	PlaywrightCommand string `yaml:"playwright_command" json:"playwright_command"`

	OutputLimit int           `yaml:"output_limit" json:"output_limit"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Verbosity controls console output: quiet, normal, verbose, debug
	Verbosity string `yaml:"verbosity" json:"verbosity"`

	// Level is the minimum level written to the log file.
	Level string `yaml:"level" json:"level"`
}

// WorkflowConfig holds the targets of the built-in journey.
type WorkflowConfig struct {
	Project       string `yaml:"project" json:"project"`
	Field         string `yaml:"field" json:"field"`
	FieldLength   int    `yaml:"field_length" json:"field_length"`
	HighlightText string `yaml:"highlight_text" json:"highlight_text"`
	Record        string `yaml:"record" json:"record"`
	AnnotationSet string `yaml:"annotation_set" json:"annotation_set"`
}

// Secrets identify the test account.
type Secrets struct {
	Username    string
	Password    string
	DisplayName string
}

// DefaultConfig returns a default configuration suitable for most use cases
func DefaultConfig() *Config {
	wf := workflow.DefaultConfig()
	return &Config{
		BaseURL:   pages.DefaultBaseURL,
		LoginPath: pages.DefaultLoginPath,
		Browser: BrowserConfig{
			Engine:         string(browser.Chromium),
			Headless:       true,
			Viewport:       ViewportConfig{Width: browser.DefaultViewportWidth, Height: browser.DefaultViewportHeight},
			DefaultTimeout: browser.DefaultTimeout,
		},
		Areas: AreasConfig{
			Tests:    "e2e",
			Pages:    "pkg/pages",
			Fixtures: "fixtures",
			Results:  "test-results",
		},
		Runner: RunnerConfig{
			TestCommand:       "go test -tags e2e",
			PlaywrightCommand: DefaultPlaywrightCommand,
			OutputLimit:       DefaultOutputLimit,
			Timeout:           30 * time.Minute,
		},
		Logging: LoggingConfig{Verbosity: "normal", Level: "info"},
		Workflow: WorkflowConfig{
			Project:       wf.Project,
			Field:         wf.Field,
			FieldLength:   wf.FieldLength,
			HighlightText: wf.HighlightText,
			Record:        wf.Record,
			AnnotationSet: wf.AnnotationSet,
		},
		Secrets: Secrets{DisplayName: wf.DisplayName},
	}
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads the config file at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to path atomically.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return WriteFileAtomic(path, data, 0644)
}

// WriteFileAtomic writes data to a temp file beside path and renames it into
// place.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tempPath, perm); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

var validVerbosity = map[string]bool{
	"quiet":   true,
	"normal":  true,
	"verbose": true,
	"debug":   true,
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}

	if _, err := browser.ParseEngine(c.Browser.Engine); err != nil {
		return fmt.Errorf("browser.engine: %w", err)
	}
	if c.Browser.SlowMo < 0 || c.Browser.DefaultTimeout < 0 {
		return fmt.Errorf("browser durations cannot be negative")
	}
	if c.Browser.Viewport.Width < 0 || c.Browser.Viewport.Height < 0 {
		return fmt.Errorf("browser.viewport cannot be negative")
	}

	areas := map[string]string{
		"tests":    c.Areas.Tests,
		"pages":    c.Areas.Pages,
		"fixtures": c.Areas.Fixtures,
		"results":  c.Areas.Results,
	}
	for name, dir := range areas {
		if dir == "" {
			return fmt.Errorf("areas.%s is required", name)
		}
		if filepath.IsAbs(dir) {
			return fmt.Errorf("areas.%s must be relative to the project: %s", name, dir)
		}
	}

	if _, err := SplitCommand(c.Runner.TestCommand); err != nil {
		return fmt.Errorf("runner.test_command: %w", err)
	}
	if _, err := SplitCommand(c.Runner.PlaywrightCommand); err != nil {
		return fmt.Errorf("runner.playwright_command: %w", err)
	}
	if c.Runner.OutputLimit <= 0 {
		return fmt.Errorf("runner.output_limit must be positive")
	}
	if c.Runner.Timeout < 0 {
		return fmt.Errorf("runner.timeout cannot be negative")
	}

	if c.Logging.Verbosity == "" {
		c.Logging.Verbosity = "normal"
	}
	if !validVerbosity[c.Logging.Verbosity] {
		return fmt.Errorf("invalid logging verbosity: %s (must be 'quiet', 'normal', 'verbose', or 'debug')", c.Logging.Verbosity)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	if c.Workflow.FieldLength <= 0 {
		return fmt.Errorf("workflow.field_length must be positive")
	}
	return nil
}

// BrowserOptions converts the browser section for the launcher. Trace
// archives go to the results area under dir.
func (c *Config) BrowserOptions(dir string) browser.Options {
	engine, _ := browser.ParseEngine(c.Browser.Engine)
	opts := browser.Options{
		Engine:         engine,
		Headless:       c.Browser.Headless,
		SlowMo:         c.Browser.SlowMo,
		DefaultTimeout: c.Browser.DefaultTimeout,
		BaseURL:        c.BaseURL,
	}
	if c.Browser.Viewport.Width > 0 && c.Browser.Viewport.Height > 0 {
		opts.Viewport = &browser.Viewport{Width: c.Browser.Viewport.Width, Height: c.Browser.Viewport.Height}
	}
	if c.Browser.Trace {
		opts.TraceDir = filepath.Join(dir, c.Areas.Results, "traces")
	}
	return opts
}

// PageOptions converts the target application settings for the page
// registry.
func (c *Config) PageOptions() pages.Options {
	return pages.Options{BaseURL: c.BaseURL, LoginPath: c.LoginPath}
}

// JourneyConfig combines the journey targets with the account secrets.
func (c *Config) JourneyConfig() workflow.Config {
	return workflow.Config{
		Credentials:   pages.Credentials{Username: c.Secrets.Username, Password: c.Secrets.Password},
		DisplayName:   c.Secrets.DisplayName,
		Project:       c.Workflow.Project,
		Field:         c.Workflow.Field,
		FieldLength:   c.Workflow.FieldLength,
		HighlightText: c.Workflow.HighlightText,
		Record:        c.Workflow.Record,
		AnnotationSet: c.Workflow.AnnotationSet,
	}
}
