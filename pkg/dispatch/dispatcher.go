// Package dispatch implements the tool catalog that lets an assistant manage
// and run the project's browser tests.
//
// Every operation is a Kind with a JSON Schema describing its input. A
// Dispatcher validates the arguments, fills in defaults and runs the handler,
// which touches only files inside the project's tests, pages, fixtures and
// results areas or launches the test runner and Playwright driver. Handler
// errors never escape: they come back as a Result flagged IsError.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/entrhq/flowcheck/pkg/config"
	"github.com/entrhq/flowcheck/pkg/logging"
	"github.com/entrhq/flowcheck/pkg/workspace"
)

// Result is the textual outcome of a tool call.
type Result struct {
	Text    string
	IsError bool

	// Err is the underlying error of an error result.
	Err error `json:"-"`
}

func errorResult(err error) *Result {
	return &Result{Text: "Error: " + err.Error(), IsError: true, Err: err}
}

// Dispatcher runs catalog operations against one project directory.
type Dispatcher struct {
	dir        string
	configPath string
	tools      [kindCount]*Tool
	locks      *pathLocks
	log        *logging.Logger
	now        func() time.Time

	mu      sync.RWMutex
	current *settings
}

// settings is the part of the dispatcher derived from flowcheck.yaml. It is
// replaced wholesale by update_config.
type settings struct {
	cfg    *config.Config
	guard  *workspace.Guard
	runner *Runner
}

// New creates a dispatcher for the project at dir configured by cfg. A nil
// cfg uses the defaults.
func New(dir string, cfg *config.Config, log *logging.Logger) (*Dispatcher, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		log = logging.Nop()
	}
	tools, err := newTools()
	if err != nil {
		return nil, err
	}

	d := &Dispatcher{
		tools: tools,
		locks: newPathLocks(),
		log:   log,
		now:   time.Now,
	}
	s, err := d.newSettings(dir, cfg)
	if err != nil {
		return nil, err
	}
	d.dir = s.guard.Root()
	d.configPath = filepath.Join(d.dir, config.FileName)
	d.current = s
	return d, nil
}

func (d *Dispatcher) newSettings(dir string, cfg *config.Config) (*settings, error) {
	guard, err := workspace.NewGuard(dir, cfg.Areas.Layout())
	if err != nil {
		return nil, fmt.Errorf("invalid project layout: %w", err)
	}
	runner := NewRunner(guard.Root(), cfg.Runner.OutputLimit, cfg.Runner.Timeout, d.log)
	return &settings{cfg: cfg, guard: guard, runner: runner}, nil
}

func (d *Dispatcher) settings() *settings {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.current
}

// Dir returns the absolute project directory.
func (d *Dispatcher) Dir() string {
	return d.dir
}

// Tool returns the catalog entry for k.
func (d *Dispatcher) Tool(k Kind) (*Tool, error) {
	if k < 0 || k >= kindCount {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, k)
	}
	return d.tools[k], nil
}

// Tools returns the catalog entries p exposes.
func (d *Dispatcher) Tools(p Profile) []*Tool {
	kinds := p.Kinds()
	tools := make([]*Tool, 0, len(kinds))
	for _, k := range kinds {
		tools = append(tools, d.tools[k])
	}
	return tools
}

// Call runs the tool named name. Unknown names yield an error result
// wrapping ErrUnknownOperation.
func (d *Dispatcher) Call(ctx context.Context, name string, args json.RawMessage) *Result {
	k, err := ParseKind(name)
	if err != nil {
		return errorResult(err)
	}
	return d.Invoke(ctx, k, args)
}

// Invoke validates args against k's schema and runs its handler.
func (d *Dispatcher) Invoke(ctx context.Context, k Kind, args json.RawMessage) *Result {
	tool, err := d.Tool(k)
	if err != nil {
		return errorResult(err)
	}

	input, err := tool.normalize(args)
	if err != nil {
		return errorResult(fmt.Errorf("invalid arguments for %s: %w", tool.Name(), err))
	}

	d.log.Debugf("Calling %s with %s", tool.Name(), input)
	text, err := tool.handle(d, ctx, input)
	if err != nil {
		d.log.Errorf("%s failed: %v", tool.Name(), err)
		return tool.errorResult(err)
	}
	return &Result{Text: text}
}

func (t *Tool) errorResult(err error) *Result {
	var failure *SubprocessFailure
	if t.failure == "" || !errors.As(err, &failure) {
		return errorResult(err)
	}
	text := fmt.Sprintf("❌ %s:\n\n```\n%s\n```\n\nError: %s", t.failure, strings.TrimRight(failure.Output, "\n"), err)
	return &Result{Text: text, IsError: true, Err: err}
}

// createFile writes data to path unless something already exists there. For
// Go sources it also refuses identifiers already declared by another file of
// the same package, which would break the package's build.
func (d *Dispatcher) createFile(s *settings, path string, data []byte) error {
	unlock := d.locks.lock(path)
	defer unlock()

	if _, err := os.Lstat(path); err == nil {
		return &AlreadyExistsError{Path: s.guard.Rel(path)}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to check '%s': %w", s.guard.Rel(path), err)
	}

	if strings.HasSuffix(path, ".go") {
		if pkg, names, ok := packageDecls(path, data); ok {
			name, declaredIn, err := findDeclared(path, pkg, names)
			if err != nil {
				return fmt.Errorf("failed to check declarations beside '%s': %w", s.guard.Rel(path), err)
			}
			if name != "" {
				return &AlreadyExistsError{Path: s.guard.Rel(declaredIn), Name: name}
			}
		}
	}
	return d.writeLocked(s, path, data)
}

// replaceFile writes data to path, overwriting any existing content.
func (d *Dispatcher) replaceFile(s *settings, path string, data []byte) error {
	unlock := d.locks.lock(path)
	defer unlock()
	return d.writeLocked(s, path, data)
}

func (d *Dispatcher) writeLocked(s *settings, path string, data []byte) error {
	if err := config.WriteFileAtomic(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write '%s': %w", s.guard.Rel(path), err)
	}
	d.log.Infof("Wrote %s (%d bytes)", s.guard.Rel(path), len(data))
	return nil
}

func codeBlock(lang, content string) string {
	return fmt.Sprintf("```%s\n%s\n```", lang, strings.TrimRight(content, "\n"))
}
