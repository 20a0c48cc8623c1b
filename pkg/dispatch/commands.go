package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/entrhq/flowcheck/pkg/browser"
	"github.com/entrhq/flowcheck/pkg/config"
	"github.com/entrhq/flowcheck/pkg/workspace"
)

// Flags understood by the e2e test binary, passed after -args.
const (
	flagHeaded  = "-headed"
	flagDebug   = "-debug"
	flagBrowser = "-browser="
	flagGrep    = "-grep="
)

// testPackage returns the go test package pattern of the tests area.
func testPackage(s *settings) string {
	return "./" + path.Clean(filepath.ToSlash(s.cfg.Areas.Tests))
}

type runTestInput struct {
	Filename string `json:"filename"`
	Headed   bool   `json:"headed"`
	Debug    bool   `json:"debug"`
	Project  string `json:"project"`
	Grep     string `json:"grep"`
}

// testCommand assembles the go test command line for in.
func testCommand(s *settings, in runTestInput) ([]string, error) {
	args, err := config.SplitCommand(s.cfg.Runner.TestCommand)
	if err != nil {
		return nil, err
	}
	args = append(args, testPackage(s))

	if in.Filename != "" {
		p, err := s.guard.Resolve(workspace.Tests, in.Filename)
		if err != nil {
			return nil, err
		}
		names, err := testsInFile(p)
		if err != nil {
			return nil, err
		}
		if len(names) == 0 {
			return nil, fmt.Errorf("no Test functions found in '%s'", in.Filename)
		}
		args = append(args, "-run", "^("+strings.Join(names, "|")+")$")
	}
	// go test stops a run after 10 minutes unless told otherwise.
	args = append(args, "-v", "-timeout="+s.cfg.Runner.Timeout.String())

	var extra []string
	if in.Headed {
		extra = append(extra, flagHeaded)
	}
	if in.Debug {
		extra = append(extra, flagDebug)
	}
	if in.Project != "" {
		engine, err := browser.ParseEngine(in.Project)
		if err != nil {
			return nil, err
		}
		extra = append(extra, flagBrowser+string(engine))
	}
	if in.Grep != "" {
		if _, err := regexp.Compile(in.Grep); err != nil {
			return nil, fmt.Errorf("invalid grep pattern: %w", err)
		}
		extra = append(extra, flagGrep+in.Grep)
	}
	if len(extra) > 0 {
		args = append(args, "-args")
		args = append(args, extra...)
	}
	return args, nil
}

func testsInFile(p string) ([]string, error) {
	src, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("test file '%s' not found", filepath.Base(p))
		}
		return nil, fmt.Errorf("failed to read test file: %w", err)
	}
	file, err := parser.ParseFile(token.NewFileSet(), p, src, parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("failed to parse test file: %w", err)
	}
	return testFuncs(file), nil
}

func (d *Dispatcher) runTest(ctx context.Context, args json.RawMessage) (string, error) {
	in, err := decode[runTestInput](args)
	if err != nil {
		return "", err
	}
	s := d.settings()
	command, err := testCommand(s, in)
	if err != nil {
		return "", err
	}
	out, err := s.runner.Run(ctx, command)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Test execution completed in %s:\n\n%s", out.Duration.Round(time.Millisecond), codeBlock("", out.Text)), nil
}

func (d *Dispatcher) runTestUI(_ context.Context, _ json.RawMessage) (string, error) {
	s := d.settings()
	command, err := testCommand(s, runTestInput{Headed: true, Debug: true})
	if err != nil {
		return "", err
	}
	pid, err := s.runner.Start(command)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Interactive test run launched (pid %d). A headed browser with the Playwright inspector will open.", pid), nil
}

func playwrightCommand(s *settings, args ...string) ([]string, error) {
	command, err := config.SplitCommand(s.cfg.Runner.PlaywrightCommand)
	if err != nil {
		return nil, err
	}
	return append(command, args...), nil
}

func (d *Dispatcher) showTrace(_ context.Context, _ json.RawMessage) (string, error) {
	s := d.settings()
	m, err := workspace.NewMatcher([]string{"**.zip"}, nil)
	if err != nil {
		return "", err
	}
	traces, err := s.guard.List(workspace.Results, m)
	if err != nil {
		return "", err
	}
	newest, ok := workspace.Newest(traces)
	if !ok {
		return "", fmt.Errorf("no trace archives found in %s; enable browser.trace in %s and run tests first", s.cfg.Areas.Results, config.FileName)
	}

	tracePath, err := s.guard.Resolve(workspace.Results, newest.Name)
	if err != nil {
		return "", err
	}
	command, err := playwrightCommand(s, "show-trace", tracePath)
	if err != nil {
		return "", err
	}
	if _, err := s.runner.Start(command); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Opening trace %s in the trace viewer...", s.guard.Rel(tracePath)), nil
}

type codegenInput struct {
	URL string `json:"url"`
}

func (d *Dispatcher) codegen(_ context.Context, args json.RawMessage) (string, error) {
	in, err := decode[codegenInput](args)
	if err != nil {
		return "", err
	}
	s := d.settings()
	extra := []string{"codegen"}
	if in.URL != "" {
		extra = append(extra, in.URL)
	}
	command, err := playwrightCommand(s, extra...)
	if err != nil {
		return "", err
	}
	if _, err := s.runner.Start(command); err != nil {
		return "", err
	}
	if in.URL != "" {
		return fmt.Sprintf("✅ Playwright Codegen launched! Recording from %s", in.URL), nil
	}
	return "✅ Playwright Codegen launched! Ready to record", nil
}

func (d *Dispatcher) installBrowsers(ctx context.Context, _ json.RawMessage) (string, error) {
	s := d.settings()
	command, err := playwrightCommand(s, "install")
	if err != nil {
		return "", err
	}
	out, err := s.runner.Run(ctx, command)
	if err != nil {
		return "", err
	}
	return "✅ Browser installation completed:\n\n" + codeBlock("", out.Text), nil
}
