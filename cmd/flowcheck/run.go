package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/entrhq/flowcheck/pkg/browser"
	"github.com/entrhq/flowcheck/pkg/config"
	"github.com/entrhq/flowcheck/pkg/logging"
	"github.com/entrhq/flowcheck/pkg/scenario"
	"github.com/entrhq/flowcheck/pkg/workflow"
)

var (
	flagRunHeaded    bool
	flagRunDebug     bool
	flagRunBrowser   string
	flagRunGrep      string
	flagRunVerbosity string
	flagRunTrace     bool
)

func init() {
	runCmd.Flags().BoolVar(&flagRunHeaded, "headed", false, "show the browser window")
	runCmd.Flags().BoolVar(&flagRunDebug, "debug", false, "run headed with the Playwright inspector (PWDEBUG=1)")
	runCmd.Flags().StringVar(&flagRunBrowser, "browser", "", "browser engine: chromium, firefox or webkit (default from config)")
	runCmd.Flags().StringVar(&flagRunGrep, "grep", "", "only run scenarios whose name matches this regular expression")
	runCmd.Flags().StringVar(&flagRunVerbosity, "verbosity", "", "console output: quiet, normal, verbose or debug (default from config)")
	runCmd.Flags().BoolVar(&flagRunTrace, "trace", false, "record a trace archive per scenario into the results area")

	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the end-to-end journey",
	Long: `Run the built-in journey against the configured base URL.

Each scenario gets a fresh browser context. Steps run in order and stop at the
first failure; teardown always runs. Results are written to results.json and
summary.md in the results area.

Examples:
  flowcheck run
  flowcheck run --headed --browser firefox
  flowcheck run --grep "full workflow" --trace`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := projectDir()
		if err != nil {
			return err
		}
		cfg, err := loadProject(dir)
		if err != nil {
			return err
		}
		if err := applyRunFlags(cfg); err != nil {
			return err
		}

		log, err := newLogger("run", cfg)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
		}
		defer log.Close()

		results, err := runJourney(cmd.Context(), cmd, dir, cfg, log)
		if err != nil {
			return err
		}
		if results.Failed() {
			passed, failed, notRun := results.Counts()
			return fmt.Errorf("%d scenario(s) failed (%d passed, %d not run)", failed, passed, notRun)
		}
		return nil
	},
}

func applyRunFlags(cfg *config.Config) error {
	if flagRunHeaded || flagRunDebug {
		cfg.Browser.Headless = false
	}
	if flagRunDebug {
		if err := os.Setenv("PWDEBUG", "1"); err != nil {
			return fmt.Errorf("failed to enable inspector: %w", err)
		}
	}
	if flagRunBrowser != "" {
		cfg.Browser.Engine = flagRunBrowser
	}
	if flagRunVerbosity != "" {
		cfg.Logging.Verbosity = flagRunVerbosity
	}
	if flagRunTrace {
		cfg.Browser.Trace = true
	}
	return cfg.Validate()
}

// newLogger opens the run's log file at the configured level. On failure the
// returned logger writes to stderr alongside the error.
func newLogger(component string, cfg *config.Config) (*logging.Logger, error) {
	log, err := logging.NewLogger(component)
	if level, levelErr := logging.ParseLevel(cfg.Logging.Level); levelErr == nil {
		log.SetLevel(level)
	}
	return log, err
}

func runJourney(ctx context.Context, cmd *cobra.Command, dir string, cfg *config.Config, log *logging.Logger) (*scenario.Results, error) {
	journey := cfg.JourneyConfig()
	if err := journey.Validate(); err != nil {
		return nil, fmt.Errorf("%w (set %s and %s)", err, config.EnvUsername, config.EnvPassword)
	}
	fx, err := workflow.LoadFixture()
	if err != nil {
		return nil, err
	}

	launcher := browser.NewLauncher(cfg.BrowserOptions(dir), log.With("browser"))
	if err := launcher.Start(); err != nil {
		return nil, err
	}
	defer func() {
		if err := launcher.Shutdown(); err != nil {
			log.Warnf("browser shutdown: %v", err)
		}
	}()

	reporter := scenario.NewReporter(cmd.OutOrStdout(), scenario.ParseVerbosity(cfg.Logging.Verbosity))
	reporter.Header(fmt.Sprintf("flowcheck %s against %s (%s)", version, cfg.BaseURL, cfg.Browser.Engine))

	scenarios := workflow.Scenarios(journey, fx, workflow.BrowserOpener(launcher, cfg.PageOptions()))
	results, err := scenario.Run(ctx, scenarios, scenario.Options{
		Filter:   flagRunGrep,
		Reporter: reporter,
		Log:      log.With("scenario"),
		RunID:    log.RunID(),
	})
	if err != nil {
		return nil, err
	}

	resultsDir := filepath.Join(dir, filepath.FromSlash(cfg.Areas.Results))
	if err := scenario.WriteResults(resultsDir, results); err != nil {
		reporter.Errorf("%v", err)
	}
	reporter.Summary(results)
	if path := log.LogPath(); path != "" {
		reporter.Infof("Log file: %s", path)
	}
	return results, nil
}
