// Command flowcheck runs the end-to-end journey against the review platform
// and serves the test authoring tools over MCP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/entrhq/flowcheck/pkg/config"
)

const version = "0.1.0"

var (
	flagProject string
	flagConfig  string
)

var rootCmd = &cobra.Command{
	Use:   "flowcheck",
	Short: "End-to-end checks for the document review platform",
	Long: `flowcheck drives a real browser through the review platform's main
journey: login, project selection, field creation, mass edit, search,
highlighting and annotation sets.

Credentials are read from FLOWCHECK_USERNAME and FLOWCHECK_PASSWORD, or from a
.env file in the project directory. Everything else lives in flowcheck.yaml.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagProject, "project", "C", ".", "project directory")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default <project>/flowcheck.yaml)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// projectDir returns the absolute project directory.
func projectDir() (string, error) {
	dir, err := filepath.Abs(flagProject)
	if err != nil {
		return "", fmt.Errorf("failed to resolve project directory: %w", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("project directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("project directory %s is not a directory", dir)
	}
	return dir, nil
}

// loadProject loads the configuration for the project directory, honouring
// --config.
func loadProject(dir string) (*config.Config, error) {
	if flagConfig == "" {
		return config.LoadProject(dir)
	}
	if err := config.LoadDotEnv(dir); err != nil {
		return nil, err
	}
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}
