package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	shellwords "github.com/mattn/go-shellwords"
)

// Environment variables read by ApplyEnv.
const (
	EnvUsername    = "FLOWCHECK_USERNAME"
	EnvPassword    = "FLOWCHECK_PASSWORD"
	EnvDisplayName = "FLOWCHECK_DISPLAY_NAME"
	EnvBaseURL     = "FLOWCHECK_BASE_URL"
)

// LoadDotEnv loads dir/.env into the process environment. Variables already
// set win over the file. A missing file is not an error.
func LoadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays FLOWCHECK_* variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvUsername); v != "" {
		c.Secrets.Username = v
	}
	if v := getenv(EnvPassword); v != "" {
		c.Secrets.Password = v
	}
	if v := getenv(EnvDisplayName); v != "" {
		c.Secrets.DisplayName = v
	}
	if v := getenv(EnvBaseURL); v != "" {
		c.BaseURL = v
	}
}

// LoadProject loads dir/.env, dir/flowcheck.yaml and the environment, in that
// order.
func LoadProject(dir string) (*Config, error) {
	if err := LoadDotEnv(dir); err != nil {
		return nil, err
	}
	cfg, err := Load(filepath.Join(dir, FileName))
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

// SplitCommand splits a configured command line into arguments, honouring
// shell quoting. Environment variables are not expanded.
func SplitCommand(line string) ([]string, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(line)
	if err != nil {
		return nil, fmt.Errorf("invalid command %q: %w", line, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	return args, nil
}
