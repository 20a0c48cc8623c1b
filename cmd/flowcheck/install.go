package main

import (
	"github.com/spf13/cobra"

	"github.com/entrhq/flowcheck/pkg/browser"
)

var flagInstallAll bool

func init() {
	installCmd.Flags().BoolVar(&flagInstallAll, "all", false, "install every engine, not just the configured one")

	rootCmd.AddCommand(installCmd)
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Download the Playwright driver and browser",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engines := []browser.Engine{browser.Chromium, browser.Firefox, browser.WebKit}
		if !flagInstallAll {
			dir, err := projectDir()
			if err != nil {
				return err
			}
			cfg, err := loadProject(dir)
			if err != nil {
				return err
			}
			engine, err := browser.ParseEngine(cfg.Browser.Engine)
			if err != nil {
				return err
			}
			engines = []browser.Engine{engine}
		}
		return browser.Install(engines, cmd.OutOrStdout())
	},
}
