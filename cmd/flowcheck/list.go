package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/entrhq/flowcheck/pkg/scenario"
	"github.com/entrhq/flowcheck/pkg/workflow"
)

var flagListGrep string

func init() {
	listCmd.Flags().StringVar(&flagListGrep, "grep", "", "only list scenarios whose name matches this regular expression")

	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the registered scenarios and their steps",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := projectDir()
		if err != nil {
			return err
		}
		cfg, err := loadProject(dir)
		if err != nil {
			return err
		}
		fx, err := workflow.LoadFixture()
		if err != nil {
			return err
		}

		// Listing never opens a session.
		scenarios, err := scenario.Select(workflow.Scenarios(cfg.JourneyConfig(), fx, nil), flagListGrep)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, sc := range scenarios {
			fmt.Fprintln(out, sc.Name)
			for i, st := range sc.Steps {
				fmt.Fprintf(out, "  %d. %s\n", i+1, st.Name)
			}
		}
		return nil
	},
}
