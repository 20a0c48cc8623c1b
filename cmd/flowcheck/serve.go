package main

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/entrhq/flowcheck/pkg/dispatch"
	"github.com/entrhq/flowcheck/pkg/mcpserver"
)

const shutdownTimeout = 5 * time.Second

var flagServeProfile string

func init() {
	serveCmd.Flags().StringVar(&flagServeProfile, "profile", string(dispatch.ProfileFull), "tool set to expose: basic or full")

	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the test authoring tools over MCP on stdio",
	Long: `Serve the test authoring tools to an MCP client over stdin and stdout.

The basic profile exposes listing, reading, writing and running tests plus the
results and configuration views. The full profile adds page object and test
data generation, test analysis, traces, codegen and browser installation.

Logs go to ~/.flowcheck/logs since stdout carries the protocol.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := dispatch.ParseProfile(flagServeProfile)
		if err != nil {
			return err
		}
		dir, err := projectDir()
		if err != nil {
			return err
		}
		cfg, err := loadProject(dir)
		if err != nil {
			return err
		}

		log, err := newLogger("mcp", cfg)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
		}
		defer log.Close()

		d, err := dispatch.New(dir, cfg, log.With("dispatch"))
		if err != nil {
			return err
		}
		server := mcpserver.New(d, profile, version, log)

		ctx := cmd.Context()
		stopped := make(chan struct{})
		defer close(stopped)
		go func() {
			select {
			case <-ctx.Done():
			case <-stopped:
				return
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Warnf("shutdown: %v", err)
			}
		}()

		return server.Run(context.WithoutCancel(ctx), &mcp.StdioTransport{})
	},
}
