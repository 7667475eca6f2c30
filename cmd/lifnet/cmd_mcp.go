package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/lifnet/internal/mcp"
)

func newMCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server",
		Short: "Run the MCP server over stdio",
		Long: `Run a Model Context Protocol server on stdin/stdout exposing the
lifnet_simulate, lifnet_runs and lifnet_stats tools.

Simulations run one at a time. Output files are confined to .lifnet/ under
the project root or the home directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			server, err := mcp.NewServer(&mcp.Config{
				Name:    "lifnet",
				Version: version,
				Root:    root,
				Lifnet:  cfg,
				Logger:  newLogger(cmd, cfg),
			})
			if err != nil {
				return fmt.Errorf("failed to start MCP server: %w", err)
			}
			return server.Run(cmd.Context())
		},
	}
}
