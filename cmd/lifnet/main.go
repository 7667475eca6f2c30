package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nvandessel/lifnet/internal/config"
	"github.com/nvandessel/lifnet/internal/constants"
	"github.com/nvandessel/lifnet/internal/logging"
	"github.com/nvandessel/lifnet/internal/store"
)

// Set by goreleaser ldflags.
var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lifnet",
		Short: "Leaky integrate-and-fire network simulator",
		Long: `lifnet simulates a randomly connected population of leaky
integrate-and-fire neurons and records every spike.

Runs are stored in .lifnet/lifnet.db under the project root so they can be
listed, analysed, exported in other formats and archived later.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("root", ".", "Project root directory")
	rootCmd.PersistentFlags().Bool("global", false, "Use the global ~/.lifnet store instead of the project's")
	rootCmd.PersistentFlags().String("config", "", "Config file (default: ~/.lifnet/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug or trace (overrides config)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newExportCmd(),
		newStatsCmd(),
		newRunsCmd(),
		newPlotCmd(),
		newArchiveCmd(),
		newConfigCmd(),
		newMCPServerCmd(),
	)
	return rootCmd
}

// loadConfig resolves the effective configuration for a command:
// defaults, then the config file, then LIFNET_* env, then --log-level.
func loadConfig(cmd *cobra.Command) (*config.LifnetConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadPath(path)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg *config.LifnetConfig) *slog.Logger {
	return logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
}

// lifnetDir is the .lifnet directory selected by --root and --global.
func lifnetDir(cmd *cobra.Command) (string, error) {
	root, _ := cmd.Flags().GetString("root")
	scope := constants.ScopeLocal
	if global, _ := cmd.Flags().GetBool("global"); global {
		scope = constants.ScopeGlobal
	}
	return store.PathFor(scope, root)
}

func openStore(cmd *cobra.Command) (*store.SQLiteRunStore, error) {
	dir, err := lifnetDir(cmd)
	if err != nil {
		return nil, err
	}
	s, err := store.OpenDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return s, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
