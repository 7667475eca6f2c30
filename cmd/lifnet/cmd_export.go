package main

import (
	"fmt"
	"strconv"

	"github.com/c2h5oh/datasize"
	"github.com/spf13/cobra"

	"github.com/nvandessel/lifnet/internal/raster"
	"github.com/nvandessel/lifnet/internal/store"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <run-id>",
		Short: "Write a stored run's spike raster to a file",
		Long: `Export the spikes of a stored run. The run ID may be abbreviated to any
unique prefix. The format follows the output extension unless --format is
given.

Examples:
  lifnet export 1a2b3c4d                        # Writes 1a2b3c4d.csv
  lifnet export 1a2b3c4d -o spikes.parquet      # Parquet with run metadata`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			output, _ := cmd.Flags().GetString("output")
			formatName, _ := cmd.Flags().GetString("format")

			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			id, err := store.ResolveID(ctx, s, args[0])
			if err != nil {
				return fmt.Errorf("run %q: %w", args[0], err)
			}
			run, err := s.GetRun(ctx, id)
			if err != nil {
				return err
			}
			spikes, err := s.LoadSpikes(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to load spikes: %w", err)
			}

			var format raster.Format
			if formatName != "" {
				if format, err = raster.ParseFormat(formatName); err != nil {
					return err
				}
			}
			if output == "" {
				if format == "" {
					format = raster.FormatCSV
				}
				output = shortID(id) + "." + string(format)
			}
			if format == "" {
				format = raster.FormatFromPath(output)
			}

			n, err := raster.Export(output, format, spikes, map[string]string{
				"lifnet.run_id": run.ID,
				"lifnet.seed":   strconv.FormatUint(run.Seed, 10),
			})
			if err != nil {
				return fmt.Errorf("export failed: %w", err)
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"run_id": run.ID,
					"path":   output,
					"format": format,
					"spikes": len(spikes),
					"bytes":  n,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d spikes from run %s to %s (%s, %s)\n",
				len(spikes), shortID(run.ID), output, format, datasize.ByteSize(n).HumanReadable())
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", "", "Output path (default: <run-id>.<format>)")
	cmd.Flags().String("format", "", "Raster format: csv, jsonl, arrow, parquet")
	return cmd
}
