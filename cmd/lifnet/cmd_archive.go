package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/spf13/cobra"

	"github.com/nvandessel/lifnet/internal/archive"
	"github.com/nvandessel/lifnet/internal/pathutil"
	"github.com/nvandessel/lifnet/internal/store"
)

const defaultArchiveKeep = 10

func newArchiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Bundle stored runs into portable archive files",
		Long: `Archive files hold runs with their full spike rasters, gzip-compressed
behind a plain-text header carrying a SHA-256 checksum.

Default location: .lifnet/archives/lifnet-archive-YYYYMMDD-HHMMSS.lna

Examples:
  lifnet archive create                      # Every stored run
  lifnet archive create 1a2b 3c4d            # Selected runs
  lifnet archive create --max-size 500MB     # Prune old archives by total size
  lifnet archive list
  lifnet archive verify <file>
  lifnet archive restore <file> --mode replace`,
	}

	cmd.AddCommand(
		newArchiveCreateCmd(),
		newArchiveListCmd(),
		newArchiveVerifyCmd(),
		newArchiveRestoreCmd(),
	)
	return cmd
}

func newArchiveCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create [run-id...]",
		Short: "Write runs to a new archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")
			outputPath, _ := cmd.Flags().GetString("output")
			note, _ := cmd.Flags().GetString("note")

			policy, err := retentionPolicy(cmd)
			if err != nil {
				return err
			}

			base, err := lifnetDir(cmd)
			if err != nil {
				return err
			}
			dir := archive.DefaultDir(base)
			if outputPath == "" {
				if err := os.MkdirAll(dir, 0700); err != nil {
					return fmt.Errorf("failed to create archive directory: %w", err)
				}
				outputPath = archive.GeneratePath(dir)
			} else if outputPath, err = confineArchivePath(outputPath, root); err != nil {
				return err
			}

			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			ids := make([]string, 0, len(args))
			for _, a := range args {
				id, err := store.ResolveID(ctx, s, a)
				if err != nil {
					return fmt.Errorf("run %q: %w", a, err)
				}
				ids = append(ids, id)
			}

			header, err := archive.Create(ctx, s, ids, outputPath, note)
			if err != nil {
				return fmt.Errorf("archive failed: %w", err)
			}

			var pruned []string
			if policy != nil && filepath.Dir(outputPath) == dir {
				if pruned, err = archive.ApplyRetention(dir, policy); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to apply retention: %v\n", err)
				}
			}

			var size int64
			if info, err := os.Stat(outputPath); err == nil {
				size = info.Size()
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"path":        outputPath,
					"run_count":   header.RunCount,
					"spike_count": header.SpikeCount,
					"checksum":    header.Checksum,
					"size_bytes":  size,
					"pruned":      pruned,
					"note":        header.Metadata[archive.MetaNote],
				})
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Archive created: %d runs, %d spikes (%s)\n",
				header.RunCount, header.SpikeCount, datasize.ByteSize(size).HumanReadable())
			fmt.Fprintf(w, "  Path: %s\n", outputPath)
			if len(pruned) > 0 {
				fmt.Fprintf(w, "  Pruned %d old archives\n", len(pruned))
			}
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", "", "Archive path (default: auto-generated in .lifnet/archives/)")
	cmd.Flags().String("note", "", "Free-text note stored in the archive header")
	cmd.Flags().Int("max-count", defaultArchiveKeep, "Keep at most this many archives (0 = unlimited)")
	cmd.Flags().String("max-age", "", "Delete archives older than this (e.g. 30d, 2w, 72h)")
	cmd.Flags().String("max-size", "", "Keep total archive size under this (e.g. 500MB, 2GB)")
	return cmd
}

// retentionPolicy builds the policy from the create flags. Archives must
// satisfy every configured limit.
func retentionPolicy(cmd *cobra.Command) (archive.RetentionPolicy, error) {
	maxCount, _ := cmd.Flags().GetInt("max-count")
	maxAge, _ := cmd.Flags().GetString("max-age")
	maxSize, _ := cmd.Flags().GetString("max-size")

	var policies []archive.RetentionPolicy
	if maxCount > 0 {
		policies = append(policies, &archive.CountPolicy{MaxCount: maxCount})
	}
	if maxAge != "" {
		d, err := archive.ParseDuration(maxAge)
		if err != nil {
			return nil, err
		}
		policies = append(policies, &archive.AgePolicy{MaxAge: d})
	}
	if maxSize != "" {
		size, err := archive.ParseSize(maxSize)
		if err != nil {
			return nil, err
		}
		policies = append(policies, &archive.SizePolicy{MaxTotal: size})
	}

	switch len(policies) {
	case 0:
		return nil, nil
	case 1:
		return policies[0], nil
	}
	return &archive.AllPolicy{Policies: policies}, nil
}

func confineArchivePath(path, root string) (string, error) {
	allowed, err := pathutil.AllowedDirs(root)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := pathutil.Confine(abs, allowed)
	if err != nil {
		return "", fmt.Errorf("archive path rejected: %w", err)
	}
	return resolved, nil
}

func newArchiveListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List archives in .lifnet/archives",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			base, err := lifnetDir(cmd)
			if err != nil {
				return err
			}
			infos, err := archive.List(archive.DefaultDir(base))
			if err != nil {
				return err
			}

			if jsonOut {
				if infos == nil {
					infos = []archive.Info{}
				}
				return writeJSON(cmd.OutOrStdout(), map[string]any{"archives": infos, "count": len(infos)})
			}
			w := cmd.OutOrStdout()
			if len(infos) == 0 {
				fmt.Fprintln(w, "No archives found.")
				return nil
			}
			for _, info := range infos {
				fmt.Fprintf(w, "%s  %10s  %s",
					info.CreatedAt.Local().Format(time.DateTime),
					datasize.ByteSize(info.Size).HumanReadable(),
					filepath.Base(info.Path))
				if info.Note != "" {
					fmt.Fprintf(w, "  %s", info.Note)
				}
				fmt.Fprintln(w)
			}
			return nil
		},
	}
}

func newArchiveVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Check an archive's checksum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			header, err := archive.Verify(args[0])
			if jsonOut {
				result := map[string]any{"path": args[0], "valid": err == nil}
				if err != nil {
					result["error"] = err.Error()
				} else {
					result["run_count"] = header.RunCount
					result["spike_count"] = header.SpikeCount
					result["created_at"] = header.CreatedAt
				}
				if encErr := writeJSON(cmd.OutOrStdout(), result); encErr != nil {
					return encErr
				}
				return err
			}
			if err != nil {
				return fmt.Errorf("archive invalid: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Archive OK: %d runs, %d spikes, created %s\n",
				header.RunCount, header.SpikeCount, header.CreatedAt.Local().Format(time.DateTime))
			return nil
		},
	}
}

func newArchiveRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <file>",
		Short: "Load runs from an archive into the store",
		Long: `Restore runs from an archive after verifying its checksum.

Modes:
  merge   - Skip runs that are already stored (default)
  replace - Overwrite runs with the same ID`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			mode, _ := cmd.Flags().GetString("mode")

			restoreMode := archive.RestoreMode(mode)
			if restoreMode != archive.RestoreMerge && restoreMode != archive.RestoreReplace {
				return fmt.Errorf("invalid mode %q (valid: merge, replace)", mode)
			}

			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			result, err := archive.Restore(cmd.Context(), s, args[0], restoreMode)
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %d runs (%d spikes), skipped %d existing\n",
				result.RunsRestored, result.SpikesRestored, result.RunsSkipped)
			return nil
		},
	}

	cmd.Flags().String("mode", string(archive.RestoreMerge), "Restore mode: merge or replace")
	return cmd
}
