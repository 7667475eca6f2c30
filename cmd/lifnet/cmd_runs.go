package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nvandessel/lifnet/internal/store"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs",
		Long: `List the runs recorded in .lifnet/lifnet.db, newest first.

Examples:
  lifnet runs                  # 20 most recent runs
  lifnet runs --limit 0        # Every run
  lifnet runs show 1a2b        # Full details of one run
  lifnet runs delete 1a2b      # Remove a run and its spikes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			limit, _ := cmd.Flags().GetInt("limit")

			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			runs, err := s.ListRuns(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}

			if jsonOut {
				views := make([]map[string]any, 0, len(runs))
				for _, r := range runs {
					views = append(views, runView(r))
				}
				return writeJSON(cmd.OutOrStdout(), map[string]any{"runs": views, "count": len(runs)})
			}

			w := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(w, "No runs recorded yet. Start one with 'lifnet run'.")
				return nil
			}
			fmt.Fprintf(w, "%-8s  %-19s  %7s  %9s  %8s  %s\n", "ID", "CREATED", "NEURONS", "DURATION", "SPIKES", "LABEL")
			for _, r := range runs {
				fmt.Fprintf(w, "%-8s  %-19s  %7d  %9s  %8d  %s\n",
					shortID(r.ID), r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					r.Neurons, fmt.Sprintf("%gms", r.Duration), r.Spikes, r.Label)
			}
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "Maximum runs to list (0 = all)")
	cmd.AddCommand(newRunsShowCmd(), newRunsDeleteCmd())
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

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

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), runView(*run))
			}
			printRunDetails(cmd.OutOrStdout(), run)
			return nil
		},
	}
}

func printRunDetails(w io.Writer, r *store.Run) {
	p := r.Params
	fmt.Fprintf(w, "Run %s\n", r.ID)
	if r.Label != "" {
		fmt.Fprintf(w, "  Label:       %s\n", r.Label)
	}
	fmt.Fprintf(w, "  Created:     %s\n", r.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "  Seed:        %d\n", r.Seed)
	fmt.Fprintf(w, "  Network:     %d neurons, %d connections (p=%g)\n", r.Neurons, r.Edges, r.ConnectionProb)
	fmt.Fprintf(w, "  Time:        %g ms at dt=%g ms (%d steps)\n", r.Duration, p.Dt, r.Steps)
	fmt.Fprintf(w, "  Synapse:     %s (tau_s=%g ms, g_s=%g, I_s=%g)\n", p.Synapse, p.TauS, p.GStep, p.IStep)
	fmt.Fprintf(w, "  Membrane:    V_rest=%g V_th=%g E_rev=%g mV, R_m=%g, tau_m=%g ms, tau_ref=%g ms\n",
		p.VRest, p.VThreshold, p.ERev, p.RM, p.TauM, p.TauRef)
	fmt.Fprintf(w, "  Spontaneous: p_s=%g per step\n", p.SpontaneousProb)
	fmt.Fprintf(w, "  Spikes:      %d in %s\n", r.Spikes, r.Elapsed)
	if r.Output != "" {
		fmt.Fprintf(w, "  Output:      %s (%s)\n", r.Output, r.Format)
	}
}

func newRunsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a stored run and its spikes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

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
			if err := s.DeleteRun(ctx, id); err != nil {
				return fmt.Errorf("failed to delete run: %w", err)
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"deleted": id})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", shortID(id))
			return nil
		},
	}
}
