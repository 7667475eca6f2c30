package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/nvandessel/lifnet/internal/analysis"
	"github.com/nvandessel/lifnet/internal/constants"
	"github.com/nvandessel/lifnet/internal/raster"
	"github.com/nvandessel/lifnet/internal/store"
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats [run-id]",
		Short: "Show firing statistics for a run or raster file",
		Long: `Summarise the firing of a stored run, or of any raster file with --input.

Reports per-population rate mean and spread, the mean coefficient of
variation of inter-spike intervals, and the Fano factor of binned
population counts (values well above 1 indicate synchronous bursts).

Examples:
  lifnet stats 1a2b3c4d                               # Stored run
  lifnet stats 1a2b3c4d --top 10                      # Plus the 10 busiest neurons
  lifnet stats --input spikes.csv --duration 1000     # Raster file`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			input, _ := cmd.Flags().GetString("input")
			neurons, _ := cmd.Flags().GetInt("neurons")
			duration, _ := cmd.Flags().GetFloat64("duration")
			bin, _ := cmd.Flags().GetFloat64("bin")
			topN, _ := cmd.Flags().GetInt("top")

			ctx := cmd.Context()
			var (
				events []raster.Event
				source string
			)
			switch {
			case input != "" && len(args) > 0:
				return fmt.Errorf("give either a run ID or --input, not both")
			case input != "":
				var err error
				if events, err = raster.Load(ctx, input); err != nil {
					return err
				}
				if neurons == 0 {
					neurons = raster.MaxNeuron(events) + 1
				}
				if duration == 0 {
					return fmt.Errorf("--duration is required with --input")
				}
				source = input
			case len(args) == 1:
				s, err := openStore(cmd)
				if err != nil {
					return err
				}
				defer s.Close()

				id, err := store.ResolveID(ctx, s, args[0])
				if err != nil {
					return fmt.Errorf("run %q: %w", args[0], err)
				}
				run, err := s.GetRun(ctx, id)
				if err != nil {
					return err
				}
				if events, err = s.LoadSpikes(ctx, id); err != nil {
					return fmt.Errorf("failed to load spikes: %w", err)
				}
				neurons = run.Neurons
				duration = float64(run.Steps) * run.Params.Dt
				source = "run " + shortID(run.ID)
			default:
				return fmt.Errorf("a run ID or --input is required")
			}

			sum, err := analysis.SummarizeWithBin(events, neurons, duration, bin)
			if err != nil {
				return err
			}

			top := busiest(sum.PerNeuron, topN)
			if jsonOut {
				sum.PerNeuron = top
				return writeJSON(cmd.OutOrStdout(), sum)
			}
			printSummary(cmd.OutOrStdout(), source, sum, top)
			return nil
		},
	}

	cmd.Flags().String("input", "", "Raster file to analyse instead of a stored run")
	cmd.Flags().Int("neurons", 0, "Population size for --input (default: highest index + 1)")
	cmd.Flags().Float64("duration", 0, "Window in ms for --input")
	cmd.Flags().Float64("bin", constants.DefaultHistogramBin, "Population histogram bin width in ms")
	cmd.Flags().Int("top", 0, "Also list the N most active neurons")
	return cmd
}

// busiest returns the n neurons with the most spikes, ties by index.
func busiest(stats []analysis.NeuronStats, n int) []analysis.NeuronStats {
	if n <= 0 {
		return nil
	}
	sorted := make([]analysis.NeuronStats, len(stats))
	copy(sorted, stats)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Spikes > sorted[j].Spikes
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func printSummary(w io.Writer, source string, sum *analysis.Summary, top []analysis.NeuronStats) {
	fmt.Fprintf(w, "%s: %d neurons, %s ms\n", source, sum.Neurons, raster.FormatTime(sum.DurationMs))
	fmt.Fprintf(w, "  Spikes:       %d (%d silent neurons)\n", sum.TotalSpikes, sum.Silent)
	fmt.Fprintf(w, "  Rate:         %.2f ± %.2f Hz (max %.2f)\n", sum.MeanRateHz, sum.StdRateHz, sum.MaxRateHz)
	if sum.CVNeurons > 0 {
		fmt.Fprintf(w, "  ISI CV:       %.3f over %d neurons\n", sum.MeanISICV, sum.CVNeurons)
	} else {
		fmt.Fprintf(w, "  ISI CV:       n/a (no neuron fired 3+ times)\n")
	}
	fmt.Fprintf(w, "  Fano factor:  %.3f (%s ms bins)\n", sum.FanoFactor, raster.FormatTime(sum.BinMs))

	if len(top) > 0 {
		fmt.Fprintf(w, "\n  %-8s %8s %10s\n", "NEURON", "SPIKES", "RATE_HZ")
		for _, ns := range top {
			fmt.Fprintf(w, "  %-8d %8d %10.2f\n", ns.Neuron, ns.Spikes, ns.RateHz)
		}
	}
}
