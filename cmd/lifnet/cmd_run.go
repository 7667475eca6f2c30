package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/spf13/cobra"

	"github.com/nvandessel/lifnet/internal/analysis"
	"github.com/nvandessel/lifnet/internal/config"
	"github.com/nvandessel/lifnet/internal/engine"
	"github.com/nvandessel/lifnet/internal/logging"
	"github.com/nvandessel/lifnet/internal/raster"
	"github.com/nvandessel/lifnet/internal/sanitize"
	"github.com/nvandessel/lifnet/internal/simulation"
	"github.com/nvandessel/lifnet/internal/store"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Simulate the network and write its spike raster",
		Long: `Simulate a randomly connected LIF population and write every spike as
"<time_ms>,<neuron>" lines to the output file.

Settings come from the config file and LIFNET_* environment variables;
flags override both. Without --seed a fresh seed is drawn and recorded with
the run so it can be replayed.

Examples:
  lifnet run                                  # Reference network, spikes.csv
  lifnet run --neurons 500 --duration 2000    # Larger, longer run
  lifnet run --synapse current --seed 42      # Reproducible current-based run
  lifnet run --output run.parquet --quiet     # Parquet export, no progress`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			quiet, _ := cmd.Flags().GetBool("quiet")
			noStore, _ := cmd.Flags().GetBool("no-store")
			noExport, _ := cmd.Flags().GetBool("no-export")
			label, _ := cmd.Flags().GetString("label")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := applyRunFlags(cmd, cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			engCfg, err := cfg.EngineConfig()
			if err != nil {
				return err
			}

			logger := newLogger(cmd, cfg)
			dir, err := lifnetDir(cmd)
			if err != nil {
				return err
			}
			events := logging.NewEventLogger(dir, cfg.Logging.Level)
			defer events.Close()

			runner := &simulation.Runner{Events: events, Logger: logger}
			if cfg.Store.Enabled && !noStore {
				s, err := openStore(cmd)
				if err != nil {
					return err
				}
				defer s.Close()
				runner.Store = s
			}

			req := simulation.Request{
				Config:   engCfg,
				Seed:     cfg.Simulation.Seed,
				Label:    sanitize.Label(label),
				Observer: progressObserver(cmd.ErrOrStderr(), logger, quiet || jsonOut),
			}
			if !noExport {
				req.Output = cfg.Output.Path
				if cfg.Output.Format != "" {
					if req.Format, err = raster.ParseFormat(cfg.Output.Format); err != nil {
						return err
					}
				}
			}

			out, runErr := runner.Run(cmd.Context(), req)
			if out == nil {
				return runErr
			}
			if err := printRun(cmd.OutOrStdout(), jsonOut, out, runner.Store != nil); err != nil {
				return err
			}
			return runErr
		},
	}

	cmd.Flags().Int("neurons", 0, "Population size")
	cmd.Flags().Float64("connection-prob", 0, "Probability of each directed connection (0-1)")
	cmd.Flags().Float64("duration", 0, "Simulated time in ms")
	cmd.Flags().Float64("dt", 0, "Integration timestep in ms")
	cmd.Flags().Float64("p-s", 0, "Per-step spontaneous firing probability")
	cmd.Flags().String("synapse", "", "Synapse model: conductance or current")
	cmd.Flags().Uint64("seed", 0, "Random seed (default: fresh seed per run)")
	cmd.Flags().StringP("output", "o", "", "Spike raster path (default from config: spikes.csv)")
	cmd.Flags().String("format", "", "Raster format: csv, jsonl, arrow, parquet (default: from extension)")
	cmd.Flags().String("label", "", "Short label stored with the run")
	cmd.Flags().BoolP("quiet", "q", false, "Suppress progress output")
	cmd.Flags().Bool("no-store", false, "Do not record the run in .lifnet/lifnet.db")
	cmd.Flags().Bool("no-export", false, "Do not write a raster file")

	return cmd
}

// applyRunFlags copies explicitly set flags over the loaded configuration.
func applyRunFlags(cmd *cobra.Command, cfg *config.LifnetConfig) error {
	flags := cmd.Flags()
	var err error
	if flags.Changed("neurons") {
		cfg.Network.Neurons, err = flags.GetInt("neurons")
	}
	if err == nil && flags.Changed("connection-prob") {
		cfg.Network.ConnectionProb, err = flags.GetFloat64("connection-prob")
	}
	if err == nil && flags.Changed("duration") {
		cfg.Simulation.Duration, err = flags.GetFloat64("duration")
	}
	if err == nil && flags.Changed("dt") {
		cfg.Simulation.Dt, err = flags.GetFloat64("dt")
	}
	if err == nil && flags.Changed("p-s") {
		cfg.Neuron.SpontaneousProb, err = flags.GetFloat64("p-s")
	}
	if err == nil && flags.Changed("synapse") {
		cfg.Neuron.Synapse, err = flags.GetString("synapse")
	}
	if err == nil && flags.Changed("seed") {
		var seed uint64
		seed, err = flags.GetUint64("seed")
		cfg.Simulation.Seed = &seed
	}
	if err == nil && flags.Changed("output") {
		cfg.Output.Path, err = flags.GetString("output")
	}
	if err == nil && flags.Changed("format") {
		cfg.Output.Format, err = flags.GetString("format")
	}
	return err
}

// stepPrinter writes "Step t/steps" with a carriage return so the line is
// rewritten in place.
type stepPrinter struct {
	w      io.Writer
	logger *slog.Logger
	quiet  bool
}

func progressObserver(w io.Writer, logger *slog.Logger, quiet bool) engine.Observer {
	return &stepPrinter{w: w, logger: logger, quiet: quiet}
}

func (p *stepPrinter) Progress(step, total int) {
	p.logger.Debug("progress", "step", step, "total", total)
	if !p.quiet {
		fmt.Fprintf(p.w, "\rStep %d/%d", step, total)
	}
}

func (p *stepPrinter) Finished(res engine.Result) {
	if !p.quiet {
		fmt.Fprintf(p.w, "\rStep %d/%d\n", res.Steps, res.Steps)
	}
}

func printRun(w io.Writer, jsonOut bool, out *simulation.Outcome, stored bool) error {
	run := out.Run
	var meanRate float64
	if sum, err := analysis.Summarize(out.Spikes, run.Neurons, float64(run.Steps)*run.Params.Dt); err == nil {
		meanRate = sum.MeanRateHz
	}

	if jsonOut {
		result := map[string]any{
			"run":          runView(run),
			"stored":       stored,
			"mean_rate_hz": meanRate,
			"elapsed_ms":   out.Result.Elapsed.Milliseconds(),
		}
		if run.Output != "" {
			result["export_bytes"] = out.ExportBytes
		}
		return writeJSON(w, result)
	}

	if stored {
		fmt.Fprintf(w, "Run %s stored (seed %d)\n", shortID(run.ID), run.Seed)
	} else {
		fmt.Fprintf(w, "Run finished (seed %d)\n", run.Seed)
	}
	fmt.Fprintf(w, "  %d neurons, %d connections, %d steps, %s synapses\n",
		run.Neurons, run.Edges, run.Steps, run.Params.Synapse)
	fmt.Fprintf(w, "  %d spikes in %s (%.2f Hz mean)\n",
		run.Spikes, out.Result.Elapsed.Round(time.Millisecond), meanRate)
	if run.Output != "" {
		fmt.Fprintf(w, "  Exported %s (%s, %s)\n",
			run.Output, run.Format, datasize.ByteSize(out.ExportBytes).HumanReadable())
	}
	return nil
}

// runView is the JSON shape of a stored run. Seeds are strings because
// JSON consumers often cannot hold a full uint64.
func runView(r store.Run) map[string]any {
	v := map[string]any{
		"id":              r.ID,
		"created_at":      r.CreatedAt,
		"seed":            fmt.Sprintf("%d", r.Seed),
		"neurons":         r.Neurons,
		"connection_prob": r.ConnectionProb,
		"edges":           r.Edges,
		"duration_ms":     r.Duration,
		"steps":           r.Steps,
		"params":          r.Params,
		"spikes":          r.Spikes,
		"elapsed_ms":      r.Elapsed.Milliseconds(),
	}
	if r.Output != "" {
		v["output"] = r.Output
		v["format"] = r.Format
	}
	if r.Label != "" {
		v["label"] = r.Label
	}
	return v
}
