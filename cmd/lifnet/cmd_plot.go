package main

import (
	"bytes"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/lifnet/internal/analysis"
	"github.com/nvandessel/lifnet/internal/raster"
	"github.com/nvandessel/lifnet/internal/simulation"
	"github.com/nvandessel/lifnet/internal/store"
	"github.com/nvandessel/lifnet/internal/visualization"
)

func newPlotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot [run-id]",
		Short: "Plot a stored run",
		Long: `Render a stored run as a raster plot (SVG), an HTML report with firing
statistics, or a Graphviz DOT graph of its connectivity. The network is not
stored; DOT output regenerates it from the run's seed.

With --serve, start a local server that browses every stored run.

Examples:
  lifnet plot 1a2b3c4d                       # 1a2b3c4d.html
  lifnet plot 1a2b3c4d -o raster.svg         # SVG only
  lifnet plot 1a2b3c4d --format dot -o -     # DOT to stdout (pipe to dot -Tpng)
  lifnet plot --serve                        # Browse all runs`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			formatName, _ := cmd.Flags().GetString("format")
			bin, _ := cmd.Flags().GetFloat64("bin")
			width, _ := cmd.Flags().GetInt("width")
			open, _ := cmd.Flags().GetBool("open")
			serve, _ := cmd.Flags().GetBool("serve")

			opts := visualization.Options{Width: width, BinMs: bin}

			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if serve {
				if len(args) > 0 {
					return fmt.Errorf("--serve browses every run; drop the run ID")
				}
				return runPlotServer(cmd, s, opts, open)
			}
			if len(args) == 0 {
				return fmt.Errorf("a run ID is required (or use --serve)")
			}

			ctx := cmd.Context()
			id, err := store.ResolveID(ctx, s, args[0])
			if err != nil {
				return fmt.Errorf("run %q: %w", args[0], err)
			}
			run, err := s.GetRun(ctx, id)
			if err != nil {
				return err
			}
			events, err := s.LoadSpikes(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to load spikes: %w", err)
			}

			var format visualization.Format
			switch {
			case formatName != "":
				if format, err = visualization.ParseFormat(formatName); err != nil {
					return err
				}
			case output != "" && output != "-":
				format = visualization.FormatFromPath(output)
			default:
				format = visualization.FormatHTML
			}
			if output == "" {
				output = shortID(id) + "." + string(format)
			}

			var buf bytes.Buffer
			switch format {
			case visualization.FormatSVG:
				err = visualization.RenderSVG(&buf, events, run.Neurons, visualization.RunDuration(run), opts)
			case visualization.FormatHTML:
				err = visualization.RenderHTML(&buf, run, events, opts)
			case visualization.FormatDOT:
				err = renderTopology(&buf, run, events)
			}
			if err != nil {
				return err
			}

			if output == "-" {
				_, err = cmd.OutOrStdout().Write(buf.Bytes())
				return err
			}
			if err := os.WriteFile(output, buf.Bytes(), 0644); err != nil {
				return fmt.Errorf("write plot: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Plot written to %s\n", output)

			if open {
				if err := visualization.OpenBrowser(output); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Could not open browser: %v\nOpen %s manually.\n", err, output)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", "", "Output path, - for stdout (default: <run-id>.<format>)")
	cmd.Flags().String("format", "", "Plot format: svg, html or dot (default: from extension, else html)")
	cmd.Flags().Float64("bin", 0, "Population histogram bin width in ms (default 5)")
	cmd.Flags().Int("width", 0, "Plot width in pixels (default 900)")
	cmd.Flags().Bool("open", false, "Open the result in a browser")
	cmd.Flags().Bool("serve", false, "Serve all stored runs on a local port until interrupted")
	return cmd
}

func renderTopology(buf *bytes.Buffer, run *store.Run, events []raster.Event) error {
	topo, err := simulation.ReplayTopology(*run)
	if err != nil {
		return err
	}
	sum, err := analysis.Summarize(events, run.Neurons, visualization.RunDuration(run))
	if err != nil {
		return err
	}
	return visualization.RenderDOT(buf, topo, visualization.NeuronRates(sum))
}

// runPlotServer blocks until SIGINT/SIGTERM.
func runPlotServer(cmd *cobra.Command, s store.RunStore, opts visualization.Options, open bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := visualization.NewServer(s, opts)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx) }()

	deadline := time.Now().Add(3 * time.Second)
	for srv.Addr() == "" && time.Now().Before(deadline) {
		select {
		case err := <-errCh:
			return fmt.Errorf("server error: %w", err)
		case <-time.After(10 * time.Millisecond):
		}
	}
	addr := srv.Addr()
	if addr == "" {
		return fmt.Errorf("server failed to start")
	}

	url := "http://" + addr
	fmt.Fprintf(cmd.OutOrStdout(), "Serving runs at %s\n", url)
	fmt.Fprintf(cmd.OutOrStdout(), "Press Ctrl-C to stop.\n")
	if open {
		if err := visualization.OpenBrowser(url); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Could not open browser: %v\nOpen %s manually.\n", err, url)
		}
	}

	if err := <-errCh; err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
