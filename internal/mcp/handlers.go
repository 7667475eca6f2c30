package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/lifnet/internal/analysis"
	"github.com/nvandessel/lifnet/internal/config"
	"github.com/nvandessel/lifnet/internal/constants"
	"github.com/nvandessel/lifnet/internal/neuron"
	"github.com/nvandessel/lifnet/internal/pathutil"
	"github.com/nvandessel/lifnet/internal/raster"
	"github.com/nvandessel/lifnet/internal/ratelimit"
	"github.com/nvandessel/lifnet/internal/sanitize"
	"github.com/nvandessel/lifnet/internal/simulation"
	"github.com/nvandessel/lifnet/internal/store"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 500

	// Connectivity draws grow as neurons squared and the spike log with
	// steps, so simulations requested over MCP are capped on both axes.
	maxNeurons = 2000
	maxSteps   = 1_000_000
)

// registerTools registers all lifnet MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ratelimit.ToolSimulate,
		Description: "Simulate a random network of leaky integrate-and-fire neurons, store the run and optionally export its spike raster",
	}, s.handleSimulate)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ratelimit.ToolRuns,
		Description: "List stored simulation runs, newest first, or show one run",
	}, s.handleRuns)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ratelimit.ToolStats,
		Description: "Compute firing statistics (rates, ISI variability, synchrony) for a stored run",
	}, s.handleStats)
}

// handleSimulate implements the lifnet_simulate tool.
func (s *Server) handleSimulate(ctx context.Context, req *sdk.CallToolRequest, args SimulateInput) (_ *sdk.CallToolResult, _ SimulateOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ratelimit.ToolSimulate, start, retErr, auditParams(map[string]any{
			"neurons":         args.Neurons,
			"connection_prob": args.ConnectionProb,
			"duration":        args.Duration,
			"dt":              args.Dt,
			"p_s":             args.SpontaneousProb,
			"synapse":         args.Synapse,
			"seed":            args.Seed,
			"output":          args.Output,
			"format":          args.Format,
			"label":           args.Label,
		}))
	}()

	cfg, err := s.simulateConfig(args)
	if err != nil {
		return nil, SimulateOutput{}, err
	}
	engCfg, err := cfg.EngineConfig()
	if err != nil {
		return nil, SimulateOutput{}, err
	}

	steps := neuron.StepsFor(engCfg.Duration, engCfg.Params.Dt)
	cost := ratelimit.SimulationCost(engCfg.Neurons, steps)
	if err := ratelimit.CheckCost(s.limiters, ratelimit.ToolSimulate, cost); err != nil {
		return nil, SimulateOutput{}, err
	}

	var seed *uint64
	if args.Seed != "" {
		v, err := strconv.ParseUint(args.Seed, 10, 64)
		if err != nil {
			return nil, SimulateOutput{}, fmt.Errorf("invalid seed %q: must be a decimal uint64", args.Seed)
		}
		seed = &v
	}

	var output string
	var format raster.Format
	if args.Output != "" {
		output, err = pathutil.ResolveOutput(args.Output, s.root)
		if err != nil {
			return nil, SimulateOutput{}, fmt.Errorf("invalid output path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(output), 0700); err != nil {
			return nil, SimulateOutput{}, fmt.Errorf("creating export directory: %w", err)
		}
		if args.Format != "" {
			if format, err = raster.ParseFormat(args.Format); err != nil {
				return nil, SimulateOutput{}, err
			}
		}
	}

	s.simMu.Lock()
	out, err := s.runner.Run(ctx, simulation.Request{
		Config: engCfg,
		Seed:   seed,
		Output: output,
		Format: format,
		Label:  sanitize.Label(args.Label),
	})
	s.simMu.Unlock()
	if err != nil {
		if out != nil {
			return nil, SimulateOutput{}, fmt.Errorf("run %s completed with %d spikes but failed: %w", out.Run.ID, len(out.Spikes), err)
		}
		return nil, SimulateOutput{}, err
	}

	result := SimulateOutput{
		RunID:     out.Run.ID,
		Seed:      strconv.FormatUint(out.Run.Seed, 10),
		Neurons:   out.Run.Neurons,
		Edges:     out.Run.Edges,
		Steps:     out.Run.Steps,
		Spikes:    out.Run.Spikes,
		ElapsedMs: out.Result.Elapsed.Milliseconds(),
		Output:    pathutil.RedactPath(out.Run.Output),
	}
	if sum, err := analysis.Summarize(out.Spikes, out.Run.Neurons, window(out.Run)); err == nil {
		result.MeanRateHz = sum.MeanRateHz
	}
	result.Message = fmt.Sprintf("Simulated %d neurons for %d steps: %d spikes (%.2f Hz mean)",
		result.Neurons, result.Steps, result.Spikes, result.MeanRateHz)

	s.logger.Debug("mcp simulate", "run_id", result.RunID, "spikes", result.Spikes)
	return nil, result, nil
}

// simulateConfig overlays the tool arguments on the server defaults.
func (s *Server) simulateConfig(args SimulateInput) (*config.LifnetConfig, error) {
	cfg := *s.defaults
	if args.Neurons != 0 {
		cfg.Network.Neurons = args.Neurons
	}
	if args.ConnectionProb != nil {
		cfg.Network.ConnectionProb = *args.ConnectionProb
	}
	if args.Duration != 0 {
		cfg.Simulation.Duration = args.Duration
	}
	if args.Dt != 0 {
		cfg.Simulation.Dt = args.Dt
	}
	if args.SpontaneousProb != nil {
		cfg.Neuron.SpontaneousProb = *args.SpontaneousProb
	}
	if args.Synapse != "" {
		cfg.Neuron.Synapse = args.Synapse
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Network.Neurons > maxNeurons {
		return nil, fmt.Errorf("neurons must be at most %d, got %d", maxNeurons, cfg.Network.Neurons)
	}
	if steps := cfg.Simulation.Duration / cfg.Simulation.Dt; steps > maxSteps {
		return nil, fmt.Errorf("duration/dt gives %.0f steps, at most %d allowed", steps, maxSteps)
	}
	return &cfg, nil
}

// handleRuns implements the lifnet_runs tool.
func (s *Server) handleRuns(ctx context.Context, req *sdk.CallToolRequest, args RunsInput) (_ *sdk.CallToolResult, _ RunsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ratelimit.ToolRuns, start, retErr, auditParams(map[string]any{
			"limit":  args.Limit,
			"run_id": args.RunID,
		}))
	}()

	if err := ratelimit.CheckLimit(s.limiters, ratelimit.ToolRuns); err != nil {
		return nil, RunsOutput{}, err
	}

	if args.RunID != "" {
		run, err := s.lookupRun(ctx, args.RunID)
		if err != nil {
			return nil, RunsOutput{}, err
		}
		return nil, RunsOutput{Runs: []RunSummary{summarizeRun(*run)}, Count: 1}, nil
	}

	limit := args.Limit
	if limit <= 0 {
		limit = defaultRunsLimit
	}
	if limit > maxRunsLimit {
		limit = maxRunsLimit
	}

	runs, err := s.store.ListRuns(ctx, limit)
	if err != nil {
		return nil, RunsOutput{}, fmt.Errorf("failed to list runs: %w", err)
	}

	out := RunsOutput{Runs: make([]RunSummary, 0, len(runs))}
	for _, r := range runs {
		out.Runs = append(out.Runs, summarizeRun(r))
	}
	out.Count = len(out.Runs)
	return nil, out, nil
}

// handleStats implements the lifnet_stats tool.
func (s *Server) handleStats(ctx context.Context, req *sdk.CallToolRequest, args StatsInput) (_ *sdk.CallToolResult, _ StatsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ratelimit.ToolStats, start, retErr, auditParams(map[string]any{
			"run_id": args.RunID,
			"bin_ms": args.BinMs,
		}))
	}()

	if err := ratelimit.CheckLimit(s.limiters, ratelimit.ToolStats); err != nil {
		return nil, StatsOutput{}, err
	}
	if args.RunID == "" {
		return nil, StatsOutput{}, fmt.Errorf("'run_id' parameter is required")
	}

	run, err := s.lookupRun(ctx, args.RunID)
	if err != nil {
		return nil, StatsOutput{}, err
	}
	spikes, err := s.store.LoadSpikes(ctx, run.ID)
	if err != nil {
		return nil, StatsOutput{}, fmt.Errorf("failed to load spikes: %w", err)
	}

	bin := args.BinMs
	if bin == 0 {
		bin = constants.DefaultHistogramBin
	}
	sum, err := analysis.SummarizeWithBin(spikes, run.Neurons, window(*run), bin)
	if err != nil {
		return nil, StatsOutput{}, err
	}
	if !args.PerNeuron {
		sum.PerNeuron = nil
	}
	return nil, StatsOutput{RunID: run.ID, Summary: sum}, nil
}

func (s *Server) lookupRun(ctx context.Context, idOrPrefix string) (*store.Run, error) {
	id, err := store.ResolveID(ctx, s.store, idOrPrefix)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("run %q: %w", idOrPrefix, err)
	}
	if err != nil {
		return nil, err
	}
	return s.store.GetRun(ctx, id)
}

// window is the simulated span actually covered by the run's steps.
func window(r store.Run) float64 {
	return float64(r.Steps) * r.Params.Dt
}

func summarizeRun(r store.Run) RunSummary {
	return RunSummary{
		ID:        r.ID,
		CreatedAt: r.CreatedAt,
		Seed:      strconv.FormatUint(r.Seed, 10),
		Neurons:   r.Neurons,
		Edges:     r.Edges,
		Duration:  r.Duration,
		Synapse:   r.Params.Synapse.String(),
		Spikes:    r.Spikes,
		Label:     r.Label,
	}
}
