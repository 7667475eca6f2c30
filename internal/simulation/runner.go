package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/nvandessel/lifnet/internal/connectivity"
	"github.com/nvandessel/lifnet/internal/engine"
	"github.com/nvandessel/lifnet/internal/logging"
	"github.com/nvandessel/lifnet/internal/randsrc"
	"github.com/nvandessel/lifnet/internal/raster"
	"github.com/nvandessel/lifnet/internal/store"
)

// Runner executes simulation requests. Store and Events may be nil.
type Runner struct {
	Store  store.RunStore
	Events *logging.EventLogger
	Logger *slog.Logger
}

// Request describes a single run.
type Request struct {
	Config engine.Config

	// Seed replays a previous run. Nil draws a fresh seed from the OS.
	Seed *uint64

	// Topology replaces the random connectivity when non-nil.
	Topology connectivity.Topology

	// Output is the raster file path. Empty skips the export.
	Output string

	// Format overrides the encoding inferred from Output's extension.
	Format raster.Format

	Label    string
	Observer engine.Observer
}

// Outcome is what a run produced. It is returned even when the export or
// the store write fails, since the simulation itself completed.
type Outcome struct {
	Run         store.Run
	Result      engine.Result
	Spikes      []raster.Event
	ExportBytes int64
}

// Run builds the network, simulates it to completion and then exports and
// stores the spike log. The context is checked before the simulation starts;
// once started the run is not interruptible.
func (r *Runner) Run(ctx context.Context, req Request) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger := r.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	src, seed, err := seedSource(req.Seed)
	if err != nil {
		return nil, err
	}

	var eng *engine.Engine
	if req.Topology != nil {
		eng, err = engine.NewWithTopology(req.Topology, req.Config, src)
	} else {
		eng, err = engine.New(req.Config, src)
	}
	if err != nil {
		return nil, err
	}

	params := eng.Params()
	run := store.Run{
		ID:             store.NewRunID(),
		CreatedAt:      time.Now().UTC(),
		Seed:           seed,
		Neurons:        eng.N(),
		ConnectionProb: req.Config.ConnectionProb,
		Edges:          eng.Topology().Edges(),
		Duration:       req.Config.Duration,
		Steps:          eng.Steps(),
		Params:         params,
		Label:          req.Label,
	}
	if req.Topology != nil {
		run.ConnectionProb = eng.Topology().Density()
	}

	r.Events.WithRun(run.ID)
	r.Events.Log(map[string]any{
		"event":   logging.EventRunStarted,
		"seed":    strconv.FormatUint(seed, 10),
		"neurons": run.Neurons,
		"edges":   run.Edges,
		"steps":   run.Steps,
		"synapse": params.Synapse.String(),
	})
	logger.Debug("run started",
		"run_id", run.ID,
		"seed", seed,
		"neurons", run.Neurons,
		"edges", run.Edges,
		"steps", run.Steps)

	res := eng.Run(observers(req.Observer, r.Events))
	run.Spikes = res.Spikes
	run.Elapsed = res.Elapsed

	r.Events.Log(map[string]any{
		"event":      logging.EventRunFinished,
		"spikes":     res.Spikes,
		"elapsed_ms": res.Elapsed.Milliseconds(),
	})
	logger.Debug("run finished", "run_id", run.ID, "spikes", res.Spikes, "elapsed", res.Elapsed)

	out := &Outcome{Result: res, Spikes: eng.Spikes()}

	var exportErr error
	if req.Output != "" {
		format := req.Format
		if format == "" {
			format = raster.FormatFromPath(req.Output)
		}
		n, err := raster.Export(req.Output, format, out.Spikes, metadata(run))
		if err != nil {
			exportErr = fmt.Errorf("exporting spikes: %w", err)
			logger.Warn("export failed", "run_id", run.ID, "error", err)
		} else {
			run.Output = req.Output
			run.Format = string(format)
			out.ExportBytes = n
			r.Events.Log(map[string]any{
				"event":  logging.EventExportWritten,
				"format": string(format),
				"bytes":  n,
			})
		}
	}

	if r.Store != nil {
		id, err := r.Store.SaveRun(ctx, run, out.Spikes)
		if err != nil {
			out.Run = run
			if exportErr != nil {
				return out, exportErr
			}
			return out, fmt.Errorf("storing run: %w", err)
		}
		run.ID = id
		r.Events.Log(map[string]any{"event": logging.EventRunStored})
	}

	out.Run = run
	return out, exportErr
}

func seedSource(seed *uint64) (*randsrc.Rand, uint64, error) {
	if seed != nil {
		return randsrc.New(*seed), *seed, nil
	}
	src, s, err := randsrc.NewEntropy()
	if err != nil {
		return nil, 0, fmt.Errorf("seeding random source: %w", err)
	}
	return src, s, nil
}

// metadata is embedded in columnar exports so a raster file identifies the
// run that produced it.
func metadata(run store.Run) map[string]string {
	return map[string]string{
		"lifnet.run_id":  run.ID,
		"lifnet.seed":    strconv.FormatUint(run.Seed, 10),
		"lifnet.neurons": strconv.Itoa(run.Neurons),
		"lifnet.dt":      strconv.FormatFloat(run.Params.Dt, 'g', -1, 64),
		"lifnet.synapse": run.Params.Synapse.String(),
	}
}

type multiObserver []engine.Observer

func observers(list ...engine.Observer) engine.Observer {
	var m multiObserver
	for _, o := range list {
		switch v := o.(type) {
		case nil:
		case *logging.EventLogger:
			if v != nil {
				m = append(m, v)
			}
		default:
			m = append(m, v)
		}
	}
	return m
}

func (m multiObserver) Progress(step, total int) {
	for _, o := range m {
		o.Progress(step, total)
	}
}

func (m multiObserver) Finished(res engine.Result) {
	for _, o := range m {
		if f, ok := o.(engine.Finisher); ok {
			f.Finished(res)
		}
	}
}
