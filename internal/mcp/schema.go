package mcp

import (
	"time"

	"github.com/nvandessel/lifnet/internal/analysis"
)

// SimulateInput defines the input for the lifnet_simulate tool. Zero values
// fall back to the server's configured defaults.
type SimulateInput struct {
	Neurons         int      `json:"neurons,omitempty" jsonschema:"Population size (default from config, usually 100)"`
	ConnectionProb  *float64 `json:"connection_prob,omitempty" jsonschema:"Probability of each directed connection (0.0-1.0)"`
	Duration        float64  `json:"duration,omitempty" jsonschema:"Simulated time in ms"`
	Dt              float64  `json:"dt,omitempty" jsonschema:"Integration timestep in ms"`
	SpontaneousProb *float64 `json:"p_s,omitempty" jsonschema:"Per-step spontaneous firing probability (0.0-1.0)"`
	Synapse         string   `json:"synapse,omitempty" jsonschema:"Synapse model: 'conductance' or 'current'"`
	Seed            string   `json:"seed,omitempty" jsonschema:"Decimal uint64 seed to replay a run; empty draws a fresh seed"`
	Output          string   `json:"output,omitempty" jsonschema:"Raster file name; relative names are written under .lifnet/exports"`
	Format          string   `json:"format,omitempty" jsonschema:"Raster format: csv, jsonl, arrow or parquet (default: from extension)"`
	Label           string   `json:"label,omitempty" jsonschema:"Short label stored with the run"`
}

// SimulateOutput defines the output for the lifnet_simulate tool.
type SimulateOutput struct {
	RunID      string  `json:"run_id" jsonschema:"ID of the stored run"`
	Seed       string  `json:"seed" jsonschema:"Seed that reproduces this run"`
	Neurons    int     `json:"neurons"`
	Edges      int     `json:"edges" jsonschema:"Number of directed connections"`
	Steps      int     `json:"steps"`
	Spikes     int     `json:"spikes" jsonschema:"Total spikes emitted"`
	MeanRateHz float64 `json:"mean_rate_hz" jsonschema:"Mean firing rate over the population"`
	ElapsedMs  int64   `json:"elapsed_ms" jsonschema:"Wall-clock simulation time"`
	Output     string  `json:"output,omitempty" jsonschema:"Redacted path of the raster file"`
	Message    string  `json:"message" jsonschema:"Human-readable result message"`
}

// RunsInput defines the input for the lifnet_runs tool.
type RunsInput struct {
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of runs to list (default: 20)"`
	RunID string `json:"run_id,omitempty" jsonschema:"Show a single run by ID or unique prefix"`
}

// RunSummary is a list view of a stored run.
type RunSummary struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Seed      string    `json:"seed"`
	Neurons   int       `json:"neurons"`
	Edges     int       `json:"edges"`
	Duration  float64   `json:"duration_ms"`
	Synapse   string    `json:"synapse"`
	Spikes    int       `json:"spikes"`
	Label     string    `json:"label,omitempty"`
}

// RunsOutput defines the output for the lifnet_runs tool.
type RunsOutput struct {
	Runs  []RunSummary `json:"runs" jsonschema:"Runs, newest first"`
	Count int          `json:"count" jsonschema:"Number of runs returned"`
}

// StatsInput defines the input for the lifnet_stats tool.
type StatsInput struct {
	RunID     string  `json:"run_id" jsonschema:"Run ID or unique prefix"`
	BinMs     float64 `json:"bin_ms,omitempty" jsonschema:"Population histogram bin width in ms (default: 5)"`
	PerNeuron bool    `json:"per_neuron,omitempty" jsonschema:"Include per-neuron counts and rates"`
}

// StatsOutput defines the output for the lifnet_stats tool.
type StatsOutput struct {
	RunID   string            `json:"run_id"`
	Summary *analysis.Summary `json:"summary"`
}
