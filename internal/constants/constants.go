// Package constants provides named constants used throughout the lifnet codebase.
// This centralizes the reference model parameters and tuning knobs.
package constants

// Network construction defaults.
const (
	// DefaultNeurons is the default population size.
	DefaultNeurons = 100

	// DefaultConnectionProb is the probability of a directed edge between
	// any ordered pair of distinct neurons.
	DefaultConnectionProb = 0.1
)

// Time base defaults, in milliseconds.
const (
	// DefaultDt is the integration timestep.
	DefaultDt = 0.1

	// DefaultDuration is the total simulated time.
	DefaultDuration = 1000.0

	// DefaultProgressInterval is the number of steps between progress reports.
	DefaultProgressInterval = 100
)

// Membrane and synapse defaults for the reference LIF population.
const (
	// DefaultVRest is the resting (and reset) potential in mV.
	DefaultVRest = -70.0

	// DefaultVThreshold is the firing threshold in mV.
	DefaultVThreshold = -55.0

	// DefaultERev is the excitatory reversal potential in mV.
	DefaultERev = 0.0

	// DefaultRM is the membrane resistance in GOhm.
	DefaultRM = 0.1

	// DefaultTauM is the membrane time constant in ms.
	DefaultTauM = 10.0

	// DefaultTauS is the synaptic time constant in ms.
	DefaultTauS = 5.0

	// DefaultGStep is the conductance added per received spike, in uS.
	DefaultGStep = 0.01

	// DefaultIStep is the current added per received spike, in uA.
	DefaultIStep = 0.0001

	// DefaultSpontaneousProb is the per-step spontaneous firing probability.
	DefaultSpontaneousProb = 1e-4

	// DefaultTauRef is the refractory period in ms.
	DefaultTauRef = 2.0
)

// StepEpsilon absorbs float error when converting durations to step counts,
// so that 2.0/0.1 yields 20 steps rather than 19.
const StepEpsilon = 1e-9

// TimeRoundingDigits is the number of decimal places spike times are rounded
// to before they are formatted for export.
const TimeRoundingDigits = 9

// DirName is the per-project and per-user state directory name.
const DirName = ".lifnet"

// Output format names.
const (
	FormatCSV     = "csv"
	FormatJSONL   = "jsonl"
	FormatArrow   = "arrow"
	FormatParquet = "parquet"
)

// DefaultOutputPath is where the run command writes the spike raster.
const DefaultOutputPath = "spikes.csv"

// Analysis defaults.
const (
	// DefaultHistogramBin is the population histogram bin width in ms.
	DefaultHistogramBin = 5.0

	// MinSpikesForISI is the minimum number of spikes a neuron needs before
	// its inter-spike-interval CV is included in the population mean.
	MinSpikesForISI = 3
)
