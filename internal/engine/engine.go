// Package engine drives a population of LIF neurons through fixed-timestep
// simulation.
//
// Each step is two phases separated by a full barrier: every neuron is
// updated in index order from its own state, then every spike emitted in
// that step is delivered to its targets. A spike at step t therefore
// reaches its targets' integration at step t+1, independent of neuron order.
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/nvandessel/lifnet/internal/connectivity"
	"github.com/nvandessel/lifnet/internal/constants"
	"github.com/nvandessel/lifnet/internal/neuron"
	"github.com/nvandessel/lifnet/internal/randsrc"
	"github.com/nvandessel/lifnet/internal/raster"
)

// Config holds everything needed to build a network.
type Config struct {
	// Neurons is the population size.
	Neurons int

	// ConnectionProb is the per-pair directed edge probability.
	ConnectionProb float64

	// Duration is the simulated time in ms. The run has floor(Duration/Dt) steps.
	Duration float64

	// ProgressInterval is the number of steps between observer callbacks.
	// Zero selects the default of 100.
	ProgressInterval int

	// Params are the neuron constants shared by the whole population.
	Params neuron.Params
}

// DefaultConfig returns the reference 100-neuron conductance-based network.
func DefaultConfig() Config {
	cfg := Config{
		Neurons:          constants.DefaultNeurons,
		ConnectionProb:   constants.DefaultConnectionProb,
		Duration:         constants.DefaultDuration,
		ProgressInterval: constants.DefaultProgressInterval,
	}
	cfg.Params.Defaults()
	return cfg
}

// ErrInvalidConfig wraps every configuration range violation.
var ErrInvalidConfig = errors.New("invalid engine config")

// Validate checks the network-level settings and the neuron params.
func (c *Config) Validate() error {
	var errs []error
	if c.Neurons <= 0 {
		errs = append(errs, fmt.Errorf("neurons must be positive, got %d", c.Neurons))
	}
	if c.ConnectionProb < 0 || c.ConnectionProb > 1 {
		errs = append(errs, fmt.Errorf("connection probability must be between 0 and 1, got %v", c.ConnectionProb))
	}
	if !(c.Duration > 0) {
		errs = append(errs, fmt.Errorf("duration must be positive, got %v", c.Duration))
	}
	if c.ProgressInterval < 0 {
		errs = append(errs, fmt.Errorf("progress interval must be non-negative, got %d", c.ProgressInterval))
	}
	if err := c.Params.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Observer receives periodic progress callbacks from Run.
type Observer interface {
	Progress(step, total int)
}

// Finisher is implemented by observers that want the final Result.
type Finisher interface {
	Finished(res Result)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(step, total int)

// Progress calls f(step, total).
func (f ObserverFunc) Progress(step, total int) { f(step, total) }

// Result summarizes a completed run.
type Result struct {
	Steps   int           `json:"steps"`
	Spikes  int           `json:"spikes"`
	Elapsed time.Duration `json:"elapsed"`
}

// Engine owns the neuron population, its topology and the global spike log.
// It is single-threaded; do not share an Engine between goroutines.
type Engine struct {
	params   *neuron.Params
	neurons  []neuron.Neuron
	topo     connectivity.Topology
	src      randsrc.Source
	spikes   []raster.Event
	fired    []int
	steps    int
	next     int
	interval int
}

// New validates cfg, draws a random topology from src and returns an engine
// with every neuron Active at rest. src is then used for per-step draws.
func New(cfg Config, src randsrc.Source) (*Engine, error) {
	cfg.Params.Update()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	topo, err := connectivity.Generate(cfg.Neurons, cfg.ConnectionProb, src)
	if err != nil {
		return nil, fmt.Errorf("generating connectivity: %w", err)
	}
	return build(cfg, topo, src), nil
}

// NewWithTopology builds an engine over a caller-supplied topology.
// cfg.Neurons and cfg.ConnectionProb are ignored.
func NewWithTopology(topo connectivity.Topology, cfg Config, src randsrc.Source) (*Engine, error) {
	if err := topo.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	cfg.Neurons = topo.N()
	cfg.ConnectionProb = 0
	cfg.Params.Update()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return build(cfg, topo, src), nil
}

func build(cfg Config, topo connectivity.Topology, src randsrc.Source) *Engine {
	params := cfg.Params
	interval := cfg.ProgressInterval
	if interval == 0 {
		interval = constants.DefaultProgressInterval
	}

	e := &Engine{
		params:   &params,
		neurons:  make([]neuron.Neuron, topo.N()),
		topo:     topo,
		src:      src,
		fired:    make([]int, 0, topo.N()),
		steps:    neuron.StepsFor(cfg.Duration, params.Dt),
		interval: interval,
	}
	for i := range e.neurons {
		e.neurons[i] = neuron.New(e.params)
		e.neurons[i].Targets = topo[i]
	}
	return e
}

// N returns the population size.
func (e *Engine) N() int { return len(e.neurons) }

// Steps returns the total number of steps Run executes.
func (e *Engine) Steps() int { return e.steps }

// Current returns the index of the next step to execute.
func (e *Engine) Current() int { return e.next }

// Done reports whether every step has run.
func (e *Engine) Done() bool { return e.next >= e.steps }

// Params returns the shared neuron parameters.
func (e *Engine) Params() neuron.Params { return *e.params }

// Topology returns the connectivity. It must not be modified.
func (e *Engine) Topology() connectivity.Topology { return e.topo }

// Neuron returns neuron i for inspection. Callers may adjust
// SpontaneousProb between steps; other fields belong to the engine.
func (e *Engine) Neuron(i int) *neuron.Neuron { return &e.neurons[i] }

// Spikes returns the global spike log in emission order. The slice is
// owned by the engine and must not be modified.
func (e *Engine) Spikes() []raster.Event { return e.spikes }

// FiredCount returns the total number of spikes emitted so far.
func (e *Engine) FiredCount() int { return len(e.spikes) }

// Step runs one iteration: update phase, then propagation phase. It returns
// the indices of the neurons that fired; the slice is reused by the next
// call. Step past the end of the run is a no-op returning nil.
func (e *Engine) Step() []int {
	if e.Done() {
		return nil
	}
	t := e.next
	fired := e.update(t)
	e.propagate(fired)
	e.next++
	return fired
}

// Run executes every remaining step and reports progress to obs (which
// may be nil) every ProgressInterval steps, starting at step 0. If obs is
// also a Finisher it receives the Result. There is no early exit.
func (e *Engine) Run(obs Observer) Result {
	start := time.Now()
	before := len(e.spikes)
	ran := 0
	for !e.Done() {
		t := e.next
		e.Step()
		ran++
		if obs != nil && t%e.interval == 0 {
			obs.Progress(t, e.steps)
		}
	}
	res := Result{
		Steps:   ran,
		Spikes:  len(e.spikes) - before,
		Elapsed: time.Since(start),
	}
	if f, ok := obs.(Finisher); ok {
		f.Finished(res)
	}
	return res
}

// update advances every neuron with zero input. Inputs are never touched
// here, so no neuron sees a spike emitted in the same step.
func (e *Engine) update(t int) []int {
	e.fired = e.fired[:0]
	now := float64(t) * e.params.Dt
	for i := range e.neurons {
		if e.neurons[i].Update(t, 0, e.src) {
			e.fired = append(e.fired, i)
			e.spikes = append(e.spikes, raster.Event{Step: t, Neuron: i, Time: now})
		}
	}
	return e.fired
}

// propagate delivers every spike in fired to its targets.
func (e *Engine) propagate(fired []int) {
	for _, i := range fired {
		for _, j := range e.neurons[i].Targets {
			e.neurons[j].ReceiveSpike()
		}
	}
}
