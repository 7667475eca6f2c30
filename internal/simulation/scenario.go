package simulation

import (
	"testing"

	"github.com/nvandessel/lifnet/internal/connectivity"
	"github.com/nvandessel/lifnet/internal/engine"
	"github.com/nvandessel/lifnet/internal/neuron"
	"github.com/nvandessel/lifnet/internal/randsrc"
	"github.com/nvandessel/lifnet/internal/raster"
)

// Scenario is a hand-wired network with scripted randomness.
type Scenario struct {
	Name string

	// Topology lists each neuron's targets.
	Topology connectivity.Topology

	// Duration in ms. Params default to the reference population with
	// spontaneous firing disabled.
	Duration float64
	Params   *neuron.Params

	// Spontaneous sets per-neuron spontaneous probabilities by index.
	Spontaneous map[int]float64

	// Draws are the uniform values returned in order by the random source;
	// Fallback is returned once they run out.
	Draws    []float64
	Fallback float64

	// BeforeStep, when non-nil, runs before each step. Use it to change
	// per-neuron spontaneous probabilities mid-run.
	BeforeStep func(step int, e *engine.Engine)
}

// Trace is the recorded outcome of a Scenario.
type Trace struct {
	Name   string
	Dt     float64
	Engine *engine.Engine
	Spikes []raster.Event

	// Fired holds the indices that fired at each step.
	Fired [][]int
}

// Play runs sc step by step and records every step's firing set.
func Play(t *testing.T, sc Scenario) Trace {
	t.Helper()

	cfg := engine.DefaultConfig()
	cfg.Duration = sc.Duration
	if sc.Params != nil {
		cfg.Params = *sc.Params
	} else {
		cfg.Params.SpontaneousProb = 0
	}

	src := randsrc.NewScripted(sc.Fallback, sc.Draws...)
	e, err := engine.NewWithTopology(sc.Topology, cfg, src)
	if err != nil {
		t.Fatalf("%s: building engine: %v", sc.Name, err)
	}
	for i, p := range sc.Spontaneous {
		e.Neuron(i).SpontaneousProb = p
	}

	tr := Trace{Name: sc.Name, Dt: e.Params().Dt, Engine: e}
	for !e.Done() {
		if sc.BeforeStep != nil {
			sc.BeforeStep(e.Current(), e)
		}
		fired := e.Step()
		tr.Fired = append(tr.Fired, append([]int(nil), fired...))
	}
	tr.Spikes = e.Spikes()
	return tr
}

// SpikeTimes returns the recorded spike times of neuron i.
func (tr Trace) SpikeTimes(i int) []float64 {
	return tr.Engine.Neuron(i).Spikes
}
