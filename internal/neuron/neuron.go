// Package neuron implements the leaky integrate-and-fire point neuron and
// its one-step update rule for conductance-based and current-based synapses.
package neuron

import (
	"github.com/nvandessel/lifnet/internal/randsrc"
)

// State is the refractory state machine of a neuron.
type State int

const (
	// Active neurons integrate input and may fire.
	Active State = iota
	// Refractory neurons are clamped at rest until the countdown expires.
	Refractory
)

func (s State) String() string {
	if s == Refractory {
		return "refractory"
	}
	return "active"
}

// Neuron is one member of the population. Connectivity is held as target
// indices only; a neuron never references another neuron.
type Neuron struct {
	V          float64 // membrane potential
	G          float64 // synaptic conductance, conductance mode only
	ISyn       float64 // synaptic current
	Refractory int     // remaining refractory steps

	Targets []int     // postsynaptic indices, fixed after construction
	Spikes  []float64 // firing times in ms, append-only

	// Received counts spikes delivered to this neuron.
	Received int

	// SpontaneousProb starts at the population value; it is per neuron so a
	// caller can drive a single cell.
	SpontaneousProb float64

	params *Params
}

// New returns an Active neuron at rest. The params pointer is shared and
// must not be modified while a simulation is running.
func New(p *Params) Neuron {
	return Neuron{
		V:               p.VRest,
		SpontaneousProb: p.SpontaneousProb,
		params:          p,
	}
}

// Params returns the shared parameters.
func (n *Neuron) Params() *Params {
	return n.params
}

// State reports whether the neuron is currently refractory.
func (n *Neuron) State() State {
	if n.Refractory > 0 {
		return Refractory
	}
	return Active
}

// Update advances the neuron by one timestep and reports whether it fired.
//
// A refractory neuron only counts down. An active neuron first gets one
// spontaneous-fire draw; a spontaneous spike skips integration for the step.
func (n *Neuron) Update(step int, input float64, src randsrc.Source) bool {
	if n.Refractory > 0 {
		n.Refractory--
		n.V = n.params.VRest
		return false
	}

	if src.Bernoulli(n.SpontaneousProb) {
		n.fire(step)
		return true
	}

	n.integrate(input)

	if n.V >= n.params.VThreshold {
		n.fire(step)
		return true
	}
	return false
}

// integrate applies one Euler step of the membrane and synapse dynamics.
func (n *Neuron) integrate(input float64) {
	p := n.params
	var drive float64

	switch p.Synapse {
	case ConductanceBased:
		n.G -= n.G * p.DtOverTauS
		// ISyn tracks a decaying current that never drives V in this mode.
		n.ISyn -= n.G * p.DtOverTauS
		if n.ISyn < 0 {
			n.ISyn = 0
		}
		drive = p.RM * (n.G*(p.ERev-n.V) + input)
	case CurrentBased:
		n.ISyn -= n.ISyn * p.DtOverTauS
		drive = p.RM * (n.ISyn + input)
	}

	n.V += p.DtOverTauM * (-(n.V - p.VRest) + drive)
}

// ReceiveSpike delivers one presynaptic spike. Multiple spikes in the same
// step accumulate without saturation.
func (n *Neuron) ReceiveSpike() {
	n.Received++
	switch n.params.Synapse {
	case ConductanceBased:
		n.G += n.params.GStep
	case CurrentBased:
		n.ISyn += n.params.IStep
	}
}

func (n *Neuron) fire(step int) {
	n.V = n.params.VRest
	n.Refractory = n.params.RefractorySteps
	n.Spikes = append(n.Spikes, float64(step)*n.params.Dt)
}
