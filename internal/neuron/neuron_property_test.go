package neuron

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/nvandessel/lifnet/internal/randsrc"
)

// TestAuxCurrentNeverNegative checks the conductance-mode floor.
// Property: for any starting state and any interleaving of updates and
// received spikes, ISyn >= 0 and G >= 0.
func TestAuxCurrentNeverNegative(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("conductance-mode ISyn stays non-negative", prop.ForAll(
		func(isyn, g float64, ops []bool, seed uint64) bool {
			p := defaultParams(ConductanceBased)
			n := New(p)
			n.ISyn = isyn
			n.G = g
			src := randsrc.New(seed)
			for step, receive := range ops {
				if receive {
					n.ReceiveSpike()
				} else {
					n.Update(step, 0, src)
				}
				if n.ISyn < 0 || n.G < 0 {
					return false
				}
			}
			return true
		},
		gen.Float64Range(0, 10),
		gen.Float64Range(0, 5),
		gen.SliceOf(gen.Bool()),
		gen.UInt64(),
	))

	properties.TestingRun(t)
}

// TestRefractoryExclusion checks spacing between consecutive spikes.
// Property: a neuron never fires twice within RefractorySteps steps, and
// while refractory its potential is exactly VRest.
func TestRefractoryExclusion(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("spikes are separated by the refractory period", prop.ForAll(
		func(ps float64, mode bool, seed uint64) bool {
			m := ConductanceBased
			if mode {
				m = CurrentBased
			}
			p := defaultParams(m)
			p.SpontaneousProb = ps
			n := New(p)
			src := randsrc.New(seed)

			last := -1
			for step := 0; step < 2000; step++ {
				if step%3 == 0 {
					n.ReceiveSpike()
				}
				if n.Update(step, 0, src) {
					if last >= 0 && step-last <= p.RefractorySteps {
						return false
					}
					last = step
				}
				if n.Refractory < 0 {
					return false
				}
				if n.Refractory > 0 && n.V != p.VRest {
					return false
				}
			}
			return true
		},
		gen.Float64Range(0, 1),
		gen.Bool(),
		gen.UInt64(),
	))

	properties.TestingRun(t)
}
