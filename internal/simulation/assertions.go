package simulation

import (
	"math"
	"testing"
)

const timeTolerance = 1e-9

// AssertFiresAt asserts that neuron i fired at step.
func AssertFiresAt(t *testing.T, tr Trace, i, step int) {
	t.Helper()
	if step < 0 || step >= len(tr.Fired) {
		t.Errorf("AssertFiresAt(%s): step %d out of range [0, %d)", tr.Name, step, len(tr.Fired))
		return
	}
	for _, j := range tr.Fired[step] {
		if j == i {
			return
		}
	}
	t.Errorf("AssertFiresAt(%s): neuron %d did not fire at step %d (fired: %v)", tr.Name, i, step, tr.Fired[step])
}

// AssertSilent asserts that neuron i never fired.
func AssertSilent(t *testing.T, tr Trace, i int) {
	t.Helper()
	if times := tr.SpikeTimes(i); len(times) > 0 {
		t.Errorf("AssertSilent(%s): neuron %d fired %d times, first at %v ms", tr.Name, i, len(times), times[0])
	}
}

// AssertSpikeCount asserts the number of spikes neuron i emitted.
func AssertSpikeCount(t *testing.T, tr Trace, i, want int) {
	t.Helper()
	if got := len(tr.SpikeTimes(i)); got != want {
		t.Errorf("AssertSpikeCount(%s): neuron %d fired %d times, want %d", tr.Name, i, got, want)
	}
}

// AssertMinISI asserts that consecutive spikes of every neuron are at least
// minMs apart.
func AssertMinISI(t *testing.T, tr Trace, minMs float64) {
	t.Helper()
	for i := 0; i < tr.Engine.N(); i++ {
		times := tr.SpikeTimes(i)
		for k := 1; k < len(times); k++ {
			if isi := times[k] - times[k-1]; isi < minMs-timeTolerance {
				t.Errorf("AssertMinISI(%s): neuron %d spikes at %v and %v are %v ms apart (min %v)",
					tr.Name, i, times[k-1], times[k], isi, minMs)
			}
		}
	}
}

// AssertLogConsistent asserts that the global log is ordered by step and
// agrees with every neuron's own spike record.
func AssertLogConsistent(t *testing.T, tr Trace) {
	t.Helper()
	perNeuron := make([][]float64, tr.Engine.N())
	prev := math.Inf(-1)
	for k, ev := range tr.Spikes {
		if ev.Time < prev-timeTolerance {
			t.Errorf("AssertLogConsistent(%s): event %d at %v ms precedes %v ms", tr.Name, k, ev.Time, prev)
		}
		prev = ev.Time
		perNeuron[ev.Neuron] = append(perNeuron[ev.Neuron], ev.Time)
	}
	for i, logged := range perNeuron {
		own := tr.SpikeTimes(i)
		if len(own) != len(logged) {
			t.Errorf("AssertLogConsistent(%s): neuron %d has %d own spikes, %d in log", tr.Name, i, len(own), len(logged))
			continue
		}
		for k := range own {
			if math.Abs(own[k]-logged[k]) > timeTolerance {
				t.Errorf("AssertLogConsistent(%s): neuron %d spike %d at %v, log has %v", tr.Name, i, k, own[k], logged[k])
			}
		}
	}
}

// AssertReceived asserts how many spikes neuron i received.
func AssertReceived(t *testing.T, tr Trace, i, want int) {
	t.Helper()
	if got := tr.Engine.Neuron(i).Received; got != want {
		t.Errorf("AssertReceived(%s): neuron %d received %d spikes, want %d", tr.Name, i, got, want)
	}
}
