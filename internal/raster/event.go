// Package raster records spike events and serializes spike rasters.
//
// The canonical format is plain text, one "time_ms,neuron" line per spike in
// emission order with no header. JSONL, Arrow IPC and Parquet renderings carry
// the same rows plus the step index.
package raster

import (
	"math"
	"strconv"

	"github.com/nvandessel/lifnet/internal/constants"
)

// Event is one spike: neuron Neuron fired at step Step, time Time (ms).
// Step is -1 when the event was read from a source that does not carry it.
type Event struct {
	Step   int     `json:"step"`
	Neuron int     `json:"neuron"`
	Time   float64 `json:"time_ms"`
}

var timeScale = math.Pow10(constants.TimeRoundingDigits)

// FormatTime renders a spike time without exponent and without the float
// noise that step*dt accumulates (0.30000000000000004 becomes "0.3").
func FormatTime(ms float64) string {
	return strconv.FormatFloat(math.Round(ms*timeScale)/timeScale, 'f', -1, 64)
}

// CountByNeuron returns the number of events per neuron for a population of n.
// Events with an out-of-range neuron index are ignored.
func CountByNeuron(events []Event, n int) []int {
	counts := make([]int, n)
	for _, e := range events {
		if e.Neuron >= 0 && e.Neuron < n {
			counts[e.Neuron]++
		}
	}
	return counts
}

// MaxNeuron returns the highest neuron index in events, or -1 if empty.
func MaxNeuron(events []Event) int {
	highest := -1
	for _, e := range events {
		if e.Neuron > highest {
			highest = e.Neuron
		}
	}
	return highest
}
