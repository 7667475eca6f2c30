// Package analysis computes firing statistics from a spike raster.
package analysis

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/nvandessel/lifnet/internal/constants"
	"github.com/nvandessel/lifnet/internal/raster"
)

// ErrInvalidWindow is returned for a non-positive duration or bin width.
var ErrInvalidWindow = errors.New("analysis window must be positive")

// NeuronStats describes the firing of one neuron.
type NeuronStats struct {
	Neuron int     `json:"neuron"`
	Spikes int     `json:"spikes"`
	RateHz float64 `json:"rate_hz"`

	// ISICV is the coefficient of variation of inter-spike intervals, or
	// NaN when the neuron fired fewer than three times.
	ISICV float64 `json:"-"`
}

// Summary describes the population.
type Summary struct {
	Neurons     int     `json:"neurons"`
	DurationMs  float64 `json:"duration_ms"`
	TotalSpikes int     `json:"total_spikes"`
	Silent      int     `json:"silent"`

	MeanRateHz float64 `json:"mean_rate_hz"`
	StdRateHz  float64 `json:"std_rate_hz"`
	MaxRateHz  float64 `json:"max_rate_hz"`

	// MeanISICV averages ISICV over the neurons where it is defined.
	// CVNeurons is how many neurons that was; MeanISICV is 0 when none.
	MeanISICV float64 `json:"mean_isi_cv"`
	CVNeurons int     `json:"cv_neurons"`

	// FanoFactor is variance/mean of binned population spike counts.
	// Values well above 1 indicate synchronous bursts.
	FanoFactor float64 `json:"fano_factor"`
	BinMs      float64 `json:"bin_ms"`

	PerNeuron []NeuronStats `json:"per_neuron,omitempty"`
}

// Summarize computes the statistics of events over n neurons and a window
// of durationMs. Events naming a neuron outside [0, n) are an error.
func Summarize(events []raster.Event, n int, durationMs float64) (*Summary, error) {
	return SummarizeWithBin(events, n, durationMs, constants.DefaultHistogramBin)
}

// SummarizeWithBin is Summarize with an explicit histogram bin width.
func SummarizeWithBin(events []raster.Event, n int, durationMs, binMs float64) (*Summary, error) {
	if !(durationMs > 0) || !(binMs > 0) {
		return nil, fmt.Errorf("%w: duration %v, bin %v", ErrInvalidWindow, durationMs, binMs)
	}
	if n < 0 {
		return nil, fmt.Errorf("negative neuron count %d", n)
	}

	times := make([][]float64, n)
	for _, ev := range events {
		if ev.Neuron < 0 || ev.Neuron >= n {
			return nil, fmt.Errorf("spike at %v ms names neuron %d outside [0, %d)", ev.Time, ev.Neuron, n)
		}
		times[ev.Neuron] = append(times[ev.Neuron], ev.Time)
	}

	s := &Summary{
		Neurons:     n,
		DurationMs:  durationMs,
		TotalSpikes: len(events),
		BinMs:       binMs,
		PerNeuron:   make([]NeuronStats, n),
	}

	rates := make([]float64, n)
	var cvSum float64
	for i, ts := range times {
		rates[i] = RateHz(len(ts), durationMs)
		cv := ISICV(ts)
		s.PerNeuron[i] = NeuronStats{Neuron: i, Spikes: len(ts), RateHz: rates[i], ISICV: cv}
		if len(ts) == 0 {
			s.Silent++
		}
		if rates[i] > s.MaxRateHz {
			s.MaxRateHz = rates[i]
		}
		if !math.IsNaN(cv) {
			cvSum += cv
			s.CVNeurons++
		}
	}
	if n > 0 {
		s.MeanRateHz, s.StdRateHz = stat.PopMeanStdDev(rates, nil)
	}
	if s.CVNeurons > 0 {
		s.MeanISICV = cvSum / float64(s.CVNeurons)
	}

	hist := PopulationHistogram(events, durationMs, binMs)
	s.FanoFactor = FanoFactor(hist)
	return s, nil
}

// RateHz converts a spike count over durationMs to a firing rate in Hz.
func RateHz(count int, durationMs float64) float64 {
	if durationMs <= 0 {
		return 0
	}
	return float64(count) * 1000 / durationMs
}

// ISICV returns std/mean of the intervals between consecutive spike times,
// or NaN for fewer than three spikes. times may be in any order; it is not
// modified.
func ISICV(times []float64) float64 {
	if len(times) < constants.MinSpikesForISI {
		return math.NaN()
	}
	times = slices.Clone(times)
	slices.Sort(times)
	isi := make([]float64, len(times)-1)
	for k := 1; k < len(times); k++ {
		isi[k-1] = times[k] - times[k-1]
	}
	mean, std := stat.PopMeanStdDev(isi, nil)
	if mean == 0 {
		return math.NaN()
	}
	return std / mean
}

// PopulationHistogram counts spikes of all neurons in consecutive bins of
// binMs covering [0, durationMs). Spikes at or past durationMs land in the
// last bin.
func PopulationHistogram(events []raster.Event, durationMs, binMs float64) []float64 {
	if !(durationMs > 0) || !(binMs > 0) {
		return nil
	}
	bins := int(math.Ceil(durationMs/binMs - constants.StepEpsilon))
	if bins < 1 {
		bins = 1
	}
	hist := make([]float64, bins)
	for _, ev := range events {
		b := int(ev.Time / binMs)
		if b >= bins {
			b = bins - 1
		}
		if b < 0 {
			b = 0
		}
		hist[b]++
	}
	return hist
}

// FanoFactor returns variance/mean of counts, or 0 when the mean is 0.
func FanoFactor(counts []float64) float64 {
	if len(counts) == 0 {
		return 0
	}
	mean, std := stat.PopMeanStdDev(counts, nil)
	if mean == 0 {
		return 0
	}
	return std * std / mean
}
