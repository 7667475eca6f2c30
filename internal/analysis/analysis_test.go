package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvandessel/lifnet/internal/raster"
)

func ev(neuron int, ms float64) raster.Event {
	return raster.Event{Step: -1, Neuron: neuron, Time: ms}
}

func TestRateHz(t *testing.T) {
	tests := []struct {
		count    int
		duration float64
		want     float64
	}{
		{0, 1000, 0},
		{10, 1000, 10},
		{5, 100, 50},
		{3, 0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RateHz(tt.count, tt.duration))
	}
}

func TestISICV(t *testing.T) {
	t.Run("regular spiking has zero CV", func(t *testing.T) {
		assert.InDelta(t, 0, ISICV([]float64{0, 10, 20, 30}), 1e-12)
	})
	t.Run("too few spikes", func(t *testing.T) {
		assert.True(t, math.IsNaN(ISICV([]float64{1, 2})))
		assert.True(t, math.IsNaN(ISICV(nil)))
	})
	t.Run("irregular", func(t *testing.T) {
		// intervals 1 and 3: mean 2, population std 1
		assert.InDelta(t, 0.5, ISICV([]float64{0, 1, 4}), 1e-12)
	})
	t.Run("unordered times", func(t *testing.T) {
		times := []float64{4, 0, 1}
		assert.InDelta(t, 0.5, ISICV(times), 1e-12)
		assert.Equal(t, []float64{4, 0, 1}, times, "input must not be reordered")
	})
}

func TestPopulationHistogram(t *testing.T) {
	events := []raster.Event{ev(0, 0), ev(1, 4.9), ev(0, 5), ev(2, 9.99), ev(1, 10)}
	hist := PopulationHistogram(events, 10, 5)
	assert.Equal(t, []float64{2, 3}, hist)

	assert.Nil(t, PopulationHistogram(events, 0, 5))
}

func TestFanoFactor(t *testing.T) {
	assert.Zero(t, FanoFactor(nil))
	assert.Zero(t, FanoFactor([]float64{0, 0, 0}))
	assert.InDelta(t, 0, FanoFactor([]float64{4, 4, 4, 4}), 1e-12)
	// mean 2, population variance 4
	assert.InDelta(t, 2, FanoFactor([]float64{0, 4, 0, 4}), 1e-12)
}

func TestSummarize(t *testing.T) {
	events := []raster.Event{
		ev(0, 0), ev(0, 10), ev(0, 20), ev(0, 30),
		ev(1, 5),
	}
	s, err := Summarize(events, 3, 100)
	require.NoError(t, err)

	assert.Equal(t, 5, s.TotalSpikes)
	assert.Equal(t, 1, s.Silent)
	assert.Equal(t, 40.0, s.MaxRateHz)
	assert.InDelta(t, 50.0/3, s.MeanRateHz, 1e-9)
	assert.Equal(t, 1, s.CVNeurons)
	assert.InDelta(t, 0, s.MeanISICV, 1e-12)
	require.Len(t, s.PerNeuron, 3)
	assert.Equal(t, 4, s.PerNeuron[0].Spikes)
	assert.Equal(t, 10.0, s.PerNeuron[1].RateHz)
	assert.True(t, math.IsNaN(s.PerNeuron[2].ISICV))
}

func TestSummarize_Errors(t *testing.T) {
	_, err := Summarize(nil, 3, 0)
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = SummarizeWithBin(nil, 3, 10, 0)
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = Summarize([]raster.Event{ev(7, 1)}, 3, 10)
	assert.Error(t, err)
}

func TestSummarize_Empty(t *testing.T) {
	s, err := Summarize(nil, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, s.TotalSpikes)
	assert.Zero(t, s.MeanRateHz)
	assert.Zero(t, s.FanoFactor)
}
