package visualization

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/nvandessel/lifnet/internal/analysis"
	"github.com/nvandessel/lifnet/internal/connectivity"
)

// RenderDOT produces a Graphviz digraph of topo. When rates is non-nil each
// node is shaded by its firing rate relative to the busiest neuron and the
// rate is shown as a tooltip.
func RenderDOT(w io.Writer, topo connectivity.Topology, rates []float64) error {
	if rates != nil && len(rates) != topo.N() {
		return fmt.Errorf("rates has %d entries for %d neurons", len(rates), topo.N())
	}
	peak := 0.0
	for _, r := range rates {
		peak = math.Max(peak, r)
	}

	var b strings.Builder
	b.WriteString("digraph lifnet {\n")
	b.WriteString("  layout=circo;\n")
	b.WriteString("  node [shape=circle, style=filled, fontname=\"Helvetica\", fontsize=10];\n")
	b.WriteString("  edge [arrowsize=0.5, color=\"#00000055\"];\n\n")

	for i := range topo {
		if rates == nil {
			fmt.Fprintf(&b, "  n%d [label=\"%d\", fillcolor=\"lightgray\"];\n", i, i)
			continue
		}
		fmt.Fprintf(&b, "  n%d [label=\"%d\", fillcolor=%q, tooltip=\"%.2f Hz\"];\n",
			i, i, heatColor(rates[i], peak), rates[i])
	}
	b.WriteString("\n")
	for i, targets := range topo {
		for _, j := range targets {
			fmt.Fprintf(&b, "  n%d -> n%d;\n", i, j)
		}
	}
	b.WriteString("}\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// NeuronRates extracts per-neuron rates from a summary, indexed by neuron.
func NeuronRates(sum *analysis.Summary) []float64 {
	rates := make([]float64, sum.Neurons)
	for _, ns := range sum.PerNeuron {
		if ns.Neuron >= 0 && ns.Neuron < len(rates) {
			rates[ns.Neuron] = ns.RateHz
		}
	}
	return rates
}

// heatColor maps rate/peak onto a white-to-red ramp.
func heatColor(rate, peak float64) string {
	frac := 0.0
	if peak > 0 {
		frac = math.Min(math.Max(rate/peak, 0), 1)
	}
	fade := 255 - int(math.Round(frac*200))
	return fmt.Sprintf("#ff%02x%02x", fade, fade)
}
