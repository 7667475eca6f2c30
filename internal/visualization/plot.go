// Package visualization renders spike rasters and network topologies for
// people: SVG raster plots, self-contained HTML reports, Graphviz DOT and a
// local server that browses stored runs.
package visualization

import (
	"bufio"
	"errors"
	"fmt"
	"html"
	"io"
	"math"
	"strings"

	"github.com/nvandessel/lifnet/internal/analysis"
	"github.com/nvandessel/lifnet/internal/constants"
	"github.com/nvandessel/lifnet/internal/raster"
)

// Format specifies the output format of a plot.
type Format string

const (
	FormatSVG  Format = "svg"
	FormatHTML Format = "html"
	FormatDOT  Format = "dot"
)

// ErrUnknownFormat is returned for unsupported plot formats.
var ErrUnknownFormat = errors.New("unknown plot format")

// ParseFormat validates a format name.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(name)); f {
	case FormatSVG, FormatHTML, FormatDOT:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q (use svg, html or dot)", ErrUnknownFormat, name)
}

// FormatFromPath infers the plot format from a file extension, defaulting
// to HTML.
func FormatFromPath(path string) Format {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".svg"):
		return FormatSVG
	case strings.HasSuffix(lower, ".dot"), strings.HasSuffix(lower, ".gv"):
		return FormatDOT
	}
	return FormatHTML
}

// Options control the plot geometry.
type Options struct {
	// Width of the SVG in pixels. Zero selects 900.
	Width int

	// BinMs is the population histogram bin width. Zero selects the
	// analysis default.
	BinMs float64

	Title string
}

const (
	defaultWidth    = 900
	marginLeft      = 56
	marginRight     = 16
	marginTop       = 28
	histHeight      = 110
	panelGap        = 36
	axisSpace       = 34
	minRasterHeight = 160
	maxRasterHeight = 640
)

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = defaultWidth
	}
	if !(o.BinMs > 0) {
		o.BinMs = constants.DefaultHistogramBin
	}
	return o
}

// rasterHeight allots four pixels per neuron, clamped to the panel bounds.
func rasterHeight(neurons int) int {
	h := neurons * 4
	if h < minRasterHeight {
		return minRasterHeight
	}
	if h > maxRasterHeight {
		return maxRasterHeight
	}
	return h
}

// RenderSVG draws a raster plot of events (one row per neuron, time on the
// x axis) above a population histogram. Events outside [0, durationMs) or
// [0, neurons) are clipped.
func RenderSVG(w io.Writer, events []raster.Event, neurons int, durationMs float64, opts Options) error {
	if neurons <= 0 {
		return fmt.Errorf("neurons must be positive, got %d", neurons)
	}
	if !(durationMs > 0) {
		return fmt.Errorf("duration must be positive, got %g", durationMs)
	}
	opts = opts.withDefaults()

	plotW := float64(opts.Width - marginLeft - marginRight)
	rasterH := float64(rasterHeight(neurons))
	rowH := rasterH / float64(neurons)
	histTop := marginTop + rasterH + panelGap
	height := int(histTop) + histHeight + axisSpace
	xOf := func(ms float64) float64 { return marginLeft + ms/durationMs*plotW }

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" font-family="Helvetica,Arial,sans-serif" font-size="11">`+"\n",
		opts.Width, height, opts.Width, height)
	fmt.Fprintf(bw, `<rect width="%d" height="%d" fill="white"/>`+"\n", opts.Width, height)
	if opts.Title != "" {
		fmt.Fprintf(bw, `<text x="%d" y="18" font-size="13" font-weight="bold">%s</text>`+"\n",
			marginLeft, html.EscapeString(opts.Title))
	}

	// Raster panel.
	fmt.Fprintf(bw, `<rect x="%d" y="%d" width="%.1f" height="%.1f" fill="none" stroke="#999"/>`+"\n",
		marginLeft, marginTop, plotW, rasterH)
	fmt.Fprintf(bw, `<g fill="#1f4e79">`+"\n")
	dotH := math.Max(rowH*0.8, 0.6)
	for _, ev := range events {
		if ev.Neuron < 0 || ev.Neuron >= neurons || ev.Time < 0 || ev.Time >= durationMs {
			continue
		}
		fmt.Fprintf(bw, `<rect x="%.2f" y="%.2f" width="1.5" height="%.2f"/>`+"\n",
			xOf(ev.Time), marginTop+float64(ev.Neuron)*rowH, dotH)
	}
	fmt.Fprintln(bw, `</g>`)
	fmt.Fprintf(bw, `<text x="14" y="%.1f" transform="rotate(-90 14 %.1f)" text-anchor="middle">neuron</text>`+"\n",
		marginTop+rasterH/2, marginTop+rasterH/2)
	fmt.Fprintf(bw, `<text x="%d" y="%d" text-anchor="end">0</text>`+"\n", marginLeft-6, marginTop+8)
	fmt.Fprintf(bw, `<text x="%d" y="%.1f" text-anchor="end">%d</text>`+"\n", marginLeft-6, marginTop+rasterH, neurons-1)

	// Population histogram panel.
	hist := analysis.PopulationHistogram(events, durationMs, opts.BinMs)
	peak := 0.0
	for _, c := range hist {
		peak = math.Max(peak, c)
	}
	fmt.Fprintf(bw, `<rect x="%d" y="%.1f" width="%.1f" height="%d" fill="none" stroke="#999"/>`+"\n",
		marginLeft, histTop, plotW, histHeight)
	if peak > 0 {
		fmt.Fprintf(bw, `<g fill="#c0504d">`+"\n")
		for i, c := range hist {
			if c == 0 {
				continue
			}
			start := float64(i) * opts.BinMs
			end := math.Min(start+opts.BinMs, durationMs)
			barH := c / peak * histHeight
			fmt.Fprintf(bw, `<rect x="%.2f" y="%.2f" width="%.2f" height="%.2f"/>`+"\n",
				xOf(start), histTop+histHeight-barH, math.Max(xOf(end)-xOf(start)-0.5, 0.5), barH)
		}
		fmt.Fprintln(bw, `</g>`)
	}
	fmt.Fprintf(bw, `<text x="%d" y="%.1f" text-anchor="end">%g</text>`+"\n", marginLeft-6, histTop+8, peak)
	fmt.Fprintf(bw, `<text x="14" y="%.1f" transform="rotate(-90 14 %.1f)" text-anchor="middle">spikes/%s ms</text>`+"\n",
		histTop+histHeight/2, histTop+histHeight/2, raster.FormatTime(opts.BinMs))

	// Shared time axis.
	axisY := histTop + histHeight + 16
	for _, tick := range ticks(durationMs) {
		fmt.Fprintf(bw, `<text x="%.1f" y="%.1f" text-anchor="middle">%s</text>`+"\n",
			xOf(tick), axisY, raster.FormatTime(tick))
	}
	fmt.Fprintf(bw, `<text x="%.1f" y="%.1f" text-anchor="middle">time (ms)</text>`+"\n",
		marginLeft+plotW/2, axisY+14)
	fmt.Fprintln(bw, `</svg>`)

	return bw.Flush()
}

// ticks returns round axis positions from 0 to durationMs, at most six.
func ticks(durationMs float64) []float64 {
	raw := durationMs / 5
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	step := mag
	for _, m := range []float64{2, 5, 10} {
		if step >= raw {
			break
		}
		step = mag * m
	}
	var out []float64
	for i := 0; float64(i)*step <= durationMs+constants.StepEpsilon; i++ {
		out = append(out, float64(i)*step)
	}
	return out
}
