package visualization

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"strconv"

	"github.com/nvandessel/lifnet/internal/analysis"
	"github.com/nvandessel/lifnet/internal/raster"
	"github.com/nvandessel/lifnet/internal/store"
)

// reportData feeds templates/run.html.tmpl.
type reportData struct {
	Title      string
	Run        store.Run
	Seed       string
	DurationMs string
	Summary    *analysis.Summary
	// Plot is generated by RenderSVG, which escapes the only free text
	// (the title).
	Plot    template.HTML
	BackURL string
}

// RunDuration is the simulated window of a stored run in ms.
func RunDuration(run *store.Run) float64 {
	return float64(run.Steps) * run.Params.Dt
}

// RenderHTML writes a self-contained report for a stored run: the raster
// plot followed by its firing statistics.
func RenderHTML(w io.Writer, run *store.Run, events []raster.Event, opts Options) error {
	return renderReport(w, run, events, opts, "")
}

func renderReport(w io.Writer, run *store.Run, events []raster.Event, opts Options, backURL string) error {
	duration := RunDuration(run)
	opts = opts.withDefaults()
	if opts.Title == "" {
		opts.Title = reportTitle(run)
	}

	var svg bytes.Buffer
	if err := RenderSVG(&svg, events, run.Neurons, duration, opts); err != nil {
		return fmt.Errorf("render raster: %w", err)
	}
	sum, err := analysis.SummarizeWithBin(events, run.Neurons, duration, opts.BinMs)
	if err != nil {
		return fmt.Errorf("summarize run: %w", err)
	}

	data := reportData{
		Title:      opts.Title,
		Run:        *run,
		Seed:       strconv.FormatUint(run.Seed, 10),
		DurationMs: raster.FormatTime(duration),
		Summary:    sum,
		Plot:       template.HTML(svg.String()), // #nosec G203
		BackURL:    backURL,
	}
	if err := pages.ExecuteTemplate(w, "run.html.tmpl", data); err != nil {
		return fmt.Errorf("execute HTML template: %w", err)
	}
	return nil
}

func reportTitle(run *store.Run) string {
	id := shortID(run.ID)
	if run.Label != "" {
		return fmt.Sprintf("Run %s: %s", id, run.Label)
	}
	return "Run " + id
}
