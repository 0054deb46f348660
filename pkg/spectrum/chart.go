package spectrum

import (
	"errors"
	"io"
	"math"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrEmptyFrame is returned when a frame has too few bins to draw.
var ErrEmptyFrame = errors.New("spectrum: frame has fewer than two bins")

// Format selects the chart encoding.
type Format int

const (
	PNG Format = iota
	SVG
)

// ChartOptions controls chart rendering.
type ChartOptions struct {
	Width  int
	Height int
	// Persistence, if it matches the frame length, is drawn behind the trace.
	Persistence []float64
	// Bands are shaded behind the trace with dashed edges and a label.
	Bands []Band
	// YName overrides the y axis title.
	YName string
}

var (
	colorBackground  = drawing.ColorBlack
	colorForeground  = drawing.ColorWhite
	colorGrid        = drawing.Color{R: 0x44, G: 0x44, B: 0x44, A: 255}
	colorTraceFill   = drawing.Color{R: 255, G: 255, B: 255, A: 76}
	colorPersistence = drawing.Color{R: 255, G: 255, B: 0, A: 51}
	colorBand        = drawing.Color{R: 0x33, G: 0x99, B: 0xff, A: 40}
	colorBandStart   = drawing.ColorRed
	colorBandStop    = drawing.ColorGreen
)

// RenderChart draws the frame to w with go-chart.
func RenderChart(w io.Writer, f Frame, format Format, opts ChartOptions) error {
	if f.Bins() < 2 || len(f.Ticks) == 0 {
		return ErrEmptyFrame
	}
	if opts.Width <= 0 {
		opts.Width = 1024
	}
	if opts.Height <= 0 {
		opts.Height = 400
	}
	if opts.YName == "" {
		opts.YName = "Amplitude (dB)"
	}

	xMin, xMax := f.Ticks[0].Value, f.Ticks[len(f.Ticks)-1].Value
	if xMax <= xMin {
		xMax = xMin + 1e-6
	}
	yMin, yMax := f.MinY, f.MaxY
	if yMax <= yMin {
		yMax = yMin + 1
	}

	ticks := make([]chart.Tick, len(f.Ticks))
	for i, t := range f.Ticks {
		ticks[i] = chart.Tick{Value: t.Value, Label: t.Label}
	}

	series, bandLabels := bandSeries(opts.Bands, xMin, xMax, yMin, yMax)
	if len(opts.Persistence) == f.Bins() {
		series = append(series, chart.ContinuousSeries{
			Name:    "Persistence",
			XValues: f.X,
			YValues: opts.Persistence,
			Style: chart.Style{
				StrokeColor: colorPersistence,
				FillColor:   colorPersistence,
				StrokeWidth: 1,
			},
		})
	}
	series = append(series, chart.ContinuousSeries{
		Name:    "FFT",
		XValues: f.X,
		YValues: f.Y,
		Style: chart.Style{
			StrokeColor: colorForeground,
			FillColor:   colorTraceFill,
			StrokeWidth: 1,
		},
	})
	if ann := append(bandLabels, chartAnnotations(f, xMax, yMax, yMin)...); len(ann) > 0 {
		series = append(series, chart.AnnotationSeries{Annotations: ann})
	}

	axisStyle := chart.Style{FontColor: colorForeground, StrokeColor: colorForeground}
	gridStyle := chart.Style{StrokeColor: colorGrid, StrokeWidth: 1}
	ch := chart.Chart{
		Width:      opts.Width,
		Height:     opts.Height,
		Background: chart.Style{FillColor: colorBackground, Padding: chart.Box{Top: 50, Left: 50, Right: 50, Bottom: 50}},
		Canvas:     chart.Style{FillColor: colorBackground},
		XAxis: chart.XAxis{
			Name:           "Frequency (MHz)",
			NameStyle:      axisStyle,
			Style:          axisStyle,
			Range:          &chart.ContinuousRange{Min: xMin, Max: xMax},
			Ticks:          ticks,
			GridMajorStyle: gridStyle,
		},
		YAxis: chart.YAxis{
			Name:           opts.YName,
			NameStyle:      axisStyle,
			Style:          axisStyle,
			Range:          &chart.ContinuousRange{Min: yMin, Max: yMax},
			GridMajorStyle: gridStyle,
		},
		Series: series,
	}

	provider := chart.PNG
	if format == SVG {
		provider = chart.SVG
	}
	return ch.Render(provider, w)
}

// bandSeries shades each band clipped to the x range and marks its start
// and stop edges. Bands entirely outside the range are skipped.
func bandSeries(bands []Band, xMin, xMax, yMin, yMax float64) ([]chart.Series, []chart.Value2) {
	var (
		series []chart.Series
		labels []chart.Value2
	)
	edge := func(name string, x float64, c drawing.Color) {
		if x < xMin || x > xMax {
			return
		}
		series = append(series, chart.ContinuousSeries{
			Name:    name,
			XValues: []float64{x, x},
			YValues: []float64{yMin, yMax},
			Style: chart.Style{
				StrokeColor:     c,
				StrokeWidth:     1,
				StrokeDashArray: []float64{5, 5},
			},
		})
	}
	for _, b := range bands {
		lo, hi := math.Max(b.LowMHz, xMin), math.Min(b.HighMHz, xMax)
		if hi < lo {
			continue
		}
		series = append(series, chart.ContinuousSeries{
			Name:    b.Name,
			XValues: []float64{lo, hi},
			YValues: []float64{yMax, yMax},
			Style: chart.Style{
				StrokeColor: colorBand,
				StrokeWidth: 1,
				FillColor:   colorBand,
			},
		})
		edge(b.Name+" Start", b.LowMHz, colorBandStart)
		edge(b.Name+" Stop", b.HighMHz, colorBandStop)
		labels = append(labels, chart.Value2{
			XValue: lo,
			YValue: yMax,
			Label:  b.Name,
			Style: chart.Style{
				FontColor:   colorForeground,
				FillColor:   colorBackground,
				StrokeColor: colorBand,
			},
		})
	}
	return series, labels
}

func chartAnnotations(f Frame, xMax, yMax, yMin float64) []chart.Value2 {
	var out []chart.Value2
	for _, a := range f.Annotations {
		c := PeakColor(a.Y)
		out = append(out, chart.Value2{
			XValue: a.X,
			YValue: a.Y,
			Label:  strings.ReplaceAll(a.Text, "\n", " "),
			Style: chart.Style{
				FontColor:   drawing.Color{R: c.R, G: c.G, B: c.B, A: c.A},
				FillColor:   colorBackground,
				StrokeColor: colorForeground,
			},
		})
	}
	if f.PeakTable == nil {
		return out
	}
	// go-chart labels are single line, so the table goes in one label per
	// row stepping down from the top-right corner.
	step := (yMax - yMin) / 20
	rows := strings.Split(strings.TrimRight(f.PeakTable.Text, "\n"), "\n")
	for i, row := range rows {
		out = append(out, chart.Value2{
			XValue: xMax,
			YValue: yMax - float64(i)*step,
			Label:  strings.TrimSpace(row),
			Style: chart.Style{
				FontColor:   colorForeground,
				FillColor:   colorBackground,
				StrokeColor: colorForeground,
			},
		})
	}
	return out
}
