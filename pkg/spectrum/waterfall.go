package spectrum

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
)

// DefaultWaterfallRows is the history depth shown by the dashboard.
const DefaultWaterfallRows = 100

// Waterfall keeps the most recent sample vectors, newest last. It is not
// safe for concurrent use.
type Waterfall struct {
	rows  [][]float64
	depth int
	next  int
	full  bool
}

// NewWaterfall returns a waterfall holding up to depth rows.
func NewWaterfall(depth int) *Waterfall {
	if depth <= 0 {
		depth = DefaultWaterfallRows
	}
	return &Waterfall{rows: make([][]float64, depth), depth: depth}
}

// Push stores a copy of v as the newest row.
func (w *Waterfall) Push(v []float64) {
	w.rows[w.next] = append([]float64(nil), v...)
	w.next = (w.next + 1) % w.depth
	if w.next == 0 {
		w.full = true
	}
}

// Len returns the number of rows held.
func (w *Waterfall) Len() int {
	if w.full {
		return w.depth
	}
	return w.next
}

// Rows returns the held rows oldest first.
func (w *Waterfall) Rows() [][]float64 {
	n := w.Len()
	out := make([][]float64, 0, n)
	start := 0
	if w.full {
		start = w.next
	}
	for i := 0; i < n; i++ {
		out = append(out, w.rows[(start+i)%w.depth])
	}
	return out
}

// Image draws the waterfall as a heatmap: one pixel column per bin, one
// pixel row per sample with the newest at the top, colored on a jet scale
// clamped to [minY, maxY]. Rows whose length differs from the newest row are
// left black.
func (w *Waterfall) Image(minY, maxY float64) image.Image {
	rows := w.Rows()
	if len(rows) == 0 {
		return image.NewRGBA(image.Rect(0, 0, 1, 1))
	}
	width := len(rows[len(rows)-1])
	if width == 0 {
		width = 1
	}
	img := image.NewRGBA(image.Rect(0, 0, width, len(rows)))
	for y := range rows {
		row := rows[len(rows)-1-y]
		if len(row) != width {
			continue
		}
		for x, v := range row {
			img.SetRGBA(x, y, jet(normalize(v, minY, maxY)))
		}
	}
	return img
}

// WritePNG encodes the waterfall image as PNG.
func (w *Waterfall) WritePNG(out io.Writer, minY, maxY float64) error {
	return png.Encode(out, w.Image(minY, maxY))
}

func normalize(v, min, max float64) float64 {
	if max <= min || math.IsNaN(v) {
		return 0
	}
	t := (v - min) / (max - min)
	return math.Max(0, math.Min(1, t))
}

// jet maps t in [0,1] onto the classic blue-cyan-yellow-red scale.
func jet(t float64) color.RGBA {
	clamp := func(x float64) uint8 {
		return uint8(255 * math.Max(0, math.Min(1, x)))
	}
	r := clamp(1.5 - math.Abs(4*t-3))
	g := clamp(1.5 - math.Abs(4*t-2))
	b := clamp(1.5 - math.Abs(4*t-1))
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
