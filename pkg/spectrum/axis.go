package spectrum

import (
	"fmt"
	"math"
)

// NumTicks is the number of x-axis ticks: 4 equal intervals across the span.
const NumTicks = 5

// Tick is one labelled x-axis position. Value is in MHz.
type Tick struct {
	Value float64 `json:"value"`
	Label string  `json:"label"`
}

// BinFrequency maps bin i of an n-bin vector to Hz.
func BinFrequency(i, n int, center, span float64) float64 {
	if n <= 0 {
		return center
	}
	return center - span/2 + float64(i)*span/float64(n)
}

// Frequencies returns the frequency (Hz) of every bin of an n-bin vector
// under the given settings.
func Frequencies(n int, s DisplaySettings) []float64 {
	center, span := s.Span()
	out := make([]float64, n)
	for i := range out {
		out[i] = BinFrequency(i, n, center, span)
	}
	return out
}

// FrequenciesMHz is Frequencies scaled to MHz for display.
func FrequenciesMHz(n int, s DisplaySettings) []float64 {
	out := Frequencies(n, s)
	for i := range out {
		out[i] /= 1e6
	}
	return out
}

// Ticks returns NumTicks evenly spaced ticks over the displayed span,
// independent of the bin count.
func Ticks(s DisplaySettings) []Tick {
	center, span := s.Span()
	start := center - span/2
	step := span / (NumTicks - 1)
	ticks := make([]Tick, NumTicks)
	for i := range ticks {
		f := (start + float64(i)*step) / 1e6
		ticks[i] = Tick{Value: f, Label: fmt.Sprintf("%.2f", f)}
	}
	return ticks
}

// PeakIndex is the inverse of BinFrequency: it returns the bin nearest to
// freqHz, or false when the frequency falls outside the displayed vector.
func PeakIndex(freqHz float64, n int, s DisplaySettings) (int, bool) {
	if n <= 0 {
		return 0, false
	}
	center, span := s.Span()
	if span <= 0 {
		return 0, false
	}
	i := int(math.Round((freqHz - (center - span/2)) * float64(n) / span))
	if i < 0 || i >= n {
		return 0, false
	}
	return i, true
}
