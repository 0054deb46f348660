package spectrum

import (
	"fmt"
	"math"
	"strings"
)

// Default power range of the sweep chart, in dB.
const (
	SweepMinY = -20.0
	SweepMaxY = 60.0
)

// Band is a named frequency range. Edges are in MHz.
type Band struct {
	Name    string  `json:"name"`
	LowMHz  float64 `json:"low_mhz"`
	HighMHz float64 `json:"high_mhz"`
}

// AreasOfInterest are the bands marked on the full sweep.
var AreasOfInterest = []Band{
	{Name: "FM Radio", LowMHz: 87.7, HighMHz: 107.7},
	{Name: "315MHz ISM", LowMHz: 315, HighMHz: 316},
	{Name: "433MHz Band", LowMHz: 433, HighMHz: 434},
	{Name: "462.5MHz PTT", LowMHz: 462.5, HighMHz: 463.5},
	{Name: "WiFi 2.4GHz", LowMHz: 2400, HighMHz: 2483.5},
	{Name: "WiFi 5.8GHz", LowMHz: 5725, HighMHz: 5850},
	{Name: "LTE Band 2", LowMHz: 1850, HighMHz: 1910},
	{Name: "LTE Band 4 (AWS)", LowMHz: 1710, HighMHz: 1755},
	{Name: "LTE Band 12", LowMHz: 699, HighMHz: 716},
	{Name: "LTE Band 13", LowMHz: 746, HighMHz: 756},
}

// SelectBands picks bands by name, case-insensitively. An empty list or
// "all" selects every band; "none" selects nothing. Unknown names are
// returned as an error.
func SelectBands(bands []Band, names []string) ([]Band, error) {
	if len(names) == 0 || (len(names) == 1 && strings.EqualFold(names[0], "all")) {
		return bands, nil
	}
	if len(names) == 1 && strings.EqualFold(names[0], "none") {
		return nil, nil
	}
	var out []Band
	for _, name := range names {
		name = strings.TrimSpace(name)
		found := false
		for _, b := range bands {
			if strings.EqualFold(b.Name, name) {
				out = append(out, b)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown band %q", name)
		}
	}
	return out, nil
}

// BandPeak is the strongest sweep point inside a band.
type BandPeak struct {
	Band
	FreqMHz float64
	Power   float64
	Points  int
}

// PeakInBand scans a sweep trace (x in MHz, y in dB) for its maximum inside
// b. Points is zero when the sweep does not cover the band.
func PeakInBand(x, y []float64, b Band) BandPeak {
	p := BandPeak{Band: b, Power: math.Inf(-1)}
	for i, f := range x {
		if i >= len(y) || f < b.LowMHz || f > b.HighMHz {
			continue
		}
		p.Points++
		if y[i] > p.Power {
			p.FreqMHz, p.Power = f, y[i]
		}
	}
	return p
}

// SweepFrame turns a full sweep trace into a chart frame with evenly spaced
// ticks over its frequency range.
func SweepFrame(x, y []float64, minY, maxY float64) Frame {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	f := Frame{X: x[:n], Y: y[:n], MinY: minY, MaxY: maxY}
	if n < 2 {
		return f
	}
	lo, hi := x[0], x[n-1]
	step := (hi - lo) / (NumTicks - 1)
	f.Ticks = make([]Tick, NumTicks)
	for i := range f.Ticks {
		v := lo + float64(i)*step
		f.Ticks[i] = Tick{Value: v, Label: fmt.Sprintf("%.0f", v)}
	}
	return f
}
