package spectrum

// Frame is everything needed to draw one redraw of the spectrum chart. The
// trace is replaced wholesale on every frame; nothing is appended.
type Frame struct {
	Time  string    `json:"time"`
	X     []float64 `json:"x"` // MHz
	Y     []float64 `json:"y"` // dB
	Ticks []Tick    `json:"ticks"`
	MinY  float64   `json:"min_y"`
	MaxY  float64   `json:"max_y"`

	Annotations []Annotation     `json:"annotations,omitempty"`
	PeakTable   *TableAnnotation `json:"peak_table,omitempty"`

	Settings DisplaySettings `json:"-"`
}

// BuildFrame maps a sample onto the axes described by the current settings.
// The settings may be newer than the ones the sample was captured under; the
// frame always follows the settings.
func BuildFrame(sample Sample, s DisplaySettings, peaks []int) Frame {
	minY, maxY := s.YRange()
	annotations, table := Annotate(sample, s, peaks)
	return Frame{
		Time:        sample.Time,
		X:           FrequenciesMHz(sample.Len(), s),
		Y:           sample.FFT,
		Ticks:       Ticks(s),
		MinY:        minY,
		MaxY:        maxY,
		Annotations: annotations,
		PeakTable:   table,
		Settings:    s,
	}
}

// Bins returns the number of points in the trace.
func (f Frame) Bins() int { return len(f.Y) }
