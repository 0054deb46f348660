package spectrum

import "time"

// Default sweep edge padding. A sweep covers the configured start/stop
// frequencies plus one capture bandwidth worth of spectrum; the capture
// bandwidth depends on the radio.
const (
	DefaultSweepEdgeHz = 20e6
	SidekiqSweepEdgeHz = 60e6
)

// DisplaySettings is the renderer's read-only view of the application
// settings. It is passed around by value; every change produces a new
// snapshot.
type DisplaySettings struct {
	CenterFreqHz float64
	SampleRateHz float64
	BandwidthHz  float64

	MinY float64
	MaxY float64

	ThrottleInterval time.Duration
	ShowPeaks        bool

	Sweeping   bool
	SweepStart float64 // Hz
	SweepStop  float64 // Hz
	SDR        string
	SweepEdges map[string]float64
}

// DefaultDisplaySettings mirrors the backend's power-on configuration.
func DefaultDisplaySettings() DisplaySettings {
	return DisplaySettings{
		CenterFreqHz:     102.1e6,
		SampleRateHz:     16e6,
		BandwidthHz:      16e6,
		MinY:             -60,
		MaxY:             20,
		ThrottleInterval: 30 * time.Millisecond,
		SweepStart:       50e6,
		SweepStop:        6000e6,
	}
}

// SweepEdge returns the extra span added around a sweep for the selected SDR.
func (s DisplaySettings) SweepEdge() float64 {
	if edge, ok := s.SweepEdges[s.SDR]; ok {
		return edge
	}
	if s.SDR == "sidekiq" {
		return SidekiqSweepEdgeHz
	}
	return DefaultSweepEdgeHz
}

// Span returns the center and total width (Hz) of the displayed x-axis.
func (s DisplaySettings) Span() (center, span float64) {
	if s.Sweeping {
		center = (s.SweepStart + s.SweepStop) / 2
		span = s.SweepStop - s.SweepStart + s.SweepEdge()
		return center, span
	}
	return s.CenterFreqHz, s.SampleRateHz
}

// YRange returns the configured vertical bounds, swapped if inverted.
func (s DisplaySettings) YRange() (min, max float64) {
	if s.MinY > s.MaxY {
		return s.MaxY, s.MinY
	}
	return s.MinY, s.MaxY
}
