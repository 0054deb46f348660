package backend

import (
	"fmt"
	"strconv"
)

// Settings is the device configuration exchanged with /api/get_settings and
// /api/update_settings. Every field is optional: a patch carries only the
// fields that changed, and a backend reply may omit any of them.
type Settings struct {
	Frequency       *float64 `json:"frequency,omitempty"`
	Gain            *float64 `json:"gain,omitempty"`
	SampleRate      *float64 `json:"sampleRate,omitempty"`
	Bandwidth       *float64 `json:"bandwidth,omitempty"`
	AveragingCount  *int     `json:"averagingCount,omitempty"`
	DCSuppress      *bool    `json:"dcSuppress,omitempty"`
	PeakDetection   *bool    `json:"peakDetection,omitempty"`
	MinPeakDistance *float64 `json:"minPeakDistance,omitempty"`
	NumberOfPeaks   *int     `json:"numberOfPeaks,omitempty"`
	SweepingEnabled *bool    `json:"sweeping_enabled,omitempty"`
	FrequencyStart  *float64 `json:"frequency_start,omitempty"`
	FrequencyStop   *float64 `json:"frequency_stop,omitempty"`
	SDR             *string  `json:"sdr,omitempty"`
}

// Empty reports whether no field is set.
func (s Settings) Empty() bool {
	return s == Settings{}
}

// Merge overlays the fields set in p onto s.
func (s *Settings) Merge(p Settings) {
	if p.Frequency != nil {
		s.Frequency = p.Frequency
	}
	if p.Gain != nil {
		s.Gain = p.Gain
	}
	if p.SampleRate != nil {
		s.SampleRate = p.SampleRate
	}
	if p.Bandwidth != nil {
		s.Bandwidth = p.Bandwidth
	}
	if p.AveragingCount != nil {
		s.AveragingCount = p.AveragingCount
	}
	if p.DCSuppress != nil {
		s.DCSuppress = p.DCSuppress
	}
	if p.PeakDetection != nil {
		s.PeakDetection = p.PeakDetection
	}
	if p.MinPeakDistance != nil {
		s.MinPeakDistance = p.MinPeakDistance
	}
	if p.NumberOfPeaks != nil {
		s.NumberOfPeaks = p.NumberOfPeaks
	}
	if p.SweepingEnabled != nil {
		s.SweepingEnabled = p.SweepingEnabled
	}
	if p.FrequencyStart != nil {
		s.FrequencyStart = p.FrequencyStart
	}
	if p.FrequencyStop != nil {
		s.FrequencyStop = p.FrequencyStop
	}
	if p.SDR != nil {
		s.SDR = p.SDR
	}
}

// Label is one classifier verdict attached to a peak.
type Label struct {
	Label   string      `json:"label"`
	Channel interface{} `json:"channel,omitempty"`
}

// Peak is a detected local maximum reported by the analytics endpoint.
// Frequency is in Hz and power in dB.
type Peak struct {
	Frequency      *float64 `json:"frequency"`
	Power          *float64 `json:"power"`
	Bandwidth      *float64 `json:"bandwidth"`
	Classification []Label  `json:"classification,omitempty"`
}

// Labels joins the classification labels, or returns "N/A".
func (p Peak) Labels() string {
	if len(p.Classification) == 0 {
		return NA
	}
	out := ""
	for i, c := range p.Classification {
		if i > 0 {
			out += ", "
		}
		out += c.Label
		if c.Channel != nil {
			out += fmt.Sprintf(" (ch %v)", c.Channel)
		}
	}
	return out
}

// Classification is a classifier band entry. The classifier list reports
// frequency and bandwidth in MHz.
type Classification struct {
	Label     string      `json:"label"`
	Channel   interface{} `json:"channel,omitempty"`
	Frequency *float64    `json:"frequency,omitempty"`
	Bandwidth *float64    `json:"bandwidth,omitempty"`
	Metadata  interface{} `json:"metadata,omitempty"`
}

// Analytics is one /api/analytics poll result.
type Analytics struct {
	Peaks           []Peak           `json:"peaks"`
	Classifications []Classification `json:"classifications"`
}

// NA is shown in place of a missing numeric field.
const NA = "N/A"

// FormatFloat renders v with the given number of decimals after scaling it
// by 1/div, or NA when v is nil.
func FormatFloat(v *float64, div float64, decimals int) string {
	if v == nil {
		return NA
	}
	if div == 0 {
		div = 1
	}
	return strconv.FormatFloat(*v/div, 'f', decimals, 64)
}

// Float returns a pointer to v, for building patches.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }
