package spectrum

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/segmentio/encoding/json"
)

// ErrNoFFT is returned when a stream payload carries no sample vector.
var ErrNoFFT = errors.New("spectrum: payload has no fft vector")

// Sample is one frequency-domain snapshot pushed by the backend: amplitude in
// dB per bin plus the capture time. A Sample is never modified after decode;
// the next one supersedes it.
type Sample struct {
	FFT  []float64 `json:"fft"`
	Time string    `json:"time"`
}

// Len returns the number of bins.
func (s Sample) Len() int { return len(s.FFT) }

type wireSample struct {
	FFT  []float64       `json:"fft"`
	Time json.RawMessage `json:"time"`
}

// DecodeSample parses a stream payload of the form
// {"fft": [..], "time": "2024-01-02 10:00:00.123" | 1704189600.123}.
func DecodeSample(payload []byte) (Sample, error) {
	var w wireSample
	if err := json.Unmarshal(payload, &w); err != nil {
		return Sample{}, fmt.Errorf("decode sample: %w", err)
	}
	if w.FFT == nil {
		return Sample{}, ErrNoFFT
	}
	return Sample{FFT: w.FFT, Time: decodeTime(w.Time)}, nil
}

// decodeTime keeps textual timestamps as-is and numeric ones verbatim, so no
// precision is lost by a float round trip.
func decodeTime(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}
