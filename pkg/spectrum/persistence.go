package spectrum

import "gonum.org/v1/gonum/floats"

// Persistence is an exponentially averaged trace drawn behind the live one,
// so short bursts leave a fading footprint. It is not safe for concurrent
// use.
type Persistence struct {
	alpha float64
	trace []float64
}

// NewPersistence returns a persistence trace weighting each new sample by
// alpha in (0, 1]. Out of range values fall back to 0.1.
func NewPersistence(alpha float64) *Persistence {
	if alpha <= 0 || alpha > 1 {
		alpha = 0.1
	}
	return &Persistence{alpha: alpha}
}

// Add folds a new sample vector into the trace. A change of vector length
// restarts the average from that sample.
func (p *Persistence) Add(v []float64) {
	if len(v) != len(p.trace) {
		p.trace = append(p.trace[:0:0], v...)
		return
	}
	floats.Scale(1-p.alpha, p.trace)
	floats.AddScaled(p.trace, p.alpha, v)
}

// Trace returns a copy of the current averaged trace.
func (p *Persistence) Trace() []float64 {
	return append([]float64(nil), p.trace...)
}

// Reset drops the accumulated trace.
func (p *Persistence) Reset() { p.trace = nil }
