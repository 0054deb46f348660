package main

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/floats"
)

// silenceDB is reported for bins with no energy at all.
const silenceDB = -150.0

// spectrumAnalyzer turns blocks of I/Q samples into a power spectrum in dB
// relative to full scale, with DC in the centre bin. It is not safe for
// concurrent use.
type spectrumAnalyzer struct {
	n      int
	window []float64
	gain   float64 // coherent gain of the window
	buf    []complex128
}

func newSpectrumAnalyzer(n int) *spectrumAnalyzer {
	w := window.Blackman(n)
	return &spectrumAnalyzer{
		n:      n,
		window: w,
		gain:   floats.Sum(w),
		buf:    make([]complex128, n),
	}
}

// noiseSigma returns the per-component standard deviation of complex white
// noise that averages floor dB in every bin.
func (a *spectrumAnalyzer) noiseSigma(floor float64) float64 {
	energy := floats.Dot(a.window, a.window)
	return math.Sqrt(math.Pow(10, floor/10) * a.gain * a.gain / (2 * energy))
}

// accumulate adds the linear power spectrum of iq to acc. A full scale tone
// on a bin centre adds 1.
func (a *spectrumAnalyzer) accumulate(acc []float64, iq []complex128) {
	for i, v := range iq {
		a.buf[i] = v * complex(a.window[i], 0)
	}
	out := fft.FFT(a.buf)

	half := a.n / 2
	for i := range acc {
		// fftshift: negative frequencies first
		c := out[(i+half)%a.n]
		re, im := real(c)/a.gain, imag(c)/a.gain
		acc[i] += re*re + im*im
	}
}

// powerDB converts count accumulated spectra to their average in dB, in place.
func powerDB(acc []float64, count int) []float64 {
	for i, p := range acc {
		p /= float64(count)
		if p > 0 {
			acc[i] = 10 * math.Log10(p)
		} else {
			acc[i] = silenceDB
		}
	}
	return acc
}
