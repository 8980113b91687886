// Package fir designs windowed-sinc FIR taps for the segdsp filters.
package fir

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// sinc returns the ideal lowpass impulse response with cutoff fc (radians
// per sample) windowed by w, centered on the middle tap.
func sinc(fc float64, w []float64) []float64 {
	m := (len(w) - 1) / 2
	ret := make([]float64, len(w))
	for i := range ret {
		n := float64(i - m)
		if n == 0 {
			ret[i] = fc / math.Pi * w[i]
			continue
		}
		ret[i] = math.Sin(n*fc) / (n * math.Pi) * w[i]
	}
	return ret
}

func toFloat32(taps []float64) []float32 {
	ret := make([]float32, len(taps))
	for i, t := range taps {
		ret[i] = float32(t)
	}
	return ret
}

// MakeLowPass returns taps with unity-times-gain response at DC.
func MakeLowPass(gain, sampleRate, cutFrequency, transitionWidth float64, w WindowType) []float32 {
	return toFloat32(lowPass(gain, sampleRate, cutFrequency, transitionWidth, w))
}

func lowPass(gain, sampleRate, cutFrequency, transitionWidth float64, w WindowType) []float64 {
	ntaps := NumTaps(sampleRate, transitionWidth, w)
	taps := sinc(2*math.Pi*cutFrequency/sampleRate, w.Window(ntaps))
	floats.Scale(gain/floats.Sum(taps), taps)
	return taps
}

// MakeHighPass returns taps with zero response at DC and unity-times-gain
// response at Nyquist.
func MakeHighPass(gain, sampleRate, cutFrequency, transitionWidth float64, w WindowType) []float32 {
	// Spectral inversion of a lowpass with unity DC gain.
	taps := lowPass(1, sampleRate, cutFrequency, transitionWidth, w)
	floats.Scale(-1, taps)
	m := (len(taps) - 1) / 2
	taps[m]++

	nyquist := make([]float64, len(taps))
	for i := range nyquist {
		nyquist[i] = math.Cos(float64(i-m) * math.Pi)
	}
	floats.Scale(gain/floats.Dot(taps, nyquist), taps)
	return toFloat32(taps)
}

// MakeComplexBandPass shifts a lowpass of half the passband width up to the
// center of [lowCut, highCut]. Negative cut frequencies select the lower
// half of the spectrum.
func MakeComplexBandPass(gain, sampleRate, lowCut, highCut, transitionWidth float64, w WindowType) []complex64 {
	lp := lowPass(gain, sampleRate, (highCut-lowCut)/2, transitionWidth, w)
	center := 2 * math.Pi * (highCut + lowCut) / 2 / sampleRate
	m := (len(lp) - 1) / 2

	ret := make([]complex64, len(lp))
	for i, t := range lp {
		sin, cos := math.Sincos(center * float64(i-m))
		ret[i] = complex(float32(t*cos), float32(t*sin))
	}
	return ret
}
