package fir

import (
	"fmt"
	"math"
)

type WindowType int

const (
	Hamming WindowType = iota
	Hann
	Blackman
)

func (w WindowType) String() string {
	switch w {
	case Hamming:
		return "hamming"
	case Hann:
		return "hann"
	case Blackman:
		return "blackman"
	default:
		return fmt.Sprintf("window(%d)", int(w))
	}
}

// maxAttenuation is the stopband attenuation in dB each window reaches,
// used to size filters.
func (w WindowType) maxAttenuation() float64 {
	switch w {
	case Hann:
		return 44
	case Blackman:
		return 74
	default:
		return 53
	}
}

// Window returns ntaps coefficients of w.
func (w WindowType) Window(ntaps int) []float64 {
	switch w {
	case Hann:
		return cosineWindow(ntaps, 0.5, 0.5, 0)
	case Blackman:
		return cosineWindow(ntaps, 0.42, 0.5, 0.08)
	default:
		return cosineWindow(ntaps, 0.54, 0.46, 0)
	}
}

// cosineWindow evaluates c0 - c1 cos(2πn/M) + c2 cos(4πn/M).
func cosineWindow(ntaps int, c0, c1, c2 float64) []float64 {
	ret := make([]float64, ntaps)
	if ntaps == 1 {
		ret[0] = 1
		return ret
	}
	m := float64(ntaps - 1)
	for i := range ret {
		fi := float64(i)
		ret[i] = c0 - c1*math.Cos(2*math.Pi*fi/m) + c2*math.Cos(4*math.Pi*fi/m)
	}
	return ret
}

// NumTaps sizes a filter so that a transition band of transitionWidth Hz is
// reached with the attenuation of w. The result is always odd.
func NumTaps(sampleRate, transitionWidth float64, w WindowType) int {
	ntaps := int(w.maxAttenuation() * sampleRate / (22.0 * transitionWidth))
	return ntaps | 1
}
