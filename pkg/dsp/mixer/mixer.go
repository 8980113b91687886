// Package mixer shifts complex baseband by a fixed frequency.
package mixer

import (
	"math"
)

const tau = 2 * math.Pi

// Mixer multiplies its input by exp(j2π·shift·t). A negative shift moves a
// signal down in frequency.
type Mixer struct {
	sampleRate float64
	shift      float64
	phase      float64
	step       float64
}

func NewMixer(sampleRate, shiftHz float64) *Mixer {
	return &Mixer{
		sampleRate: sampleRate,
		shift:      shiftHz,
		step:       shiftHz * tau / sampleRate,
	}
}

// Shift returns the configured shift in Hz.
func (m *Mixer) Shift() float64 {
	return m.shift
}

func (m *Mixer) advance() {
	m.phase += m.step
	if m.phase > tau {
		m.phase -= tau
	} else if m.phase < -tau {
		m.phase += tau
	}
}

func (m *Mixer) WorkBuffer(input []complex64, output []complex64) int {
	for i, s := range input {
		sin, cos := math.Sincos(m.phase)
		output[i] = complex(float32(cos), float32(sin)) * s
		m.advance()
	}
	return len(input)
}

func (m *Mixer) Work(input []complex64) []complex64 {
	ret := make([]complex64, len(input))
	m.WorkBuffer(input, ret)
	return ret
}

func (m *Mixer) PredictOutputSize(inputSize int) int {
	return inputSize
}

// AliasFrequency folds offsetHz into [-rate/2, rate/2], which is where a
// signal at offsetHz lands after decimating to rate.
func AliasFrequency(offsetHz, rate float64) float64 {
	f := offsetHz/rate - math.Floor(offsetHz/rate)
	if f > 0.5 {
		f -= 1
	}
	return f * rate
}
