// Package quad is a quadrature FM discriminator.
package quad

import (
	"math"

	"github.com/racerxdl/segdsp/dsp"
)

type QuadDemod struct {
	gain    float32
	history []complex64
}

// GainForDeviation scales the discriminator so that maxDeviation Hz maps to
// an output of 1.
func GainForDeviation(sampleRate, maxDeviation float64) float32 {
	return float32(sampleRate / (2 * math.Pi * maxDeviation))
}

func MakeQuadDemod(gain float32) *QuadDemod {
	return &QuadDemod{
		gain:    gain,
		history: make([]complex64, 1),
	}
}

func (f *QuadDemod) Work(data []complex64) []float32 {
	out := make([]float32, f.PredictOutputSize(len(data)))
	f.WorkBuffer(data, out)
	return out
}

// WorkBuffer outputs the phase difference between consecutive samples. The
// last input sample is carried over to the next call.
func (f *QuadDemod) WorkBuffer(input []complex64, output []float32) int {
	if len(input) == 0 {
		return 0
	}
	samples := append(f.history[:1], input...)
	tmp := dsp.MultiplyConjugate(samples[1:], samples, len(input))

	for i := range input {
		output[i] = f.gain * float32(math.Atan2(float64(imag(tmp[i])), float64(real(tmp[i]))))
	}

	f.history = append(f.history[:0], samples[len(input)])
	return len(input)
}

func (f *QuadDemod) PredictOutputSize(inputLength int) int {
	return inputLength
}
