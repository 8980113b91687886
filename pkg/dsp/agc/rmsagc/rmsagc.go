// Package rmsagc levels audio by tracking its running RMS.
package rmsagc

import (
	"math"
)

// RMSAGC is a root-mean-squared automatic gain controller.
type RMSAGC struct {
	alpha   float64
	beta    float64
	target  float64
	maxGain float64
	average float64
}

// NewRMSAGC tracks power with smoothing factor alpha and scales the output
// toward target RMS. maxGain caps amplification of near-silent input; zero
// means uncapped.
func NewRMSAGC(alpha, target, maxGain float64) *RMSAGC {
	return &RMSAGC{
		alpha:   alpha,
		beta:    1 - alpha,
		target:  target,
		maxGain: maxGain,
		average: 1.0,
	}
}

func (r *RMSAGC) PredictOutputSize(inputSize int) int {
	return inputSize
}

func (r *RMSAGC) WorkBuffer(input, output []float32) int {
	for i, s := range input {
		cur := float64(s)
		r.average = r.beta*r.average + r.alpha*cur*cur

		gain := r.target
		if r.average > 0 {
			gain = r.target / math.Sqrt(r.average)
		}
		if r.maxGain > 0 && gain > r.maxGain {
			gain = r.maxGain
		}
		output[i] = float32(gain * cur)
	}
	return len(input)
}

func (r *RMSAGC) Work(data []float32) []float32 {
	ret := make([]float32, len(data))
	r.WorkBuffer(data, ret)
	return ret
}
