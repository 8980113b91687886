package rmsagc

import (
	"math"
	"testing"
)

func rms(data []float32) float64 {
	var sum float64
	for _, s := range data {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(data)))
}

func TestRMSAGCConverges(t *testing.T) {
	for _, amplitude := range []float64{0.01, 0.1, 2} {
		agc := NewRMSAGC(0.01, 0.5, 0)
		input := make([]float32, 20000)
		for i := range input {
			input[i] = float32(amplitude * math.Sin(2*math.Pi*float64(i)/48))
		}
		out := agc.Work(input)
		if got := rms(out[len(out)-4800:]); math.Abs(got-0.5) > 0.05 {
			t.Errorf("amplitude %v: settled rms = %v, want 0.5", amplitude, got)
		}
	}
}

func TestRMSAGCMaxGain(t *testing.T) {
	agc := NewRMSAGC(0.01, 0.5, 10)
	input := make([]float32, 10000)
	for i := range input {
		input[i] = 1e-4
	}
	out := agc.Work(input)
	if last := out[len(out)-1]; last > 1e-3+1e-9 {
		t.Errorf("output %v exceeds max gain", last)
	}
}
