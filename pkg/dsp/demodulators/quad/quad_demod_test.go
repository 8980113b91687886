package quad

import (
	"math"
	"math/cmplx"
	"testing"
)

func TestQuadDemodConstantTone(t *testing.T) {
	const (
		rate      = 250000.0
		deviation = 75000.0
	)
	tests := []struct {
		name string
		freq float64
		want float32
	}{
		{name: "full positive deviation", freq: deviation, want: 1},
		{name: "half negative deviation", freq: -deviation / 2, want: -0.5},
		{name: "carrier", freq: 0, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := MakeQuadDemod(GainForDeviation(rate, deviation))
			input := make([]complex64, 1000)
			for i := range input {
				input[i] = complex64(cmplx.Exp(complex(0, 2*math.Pi*tt.freq*float64(i)/rate)))
			}

			// Split across two calls to exercise the carried sample.
			out := append(q.Work(input[:500]), q.Work(input[500:])...)
			for i := 1; i < len(out); i++ {
				if math.Abs(float64(out[i]-tt.want)) > 1e-3 {
					t.Fatalf("out[%d] = %v, want %v", i, out[i], tt.want)
				}
			}
		})
	}
}
