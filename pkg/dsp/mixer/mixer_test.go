package mixer

import (
	"math"
	"math/cmplx"
	"testing"
)

func TestMixerShiftsTone(t *testing.T) {
	const (
		rate = 48000.0
		tone = 3000.0
		n    = 4800
	)
	input := make([]complex64, n)
	for i := range input {
		input[i] = complex64(cmplx.Exp(complex(0, tau*tone*float64(i)/rate)))
	}

	out := NewMixer(rate, -tone).Work(input)
	for i, s := range out {
		if math.Abs(float64(real(s))-1) > 1e-3 || math.Abs(float64(imag(s))) > 1e-3 {
			t.Fatalf("sample %d = %v, want 1+0i", i, s)
		}
	}
}

func TestAliasFrequency(t *testing.T) {
	tests := []struct {
		offset, rate, want float64
	}{
		{offset: 0, rate: 250000, want: 0},
		{offset: 100000, rate: 250000, want: 100000},
		{offset: 200000, rate: 250000, want: -50000},
		{offset: -200000, rate: 250000, want: 50000},
		{offset: 500000, rate: 250000, want: 0},
	}
	for _, tt := range tests {
		if got := AliasFrequency(tt.offset, tt.rate); math.Abs(got-tt.want) > 1e-6 {
			t.Errorf("AliasFrequency(%v, %v) = %v, want %v", tt.offset, tt.rate, got, tt.want)
		}
	}
}
