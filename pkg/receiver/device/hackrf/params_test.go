package hackrf

import (
	"math"
	"testing"
)

func TestComputeSampleRateParams(t *testing.T) {
	tests := []struct {
		name        string
		target      float64
		wantFreq    uint64
		wantDivider uint32
	}{
		{name: "integer rate", target: 2e6, wantFreq: 2000000, wantDivider: 1},
		{name: "max rate", target: 20e6, wantFreq: 20000000, wantDivider: 1},
		{name: "fractional third", target: 10e6 / 3, wantFreq: 10000000, wantDivider: 3},
		{name: "half hertz", target: 8000000.5, wantFreq: 16000001, wantDivider: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			freq, div := ComputeSampleRateParams(tt.target)
			if freq != tt.wantFreq || div != tt.wantDivider {
				t.Errorf("ComputeSampleRateParams(%f) = (%d, %d), want (%d, %d)", tt.target, freq, div, tt.wantFreq, tt.wantDivider)
			}
		})
	}
}

// bestDivider searches every divider and returns the smallest one reaching
// the minimum approximation error.
func bestDivider(target float64) (uint32, float64) {
	best, bestErr := uint32(0), math.Inf(1)
	for d := uint32(1); d <= maxDivider; d++ {
		e := math.Abs(target - math.Round(target*float64(d))/float64(d))
		if e < bestErr {
			best, bestErr = d, e
		}
	}
	return best, bestErr
}

func TestComputeSampleRateParamsMinimal(t *testing.T) {
	var targets []float64
	for target := 1e6; target <= 20e6; target += 333333.3 {
		targets = append(targets, target)
	}
	for k := 1.0; k < 40; k++ {
		targets = append(targets, 3e6+k/41, 12.5e6+k/7)
	}

	for _, target := range targets {
		freq, div := ComputeSampleRateParams(target)
		if div < 1 || div > maxDivider {
			t.Fatalf("divider %d out of range for %f", div, target)
		}
		got := math.Abs(target - float64(freq)/float64(div))
		wantDiv, wantErr := bestDivider(target)
		if got != wantErr {
			t.Errorf("target %f: error %g, minimum over dividers is %g", target, got, wantErr)
		}
		if div != wantDiv {
			t.Errorf("target %f: divider %d, smallest minimal divider is %d", target, div, wantDiv)
		}
	}
}

func TestComputeSampleRateParamsTieKeepsSmallestDivider(t *testing.T) {
	tests := []struct {
		name        string
		target      float64
		wantDivider uint32
	}{
		// Exact at 4, 8, 12 ... 32.
		{name: "quarter hertz", target: 4000000.25, wantDivider: 4},
		// Exact at 3, 6, 9 ... 30.
		{name: "third of ten megahertz", target: 10e6 / 3, wantDivider: 3},
		// Exact at every divider.
		{name: "integer", target: 5e6, wantDivider: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, div := ComputeSampleRateParams(tt.target); div != tt.wantDivider {
				t.Errorf("divider = %d, want %d", div, tt.wantDivider)
			}
		})
	}
}

func TestSelectBasebandFilterBandwidth(t *testing.T) {
	tests := []struct {
		target float64
		want   uint32
	}{
		{target: 1500000, want: 1750000},
		{target: 1750000, want: 1750000},
		{target: 2e6 * DefaultFilterFactor, want: 1750000},
		{target: 7500000, want: 7000000},
		{target: 10e6 * DefaultFilterFactor, want: 7000000},
		{target: 20e6 * DefaultFilterFactor, want: 15000000},
		{target: 30000000, want: 28000000},
	}
	for _, tt := range tests {
		got := SelectBasebandFilterBandwidth(tt.target, BasebandFilterTable)
		if got != tt.want {
			t.Errorf("SelectBasebandFilterBandwidth(%f) = %d, want %d", tt.target, got, tt.want)
		}
	}

	if got := SelectBasebandFilterBandwidth(1e6, nil); got != 0 {
		t.Errorf("empty table: got %d", got)
	}
}

func TestSelectBasebandFilterBandwidthInTable(t *testing.T) {
	for target := 0.0; target < 40e6; target += 123456 {
		got := SelectBasebandFilterBandwidth(target, BasebandFilterTable)
		found := false
		for _, bw := range BasebandFilterTable {
			if bw == got {
				found = true
			}
		}
		if !found {
			t.Fatalf("target %f selected %d not in table", target, got)
		}
		if got != BasebandFilterTable[0] && float64(got) > target {
			t.Fatalf("target %f selected %d above target", target, got)
		}
	}
}

func TestSelectBasebandFilterBandwidthMonotonic(t *testing.T) {
	var prev uint32
	for target := 0.0; target < 40e6; target += 25000 {
		got := SelectBasebandFilterBandwidth(target, BasebandFilterTable)
		if got < prev {
			t.Fatalf("target %f selected %d, below %d selected for a smaller target", target, got, prev)
		}
		prev = got
	}
}
