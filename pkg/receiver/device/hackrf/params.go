package hackrf

import "math"

const maxDivider = 32

// DefaultFilterFactor scales the actual sample rate down to the baseband
// filter target. libhackrf uses 0.75; other hosts use 1.0.
const DefaultFilterFactor = 0.75

// BasebandFilterTable lists the MAX2837 filter bandwidths in ascending order.
var BasebandFilterTable = []uint32{
	1750000, 2500000, 3500000, 5000000, 5500000, 6000000, 7000000, 8000000,
	9000000, 10000000, 12000000, 14000000, 15000000, 20000000, 24000000, 28000000,
}

// ComputeSampleRateParams finds the clock frequency and divider (1..32)
// whose ratio best approximates targetHz. Ties keep the smaller divider and
// an exact match stops the search.
func ComputeSampleRateParams(targetHz float64) (freqHz uint64, divider uint32) {
	divider = 1
	freqHz = uint64(math.Round(targetHz))
	bestErr := math.Abs(targetHz - float64(freqHz))

	for d := uint32(1); d <= maxDivider; d++ {
		f := math.Round(targetHz * float64(d))
		e := math.Abs(targetHz - f/float64(d))
		if e < bestErr {
			bestErr = e
			divider = d
			freqHz = uint64(f)
		}
		if e == 0 {
			break
		}
	}
	return freqHz, divider
}

// SelectBasebandFilterBandwidth returns the widest table entry not above
// targetHz, or the narrowest entry when none qualifies. table must be
// ascending.
func SelectBasebandFilterBandwidth(targetHz float64, table []uint32) uint32 {
	if len(table) == 0 {
		return 0
	}
	selected := table[0]
	for _, bw := range table {
		if float64(bw) > targetHz {
			break
		}
		selected = bw
	}
	return selected
}

// BasebandFilterTarget is the anti-aliasing filter target for a sample rate.
func BasebandFilterTarget(actualRate, factor float64) float64 {
	return factor * actualRate
}
