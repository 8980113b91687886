package util

import (
	"fmt"
	"math"
)

// MHzToString formats hz for logs, e.g. 90.700 MHz.
func MHzToString(hz int) string {
	return fmt.Sprintf("%.3f MHz", float64(hz)/1e6)
}

// FrequencyRange returns the lowest and highest of freqs.
func FrequencyRange(freqs ...int) (low, high int) {
	low = math.MaxInt
	high = math.MinInt

	for _, freq := range freqs {
		if freq < low {
			low = freq
		}
		if freq > high {
			high = freq
		}
	}

	return
}

// TuningOffset is the distance from the hardware center to the wanted
// station. Positive means the station sits above the center.
func TuningOffset(center, station int) int {
	return station - center
}
