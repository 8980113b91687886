package util

import "time"

// TimeOperationMicroseconds runs op and reports how long it took.
func TimeOperationMicroseconds(op func()) int64 {
	start := time.Now()
	op()
	return time.Since(start).Microseconds()
}

// RealTimeFactor compares the time spent on a block with the block's
// duration at sampleRate. Values above 1 mean the block took longer to
// process than to play.
func RealTimeFactor(elapsedMicros int64, samples, sampleRate int) float64 {
	if samples == 0 || sampleRate == 0 {
		return 0
	}
	blockMicros := float64(samples) * 1e6 / float64(sampleRate)
	return float64(elapsedMicros) / blockMicros
}
