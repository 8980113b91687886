package receiver

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// levelFloor is reported for silence.
const levelFloor = -120.0

// LevelDBFS is the RMS level of pcm relative to full scale.
func LevelDBFS(pcm []float32) float64 {
	if len(pcm) == 0 {
		return levelFloor
	}
	x := make([]float64, len(pcm))
	for i, s := range pcm {
		x[i] = float64(s)
	}
	rms := math.Sqrt(floats.Dot(x, x) / float64(len(x)))
	if rms == 0 {
		return levelFloor
	}
	return math.Max(levelFloor, 20*math.Log10(rms))
}
