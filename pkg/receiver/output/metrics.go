package output

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fmlive",
		Subsystem: "output",
		Name:      "opus_frames_sent_total",
		Help:      "Opus frames written to UDP destinations.",
	})
	samplesWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fmlive",
		Subsystem: "output",
		Name:      "samples_written_total",
		Help:      "PCM samples written to file outputs.",
	}, []string{"output"})
)
