package receiver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fmlive"

var (
	blocksReceived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "blocks_received_total",
		Help:      "Raw sample blocks delivered by the radio.",
	})
	blocksDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "blocks_dropped_total",
		Help:      "Raw sample blocks discarded before demodulation.",
	}, []string{"reason"})
	samplesDemodulated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audio_samples_total",
		Help:      "Audio samples pushed into the session ring.",
	})
	segmentsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "output_segments_skipped_total",
		Help:      "Audio segments an output was too busy to accept.",
	})
	demodDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "demodulate_duration_seconds",
		Help:      "Time spent demodulating one block.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
	})
	realTimeFactor = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "demodulate_real_time_factor",
		Help:      "Demodulation time over block duration for the last block.",
	})
	audioLevel = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "audio_level_dbfs",
		Help:      "RMS level of the last demodulated block.",
	})
	ringAvailable = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ring_available_samples",
		Help:      "Samples buffered for the audio callback.",
	})
	ringDropped = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ring_dropped_samples",
		Help:      "Samples overwritten before the audio callback read them.",
	})
	renderUnderruns = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "render_underruns",
		Help:      "Audio callback blocks rendered as silence for lack of data.",
	})
)
