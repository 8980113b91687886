// Package wbfm demodulates broadcast FM from raw HackRF CS8 blocks to mono
// PCM at the audio host's rate.
package wbfm

import (
	"math"
	"sync"
	"time"

	"github.com/norasector/turbine-common/types"
	"github.com/racerxdl/segdsp/dsp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/norasector/fmlive/pkg/audio"
	"github.com/norasector/fmlive/pkg/dsp/agc/rmsagc"
	"github.com/norasector/fmlive/pkg/dsp/demodulators/quad"
	"github.com/norasector/fmlive/pkg/dsp/filters/fir"
	"github.com/norasector/fmlive/pkg/dsp/mixer"
	"github.com/norasector/fmlive/pkg/dsp/processor"
	"github.com/norasector/fmlive/pkg/util"
)

const (
	// IntermediateRate is the target rate after the first decimation.
	IntermediateRate = 250000
	// Deviation is the broadcast FM peak deviation.
	Deviation = 75000
	// DeemphasisTau is the 75µs de-emphasis time constant used in the
	// Americas. Europe uses 50µs.
	DeemphasisTau = 75e-6

	channelWidth   = 200000
	audioBandwidth = 15000
	dcCutoff       = 40
)

// Demodulator is a wideband FM chain implementing audio.Demodulator. The
// chain is built on the first block and rebuilt whenever the device or host
// rate changes.
type Demodulator struct {
	offset float64
	tau    float64
	agc    bool
	logger zerolog.Logger

	mu          sync.Mutex
	proc        *processor.Processor
	hostRate    int
	deviceRate  int
	segment     int
	lastMetrics map[string]interface{}
}

var _ audio.Demodulator = (*Demodulator)(nil)

type Option func(d *Demodulator)

// WithTuningOffset demodulates a station offsetHz above the hardware center
// frequency.
func WithTuningOffset(offsetHz int) Option {
	return func(d *Demodulator) {
		d.offset = float64(offsetHz)
	}
}

func WithDeemphasis(tau float64) Option {
	return func(d *Demodulator) {
		d.tau = tau
	}
}

// WithAGC levels the output with an RMS AGC stage.
func WithAGC() Option {
	return func(d *Demodulator) {
		d.agc = true
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(d *Demodulator) {
		d.logger = logger
	}
}

func New(opts ...Option) *Demodulator {
	d := &Demodulator{
		tau:    DeemphasisTau,
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decimation picks the integer factor bringing deviceRate closest to, but
// not below, IntermediateRate.
func Decimation(deviceRate int) int {
	dec := deviceRate / IntermediateRate
	if dec < 1 {
		dec = 1
	}
	return dec
}

func (d *Demodulator) build(hostRate, deviceRate int) *processor.Processor {
	dec := Decimation(deviceRate)
	if1 := float64(deviceRate) / float64(dec)
	ifRate := int(if1)

	proc := processor.NewProcessor("wbfm")

	bpfCoeffs := fir.MakeComplexBandPass(1.0,
		float64(deviceRate),
		d.offset-channelWidth/2,
		d.offset+channelWidth/2,
		if1/2,
		fir.Hamming,
	)
	proc.AddBlock(processor.NewDSPWorkerCC(
		"bandpass_decimator",
		deviceRate,
		ifRate,
		dsp.MakeDecimationCTFirFilter(dec, bpfCoeffs),
	))

	// Decimation folds the station to its alias; bring it to DC.
	alias := mixer.AliasFrequency(d.offset, if1)
	if alias != 0 {
		proc.AddBlock(processor.NewDSPWorkerCC(
			"bfo_mixer",
			ifRate,
			ifRate,
			mixer.NewMixer(if1, -alias),
		))
	}

	proc.AddBlock(processor.NewDSPWorkerCF(
		"quad_demod",
		ifRate,
		ifRate,
		quad.MakeQuadDemod(quad.GainForDeviation(if1, Deviation)),
	))

	proc.AddBlock(processor.NewDSPWorkerFF(
		"fm_deemphasis",
		ifRate,
		ifRate,
		dsp.MakeFMDeemph(float32(d.tau), float32(if1)),
	))

	proc.AddBlock(processor.NewDSPWorkerFF(
		"audio_lowpass",
		ifRate,
		ifRate,
		dsp.MakeFloatFirFilter(fir.MakeLowPass(1.0, if1, audioBandwidth, 4000, fir.Hamming)),
	))

	proc.AddBlock(processor.NewDSPWorkerFF(
		"resampler",
		ifRate,
		hostRate,
		dsp.MakeFloatResampler(127, float32(hostRate)/float32(if1)),
	))

	proc.AddBlock(processor.NewDSPWorkerFF(
		"dc_block",
		hostRate,
		hostRate,
		dsp.MakeFloatFirFilter(fir.MakeHighPass(1.0, float64(hostRate), dcCutoff, 2*dcCutoff, fir.Hamming)),
	))

	if d.agc {
		proc.AddBlock(processor.NewDSPWorkerFF(
			"agc",
			hostRate,
			hostRate,
			rmsagc.NewRMSAGC(0.001, 0.25, 20),
		))
	}

	d.logger.Info().
		Str("device_rate", util.MHzToString(deviceRate)).
		Int("decimation", dec).
		Int("intermediate_rate", ifRate).
		Float64("offset", d.offset).
		Float64("bfo_freq", alias).
		Int("host_rate", hostRate).
		Strs("blocks", proc.Blocks()).
		Msg("initializing wbfm chain")

	return proc
}

// Process demodulates one block. It returns nil when the chain fails; the
// error is logged.
func (d *Demodulator) Process(raw []byte, hostSampleRate, deviceSampleRate int) []float32 {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.proc == nil || hostSampleRate != d.hostRate || deviceSampleRate != d.deviceRate {
		d.proc = d.build(hostSampleRate, deviceSampleRate)
		d.hostRate = hostSampleRate
		d.deviceRate = deviceSampleRate
	}

	d.segment++
	start := time.Now()
	metrics := map[string]interface{}{
		"sample_length": len(raw) / 2,
		"sample_bytes":  len(raw),
	}

	seg := types.SegmentCS8Raw{
		SampleRate: deviceSampleRate,
		Data:       raw,
	}
	cmplx := seg.ToComplex64()
	cmplx.SegmentNumber = d.segment

	out, err := d.proc.ProcessComplexToFloat(cmplx, metrics)
	if err != nil {
		d.logger.Error().Err(err).Msg("wbfm chain failed")
		return nil
	}
	metrics["duration"] = time.Since(start).Microseconds()
	d.lastMetrics = metrics

	pcm := make([]float32, len(out.Data))
	copy(pcm, out.Data)
	clip(pcm)
	return pcm
}

// LastMetrics returns per-stage timings of the previous Process call.
func (d *Demodulator) LastMetrics() map[string]interface{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	ret := make(map[string]interface{}, len(d.lastMetrics))
	for k, v := range d.lastMetrics {
		ret[k] = v
	}
	return ret
}

func clip(pcm []float32) {
	for i, s := range pcm {
		pcm[i] = float32(math.Max(-1, math.Min(1, float64(s))))
	}
}
