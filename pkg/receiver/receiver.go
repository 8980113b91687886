// Package receiver ties a radio's receive loop to the demodulator, the audio
// session ring and the network and file outputs.
package receiver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/norasector/turbine-common/types"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/norasector/fmlive/pkg/audio"
	"github.com/norasector/fmlive/pkg/receiver/device"
	"github.com/norasector/fmlive/pkg/receiver/output"
	"github.com/norasector/fmlive/pkg/util"
)

const (
	blockBacklog        = 4
	statsReportInterval = time.Second
)

// Receiver runs one station: raw blocks from the radio are copied onto a
// short backlog, demodulated into the session ring and fanned out to the
// outputs. A full backlog loses the block rather than stalling the radio.
type Receiver struct {
	radio      device.Radio
	session    *audio.Session
	sampleRate int
	streamID   int
	outputs    []output.AudioOutput
	writeAPI   api.WriteAPI
	logger     zerolog.Logger

	blockChan chan []byte

	blocks          atomic.Uint64
	backlogDrops    atomic.Uint64
	notReadyDrops   atomic.Uint64
	skippedSegments atomic.Uint64

	mu     sync.Mutex
	cancel context.CancelFunc
}

type ReceiverOption func(r *Receiver) error

func WithLogger(logger zerolog.Logger) ReceiverOption {
	return func(r *Receiver) error {
		r.logger = logger
		return nil
	}
}

func WithInfluxDB(writeAPI api.WriteAPI) ReceiverOption {
	return func(r *Receiver) error {
		if writeAPI == nil {
			return errors.New("nil influx write api")
		}
		r.writeAPI = writeAPI
		return nil
	}
}

func WithOutputs(outputs ...output.AudioOutput) ReceiverOption {
	return func(r *Receiver) error {
		r.outputs = append(r.outputs, outputs...)
		return nil
	}
}

// WithStreamID sets the talk group ID the audio segments carry.
func WithStreamID(id int) ReceiverOption {
	return func(r *Receiver) error {
		r.streamID = id
		return nil
	}
}

// NewReceiver checks sampleRate against the radio before anything runs.
// The radio must already be tuned and set to sampleRate.
func NewReceiver(radio device.Radio, session *audio.Session, sampleRate int, opts ...ReceiverOption) (*Receiver, error) {
	r := &Receiver{
		radio:      radio,
		session:    session,
		sampleRate: sampleRate,
		streamID:   1,
		writeAPI:   &util.MockWriteAPI{}, // overwritten with option
		logger:     log.Logger,
		blockChan:  make(chan []byte, blockBacklog),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	if radio == nil || session == nil {
		return nil, errors.New("must specify radio and audio session")
	}
	if sampleRate <= 0 || sampleRate > radio.MaxSampleRate() {
		return nil, fmt.Errorf("sample rate %d outside (0, %d]", sampleRate, radio.MaxSampleRate())
	}
	r.logger = r.logger.With().Str("session_id", session.ID()).Logger()
	return r, nil
}

// Start blocks until ctx is done or any part of the pipeline fails. The
// radio is left in receive mode; Stop turns it off.
func (r *Receiver) Start(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	defer cancel()

	eg.Go(func() error {
		return r.radio.StartReceiving(ctx, r.sink(ctx))
	})

	eg.Go(func() error {
		return r.demodulate(ctx)
	})

	eg.Go(func() error {
		return r.reportStats(ctx)
	})

	for _, out := range r.outputs {
		thisOutput := out
		eg.Go(func() error {
			return thisOutput.Start(ctx)
		})
	}

	r.logger.Info().
		Str("frequency", util.MHzToString(r.frequency())).
		Str("sample_rate", util.MHzToString(r.sampleRate)).
		Int("outputs", len(r.outputs)).
		Msg("starting")

	return eg.Wait()
}

func (r *Receiver) Stop() error {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()
	return r.radio.Stop()
}

// sink copies each block since the radio reuses or discards it on return.
func (r *Receiver) sink(ctx context.Context) device.Sink {
	return func(block []byte) error {
		r.blocks.Add(1)
		blocksReceived.Inc()

		buf := make([]byte, len(block))
		copy(buf, block)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case r.blockChan <- buf:
		default:
			r.backlogDrops.Add(1)
			blocksDropped.WithLabelValues("backlog").Inc()
		}
		return nil
	}
}

func (r *Receiver) demodulate(ctx context.Context) error {
	segNum := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case block := <-r.blockChan:
			var pcm []float32
			var err error
			elapsed := util.TimeOperationMicroseconds(func() {
				pcm, err = r.session.Push(block, r.sampleRate)
			})
			if errors.Is(err, audio.ErrNotReady) {
				r.notReadyDrops.Add(1)
				blocksDropped.WithLabelValues("not_ready").Inc()
				r.logger.Debug().Msg("dropping block, demodulator not attached")
				continue
			}
			if err != nil {
				return err
			}
			demodDuration.Observe(float64(elapsed) / 1e6)
			// Two bytes per IQ sample.
			realTimeFactor.Set(util.RealTimeFactor(elapsed, len(block)/2, r.sampleRate))
			if len(pcm) == 0 {
				continue
			}
			segNum++
			samplesDemodulated.Add(float64(len(pcm)))
			r.fanOut(segNum, pcm)
		}
	}
}

func (r *Receiver) fanOut(segNum int, pcm []float32) {
	freq := r.frequency()
	buf := &types.TaggedAudioSampleFloat32{
		TalkGroup: &types.TalkGroup{ID: r.streamID},
		Audio: &types.SegmentFloat32{
			SegmentNumber: segNum,
			Data:          pcm,
			Frequency:     freq,
		},
	}

	skippedOutputs := 0
	for _, out := range r.outputs {
		select {
		case out.Receive() <- buf:
			// Outputs that fall behind lose segments.
		default:
			skippedOutputs++
		}
	}
	if skippedOutputs > 0 {
		r.skippedSegments.Add(uint64(skippedOutputs))
		segmentsSkipped.Add(float64(skippedOutputs))
	}

	level := LevelDBFS(pcm)
	audioLevel.Set(level)

	go r.writeAPI.WritePoint(influxdb2.NewPoint("receiver.audio.output",
		map[string]string{
			"frequency": util.MHzToString(freq),
			"stream_id": strconv.Itoa(r.streamID),
		},
		map[string]interface{}{
			"samples_written": len(pcm),
			"bytes_written":   len(pcm) * 4,
			"skipped_outputs": skippedOutputs,
			"level_dbfs":      level,
		}, time.Now()))
}

func (r *Receiver) reportStats(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(statsReportInterval):
			s := r.session.Stats()
			ringAvailable.Set(float64(s.Available))
			ringDropped.Set(float64(s.Dropped))
			renderUnderruns.Set(float64(s.Underruns))

			go r.writeAPI.WritePoint(influxdb2.NewPoint("receiver.audio.session",
				map[string]string{
					"session_id": s.ID,
					"state":      s.State,
				},
				map[string]interface{}{
					"pushed":         int64(s.Pushed),
					"dropped":        int64(s.Dropped),
					"underruns":      int64(s.Underruns),
					"rendered":       int64(s.Rendered),
					"available":      int64(s.Available),
					"blocks":         int64(r.blocks.Load()),
					"backlog_drops":  int64(r.backlogDrops.Load()),
					"not_ready_drop": int64(r.notReadyDrops.Load()),
				}, time.Now()))
		}
	}
}

func (r *Receiver) frequency() int {
	if d, ok := r.radio.(device.Describer); ok {
		return int(d.Config().FrequencyHz)
	}
	return 0
}

// Stats counts blocks at the radio/demodulator boundary.
type Stats struct {
	Blocks          uint64      `json:"blocks"`
	BacklogDrops    uint64      `json:"backlog_drops"`
	NotReadyDrops   uint64      `json:"not_ready_drops"`
	SkippedSegments uint64      `json:"skipped_segments"`
	Session         audio.Stats `json:"session"`
}

func (r *Receiver) Stats() Stats {
	return Stats{
		Blocks:          r.blocks.Load(),
		BacklogDrops:    r.backlogDrops.Load(),
		NotReadyDrops:   r.notReadyDrops.Load(),
		SkippedSegments: r.skippedSegments.Load(),
		Session:         r.session.Stats(),
	}
}
