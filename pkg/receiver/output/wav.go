package output

import (
	"context"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/norasector/turbine-common/types"
	"github.com/rs/zerolog/log"
)

const wavBitDepth = 16

// WAVRecorder writes the station audio to a 16-bit mono WAV file. The
// header is finalized when Start returns.
type WAVRecorder struct {
	path       string
	sampleRate int
	recvChan   chan *types.TaggedAudioSampleFloat32
}

func NewWAVRecorder(path string, sampleRate int) *WAVRecorder {
	return &WAVRecorder{
		path:       path,
		sampleRate: sampleRate,
		recvChan:   make(chan *types.TaggedAudioSampleFloat32, receiveBufferLength),
	}
}

func (w *WAVRecorder) Receive() chan<- *types.TaggedAudioSampleFloat32 {
	return w.recvChan
}

// ToPCM16 scales float samples in [-1, 1] to 16-bit integers, clipping
// anything outside.
func ToPCM16(samples []float32, dst []int) []int {
	dst = dst[:0]
	for _, s := range samples {
		switch {
		case s > 1:
			s = 1
		case s < -1:
			s = -1
		}
		dst = append(dst, int(s*float32(math.MaxInt16)))
	}
	return dst
}

func (w *WAVRecorder) Start(ctx context.Context) error {
	f, err := os.Create(w.path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := wav.NewEncoder(f, w.sampleRate, wavBitDepth, 1, 1)
	defer func() {
		if err := encoder.Close(); err != nil {
			log.Error().Err(err).Str("path", w.path).Msg("error finalizing wav file")
		}
	}()

	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			SampleRate:  w.sampleRate,
			NumChannels: 1,
		},
		SourceBitDepth: wavBitDepth,
	}

	log.Info().Str("path", w.path).Int("sample_rate", w.sampleRate).Msg("recording audio")

	write := func(ts *types.TaggedAudioSampleFloat32) error {
		buf.Data = ToPCM16(ts.Audio.Data, buf.Data)
		if err := encoder.Write(buf); err != nil {
			return err
		}
		samplesWritten.WithLabelValues("wav").Add(float64(len(buf.Data)))
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			// Keep whatever was already queued.
			for {
				select {
				case ts := <-w.recvChan:
					if err := write(ts); err != nil {
						return err
					}
				default:
					return ctx.Err()
				}
			}
		case ts := <-w.recvChan:
			if err := write(ts); err != nil {
				return err
			}
		}
	}
}
