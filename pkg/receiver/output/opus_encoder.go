package output

import (
	"context"
	"time"

	"github.com/hraban/opus"
	"github.com/norasector/turbine-common/types"
)

// usPerFrame is the Opus frame length used while audio keeps arriving.
const usPerFrame int = 40e3

// validUsRates are the shorter frame lengths a flush can fall back to.
var validUsRates = []int{2.5e3, 5e3, 10e3, 20e3}

// OpusEncoder accumulates PCM and emits fixed-length Opus frames.
type OpusEncoder struct {
	sampleRate    int
	encBuf        [4096]byte
	inBuf         []float32
	encoder       *opus.Encoder
	segmentNumber int
	talkGroup     types.TalkGroup

	outputChan chan<- *types.TaggedAudioFrameOpus
}

func NewOpusEncoder(sampleRate int, talkGroup types.TalkGroup, outputChan chan<- *types.TaggedAudioFrameOpus) (*OpusEncoder, error) {
	enc, err := opus.NewEncoder(sampleRate, 1, opus.AppAudio)
	if err != nil {
		return nil, err
	}
	if err := enc.SetPacketLossPerc(20); err != nil {
		return nil, err
	}
	if err := enc.SetBitrateToAuto(); err != nil {
		return nil, err
	}
	return &OpusEncoder{
		sampleRate: sampleRate,
		talkGroup:  talkGroup,
		inBuf:      make([]float32, 0, sampleRate),
		encoder:    enc,
		outputChan: outputChan,
	}, nil
}

func (o *OpusEncoder) samplesPerFrame() int {
	return o.sampleRate * usPerFrame / 1e6
}

// Write buffers pcm and emits every complete frame.
func (o *OpusEncoder) Write(ctx context.Context, pcm []float32) error {
	o.inBuf = append(o.inBuf, pcm...)
	for len(o.inBuf) >= o.samplesPerFrame() {
		if err := o.emit(ctx, o.samplesPerFrame()); err != nil {
			return err
		}
	}
	return nil
}

// Flush encodes what is buffered using the longest frame length that fits.
// Leftovers too short for any frame are discarded.
func (o *OpusEncoder) Flush(ctx context.Context) error {
	for len(o.inBuf) > 0 {
		n := 0
		for j := len(validUsRates) - 1; j >= 0; j-- {
			if count := validUsRates[j] * o.sampleRate / 1e6; count <= len(o.inBuf) {
				n = count
				break
			}
		}
		if n == 0 {
			o.inBuf = o.inBuf[:0]
			return nil
		}
		if err := o.emit(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

func (o *OpusEncoder) emit(ctx context.Context, samples int) error {
	n, err := o.encoder.EncodeFloat32(o.inBuf[:samples], o.encBuf[:])
	if err != nil {
		return err
	}
	o.inBuf = append(o.inBuf[:0], o.inBuf[samples:]...)

	data := make([]byte, n)
	copy(data, o.encBuf[:n])

	tg := o.talkGroup
	select {
	case <-ctx.Done():
		return ctx.Err()
	case o.outputChan <- &types.TaggedAudioFrameOpus{
		Audio: &types.SegmentBinaryBytes{
			SegmentNumber: o.segmentNumber,
			Data:          data,
		},
		TalkGroup:                &tg,
		SampleLengthMicroseconds: samples * 1e6 / o.sampleRate,
		Timestamp:                time.Now().UTC(),
	}:
		o.segmentNumber++
	}
	return nil
}
