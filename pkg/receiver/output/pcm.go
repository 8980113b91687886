package output

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"

	"github.com/norasector/turbine-common/types"
)

// PCMOutput writes raw little-endian float32 mono samples, suitable for
// piping into a player that reads f32le.
type PCMOutput struct {
	dest     io.Writer
	recvChan chan *types.TaggedAudioSampleFloat32
}

func NewPCMOutput(dest io.Writer) *PCMOutput {
	return &PCMOutput{
		dest:     dest,
		recvChan: make(chan *types.TaggedAudioSampleFloat32, receiveBufferLength),
	}
}

func (p *PCMOutput) Receive() chan<- *types.TaggedAudioSampleFloat32 {
	return p.recvChan
}

func (p *PCMOutput) Start(ctx context.Context) error {
	w := bufio.NewWriter(p.dest)
	defer w.Flush()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ts := <-p.recvChan:
			if err := binary.Write(w, binary.LittleEndian, ts.Audio.Data); err != nil {
				return err
			}
			if err := w.Flush(); err != nil {
				return err
			}
			samplesWritten.WithLabelValues("pcm").Add(float64(len(ts.Audio.Data)))
		}
	}
}
