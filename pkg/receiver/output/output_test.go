package output

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/norasector/turbine-common/types"
)

func segment(n int, data ...float32) *types.TaggedAudioSampleFloat32 {
	return &types.TaggedAudioSampleFloat32{
		TalkGroup: &types.TalkGroup{ID: 1},
		Audio:     &types.SegmentFloat32{SegmentNumber: n, Data: data},
	}
}

func TestToPCM16(t *testing.T) {
	got := ToPCM16([]float32{0, 1, -1, 0.5, 2, -3}, nil)
	want := []int{0, math.MaxInt16, -math.MaxInt16, math.MaxInt16 / 2, math.MaxInt16, -math.MaxInt16}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestPCMOutput(t *testing.T) {
	pr, pw := io.Pipe()
	out := NewPCMOutput(pw)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- out.Start(ctx) }()

	out.Receive() <- segment(0, 0.25, -0.5)

	got := make([]float32, 2)
	if err := binary.Read(pr, binary.LittleEndian, got); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []float32{0.25, -0.5}) {
		t.Errorf("got %v", got)
	}

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Start returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestWAVRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	rec := NewWAVRecorder(path, 48000)

	rec.Receive() <- segment(0, 0, 0.5, -0.5, 1)
	rec.Receive() <- segment(1, 0.25, -0.25)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := rec.Start(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Start returned %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		t.Fatal("not a valid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatal(err)
	}
	if dec.SampleRate != 48000 || dec.NumChans != 1 || dec.BitDepth != 16 {
		t.Errorf("header = %d Hz, %d ch, %d bit", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}
	want := ToPCM16([]float32{0, 0.5, -0.5, 1, 0.25, -0.25}, nil)
	if !reflect.DeepEqual(buf.Data, want) {
		t.Errorf("samples = %v, want %v", buf.Data, want)
	}
}

func TestEncodeFrame(t *testing.T) {
	frame := &types.TaggedAudioFrameOpus{
		Audio: &types.SegmentBinaryBytes{
			SegmentNumber: 3,
			Data:          []byte{1, 2, 3, 4},
		},
		TalkGroup:                &types.TalkGroup{ID: 7},
		SampleLengthMicroseconds: 40000,
		Timestamp:                time.Unix(1700000000, 0).UTC(),
	}
	msg, err := EncodeFrame(frame)
	if err != nil {
		t.Fatal(err)
	}
	if len(msg) < 3 {
		t.Fatalf("message too short: %d bytes", len(msg))
	}
	n := binary.LittleEndian.Uint16(msg[:2])
	if int(n) != len(msg)-2 {
		t.Errorf("length prefix %d, payload %d", n, len(msg)-2)
	}
	if !bytes.Contains(msg[2:], []byte{1, 2, 3, 4}) {
		t.Error("payload does not carry the opus data")
	}
}

func TestOpusEncoderFrames(t *testing.T) {
	frames := make(chan *types.TaggedAudioFrameOpus, 16)
	enc, err := NewOpusEncoder(48000, types.TalkGroup{ID: 9}, frames)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	// 1.5 frames of 40ms at 48kHz: one full frame now, the rest on flush.
	pcm := make([]float32, 2880)
	for i := range pcm {
		pcm[i] = float32(math.Sin(2 * math.Pi * 440 * float64(i) / 48000))
	}
	if err := enc.Write(ctx, pcm); err != nil {
		t.Fatal(err)
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames after write, want 1", len(frames))
	}
	first := <-frames
	if first.SampleLengthMicroseconds != 40000 || first.TalkGroup.ID != 9 || first.Audio.SegmentNumber != 0 {
		t.Errorf("first frame = %+v", first)
	}

	if err := enc.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	var lengths []int
	for len(frames) > 0 {
		lengths = append(lengths, (<-frames).SampleLengthMicroseconds)
	}
	if !reflect.DeepEqual(lengths, []int{20000}) {
		t.Errorf("flush frame lengths = %v", lengths)
	}
}
