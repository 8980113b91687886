package output

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/norasector/turbine-common/types"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/proto"

	"github.com/norasector/fmlive/pkg/receiver/config"
	"github.com/norasector/fmlive/pkg/util"
)

// OpusUDPOutput encodes the station audio to Opus and sends each frame,
// protobuf-encoded behind a little-endian u16 length, to every destination.
type OpusUDPOutput struct {
	dests      []config.OutputDestination
	sampleRate int
	streamID   int
	recvChan   chan *types.TaggedAudioSampleFloat32
	opusChan   chan *types.TaggedAudioFrameOpus
	metrics    api.WriteAPI
	logger     zerolog.Logger
}

func NewOpusUDPOutput(dests []config.OutputDestination, sampleRate, streamID int, metrics api.WriteAPI) *OpusUDPOutput {
	if metrics == nil {
		metrics = &util.MockWriteAPI{}
	}
	return &OpusUDPOutput{
		dests:      dests,
		sampleRate: sampleRate,
		streamID:   streamID,
		recvChan:   make(chan *types.TaggedAudioSampleFloat32, receiveBufferLength),
		opusChan:   make(chan *types.TaggedAudioFrameOpus, receiveBufferLength),
		metrics:    metrics,
		logger:     log.Logger.With().Str("output", "opus_udp").Logger(),
	}
}

func (s *OpusUDPOutput) Receive() chan<- *types.TaggedAudioSampleFloat32 {
	return s.recvChan
}

// EncodeFrame serializes one frame for the wire.
func EncodeFrame(frame *types.TaggedAudioFrameOpus) ([]byte, error) {
	encoded, err := proto.Marshal(frame.ToProtobuf())
	if err != nil {
		return nil, fmt.Errorf("marshaling frame: %w", err)
	}
	if len(encoded) > 0xffff {
		return nil, fmt.Errorf("frame too large: %d bytes", len(encoded))
	}

	var msgBuf bytes.Buffer
	if err := binary.Write(&msgBuf, binary.LittleEndian, uint16(len(encoded))); err != nil {
		return nil, err
	}
	msgBuf.Write(encoded)
	return msgBuf.Bytes(), nil
}

func (s *OpusUDPOutput) resolve() ([]*net.UDPAddr, error) {
	destAddrs := make([]*net.UDPAddr, 0, len(s.dests))
	for _, dest := range s.dests {
		ips, err := net.LookupIP(dest.Host)
		if err != nil {
			return nil, err
		}
		if len(ips) == 0 {
			return nil, fmt.Errorf("no IPs returned for %s", dest.Host)
		}
		destAddr := &net.UDPAddr{IP: ips[0], Port: dest.Port}
		destAddrs = append(destAddrs, destAddr)
		s.logger.Info().IPAddr("dest_ip", destAddr.IP).Int("port", dest.Port).Msg("stream output starting")
	}
	return destAddrs, nil
}

func (s *OpusUDPOutput) Start(ctx context.Context) error {
	destAddrs, err := s.resolve()
	if err != nil {
		return err
	}

	enc, err := NewOpusEncoder(s.sampleRate, types.TalkGroup{ID: s.streamID}, s.opusChan)
	if err != nil {
		return err
	}

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		conn, err := net.ListenUDP("udp", nil)
		if err != nil {
			return err
		}
		defer conn.Close()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case frame := <-s.opusChan:
				s.send(conn, destAddrs, frame)
			}
		}
	})

	eg.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Microsecond * time.Duration(usPerFrame) * 3 / 2):
				if err := enc.Flush(ctx); err != nil {
					return err
				}
			case seg := <-s.recvChan:
				if err := enc.Write(ctx, seg.Audio.Data); err != nil {
					return err
				}
			}
		}
	})

	return eg.Wait()
}

func (s *OpusUDPOutput) send(conn *net.UDPConn, destAddrs []*net.UDPAddr, frame *types.TaggedAudioFrameOpus) {
	msg, err := EncodeFrame(frame)
	if err != nil {
		s.logger.Warn().Err(err).Msg("error encoding frame")
		return
	}

	sent, dropped := 0, 0
	for _, destAddr := range destAddrs {
		if _, err := conn.WriteToUDP(msg, destAddr); err != nil {
			s.logger.Error().Err(err).Str("dest", destAddr.String()).Msg("error writing")
			dropped++
			continue
		}
		sent++
	}
	framesSent.Add(float64(sent))

	go s.metrics.WritePoint(influxdb2.NewPoint("opus.sent_frame",
		map[string]string{
			"stream_id": strconv.Itoa(s.streamID),
		},
		map[string]interface{}{
			"frame_length":   len(frame.Audio.Data),
			"encoded_length": len(msg),
			"sent":           sent,
			"dropped":        dropped,
		}, time.Now()))
}
