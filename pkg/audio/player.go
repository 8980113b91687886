package audio

import (
	"context"
	"fmt"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultSampleRate = 48000
	DefaultBlockSize  = 128
)

// Player drives a Session's FillBlock from a PortAudio output stream.
type Player struct {
	session     *Session
	blockSize   int
	deviceIndex int
	logger      zerolog.Logger
}

type PlayerOption func(p *Player)

func WithBlockSize(n int) PlayerOption {
	return func(p *Player) {
		p.blockSize = n
	}
}

// WithDeviceIndex selects an output from portaudio.Devices(). Negative
// means the default output.
func WithDeviceIndex(i int) PlayerOption {
	return func(p *Player) {
		p.deviceIndex = i
	}
}

func WithPlayerLogger(logger zerolog.Logger) PlayerOption {
	return func(p *Player) {
		p.logger = logger
	}
}

func NewPlayer(session *Session, opts ...PlayerOption) *Player {
	p := &Player{
		session:     session,
		blockSize:   DefaultBlockSize,
		deviceIndex: -1,
		logger:      log.Logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Player) open() (*portaudio.Stream, error) {
	rate := float64(p.session.HostSampleRate())
	if p.deviceIndex < 0 {
		return portaudio.OpenDefaultStream(0, 1, rate, p.blockSize, p.session.FillBlock)
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("listing audio devices: %w", err)
	}
	if p.deviceIndex >= len(devices) {
		return nil, fmt.Errorf("invalid device index %d (max: %d)", p.deviceIndex, len(devices)-1)
	}
	dev := devices[p.deviceIndex]
	p.logger.Info().Str("audio_device", dev.Name).Msg("using audio device")

	return portaudio.OpenStream(portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: 1,
			Latency:  dev.DefaultLowOutputLatency,
		},
		SampleRate:      rate,
		FramesPerBuffer: p.blockSize,
	}, p.session.FillBlock)
}

// Run plays until ctx is done.
func (p *Player) Run(ctx context.Context) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initializing portaudio: %w", err)
	}
	defer portaudio.Terminate()

	stream, err := p.open()
	if err != nil {
		return err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("starting audio stream: %w", err)
	}
	p.logger.Info().
		Int("sample_rate", p.session.HostSampleRate()).
		Int("block_size", p.blockSize).
		Msg("audio playback started")

	<-ctx.Done()

	if err := stream.Stop(); err != nil {
		return fmt.Errorf("stopping audio stream: %w", err)
	}
	return ctx.Err()
}
