// Package libhackrf drives a HackRF through the vendor C library instead of
// the raw USB control protocol. It is the fallback for hosts where gousb
// cannot claim the device.
package libhackrf

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samuel/go-hackrf/hackrf"

	"github.com/norasector/fmlive/pkg/receiver/device"
	hackrfproto "github.com/norasector/fmlive/pkg/receiver/device/hackrf"
)

const (
	maxSampleRate = 20e6
	maxLNAGain    = 40
	maxVGAGain    = 62
)

// libDevice is the slice of *hackrf.Device this backend drives.
type libDevice interface {
	SetFreq(freqHz uint64) error
	SetSampleRateManual(freqHz, divider int) error
	SetBasebandFilterBandwidth(hz int) error
	SetAmpEnable(value bool) error
	SetLNAGain(value int) error
	SetVGAGain(value int) error
	SetAntennaEnable(enabled bool) error
	StartRX(cb hackrf.Callback) error
	StopRX() error
	Close() error
}

type HackRFDevice struct {
	device libDevice
	exit   func() error
	logger zerolog.Logger

	mu     sync.Mutex
	config device.RadioConfig

	recordLocation string
	outputFile     *os.File
}

var (
	_ device.Radio          = (*HackRFDevice)(nil)
	_ device.GainController = (*HackRFDevice)(nil)
)

type Option func(h *HackRFDevice)

func WithLogger(logger zerolog.Logger) Option {
	return func(h *HackRFDevice) {
		h.logger = logger
	}
}

// WithRecording tees every received block to a raw CS8 capture at path.
// The capture can be played back through usb.ReplayTransport.
func WithRecording(path string) Option {
	return func(h *HackRFDevice) {
		h.recordLocation = path
	}
}

func NewHackRFDevice(opts ...Option) (*HackRFDevice, error) {
	h := &HackRFDevice{logger: log.Logger, exit: hackrf.Exit}
	for _, opt := range opts {
		opt(h)
	}

	if err := hackrf.Init(); err != nil {
		return nil, fmt.Errorf("initializing libhackrf: %w", err)
	}

	dev, err := hackrf.Open()
	if err != nil {
		hackrf.Exit()
		return nil, fmt.Errorf("opening hackrf: %w", err)
	}
	h.device = dev

	if h.recordLocation != "" {
		outFile, err := os.Create(h.recordLocation)
		if err != nil {
			dev.Close()
			hackrf.Exit()
			return nil, err
		}
		h.outputFile = outFile
	}

	h.logger = h.logger.With().Str("device", "libhackrf").Logger()
	return h, nil
}

func (h *HackRFDevice) MaxSampleRate() int {
	return maxSampleRate
}

func (h *HackRFDevice) Config() device.RadioConfig {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.config
}

func transferError(op string, err error) error {
	return &device.TransferError{Op: op, Err: err}
}

// Setup applies the same defaults as the raw protocol driver.
func (h *HackRFDevice) Setup() error {
	steps := []func() error{
		func() error { return h.SetAmpEnable(false) },
		func() error { return h.SetLNAGain(16) },
		func() error { return h.SetVGAGain(16) },
		func() error { return h.SetSampleRate(2e6) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return fmt.Errorf("setup: %w", err)
		}
	}
	return nil
}

func (h *HackRFDevice) SetFrequency(hz uint64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.device.SetFreq(hz); err != nil {
		return transferError("set frequency", err)
	}
	h.config.FrequencyHz = hz
	return nil
}

func (h *HackRFDevice) SetSampleRate(hz uint32) error {
	if hz == 0 || hz > maxSampleRate {
		return &device.ConfigurationError{Op: "set sample rate", Value: uint64(hz), Min: 1, Max: maxSampleRate}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	freqHz, divider := hackrfproto.ComputeSampleRateParams(float64(hz))
	if err := h.device.SetSampleRateManual(int(freqHz), int(divider)); err != nil {
		return transferError("set sample rate", err)
	}
	h.config.SampleRateHz = uint32(freqHz)
	h.config.SampleRateDivider = uint8(divider)

	target := hackrfproto.BasebandFilterTarget(h.config.ActualSampleRate(), hackrfproto.DefaultFilterFactor)
	bw := hackrfproto.SelectBasebandFilterBandwidth(target, hackrfproto.BasebandFilterTable)
	if err := h.device.SetBasebandFilterBandwidth(int(bw)); err != nil {
		return transferError("set baseband filter bandwidth", err)
	}
	h.config.BasebandFilterHz = bw
	return nil
}

func (h *HackRFDevice) SetLNAGain(db uint8) error {
	if db > maxLNAGain {
		return &device.ConfigurationError{Op: "set lna gain", Value: uint64(db), Max: maxLNAGain}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	db &^= 0x07
	if err := h.device.SetLNAGain(int(db)); err != nil {
		return transferError("set lna gain", err)
	}
	h.config.LNAGainDB = db
	return nil
}

func (h *HackRFDevice) SetVGAGain(db uint8) error {
	if db > maxVGAGain {
		return &device.ConfigurationError{Op: "set vga gain", Value: uint64(db), Max: maxVGAGain}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	db &^= 0x01
	if err := h.device.SetVGAGain(int(db)); err != nil {
		return transferError("set vga gain", err)
	}
	h.config.VGAGainDB = db
	return nil
}

func (h *HackRFDevice) SetAmpEnable(enable bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.device.SetAmpEnable(enable); err != nil {
		return transferError("set amp enable", err)
	}
	h.config.AmpEnabled = enable
	return nil
}

func (h *HackRFDevice) SetAntennaEnable(enable bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.device.SetAntennaEnable(enable); err != nil {
		return transferError("set antenna enable", err)
	}
	h.config.AntennaEnabled = enable
	return nil
}

// StartReceiving starts the library's RX thread and blocks until ctx is done
// or the sink fails. Blocks arrive on the library thread; sink is called
// there, one block at a time.
func (h *HackRFDevice) StartReceiving(ctx context.Context, sink device.Sink) error {
	var (
		blocks  int
		errOnce sync.Once
		errCh   = make(chan error, 1)
	)
	fail := func(err error) {
		errOnce.Do(func() { errCh <- err })
	}

	callback := func(buf []byte) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if h.outputFile != nil {
			if _, err := h.outputFile.Write(buf); err != nil {
				fail(&device.StreamError{Blocks: blocks, Err: fmt.Errorf("recording: %w", err)})
				return err
			}
		}
		blocks++
		if err := sink(buf); err != nil {
			fail(&device.StreamError{Blocks: blocks, Err: fmt.Errorf("sink: %w", err)})
			return err
		}
		return nil
	}

	if err := h.device.StartRX(callback); err != nil {
		return transferError("start rx", err)
	}
	h.mu.Lock()
	h.config.Mode = device.ModeReceive
	h.mu.Unlock()
	h.logger.Info().Str("record", h.recordLocation).Msg("receiving")

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (h *HackRFDevice) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.device.StopRX(); err != nil {
		return transferError("stop rx", err)
	}
	h.config.Mode = device.ModeOff
	return nil
}

func (h *HackRFDevice) Close() error {
	if h.outputFile != nil {
		defer h.outputFile.Close()
	}
	err := h.device.Close()
	if h.exit != nil {
		h.exit()
	}
	return err
}
