// Package hackrf drives a HackRF over a raw usb.Transport: vendor control
// requests for tuning and gain, and the bulk receive loop.
package hackrf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/norasector/fmlive/pkg/receiver/device"
	"github.com/norasector/fmlive/pkg/usb"
	"github.com/norasector/fmlive/pkg/util"
)

// Vendor request codes.
const (
	RequestSetTransceiverMode         uint8 = 1
	RequestSampleRateSet              uint8 = 6
	RequestBasebandFilterBandwidthSet uint8 = 7
	RequestBoardIDRead                uint8 = 14
	RequestVersionStringRead          uint8 = 15
	RequestSetFreq                    uint8 = 16
	RequestAmpEnable                  uint8 = 17
	RequestBoardPartIDSerialNoRead    uint8 = 18
	RequestSetLNAGain                 uint8 = 19
	RequestSetVGAGain                 uint8 = 20
	RequestAntennaEnable              uint8 = 23
)

const (
	maxSampleRate = 20e6
	maxLNAGain    = 40
	maxVGAGain    = 62
	lnaGainStep   = 0x07
	vgaGainStep   = 0x01

	setupLNAGain    = 16
	setupVGAGain    = 16
	setupSampleRate = 2e6

	versionStringLength = 255
	partIDSerialLength  = 24
)

// ErrGainRejected is returned when the device acknowledges a gain request
// with a zero byte.
var ErrGainRejected = errors.New("device rejected gain value")

// Driver owns one HackRF for its lifetime. Every setter issues exactly one
// request (SetSampleRate issues two) and updates the cached RadioConfig only
// once the device has acknowledged it.
type Driver struct {
	transport    usb.Transport
	logger       zerolog.Logger
	filterFactor float64
	filterTable  []uint32
	transferSize int

	mu         sync.Mutex
	config     device.RadioConfig
	configured bool
}

var (
	_ device.Radio          = (*Driver)(nil)
	_ device.GainController = (*Driver)(nil)
	_ device.Describer      = (*Driver)(nil)
)

type DriverOption func(d *Driver)

func WithLogger(logger zerolog.Logger) DriverOption {
	return func(d *Driver) {
		d.logger = logger
	}
}

// WithFilterFactor overrides the anti-aliasing factor applied to the actual
// sample rate when choosing the baseband filter.
func WithFilterFactor(factor float64) DriverOption {
	return func(d *Driver) {
		d.filterFactor = factor
	}
}

// WithTransferSize sets the bulk transfer length used by StartReceiving.
func WithTransferSize(size int) DriverOption {
	return func(d *Driver) {
		d.transferSize = size
	}
}

func NewDriver(transport usb.Transport, opts ...DriverOption) *Driver {
	d := &Driver{
		transport:    transport,
		logger:       log.Logger,
		filterFactor: DefaultFilterFactor,
		filterTable:  BasebandFilterTable,
		transferSize: TransferBufferSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With().Str("device", "hackrf").Logger()
	return d
}

// Connect opens and claims the transport and runs Setup.
func Connect(transport usb.Transport, opts ...DriverOption) (*Driver, error) {
	if err := transport.Open(); err != nil {
		return nil, fmt.Errorf("opening transport: %w", err)
	}
	if err := transport.Claim(0); err != nil {
		transport.Close()
		return nil, fmt.Errorf("claiming interface: %w", err)
	}

	d := NewDriver(transport, opts...)
	if err := d.Setup(); err != nil {
		transport.Close()
		return nil, err
	}
	return d, nil
}

func (d *Driver) controlOut(op string, request uint8, value, index uint16, payload []byte) error {
	status, err := d.transport.ControlTransferOut(request, value, index, payload)
	if err != nil {
		return &device.TransferError{Op: op, Status: usb.StatusError, Err: err}
	}
	if status != usb.StatusOK {
		return &device.TransferError{Op: op, Status: status}
	}
	return nil
}

func (d *Driver) controlIn(op string, request uint8, value, index uint16, length int) ([]byte, error) {
	status, data, err := d.transport.ControlTransferIn(request, value, index, length)
	if err != nil {
		return nil, &device.TransferError{Op: op, Status: usb.StatusError, Err: err}
	}
	if status != usb.StatusOK {
		return nil, &device.TransferError{Op: op, Status: status}
	}
	return data, nil
}

// Setup resets the board and applies the default receive configuration:
// amp off, LNA 16 dB, VGA 16 dB, 2 MHz sample rate. Any failing step aborts
// the sequence and leaves the driver unconfigured.
func (d *Driver) Setup() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.configured = false

	if err := d.transport.Reset(); err != nil {
		return fmt.Errorf("setup: %w", &device.TransferError{Op: "reset", Status: usb.StatusError, Err: err})
	}
	d.config = device.RadioConfig{}

	steps := []func() error{
		func() error { return d.setAmpEnable(false) },
		func() error { return d.setLNAGain(setupLNAGain) },
		func() error { return d.setVGAGain(setupVGAGain) },
		func() error { return d.setSampleRate(setupSampleRate) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return fmt.Errorf("setup: %w", err)
		}
	}

	d.configured = true
	d.logger.Info().
		Str("sample_rate", util.MHzToString(int(d.config.SampleRateHz))).
		Uint8("lna_gain", d.config.LNAGainDB).
		Uint8("vga_gain", d.config.VGAGainDB).
		Msg("device configured")
	return nil
}

// Configured reports whether the last Setup completed.
func (d *Driver) Configured() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.configured
}

// Config returns the last acknowledged radio state.
func (d *Driver) Config() device.RadioConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.config
}

func (d *Driver) MaxSampleRate() int {
	return maxSampleRate
}

// EncodeFrequency splits hz into whole MHz and the Hz remainder, both
// little-endian u32.
func EncodeFrequency(hz uint64) [8]byte {
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(hz/1e6))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(hz%1e6))
	return buf
}

// DecodeFrequency reverses EncodeFrequency.
func DecodeFrequency(buf []byte) uint64 {
	if len(buf) < 8 {
		return 0
	}
	mhz := uint64(binary.LittleEndian.Uint32(buf[0:4]))
	rem := uint64(binary.LittleEndian.Uint32(buf[4:8]))
	return mhz*1e6 + rem
}

func (d *Driver) SetFrequency(hz uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setFrequency(hz)
}

func (d *Driver) setFrequency(hz uint64) error {
	if hz/1e6 > math.MaxUint32 {
		return &device.ConfigurationError{Op: "set frequency", Value: hz, Max: math.MaxUint32 * 1e6}
	}
	payload := EncodeFrequency(hz)
	if err := d.controlOut("set frequency", RequestSetFreq, 0, 0, payload[:]); err != nil {
		return err
	}
	d.config.FrequencyHz = hz
	d.logger.Debug().Str("frequency", util.MHzToString(int(hz))).Msg("tuned")
	return nil
}

// EncodeSampleRate packs the clock frequency and divider as little-endian
// u32 fields.
func EncodeSampleRate(freqHz uint64, divider uint32) [8]byte {
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(freqHz))
	binary.LittleEndian.PutUint32(buf[4:8], divider)
	return buf
}

// SetSampleRate programs the closest achievable rate to hz, then narrows the
// baseband filter to match. A filter failure is returned but the sample rate
// stays applied.
func (d *Driver) SetSampleRate(hz uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setSampleRate(hz)
}

func (d *Driver) setSampleRate(hz uint32) error {
	if hz == 0 || hz > maxSampleRate {
		return &device.ConfigurationError{Op: "set sample rate", Value: uint64(hz), Min: 1, Max: maxSampleRate}
	}

	freqHz, divider := ComputeSampleRateParams(float64(hz))
	payload := EncodeSampleRate(freqHz, divider)
	if err := d.controlOut("set sample rate", RequestSampleRateSet, 0, 0, payload[:]); err != nil {
		return err
	}
	d.config.SampleRateHz = uint32(freqHz)
	d.config.SampleRateDivider = uint8(divider)

	actual := float64(freqHz) / float64(divider)
	bw := SelectBasebandFilterBandwidth(BasebandFilterTarget(actual, d.filterFactor), d.filterTable)

	d.logger.Debug().
		Uint64("freq_hz", freqHz).
		Uint32("divider", divider).
		Float64("actual_rate", actual).
		Uint32("filter_bw", bw).
		Msg("sample rate set")

	return d.setBasebandFilterBandwidth(bw)
}

func (d *Driver) SetBasebandFilterBandwidth(hz uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setBasebandFilterBandwidth(hz)
}

func (d *Driver) setBasebandFilterBandwidth(hz uint32) error {
	if err := d.controlOut("set baseband filter bandwidth", RequestBasebandFilterBandwidthSet,
		uint16(hz&0xffff), uint16(hz>>16), nil); err != nil {
		return err
	}
	d.config.BasebandFilterHz = hz
	return nil
}

// SetLNAGain sets the RX IF gain, 0-40 dB in 8 dB steps. Values are floored
// to the step.
func (d *Driver) SetLNAGain(db uint8) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setLNAGain(db)
}

func (d *Driver) setLNAGain(db uint8) error {
	if db > maxLNAGain {
		return &device.ConfigurationError{Op: "set lna gain", Value: uint64(db), Max: maxLNAGain}
	}
	db &^= lnaGainStep
	if err := d.gainRequest("set lna gain", RequestSetLNAGain, db); err != nil {
		return err
	}
	d.config.LNAGainDB = db
	return nil
}

// SetVGAGain sets the RX baseband gain, 0-62 dB in 2 dB steps. Values are
// floored to the step.
func (d *Driver) SetVGAGain(db uint8) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setVGAGain(db)
}

func (d *Driver) setVGAGain(db uint8) error {
	if db > maxVGAGain {
		return &device.ConfigurationError{Op: "set vga gain", Value: uint64(db), Max: maxVGAGain}
	}
	db &^= vgaGainStep
	if err := d.gainRequest("set vga gain", RequestSetVGAGain, db); err != nil {
		return err
	}
	d.config.VGAGainDB = db
	return nil
}

// gainRequest sends db in the index field and requires a truthy one-byte
// acknowledgement.
func (d *Driver) gainRequest(op string, request uint8, db uint8) error {
	data, err := d.controlIn(op, request, 0, uint16(db), 1)
	if err != nil {
		return err
	}
	if len(data) < 1 || data[0] == 0 {
		return &device.TransferError{Op: op, Status: usb.StatusOK, Err: ErrGainRejected}
	}
	return nil
}

func boolValue(b bool) uint16 {
	if b {
		return 1
	}
	return 0
}

func (d *Driver) SetAmpEnable(enable bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setAmpEnable(enable)
}

func (d *Driver) setAmpEnable(enable bool) error {
	if err := d.controlOut("set amp enable", RequestAmpEnable, boolValue(enable), 0, nil); err != nil {
		return err
	}
	d.config.AmpEnabled = enable
	return nil
}

// SetAntennaEnable switches antenna port power.
func (d *Driver) SetAntennaEnable(enable bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.controlOut("set antenna enable", RequestAntennaEnable, boolValue(enable), 0, nil); err != nil {
		return err
	}
	d.config.AntennaEnabled = enable
	return nil
}

func (d *Driver) SetTransceiverMode(mode device.TransceiverMode) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setTransceiverMode(mode)
}

func (d *Driver) setTransceiverMode(mode device.TransceiverMode) error {
	if err := d.controlOut("set transceiver mode", RequestSetTransceiverMode, uint16(mode), 0, nil); err != nil {
		return err
	}
	d.config.Mode = mode
	d.logger.Debug().Stringer("mode", mode).Msg("transceiver mode set")
	return nil
}

// Stop turns the transceiver off. Receive loops do not do this on their own.
func (d *Driver) Stop() error {
	return d.SetTransceiverMode(device.ModeOff)
}

func (d *Driver) Close() error {
	return d.transport.Close()
}
