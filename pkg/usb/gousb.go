package usb

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/gousb"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	controlVendorOut = gousb.ControlOut | gousb.ControlVendor | gousb.ControlDevice
	controlVendorIn  = gousb.ControlIn | gousb.ControlVendor | gousb.ControlDevice

	defaultConfiguration  = 1
	defaultControlTimeout = time.Second
)

// GousbTransport talks to the first attached device matching one of its IDs
// through libusb.
type GousbTransport struct {
	ids            []ID
	controlTimeout time.Duration
	logger         zerolog.Logger

	mu        sync.Mutex
	ctx       *gousb.Context
	dev       *gousb.Device
	cfg       *gousb.Config
	intf      *gousb.Interface
	endpoints map[uint8]*gousb.InEndpoint
	matched   ID
	claimed   int
}

type GousbOption func(t *GousbTransport)

func WithControlTimeout(timeout time.Duration) GousbOption {
	return func(t *GousbTransport) {
		t.controlTimeout = timeout
	}
}

func WithLogger(logger zerolog.Logger) GousbOption {
	return func(t *GousbTransport) {
		t.logger = logger
	}
}

func NewGousbTransport(ids []ID, opts ...GousbOption) *GousbTransport {
	t := &GousbTransport{
		ids:            ids,
		controlTimeout: defaultControlTimeout,
		logger:         log.Logger,
		endpoints:      make(map[uint8]*gousb.InEndpoint),
		claimed:        -1,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Matched returns the vendor/product pair of the opened device.
func (t *GousbTransport) Matched() ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.matched
}

func (t *GousbTransport) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.dev != nil {
		return nil
	}

	ctx := gousb.NewContext()
	opened := false
	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if opened {
			return false
		}
		for _, id := range t.ids {
			if uint16(desc.Vendor) == id.Vendor && uint16(desc.Product) == id.Product {
				opened = true
				return true
			}
		}
		return false
	})
	if err != nil {
		for _, d := range devs {
			d.Close()
		}
		ctx.Close()
		return fmt.Errorf("enumerating usb devices: %w", err)
	}
	if len(devs) == 0 {
		ctx.Close()
		return fmt.Errorf("no supported device attached (looked for %v)", t.ids)
	}

	dev := devs[0]
	if err := dev.SetAutoDetach(true); err != nil {
		t.logger.Warn().Err(err).Msg("could not enable kernel driver auto-detach")
	}
	dev.ControlTimeout = t.controlTimeout

	t.ctx = ctx
	t.dev = dev
	t.matched = ID{Vendor: uint16(dev.Desc.Vendor), Product: uint16(dev.Desc.Product)}

	t.logger.Info().Str("usb_id", t.matched.String()).Msg("opened usb device")
	return nil
}

func (t *GousbTransport) Claim(iface int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.dev == nil {
		return errors.New("claim before open")
	}
	return t.claimLocked(iface)
}

func (t *GousbTransport) claimLocked(iface int) error {
	cfg, err := t.dev.Config(defaultConfiguration)
	if err != nil {
		return fmt.Errorf("selecting configuration %d: %w", defaultConfiguration, err)
	}
	intf, err := cfg.Interface(iface, 0)
	if err != nil {
		cfg.Close()
		return fmt.Errorf("claiming interface %d: %w", iface, err)
	}
	t.cfg = cfg
	t.intf = intf
	t.claimed = iface
	return nil
}

// releaseLocked drops the claimed interface and configuration. The claimed
// index is kept so the interface can be claimed again.
func (t *GousbTransport) releaseLocked() error {
	if t.intf != nil {
		t.intf.Close()
		t.intf = nil
	}
	t.endpoints = make(map[uint8]*gousb.InEndpoint)
	if t.cfg != nil {
		cfg := t.cfg
		t.cfg = nil
		return cfg.Close()
	}
	return nil
}

func (t *GousbTransport) ControlTransferOut(request uint8, value, index uint16, payload []byte) (Status, error) {
	dev, err := t.device()
	if err != nil {
		return StatusError, err
	}
	if _, err := dev.Control(controlVendorOut, request, value, index, payload); err != nil {
		return statusFor(err)
	}
	return StatusOK, nil
}

func (t *GousbTransport) ControlTransferIn(request uint8, value, index uint16, length int) (Status, []byte, error) {
	dev, err := t.device()
	if err != nil {
		return StatusError, nil, err
	}
	buf := make([]byte, length)
	n, err := dev.Control(controlVendorIn, request, value, index, buf)
	if err != nil {
		status, err := statusFor(err)
		return status, nil, err
	}
	return StatusOK, buf[:n], nil
}

func (t *GousbTransport) BulkTransferIn(endpoint uint8, length int) (Status, []byte, error) {
	ep, err := t.inEndpoint(endpoint)
	if err != nil {
		return StatusError, nil, err
	}
	buf := make([]byte, length)
	n, err := ep.Read(buf)
	if err != nil {
		status, err := statusFor(err)
		return status, nil, err
	}
	return StatusOK, buf[:n], nil
}

// Reset performs a USB port reset. libusb refuses to reset a device with an
// active configuration, so a claimed interface is released first and
// claimed again afterwards.
func (t *GousbTransport) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.dev == nil {
		return errors.New("transport not open")
	}
	claimed := t.claimed
	return resetSteps{
		release: t.releaseLocked,
		reset:   t.dev.Reset,
		reclaim: func() error {
			if claimed < 0 {
				return nil
			}
			return t.claimLocked(claimed)
		},
	}.run()
}

// resetSteps orders a reset around a claimed configuration.
type resetSteps struct {
	release func() error
	reset   func() error
	reclaim func() error
}

func (s resetSteps) run() error {
	if err := s.release(); err != nil {
		return fmt.Errorf("releasing configuration before reset: %w", err)
	}
	if err := s.reset(); err != nil {
		return fmt.Errorf("resetting device: %w", err)
	}
	if err := s.reclaim(); err != nil {
		return fmt.Errorf("reclaiming after reset: %w", err)
	}
	return nil
}

func (t *GousbTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	errs := []error{t.releaseLocked()}
	t.claimed = -1
	if t.dev != nil {
		errs = append(errs, t.dev.Close())
		t.dev = nil
	}
	if t.ctx != nil {
		errs = append(errs, t.ctx.Close())
		t.ctx = nil
	}
	return errors.Join(errs...)
}

func (t *GousbTransport) device() (*gousb.Device, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dev == nil {
		return nil, errors.New("transport not open")
	}
	return t.dev, nil
}

func (t *GousbTransport) inEndpoint(endpoint uint8) (*gousb.InEndpoint, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ep, ok := t.endpoints[endpoint]; ok {
		return ep, nil
	}
	if t.intf == nil {
		return nil, errors.New("bulk transfer before claim")
	}
	ep, err := t.intf.InEndpoint(int(endpoint & 0x7f))
	if err != nil {
		return nil, fmt.Errorf("opening in endpoint %d: %w", endpoint, err)
	}
	t.endpoints[endpoint] = ep
	return ep, nil
}

// statusFor maps libusb failures the device itself reported onto a Status.
// Anything else is a host-side error.
func statusFor(err error) (Status, error) {
	var ts gousb.TransferStatus
	if errors.As(err, &ts) {
		switch ts {
		case gousb.TransferStall:
			return StatusStall, nil
		case gousb.TransferOverflow:
			return StatusBabble, nil
		case gousb.TransferTimedOut:
			return StatusTimeout, nil
		case gousb.TransferNoDevice:
			return StatusNoDevice, nil
		}
		return StatusError, err
	}

	var ue gousb.Error
	if errors.As(err, &ue) {
		switch ue {
		case gousb.ErrorPipe:
			return StatusStall, nil
		case gousb.ErrorOverflow:
			return StatusBabble, nil
		case gousb.ErrorTimeout:
			return StatusTimeout, nil
		case gousb.ErrorNoDevice:
			return StatusNoDevice, nil
		}
	}
	return StatusError, err
}
