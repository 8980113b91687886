package libhackrf

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/samuel/go-hackrf/hackrf"

	"github.com/norasector/fmlive/pkg/receiver/device"
)

type fakeLib struct {
	antenna []bool
	err     error
}

func (f *fakeLib) SetFreq(uint64) error                 { return f.err }
func (f *fakeLib) SetSampleRateManual(int, int) error   { return f.err }
func (f *fakeLib) SetBasebandFilterBandwidth(int) error { return f.err }
func (f *fakeLib) SetAmpEnable(bool) error              { return f.err }
func (f *fakeLib) SetLNAGain(int) error                 { return f.err }
func (f *fakeLib) SetVGAGain(int) error                 { return f.err }
func (f *fakeLib) StartRX(hackrf.Callback) error        { return f.err }
func (f *fakeLib) StopRX() error                        { return f.err }
func (f *fakeLib) Close() error                         { return nil }

func (f *fakeLib) SetAntennaEnable(enabled bool) error {
	if f.err != nil {
		return f.err
	}
	f.antenna = append(f.antenna, enabled)
	return nil
}

func newTestDevice(lib *fakeLib) *HackRFDevice {
	return &HackRFDevice{device: lib, logger: zerolog.Nop()}
}

func TestSetAntennaEnable(t *testing.T) {
	lib := &fakeLib{}
	h := newTestDevice(lib)

	if err := h.SetAntennaEnable(true); err != nil {
		t.Fatalf("SetAntennaEnable(true): %v", err)
	}
	if !h.Config().AntennaEnabled {
		t.Error("config not updated after enable")
	}
	if err := h.SetAntennaEnable(false); err != nil {
		t.Fatalf("SetAntennaEnable(false): %v", err)
	}
	if h.Config().AntennaEnabled {
		t.Error("config not updated after disable")
	}
	if len(lib.antenna) != 2 || !lib.antenna[0] || lib.antenna[1] {
		t.Errorf("library calls = %v, want [true false]", lib.antenna)
	}
}

func TestSetAntennaEnableFailureKeepsConfig(t *testing.T) {
	lib := &fakeLib{err: errors.New("usb busy")}
	h := newTestDevice(lib)

	err := h.SetAntennaEnable(true)
	var te *device.TransferError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want TransferError", err)
	}
	if te.Op != "set antenna enable" {
		t.Errorf("op = %q", te.Op)
	}
	if h.Config().AntennaEnabled {
		t.Error("config updated despite failure")
	}
}

func TestSetSampleRateSelectsFilter(t *testing.T) {
	h := newTestDevice(&fakeLib{})
	if err := h.SetSampleRate(2e6); err != nil {
		t.Fatal(err)
	}
	cfg := h.Config()
	if cfg.SampleRateHz != 2e6 || cfg.SampleRateDivider != 1 {
		t.Errorf("rate = %d/%d", cfg.SampleRateHz, cfg.SampleRateDivider)
	}
	if cfg.BasebandFilterHz != 1750000 {
		t.Errorf("filter = %d, want 1750000", cfg.BasebandFilterHz)
	}

	var ce *device.ConfigurationError
	if err := h.SetSampleRate(0); !errors.As(err, &ce) {
		t.Errorf("SetSampleRate(0) = %v, want ConfigurationError", err)
	}
}
