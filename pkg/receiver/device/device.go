package device

import (
	"context"
	"fmt"

	"github.com/norasector/fmlive/pkg/usb"
)

// Sink receives each raw sample block exactly once, synchronously, before
// the next transfer is issued. The block is not retained by the caller after
// Sink returns. A non-nil error ends the stream.
type Sink func(block []byte) error

// Radio is the capability every supported front end exposes.
type Radio interface {
	Setup() error
	SetFrequency(hz uint64) error
	SetSampleRate(hz uint32) error
	// StartReceiving arms receive mode and delivers blocks to sink until ctx
	// is cancelled or a transfer fails. The transceiver is left armed; call
	// Stop to turn it off.
	StartReceiving(ctx context.Context, sink Sink) error
	Stop() error
	MaxSampleRate() int
	Close() error
}

// GainController is implemented by radios with adjustable front-end gain.
type GainController interface {
	SetLNAGain(db uint8) error
	SetVGAGain(db uint8) error
	SetAmpEnable(enable bool) error
	SetAntennaEnable(enable bool) error
}

// Describer is implemented by radios that can report board identity.
type Describer interface {
	Info() (Info, error)
	Config() RadioConfig
}

// Info is a flattened board identity suitable for logs and the API.
type Info struct {
	Kind     string   `json:"kind"`
	BoardID  uint8    `json:"board_id"`
	Board    string   `json:"board"`
	Version  string   `json:"version"`
	PartID   []uint32 `json:"part_id"`
	SerialNo []uint32 `json:"serial_no"`
}

// Kind is the closed set of radio families.
type Kind int

const (
	KindHackRF Kind = iota
	KindRTLSDR
)

func (k Kind) String() string {
	switch k {
	case KindHackRF:
		return "hackrf"
	case KindRTLSDR:
		return "rtlsdr"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func ParseKind(s string) (Kind, error) {
	switch s {
	case "hackrf", "":
		return KindHackRF, nil
	case "rtlsdr":
		return KindRTLSDR, nil
	default:
		return 0, fmt.Errorf("unknown device kind %q", s)
	}
}

var (
	HackRFIDs = []usb.ID{
		{Vendor: 0x1d50, Product: 0x604b},
		{Vendor: 0x1d50, Product: 0x6089},
		{Vendor: 0x1d50, Product: 0xcc15},
		{Vendor: 0x1fc9, Product: 0x000c},
	}
	RTLSDRIDs = []usb.ID{
		{Vendor: 0x0bda, Product: 0x2832},
		{Vendor: 0x0bda, Product: 0x2838},
	}
)

// IDs returns the USB products belonging to k.
func (k Kind) IDs() []usb.ID {
	switch k {
	case KindHackRF:
		return HackRFIDs
	case KindRTLSDR:
		return RTLSDRIDs
	default:
		return nil
	}
}

// SupportedIDs lists every product any Kind claims.
func SupportedIDs() []usb.ID {
	ret := make([]usb.ID, 0, len(HackRFIDs)+len(RTLSDRIDs))
	ret = append(ret, HackRFIDs...)
	return append(ret, RTLSDRIDs...)
}

// KindForID maps an enumerated device back to its family.
func KindForID(id usb.ID) (Kind, bool) {
	for _, k := range []Kind{KindHackRF, KindRTLSDR} {
		for _, known := range k.IDs() {
			if known == id {
				return k, true
			}
		}
	}
	return 0, false
}
