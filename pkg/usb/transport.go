// Package usb defines the transport capability radio drivers use to talk to
// a USB device: vendor control transfers on endpoint 0 and bulk reads on a
// data endpoint.
package usb

import "fmt"

// Status is the device-reported outcome of a single transfer.
type Status int

const (
	StatusOK Status = iota
	StatusStall
	StatusBabble
	StatusTimeout
	StatusNoDevice
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusStall:
		return "stall"
	case StatusBabble:
		return "babble"
	case StatusTimeout:
		return "timeout"
	case StatusNoDevice:
		return "no_device"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Transport performs raw transfers against one claimed device. All control
// requests are vendor requests addressed to the device recipient.
//
// A non-nil error reports a host-side failure (the transfer never completed);
// otherwise the returned Status carries what the device answered.
type Transport interface {
	Open() error
	Claim(iface int) error
	ControlTransferOut(request uint8, value, index uint16, payload []byte) (Status, error)
	ControlTransferIn(request uint8, value, index uint16, length int) (Status, []byte, error)
	BulkTransferIn(endpoint uint8, length int) (Status, []byte, error)
	Reset() error
	Close() error
}

// ID identifies a USB product.
type ID struct {
	Vendor  uint16
	Product uint16
}

func (id ID) String() string {
	return fmt.Sprintf("%04x:%04x", id.Vendor, id.Product)
}
