// Package dispatch brings up whichever supported radio a USB transport
// enumerated, choosing the driver from the device's vendor/product ID.
package dispatch

import (
	"fmt"

	"github.com/norasector/fmlive/pkg/receiver/device"
	"github.com/norasector/fmlive/pkg/receiver/device/hackrf"
	"github.com/norasector/fmlive/pkg/receiver/device/rtlsdr"
	"github.com/norasector/fmlive/pkg/usb"
)

// Transport is a usb.Transport that reports the product it opened.
type Transport interface {
	usb.Transport
	Matched() usb.ID
}

// Connect opens transport and hands it to the driver for the matched
// family. RTL-SDR dongles are recognised but fail with
// device.ErrNotImplemented.
func Connect(transport Transport, opts ...hackrf.DriverOption) (device.Radio, device.Kind, error) {
	if err := transport.Open(); err != nil {
		return nil, 0, fmt.Errorf("opening transport: %w", err)
	}
	id := transport.Matched()
	kind, ok := device.KindForID(id)
	if !ok {
		transport.Close()
		return nil, 0, fmt.Errorf("unsupported usb device %s", id)
	}

	switch kind {
	case device.KindRTLSDR:
		transport.Close()
		r := rtlsdr.NewRTLSDRDevice()
		if err := r.Setup(); err != nil {
			return nil, kind, fmt.Errorf("%s at %s: %w", kind, id, err)
		}
		return r, kind, nil
	default:
		drv, err := hackrf.Connect(transport, opts...)
		if err != nil {
			return nil, kind, err
		}
		return drv, kind, nil
	}
}
