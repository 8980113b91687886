// Package rtlsdr is the RTL2832U family placeholder. Every operation fails
// with device.ErrNotImplemented.
package rtlsdr

import (
	"context"
	"fmt"

	"github.com/norasector/fmlive/pkg/receiver/device"
)

const maxSampleRate = 2.4e6

type RTLSDRDevice struct{}

var _ device.Radio = (*RTLSDRDevice)(nil)

func NewRTLSDRDevice() *RTLSDRDevice {
	return &RTLSDRDevice{}
}

func notImplemented(op string) error {
	return fmt.Errorf("rtlsdr %s: %w", op, device.ErrNotImplemented)
}

func (r *RTLSDRDevice) Setup() error {
	return notImplemented("setup")
}

func (r *RTLSDRDevice) SetFrequency(uint64) error {
	return notImplemented("set frequency")
}

func (r *RTLSDRDevice) SetSampleRate(uint32) error {
	return notImplemented("set sample rate")
}

func (r *RTLSDRDevice) StartReceiving(context.Context, device.Sink) error {
	return notImplemented("start receiving")
}

func (r *RTLSDRDevice) Stop() error {
	return notImplemented("stop")
}

func (r *RTLSDRDevice) MaxSampleRate() int {
	return maxSampleRate
}

func (r *RTLSDRDevice) Close() error {
	return nil
}
