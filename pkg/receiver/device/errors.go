package device

import (
	"errors"
	"fmt"

	"github.com/norasector/fmlive/pkg/usb"
)

var ErrNotImplemented = errors.New("not implemented")

// TransferError reports a control or bulk transfer the device did not
// complete successfully, including a falsy acknowledgement byte.
type TransferError struct {
	Op     string
	Status usb.Status
	Err    error
}

// DeviceError is the name callers of the radio driver know transfer
// failures by.
type DeviceError = TransferError

func (e *TransferError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed (status %s): %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s failed (status %s)", e.Op, e.Status)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// ConfigurationError rejects a value outside the hardware's legal range.
// No transfer is attempted.
type ConfigurationError struct {
	Op    string
	Value uint64
	Min   uint64
	Max   uint64
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: value %d outside [%d, %d]", e.Op, e.Value, e.Min, e.Max)
}

// StreamError ends a receive loop. Blocks counts the blocks delivered to the
// sink before the failure.
type StreamError struct {
	Blocks int
	Err    error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("receive stream stopped after %d blocks: %v", e.Blocks, e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err was rejected before reaching
// the device.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
