package hackrf

import (
	"context"
	"fmt"

	"github.com/norasector/fmlive/pkg/receiver/device"
	"github.com/norasector/fmlive/pkg/usb"
)

const (
	// TransferBufferSize is the bulk transfer length libhackrf uses.
	TransferBufferSize = 262144
	bulkEndpoint       = 1
)

// StartReceiving arms receive mode and then reads bulk blocks in a loop,
// handing each to sink before the next transfer is issued. The loop ends
// when ctx is done (returning ctx.Err()), when a transfer fails, or when
// sink returns an error; the latter two come back as *device.StreamError.
// Cancellation is observed between transfers only.
//
// The transceiver stays in receive mode on return; callers use Stop.
func (d *Driver) StartReceiving(ctx context.Context, sink device.Sink) error {
	if err := d.SetTransceiverMode(device.ModeReceive); err != nil {
		return err
	}
	d.logger.Info().Int("transfer_size", d.transferSize).Msg("receiving")

	blocks := 0
	for {
		select {
		case <-ctx.Done():
			d.logger.Debug().Int("blocks", blocks).Msg("receive cancelled")
			return ctx.Err()
		default:
		}

		status, data, err := d.transport.BulkTransferIn(bulkEndpoint, d.transferSize)
		if err != nil {
			return &device.StreamError{Blocks: blocks, Err: &device.TransferError{Op: "bulk transfer", Status: status, Err: err}}
		}
		if status != usb.StatusOK {
			return &device.StreamError{Blocks: blocks, Err: &device.TransferError{Op: "bulk transfer", Status: status}}
		}

		blocks++
		if err := sink(data); err != nil {
			return &device.StreamError{Blocks: blocks, Err: fmt.Errorf("sink: %w", err)}
		}
	}
}
