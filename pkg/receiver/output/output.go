// Package output delivers demodulated audio segments to the network and to
// files.
package output

import (
	"context"

	"github.com/norasector/turbine-common/types"
)

// AudioOutput handles tagged audio segments from the receiver.
type AudioOutput interface {
	// Start runs until ctx is done or the output fails.
	Start(ctx context.Context) error
	// Receive is where the receiver sends segments. The receiver never
	// blocks on it; a full channel loses the segment.
	Receive() chan<- *types.TaggedAudioSampleFloat32
}

const receiveBufferLength = 8
