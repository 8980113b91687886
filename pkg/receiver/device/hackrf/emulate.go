package hackrf

import (
	"encoding/binary"

	"github.com/norasector/fmlive/pkg/usb"
)

// EmulatedVersion is what EmulatedControlIn reports as firmware version.
const EmulatedVersion = "replay"

// EmulatedControlIn answers control-in requests the way a HackRF One would,
// so the driver can run against a usb.ReplayTransport.
func EmulatedControlIn(request uint8, _, _ uint16, length int) []byte {
	buf := make([]byte, length)
	switch request {
	case RequestBoardIDRead:
		if length > 0 {
			buf[0] = byte(BoardHackRFOne)
		}
	case RequestVersionStringRead:
		copy(buf, EmulatedVersion)
	case RequestBoardPartIDSerialNoRead:
		if length >= partIDSerialLength {
			binary.LittleEndian.PutUint32(buf[0:], 0xa000cb3c)
			binary.LittleEndian.PutUint32(buf[4:], 0x00004f57)
		}
	default:
		if length > 0 {
			buf[0] = 1
		}
	}
	return buf
}

var _ usb.ControlResponder = EmulatedControlIn
