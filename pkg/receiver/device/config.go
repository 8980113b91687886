package device

import "fmt"

type TransceiverMode uint16

const (
	ModeOff      TransceiverMode = 0
	ModeReceive  TransceiverMode = 1
	ModeTransmit TransceiverMode = 2
	ModeSweepRx  TransceiverMode = 5
)

func (m TransceiverMode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeReceive:
		return "receive"
	case ModeTransmit:
		return "transmit"
	case ModeSweepRx:
		return "sweep_rx"
	default:
		return fmt.Sprintf("mode(%d)", uint16(m))
	}
}

// RadioConfig mirrors the last state the device acknowledged.
type RadioConfig struct {
	FrequencyHz       uint64          `json:"frequency_hz"`
	SampleRateHz      uint32          `json:"sample_rate_hz"`
	SampleRateDivider uint8           `json:"sample_rate_divider"`
	BasebandFilterHz  uint32          `json:"baseband_filter_hz"`
	LNAGainDB         uint8           `json:"lna_gain_db"`
	VGAGainDB         uint8           `json:"vga_gain_db"`
	AmpEnabled        bool            `json:"amp_enabled"`
	AntennaEnabled    bool            `json:"antenna_enabled"`
	Mode              TransceiverMode `json:"transceiver_mode"`
}

// ActualSampleRate is the rate the device clocks at for the configured
// frequency/divider pair.
func (c RadioConfig) ActualSampleRate() float64 {
	if c.SampleRateDivider == 0 {
		return 0
	}
	return float64(c.SampleRateHz) / float64(c.SampleRateDivider)
}
