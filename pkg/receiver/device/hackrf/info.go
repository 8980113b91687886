package hackrf

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/norasector/fmlive/pkg/receiver/device"
)

type BoardID uint8

const (
	BoardJellybean  BoardID = 0
	BoardJawbreaker BoardID = 1
	BoardHackRFOne  BoardID = 2
	BoardRAD1O      BoardID = 3
	BoardInvalid    BoardID = 0xff
)

func (b BoardID) String() string {
	switch b {
	case BoardJellybean:
		return "Jellybean"
	case BoardJawbreaker:
		return "Jawbreaker"
	case BoardHackRFOne:
		return "HackRF One"
	case BoardRAD1O:
		return "rad1o"
	case BoardInvalid:
		return "Invalid Board ID"
	default:
		return fmt.Sprintf("Unknown Board ID (%d)", uint8(b))
	}
}

// PartIDSerial is the MCU part id and serial number as read from the board.
type PartIDSerial struct {
	PartID   [2]uint32
	SerialNo [4]uint32
}

// ParsePartIDSerial decodes the 24-byte little-endian response.
func ParsePartIDSerial(buf []byte) (PartIDSerial, error) {
	var ret PartIDSerial
	if len(buf) < partIDSerialLength {
		return ret, fmt.Errorf("part id/serial response too short: %d bytes", len(buf))
	}
	for i := range ret.PartID {
		ret.PartID[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	for i := range ret.SerialNo {
		ret.SerialNo[i] = binary.LittleEndian.Uint32(buf[8+i*4:])
	}
	return ret, nil
}

func (d *Driver) ReadBoardID() (BoardID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	data, err := d.controlIn("read board id", RequestBoardIDRead, 0, 0, 1)
	if err != nil {
		return BoardInvalid, err
	}
	if len(data) < 1 {
		return BoardInvalid, fmt.Errorf("read board id: empty response")
	}
	return BoardID(data[0]), nil
}

// ReadVersionString returns the firmware version, cut at the first NUL.
func (d *Driver) ReadVersionString() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	data, err := d.controlIn("read version string", RequestVersionStringRead, 0, 0, versionStringLength)
	if err != nil {
		return "", err
	}
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return string(data), nil
}

func (d *Driver) ReadPartIDAndSerial() (PartIDSerial, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	data, err := d.controlIn("read part id and serial", RequestBoardPartIDSerialNoRead, 0, 0, partIDSerialLength)
	if err != nil {
		return PartIDSerial{}, err
	}
	return ParsePartIDSerial(data)
}

// BoardInfo is everything the board reports about itself.
type BoardInfo struct {
	ID      BoardID
	Version string
	PartIDSerial
}

// ReadBoardInfo reads the board id, firmware version and part/serial in one
// go.
func (d *Driver) ReadBoardInfo() (BoardInfo, error) {
	id, err := d.ReadBoardID()
	if err != nil {
		return BoardInfo{}, err
	}
	version, err := d.ReadVersionString()
	if err != nil {
		return BoardInfo{}, err
	}
	ps, err := d.ReadPartIDAndSerial()
	if err != nil {
		return BoardInfo{}, err
	}
	return BoardInfo{ID: id, Version: version, PartIDSerial: ps}, nil
}

func (d *Driver) Info() (device.Info, error) {
	bi, err := d.ReadBoardInfo()
	if err != nil {
		return device.Info{}, err
	}
	return device.Info{
		Kind:     device.KindHackRF.String(),
		BoardID:  uint8(bi.ID),
		Board:    bi.ID.String(),
		Version:  bi.Version,
		PartID:   bi.PartID[:],
		SerialNo: bi.SerialNo[:],
	}, nil
}
