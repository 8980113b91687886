package hackrf

import (
	"reflect"
	"testing"

	"github.com/norasector/fmlive/pkg/receiver/device"
	"github.com/norasector/fmlive/pkg/usb/usbtest"
)

func TestParsePartIDSerial(t *testing.T) {
	buf := []byte{
		0x3c, 0xcb, 0x00, 0xa0,
		0x57, 0x4f, 0x00, 0x00,
		0x01, 0x00, 0x00, 0x00,
		0x02, 0x00, 0x00, 0x00,
		0x03, 0x00, 0x00, 0x00,
		0xef, 0xbe, 0xad, 0xde,
	}
	got, err := ParsePartIDSerial(buf)
	if err != nil {
		t.Fatal(err)
	}
	want := PartIDSerial{
		PartID:   [2]uint32{0xa000cb3c, 0x00004f57},
		SerialNo: [4]uint32{1, 2, 3, 0xdeadbeef},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}

	if _, err := ParsePartIDSerial(buf[:10]); err == nil {
		t.Error("expected error for short buffer")
	}
}

func TestBoardIDString(t *testing.T) {
	tests := map[BoardID]string{
		BoardHackRFOne:  "HackRF One",
		BoardJawbreaker: "Jawbreaker",
		BoardInvalid:    "Invalid Board ID",
		BoardID(9):      "Unknown Board ID (9)",
	}
	for id, want := range tests {
		if got := id.String(); got != want {
			t.Errorf("BoardID(%d).String() = %q, want %q", uint8(id), got, want)
		}
	}
}

func TestInfo(t *testing.T) {
	d, fake := newTestDriver(t)
	version := make([]byte, versionStringLength)
	copy(version, "2023.01.1")
	fake.Script(RequestBoardIDRead, usbtest.Reply{Data: []byte{2}})
	fake.Script(RequestVersionStringRead, usbtest.Reply{Data: version})
	fake.Script(RequestBoardPartIDSerialNoRead, usbtest.Reply{Data: EmulatedControlIn(RequestBoardPartIDSerialNoRead, 0, 0, partIDSerialLength)})

	info, err := d.Info()
	if err != nil {
		t.Fatal(err)
	}
	want := device.Info{
		Kind:     "hackrf",
		BoardID:  2,
		Board:    "HackRF One",
		Version:  "2023.01.1",
		PartID:   []uint32{0xa000cb3c, 0x00004f57},
		SerialNo: []uint32{0, 0, 0, 0},
	}
	if !reflect.DeepEqual(info, want) {
		t.Errorf("got %+v, want %+v", info, want)
	}

	reqs := fake.Requests()
	wantLens := []int{1, versionStringLength, partIDSerialLength}
	for i, r := range reqs {
		if r.Length != wantLens[i] {
			t.Errorf("request %d length %d, want %d", i, r.Length, wantLens[i])
		}
	}
}

func TestEmulatedControlIn(t *testing.T) {
	if got := EmulatedControlIn(RequestSetLNAGain, 0, 16, 1); got[0] != 1 {
		t.Errorf("gain ack = %d", got[0])
	}
	if got := EmulatedControlIn(RequestBoardIDRead, 0, 0, 1); BoardID(got[0]) != BoardHackRFOne {
		t.Errorf("board id = %d", got[0])
	}
}
