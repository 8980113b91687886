package usb

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// ControlResponder produces the payload a replayed device answers to a
// control-in request.
type ControlResponder func(request uint8, value, index uint16, length int) []byte

// ReplayTransport stands in for a live device by serving bulk reads from a
// raw capture file, paced at the byte rate a real device would deliver.
// Control-out transfers are acknowledged and otherwise ignored.
type ReplayTransport struct {
	path          string
	bytesPerSec   int
	loop          bool
	respond       ControlResponder
	readFile      *os.File
	nextDeadline  time.Time
	mu            sync.Mutex
	controlCounts map[uint8]int
}

type ReplayOption func(r *ReplayTransport)

// WithLoop rewinds the capture at EOF instead of failing the transfer.
func WithLoop() ReplayOption {
	return func(r *ReplayTransport) {
		r.loop = true
	}
}

func WithControlResponder(respond ControlResponder) ReplayOption {
	return func(r *ReplayTransport) {
		r.respond = respond
	}
}

func NewReplayTransport(path string, bytesPerSec int, opts ...ReplayOption) *ReplayTransport {
	r := &ReplayTransport{
		path:          path,
		bytesPerSec:   bytesPerSec,
		controlCounts: make(map[uint8]int),
		respond: func(_ uint8, _, _ uint16, length int) []byte {
			buf := make([]byte, length)
			if length > 0 {
				buf[0] = 1
			}
			return buf
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *ReplayTransport) Open() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readFile != nil {
		return nil
	}
	f, err := os.Open(r.path)
	if err != nil {
		return err
	}
	r.readFile = f
	return nil
}

func (r *ReplayTransport) Claim(iface int) error {
	if iface != 0 {
		return fmt.Errorf("replay device has no interface %d", iface)
	}
	return nil
}

func (r *ReplayTransport) ControlTransferOut(request uint8, _, _ uint16, _ []byte) (Status, error) {
	r.mu.Lock()
	r.controlCounts[request]++
	r.mu.Unlock()
	return StatusOK, nil
}

func (r *ReplayTransport) ControlTransferIn(request uint8, value, index uint16, length int) (Status, []byte, error) {
	r.mu.Lock()
	r.controlCounts[request]++
	r.mu.Unlock()
	return StatusOK, r.respond(request, value, index, length), nil
}

// ControlCount reports how many control transfers used request.
func (r *ReplayTransport) ControlCount(request uint8) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.controlCounts[request]
}

func (r *ReplayTransport) BulkTransferIn(_ uint8, length int) (Status, []byte, error) {
	r.mu.Lock()
	if r.readFile == nil {
		r.mu.Unlock()
		return StatusError, nil, errors.New("replay transport not open")
	}
	deadline := r.schedule(length)
	r.mu.Unlock()

	// Control transfers proceed while the read waits out its slot.
	time.Sleep(time.Until(deadline))

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readFile == nil {
		return StatusError, nil, errors.New("replay transport closed")
	}

	buf := make([]byte, length)
	n, err := io.ReadFull(r.readFile, buf)
	if (err == io.EOF || err == io.ErrUnexpectedEOF) && r.loop {
		if _, serr := r.readFile.Seek(0, io.SeekStart); serr != nil {
			return StatusError, nil, serr
		}
		m, rerr := io.ReadFull(r.readFile, buf[n:])
		n += m
		err = rerr
	}
	if err != nil && !(err == io.ErrUnexpectedEOF && n > 0) {
		return StatusError, nil, err
	}
	return StatusOK, buf[:n], nil
}

// schedule returns when the next read of length bytes would have completed
// on live hardware. Callers hold r.mu.
func (r *ReplayTransport) schedule(length int) time.Time {
	now := time.Now()
	if r.bytesPerSec <= 0 {
		return now
	}
	interval := time.Duration(float64(length) / float64(r.bytesPerSec) * float64(time.Second))
	if r.nextDeadline.IsZero() || r.nextDeadline.Before(now.Add(-interval)) {
		r.nextDeadline = now
	}
	r.nextDeadline = r.nextDeadline.Add(interval)
	return r.nextDeadline
}

func (r *ReplayTransport) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextDeadline = time.Time{}
	if r.readFile == nil {
		return nil
	}
	_, err := r.readFile.Seek(0, io.SeekStart)
	return err
}

func (r *ReplayTransport) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readFile == nil {
		return nil
	}
	err := r.readFile.Close()
	r.readFile = nil
	return err
}
