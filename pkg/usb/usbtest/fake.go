// Package usbtest provides a scriptable in-memory usb.Transport.
package usbtest

import (
	"errors"
	"sync"

	"github.com/norasector/fmlive/pkg/usb"
)

type Direction int

const (
	Out Direction = iota
	In
	Bulk
)

// Request is one transfer the Fake observed.
type Request struct {
	Direction Direction
	Request   uint8
	Value     uint16
	Index     uint16
	Payload   []byte
	Length    int
}

// Reply scripts the answer to a request.
type Reply struct {
	Status usb.Status
	Data   []byte
	Err    error
}

// Fake records every transfer. Replies are looked up per request code (bulk
// transfers use the endpoint number); unscripted requests succeed, control-in
// requests answering with a single 1 byte followed by zeros and bulk requests
// with zero-filled buffers of the requested length.
type Fake struct {
	mu        sync.Mutex
	requests  []Request
	control   map[uint8][]Reply
	bulk      []Reply
	opened    bool
	claimed   int
	resets    int
	closed    bool
	bulkCount int

	// ID is what Matched reports, as though the device were enumerated.
	ID       usb.ID
	ResetErr error
	// OnBulk runs after each bulk transfer is recorded, outside the lock.
	OnBulk func(n int)
	// BulkForever answers unscripted bulk transfers with zero-filled data.
	BulkForever bool
}

func New() *Fake {
	return &Fake{
		control: make(map[uint8][]Reply),
		claimed: -1,
	}
}

var _ usb.Transport = (*Fake)(nil)

// Script queues replies for request. The last queued reply repeats once the
// queue would otherwise run dry.
func (f *Fake) Script(request uint8, replies ...Reply) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.control[request] = append(f.control[request], replies...)
}

// ScriptBulk queues bulk transfer replies; after they are consumed bulk
// transfers fail with usb.StatusNoDevice unless BulkForever is set.
func (f *Fake) ScriptBulk(replies ...Reply) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bulk = append(f.bulk, replies...)
}

func (f *Fake) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	ret := make([]Request, len(f.requests))
	copy(ret, f.requests)
	return ret
}

// RequestCodes returns the control request codes in the order issued.
func (f *Fake) RequestCodes() []uint8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ret []uint8
	for _, r := range f.requests {
		if r.Direction != Bulk {
			ret = append(ret, r.Request)
		}
	}
	return ret
}

func (f *Fake) BulkCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bulkCount
}

func (f *Fake) Resets() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resets
}

func (f *Fake) Open() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = true
	return nil
}

func (f *Fake) Matched() usb.ID {
	return f.ID
}

func (f *Fake) Claim(iface int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.opened {
		return errors.New("claim before open")
	}
	f.claimed = iface
	return nil
}

func (f *Fake) Claimed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.claimed
}

func (f *Fake) next(request uint8) (Reply, bool) {
	replies := f.control[request]
	if len(replies) == 0 {
		return Reply{}, false
	}
	r := replies[0]
	if len(replies) > 1 {
		f.control[request] = replies[1:]
	}
	return r, true
}

func (f *Fake) ControlTransferOut(request uint8, value, index uint16, payload []byte) (usb.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := make([]byte, len(payload))
	copy(p, payload)
	f.requests = append(f.requests, Request{Direction: Out, Request: request, Value: value, Index: index, Payload: p})
	r, _ := f.next(request)
	return r.Status, r.Err
}

func (f *Fake) ControlTransferIn(request uint8, value, index uint16, length int) (usb.Status, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, Request{Direction: In, Request: request, Value: value, Index: index, Length: length})
	r, ok := f.next(request)
	if !ok {
		buf := make([]byte, length)
		if length > 0 {
			buf[0] = 1
		}
		return usb.StatusOK, buf, nil
	}
	return r.Status, r.Data, r.Err
}

func (f *Fake) BulkTransferIn(endpoint uint8, length int) (usb.Status, []byte, error) {
	f.mu.Lock()
	f.requests = append(f.requests, Request{Direction: Bulk, Request: endpoint, Length: length})
	f.bulkCount++
	n := f.bulkCount
	hook := f.OnBulk

	var r Reply
	switch {
	case len(f.bulk) > 0:
		r = f.bulk[0]
		f.bulk = f.bulk[1:]
		if r.Data == nil && r.Status == usb.StatusOK && r.Err == nil {
			r.Data = make([]byte, length)
		}
	case f.BulkForever:
		r = Reply{Status: usb.StatusOK, Data: make([]byte, length)}
	default:
		r = Reply{Status: usb.StatusNoDevice}
	}
	f.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return r.Status, r.Data, r.Err
}

func (f *Fake) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	return f.ResetErr
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
