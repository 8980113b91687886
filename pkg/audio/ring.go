// Package audio hands demodulated PCM from the receive path to a real-time
// audio callback through a lock-free single-producer/single-consumer ring.
package audio

import (
	"math"
	"sync/atomic"
)

// DefaultRingCapacity holds roughly 680ms of 48kHz mono audio.
const DefaultRingCapacity = 32768

// RingBuffer is a fixed-capacity float32 ring shared by exactly one producer
// (Push) and one consumer (Read).
//
// The cursors are monotonic sample counts; slot indices are taken modulo
// capacity and available is write-read. The producer owns write. The
// consumer owns read, except that the producer may advance read with a
// compare-and-swap to drop the oldest samples when it would overrun. A
// consumer whose own compare-and-swap then fails discards what it copied.
type RingBuffer struct {
	slots    []atomic.Uint32
	capacity uint64

	write   atomic.Uint64
	read    atomic.Uint64
	dropped atomic.Uint64
}

func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = DefaultRingCapacity
	}
	return &RingBuffer{
		slots:    make([]atomic.Uint32, capacity),
		capacity: uint64(capacity),
	}
}

func (r *RingBuffer) Capacity() int {
	return int(r.capacity)
}

// Available is the number of buffered samples, never more than Capacity.
func (r *RingBuffer) Available() int {
	rd := r.read.Load()
	wr := r.write.Load()
	if wr <= rd {
		return 0
	}
	if n := wr - rd; n < r.capacity {
		return int(n)
	}
	return int(r.capacity)
}

// WriteIndex is the slot the next pushed sample lands in.
func (r *RingBuffer) WriteIndex() int {
	return int(r.write.Load() % r.capacity)
}

// ReadIndex is the slot of the oldest buffered sample.
func (r *RingBuffer) ReadIndex() int {
	return int(r.read.Load() % r.capacity)
}

// Dropped counts samples discarded by the overwrite-oldest policy.
func (r *RingBuffer) Dropped() uint64 {
	return r.dropped.Load()
}

// Push appends samples, dropping the oldest buffered samples when there is
// not enough free space. It never blocks. When len(samples) exceeds the
// capacity only the newest Capacity samples are kept. Push returns the
// number of samples dropped.
func (r *RingBuffer) Push(samples []float32) int {
	n := uint64(len(samples))
	if n == 0 {
		return 0
	}

	var dropped uint64
	if n > r.capacity {
		dropped = n - r.capacity
		samples = samples[dropped:]
		n = r.capacity
	}

	wr := r.write.Load()
	for {
		rd := r.read.Load()
		space := r.capacity - (wr - rd)
		if n <= space {
			break
		}
		excess := n - space
		if r.read.CompareAndSwap(rd, rd+excess) {
			dropped += excess
			break
		}
	}

	start := wr % r.capacity
	for i, s := range samples {
		r.slots[(start+uint64(i))%r.capacity].Store(math.Float32bits(s))
	}
	r.write.Store(wr + n)

	if dropped > 0 {
		r.dropped.Add(dropped)
	}
	return int(dropped)
}

// Read fills out with the oldest len(out) samples. When fewer are buffered,
// or the producer overran the copied region, out is zeroed, the read cursor
// is left alone and Read returns false. Read never blocks or allocates.
func (r *RingBuffer) Read(out []float32) bool {
	need := uint64(len(out))
	if need == 0 {
		return true
	}

	rd := r.read.Load()
	wr := r.write.Load()
	if wr < rd || wr-rd < need {
		silence(out)
		return false
	}

	start := rd % r.capacity
	for i := range out {
		out[i] = math.Float32frombits(r.slots[(start+uint64(i))%r.capacity].Load())
	}

	if !r.read.CompareAndSwap(rd, rd+need) {
		silence(out)
		return false
	}
	return true
}

// at returns the sample stored in slot i.
func (r *RingBuffer) at(i int) float32 {
	return math.Float32frombits(r.slots[i].Load())
}

func silence(out []float32) {
	for i := range out {
		out[i] = 0
	}
}
