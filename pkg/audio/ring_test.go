package audio

import (
	"reflect"
	"sync"
	"testing"
)

func seq(start, n int) []float32 {
	ret := make([]float32, n)
	for i := range ret {
		ret[i] = float32(start + i)
	}
	return ret
}

func TestRingBufferPushRead(t *testing.T) {
	r := NewRingBuffer(16)
	if dropped := r.Push(seq(1, 10)); dropped != 0 {
		t.Fatalf("dropped %d", dropped)
	}
	if r.Available() != 10 {
		t.Fatalf("available = %d", r.Available())
	}

	out := make([]float32, 4)
	if !r.Read(out) {
		t.Fatal("read failed")
	}
	if !reflect.DeepEqual(out, seq(1, 4)) {
		t.Errorf("out = %v", out)
	}
	if r.Available() != 6 || r.ReadIndex() != 4 || r.WriteIndex() != 10 {
		t.Errorf("available %d read %d write %d", r.Available(), r.ReadIndex(), r.WriteIndex())
	}
}

func TestRingBufferDropOldest(t *testing.T) {
	tests := []struct {
		name        string
		capacity    int
		first       int
		second      int
		wantDropped int
	}{
		{name: "fits", capacity: 10, first: 4, second: 6, wantDropped: 0},
		{name: "overflow by three", capacity: 10, first: 7, second: 6, wantDropped: 3},
		{name: "full buffer", capacity: 10, first: 10, second: 1, wantDropped: 1},
		{name: "push larger than capacity", capacity: 10, first: 5, second: 14, wantDropped: 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRingBuffer(tt.capacity)
			r.Push(seq(0, tt.first))
			dropped := r.Push(seq(100, tt.second))
			if dropped != tt.wantDropped {
				t.Errorf("dropped = %d, want %d", dropped, tt.wantDropped)
			}
			if uint64(tt.wantDropped) != r.Dropped() {
				t.Errorf("Dropped() = %d", r.Dropped())
			}
			if r.Available() > tt.capacity {
				t.Fatalf("available %d exceeds capacity", r.Available())
			}

			// The newest samples always survive.
			all := append(seq(0, tt.first), seq(100, tt.second)...)
			want := all[len(all)-r.Available():]
			out := make([]float32, r.Available())
			if !r.Read(out) {
				t.Fatal("read failed")
			}
			if !reflect.DeepEqual(out, want) {
				t.Errorf("out = %v, want %v", out, want)
			}
		})
	}
}

func TestRingBufferUnderrun(t *testing.T) {
	r := NewRingBuffer(256)
	r.Push(seq(1, 50))
	readIdx, writeIdx := r.ReadIndex(), r.WriteIndex()

	out := seq(7, 128)
	if r.Read(out) {
		t.Fatal("read succeeded on underrun")
	}
	if !reflect.DeepEqual(out, make([]float32, 128)) {
		t.Errorf("underrun block not silent")
	}
	if r.Available() != 50 || r.ReadIndex() != readIdx || r.WriteIndex() != writeIdx {
		t.Errorf("cursors moved: available %d read %d write %d", r.Available(), r.ReadIndex(), r.WriteIndex())
	}
}

func TestRingBufferWraparound(t *testing.T) {
	r := NewRingBuffer(10)
	r.Push(seq(0, 8))
	r.Read(make([]float32, 8))
	if r.WriteIndex() != 8 {
		t.Fatalf("write index = %d", r.WriteIndex())
	}

	r.Push([]float32{1, 2, 3, 4, 5})
	for i, idx := range []int{8, 9, 0, 1, 2} {
		if got := r.at(idx); got != float32(i+1) {
			t.Errorf("slot %d = %v, want %v", idx, got, float32(i+1))
		}
	}
	if r.WriteIndex() != 3 || r.Available() != 5 {
		t.Errorf("write index %d available %d", r.WriteIndex(), r.Available())
	}

	out := make([]float32, 5)
	r.Read(out)
	if !reflect.DeepEqual(out, []float32{1, 2, 3, 4, 5}) {
		t.Errorf("out = %v", out)
	}
}

// TestRingBufferConcurrent runs one producer and one consumer and checks
// that every rendered block is a run of consecutive samples.
func TestRingBufferConcurrent(t *testing.T) {
	const (
		capacity = 1024
		pushes   = 2000
		chunk    = 97
		block    = 128
	)
	r := NewRingBuffer(capacity)

	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		for i := 0; i < pushes; i++ {
			r.Push(seq(i*chunk+1, chunk))
			if r.Available() > capacity {
				t.Errorf("available %d exceeds capacity", r.Available())
				return
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		out := make([]float32, block)
		var last float32
		for {
			select {
			case <-done:
				return
			default:
			}
			if !r.Read(out) {
				for _, s := range out {
					if s != 0 {
						t.Errorf("failed read left non-silent sample %v", s)
						return
					}
				}
				continue
			}
			for i := 1; i < len(out); i++ {
				if out[i] != out[i-1]+1 {
					t.Errorf("non-consecutive samples %v, %v", out[i-1], out[i])
					return
				}
			}
			if out[0] <= last {
				t.Errorf("samples went backwards: %v after %v", out[0], last)
				return
			}
			last = out[len(out)-1]
		}
	}()

	wg.Wait()
	if r.Available() > capacity {
		t.Errorf("available %d exceeds capacity", r.Available())
	}
}
