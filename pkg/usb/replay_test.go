package usb

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeCapture(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.cs8")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReplayBulkReads(t *testing.T) {
	capture := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	tests := []struct {
		name   string
		loop   bool
		reads  int
		want   [][]byte
		failAt int
	}{
		{
			name:   "no loop",
			reads:  4,
			want:   [][]byte{{1, 2, 3, 4}, {5, 6, 7, 8}, {9, 10}},
			failAt: 3,
		},
		{
			name:   "loop",
			loop:   true,
			reads:  4,
			want:   [][]byte{{1, 2, 3, 4}, {5, 6, 7, 8}, {9, 10, 1, 2}, {3, 4, 5, 6}},
			failAt: -1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []ReplayOption
			if tt.loop {
				opts = append(opts, WithLoop())
			}
			r := NewReplayTransport(writeCapture(t, capture), 0, opts...)
			if err := r.Open(); err != nil {
				t.Fatal(err)
			}
			defer r.Close()
			if err := r.Claim(0); err != nil {
				t.Fatal(err)
			}

			for i := 0; i < tt.reads; i++ {
				status, data, err := r.BulkTransferIn(1, 4)
				if i == tt.failAt {
					if err == nil || status == StatusOK {
						t.Fatalf("read %d: expected failure, got %v %v", i, status, data)
					}
					return
				}
				if err != nil || status != StatusOK {
					t.Fatalf("read %d: %v %v", i, status, err)
				}
				if !bytes.Equal(data, tt.want[i]) {
					t.Errorf("read %d = %v, want %v", i, data, tt.want[i])
				}
			}
		})
	}
}

func TestReplayControl(t *testing.T) {
	r := NewReplayTransport(writeCapture(t, []byte{0}), 0)
	if err := r.Claim(1); err == nil {
		t.Error("claimed interface 1")
	}
	if status, err := r.ControlTransferOut(16, 0, 0, make([]byte, 8)); status != StatusOK || err != nil {
		t.Errorf("control out = %v %v", status, err)
	}
	status, data, err := r.ControlTransferIn(19, 0, 16, 1)
	if status != StatusOK || err != nil || !bytes.Equal(data, []byte{1}) {
		t.Errorf("control in = %v %v %v", status, data, err)
	}
	if r.ControlCount(16) != 1 || r.ControlCount(19) != 1 {
		t.Errorf("counts = %d %d", r.ControlCount(16), r.ControlCount(19))
	}
	if _, _, err := r.BulkTransferIn(1, 1); err == nil {
		t.Error("bulk read before open succeeded")
	}
}

func TestReplayPacing(t *testing.T) {
	// 1000 bytes/s, 50 byte reads: 50ms each.
	r := NewReplayTransport(writeCapture(t, make([]byte, 1000)), 1000)
	if err := r.Open(); err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, _, err := r.BulkTransferIn(1, 50); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed < 140*time.Millisecond {
		t.Errorf("three paced reads took %s", elapsed)
	}
}

func TestReplayControlDuringPacedRead(t *testing.T) {
	// 1000 bytes/s, 500 byte read: 500ms wait.
	r := NewReplayTransport(writeCapture(t, make([]byte, 1000)), 1000)
	if err := r.Open(); err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	done := make(chan error, 1)
	go func() {
		_, _, err := r.BulkTransferIn(1, 500)
		done <- err
	}()
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	if _, err := r.ControlTransferOut(1, 0, 0, nil); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("control transfer waited %s behind a paced read", elapsed)
	}
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}
