// Package utiltest holds test doubles for the util package.
package utiltest

import (
	"sync"

	"github.com/influxdata/influxdb-client-go/api"
	"github.com/influxdata/influxdb-client-go/api/write"
)

// RecordingWriteAPI keeps every point written so tests can inspect them.
type RecordingWriteAPI struct {
	mu     sync.Mutex
	points []*write.Point
}

var _ api.WriteAPI = (*RecordingWriteAPI)(nil)

func (r *RecordingWriteAPI) WriteRecord(line string) {}

func (r *RecordingWriteAPI) WritePoint(point *write.Point) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.points = append(r.points, point)
}

// Points returns the points written so far.
func (r *RecordingWriteAPI) Points() []*write.Point {
	r.mu.Lock()
	defer r.mu.Unlock()
	ret := make([]*write.Point, len(r.points))
	copy(ret, r.points)
	return ret
}

// PointsNamed counts the points written under measurement name.
func (r *RecordingWriteAPI) PointsNamed(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.points {
		if p.Name() == name {
			n++
		}
	}
	return n
}

func (r *RecordingWriteAPI) Flush() {}

func (r *RecordingWriteAPI) Close() {}

func (r *RecordingWriteAPI) Errors() <-chan error { return nil }
