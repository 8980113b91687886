package util

import (
	"reflect"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/api"
	"github.com/influxdata/influxdb-client-go/api/write"
)

var _ api.WriteAPI = (*MockWriteAPI)(nil)

func TestMockWriteAPIRetainsNothing(t *testing.T) {
	m := &MockWriteAPI{}
	p := write.NewPoint("receiver.audio.output", nil, map[string]interface{}{"samples": 64}, time.Now())
	for i := 0; i < 1000; i++ {
		m.WritePoint(p)
	}
	if n := reflect.TypeOf(*m).NumField(); n != 0 {
		t.Errorf("MockWriteAPI has %d fields, want a stateless writer", n)
	}
	if got := testing.AllocsPerRun(100, func() { m.WritePoint(p) }); got != 0 {
		t.Errorf("WritePoint allocates %v times per call", got)
	}
}
