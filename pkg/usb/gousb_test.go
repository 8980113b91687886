package usb

import (
	"errors"
	"reflect"
	"testing"
)

func TestResetStepsOrder(t *testing.T) {
	failing := errors.New("boom")
	tests := []struct {
		name    string
		fail    string
		want    []string
		wantErr bool
	}{
		{name: "success", want: []string{"release", "reset", "reclaim"}},
		{name: "release fails", fail: "release", want: []string{"release"}, wantErr: true},
		{name: "reset fails", fail: "reset", want: []string{"release", "reset"}, wantErr: true},
		{name: "reclaim fails", fail: "reclaim", want: []string{"release", "reset", "reclaim"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls []string
			step := func(name string) func() error {
				return func() error {
					calls = append(calls, name)
					if name == tt.fail {
						return failing
					}
					return nil
				}
			}
			err := resetSteps{
				release: step("release"),
				reset:   step("reset"),
				reclaim: step("reclaim"),
			}.run()

			if !reflect.DeepEqual(calls, tt.want) {
				t.Errorf("calls = %v, want %v", calls, tt.want)
			}
			if tt.wantErr != errors.Is(err, failing) {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGousbResetBeforeOpen(t *testing.T) {
	tr := NewGousbTransport(nil)
	if err := tr.Reset(); err == nil {
		t.Error("Reset on an unopened transport succeeded")
	}
	if err := tr.Close(); err != nil {
		t.Errorf("Close on an unopened transport: %v", err)
	}
}
