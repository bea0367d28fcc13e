package mqttdriver

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/go-digitaltwin/go-avatar"
)

func TestDecodeIDs(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    []string
		wantErr bool
	}{
		{name: "array", payload: `["a","b"]`, want: []string{"a", "b"}},
		{name: "embedded-array", payload: `"[\"a\",\"b\"]"`, want: []string{"a", "b"}},
		{name: "empty", payload: `[]`, want: []string{}},
		{name: "null", payload: `null`, want: nil},
		{name: "object", payload: `{"ids":["a"]}`, wantErr: true},
		{name: "embedded-garbage", payload: `"a,b"`, wantErr: true},
		{name: "numbers", payload: `[1,2]`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeIDs([]byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeIDs() error = %v, wantErr %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("DecodeIDs() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeChange(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    avatar.SensorUpdated
		wantErr bool
	}{
		{
			name:    "full",
			payload: `{"id":"imu-1","quaternion":{"w":0.5,"x":0.5,"y":0.5,"z":0.5},"timestamp":1709294400000}`,
			want: avatar.SensorUpdated{
				SensorID:    "imu-1",
				Orientation: avatar.Orientation{W: 0.5, X: 0.5, Y: 0.5, Z: 0.5},
				Timestamp:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
			},
		},
		{
			name:    "no-timestamp",
			payload: `{"id":"imu-1","quaternion":{"w":1}}`,
			want:    avatar.SensorUpdated{SensorID: "imu-1", Orientation: avatar.Identity},
		},
		{name: "no-id", payload: `{"quaternion":{"w":1}}`, wantErr: true},
		{name: "malformed", payload: `{"id":`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeChange([]byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeChange() error = %v, wantErr %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("DecodeChange() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEncodeChange(t *testing.T) {
	u := avatar.SensorUpdated{
		SensorID:    "imu-1",
		Orientation: avatar.AngleAxis(1, 0, 1, 0),
		Timestamp:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	p, err := EncodeChange(u)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeChange(p)
	if err != nil {
		t.Fatalf("DecodeChange(%s): %v", p, err)
	}
	if diff := cmp.Diff(u, got); diff != "" {
		t.Errorf("DecodeChange(EncodeChange()) mismatch (-want +got):\n%s", diff)
	}
}
