package device

import (
	"testing"

	"github.com/uniqlow/openal-soft/internal/audio"
)

func TestNewDefaults(t *testing.T) {
	d := New("test")
	if !d.Connected.Load() {
		t.Fatal("new device should be connected")
	}
	if d.Frequency == 0 || d.UpdateSize == 0 || d.BufferSize == 0 {
		t.Fatal("format defaults should be non-zero")
	}
}

func TestFrameSize(t *testing.T) {
	d := New("test")
	d.FmtChans = audio.X51
	d.FmtType = audio.Short
	if got := d.FrameSize(); got != 12 {
		t.Fatalf("FrameSize() = %d, want 12", got)
	}
}

func TestHandleDisconnectFiresOnce(t *testing.T) {
	d := New("test")
	calls := 0
	var reason string
	d.OnDisconnect = func(r string) {
		calls++
		reason = r
	}

	d.HandleDisconnect("failed with %s", "0x88890004")
	d.HandleDisconnect("second failure")

	if calls != 1 {
		t.Fatalf("OnDisconnect calls = %d, want 1", calls)
	}
	if reason != "failed with 0x88890004" {
		t.Fatalf("reason = %q", reason)
	}
	if d.Connected.Load() {
		t.Fatal("device should be disconnected")
	}
}
