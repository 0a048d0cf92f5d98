// Package device holds the device context a backend engine is bound to: the
// format the library mixes at, the caller's format requests, and the
// callbacks the engine drives in real time.
package device

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/uniqlow/openal-soft/internal/audio"
	"github.com/uniqlow/openal-soft/internal/logging"
)

var log = logging.L("device")

// Device is the mutable context shared between the library core and one
// backend engine. The engine rewrites the format fields during reset to
// reflect what was negotiated with the platform.
type Device struct {
	Name string

	// Format the library mixes at. UpdateSize and BufferSize are in frames
	// at Frequency.
	Frequency  uint32
	UpdateSize uint32
	BufferSize uint32
	FmtChans   audio.Channels
	FmtType    audio.SampleType

	// Caller requests. When unset the backend adopts the device's native
	// value during negotiation.
	FrequencyRequest bool
	ChannelsRequest  bool

	// DirectEar is set when the endpoint form factor indicates headphones
	// or a headset.
	DirectEar bool

	Connected atomic.Bool

	// RenderSamples asks the mixer for frames interleaved frames of the
	// negotiated channel count. Called from the engine's worker thread with
	// the engine mutex held.
	RenderSamples func(dst []byte, frames, channels uint32)

	// OnDisconnect is invoked once when the engine loses the device mid-run.
	OnDisconnect func(reason string)

	epoch time.Time
}

// New creates a device context with library defaults. The caller flips the
// request flags before handing the context to a backend.
func New(name string) *Device {
	d := &Device{
		Name:       name,
		Frequency:  48000,
		UpdateSize: 1024,
		BufferSize: 3072,
		FmtChans:   audio.Stereo,
		FmtType:    audio.Float,
		epoch:      time.Now(),
	}
	d.Connected.Store(true)
	return d
}

// FrameSize returns the byte size of one frame at the current format.
func (d *Device) FrameSize() uint32 {
	return uint32(audio.FrameSize(d.FmtChans, d.FmtType))
}

// ClockTime returns the device clock, a monotonic time since the context was
// created.
func (d *Device) ClockTime() time.Duration {
	return time.Since(d.epoch)
}

// HandleDisconnect marks the device disconnected and notifies the library.
// Safe to call from engine worker threads; only the first call has effect.
func (d *Device) HandleDisconnect(format string, args ...any) {
	if !d.Connected.CompareAndSwap(true, false) {
		return
	}
	reason := fmt.Sprintf(format, args...)
	log.Warn("device disconnected", "device", d.Name, "reason", reason)
	if d.OnDisconnect != nil {
		d.OnDisconnect(reason)
	}
}

// ClockLatency pairs the device clock with the current output latency.
type ClockLatency struct {
	ClockTime time.Duration
	Latency   time.Duration
}
