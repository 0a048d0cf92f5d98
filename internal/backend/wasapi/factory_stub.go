//go:build !windows

package wasapi

import (
	"errors"

	"github.com/uniqlow/openal-soft/internal/backend"
	"github.com/uniqlow/openal-soft/internal/device"
)

var errUnsupported = errors.New("wasapi backend is only available on Windows")

// Init reports whether the backend is usable on this system.
func Init() error { return errUnsupported }

// Probe returns no devices off Windows.
func Probe(t backend.Type) string { return "" }

// NewPlayback is unavailable off Windows.
func NewPlayback(dev *device.Device) (backend.PlaybackBackend, error) {
	return nil, backend.Errf(backend.NoDevice, "%s", errUnsupported)
}

// NewCapture is unavailable off Windows.
func NewCapture(dev *device.Device) (backend.CaptureBackend, error) {
	return nil, backend.Errf(backend.NoDevice, "%s", errUnsupported)
}
