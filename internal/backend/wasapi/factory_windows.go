//go:build windows

package wasapi

import (
	"runtime"
	"sync"

	"github.com/go-ole/go-ole"
	"github.com/moutend/go-wca/pkg/wca"

	"github.com/uniqlow/openal-soft/internal/backend"
	"github.com/uniqlow/openal-soft/internal/device"
)

var (
	factoryOnce sync.Once
	factoryErr  error
)

// ensureInit performs the one-shot COM round-trip on a dedicated OS thread:
// confirm the enumerator can be created, then build the shared device helper
// the proxy thread will own.
func ensureInit() error {
	factoryOnce.Do(func() {
		ch := make(chan error, 1)
		go func() {
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()

			if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
				log.Warn("failed to initialize COM", errAttr(err))
				ch <- err
				return
			}
			defer ole.CoUninitialize()

			var enumerator *wca.IMMDeviceEnumerator
			if err := wca.CoCreateInstance(wca.CLSID_MMDeviceEnumerator, 0, wca.CLSCTX_ALL,
				wca.IID_IMMDeviceEnumerator, &enumerator); err != nil {
				log.Warn("failed to create device enumerator", errAttr(err))
				ch <- err
				return
			}
			enumerator.Release()

			h, err := newDeviceHelper()
			if err == nil {
				helper = h
			}
			ch <- err
		}()
		factoryErr = <-ch
	})
	return factoryErr
}

// Init reports whether the backend is usable on this system.
func Init() error {
	return ensureInit()
}

// Probe enumerates one direction and returns the prefixed device names as a
// null-separated, double-null-terminated string. Failures yield "".
func Probe(t backend.Type) string {
	if err := ensureInit(); err != nil {
		return ""
	}
	if err := initThread(); err != nil {
		return ""
	}
	defer deinitThread()

	switch t {
	case backend.Playback:
		if err := <-pushMessageStatic(msgEnumeratePlayback); err != nil {
			log.Warn("playback enumeration failed", errAttr(err))
		}
		return playbackDevices.probeString()
	case backend.Capture:
		if err := <-pushMessageStatic(msgEnumerateCapture); err != nil {
			log.Warn("capture enumeration failed", errAttr(err))
		}
		return captureDevices.probeString()
	}
	return ""
}

// NewPlayback creates a playback engine bound to the device context.
func NewPlayback(dev *device.Device) (backend.PlaybackBackend, error) {
	if err := ensureInit(); err != nil {
		return nil, backend.Errf(backend.NoDevice, "wasapi backend unavailable: %s", hrText(err))
	}
	return newPlayback(dev), nil
}

// NewCapture creates a capture engine bound to the device context.
func NewCapture(dev *device.Device) (backend.CaptureBackend, error) {
	if err := ensureInit(); err != nil {
		return nil, backend.Errf(backend.NoDevice, "wasapi backend unavailable: %s", hrText(err))
	}
	return newCapture(dev), nil
}
