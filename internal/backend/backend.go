// Package backend defines the contracts a platform audio backend presents to
// the library core, and the error kinds those contracts report.
package backend

import (
	"errors"
	"fmt"

	"github.com/uniqlow/openal-soft/internal/device"
)

// Type selects which side of a backend to create or probe.
type Type int

const (
	Playback Type = iota
	Capture
)

func (t Type) String() string {
	if t == Capture {
		return "capture"
	}
	return "playback"
}

// ErrorCode classifies backend failures.
type ErrorCode int

const (
	// DeviceError covers negotiation, activation, duplicate-open, and
	// device-not-found failures.
	DeviceError ErrorCode = iota
	// OutOfMemory is reported when the platform returns its allocation
	// failure status during capture reset.
	OutOfMemory
	// NoDevice indicates the backend is unavailable on this platform.
	NoDevice
)

func (c ErrorCode) String() string {
	switch c {
	case DeviceError:
		return "device error"
	case OutOfMemory:
		return "out of memory"
	case NoDevice:
		return "no device"
	}
	return "unknown"
}

// Error is the failure type crossing the backend boundary.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Errf builds a backend error with a formatted message.
func Errf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the error code, defaulting to DeviceError for foreign
// errors.
func CodeOf(err error) ErrorCode {
	var be *Error
	if errors.As(err, &be) {
		return be.Code
	}
	return DeviceError
}

// PlaybackBackend is the contract a playback engine presents to the library.
type PlaybackBackend interface {
	// Open binds the engine to the named device; empty or prefixed-empty
	// means the default endpoint. A second Open on an open engine fails.
	Open(name string) error
	// Reset (re)negotiates the stream format against the caller's requests.
	Reset() error
	// Start begins streaming; Stop halts it and joins the worker.
	Start() error
	Stop()
	// ClockLatency reports the device clock and current output latency.
	ClockLatency() device.ClockLatency
	// Close releases the device. The engine may be reopened afterwards.
	Close()
}

// CaptureBackend is the contract a capture engine presents to the library.
type CaptureBackend interface {
	Open(name string) error
	Start() error
	Stop()
	// CaptureSamples copies frames frames into dst, zero-filling anything
	// not yet recorded.
	CaptureSamples(dst []byte, frames uint32)
	// AvailableSamples reports frames ready for CaptureSamples.
	AvailableSamples() uint32
	Close()
}
