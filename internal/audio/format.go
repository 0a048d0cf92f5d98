// Package audio defines the closed sample-format vocabulary shared between
// the library core and the platform backends: channel layouts and sample
// types, with their derived sizes.
package audio

import "fmt"

// Channels is a closed set of channel layouts. Backends negotiate one of
// these against whatever the platform reports.
type Channels int

const (
	Mono Channels = iota
	Stereo
	Quad
	X51 // 5.1, side surrounds (or rear, flagged separately)
	X61
	X71
	X3D71 // 7.1 layout driven by a 3D7.1 decoder
	X714
	Ambi3D
)

// Count returns the number of interleaved channels for the layout. Ambi3D
// reports first-order ambisonics (W, X, Y, Z).
func (c Channels) Count() int {
	switch c {
	case Mono:
		return 1
	case Stereo:
		return 2
	case Quad:
		return 4
	case X51:
		return 6
	case X61:
		return 7
	case X71, X3D71:
		return 8
	case X714:
		return 12
	case Ambi3D:
		return 4
	}
	return 0
}

func (c Channels) String() string {
	switch c {
	case Mono:
		return "Mono"
	case Stereo:
		return "Stereo"
	case Quad:
		return "Quadraphonic"
	case X51:
		return "5.1 Surround"
	case X61:
		return "6.1 Surround"
	case X71:
		return "7.1 Surround"
	case X3D71:
		return "3D7.1 Surround"
	case X714:
		return "7.1.4 Surround"
	case Ambi3D:
		return "Ambisonic 3D"
	}
	return fmt.Sprintf("Channels(%d)", int(c))
}

// SampleType is a closed set of PCM sample encodings.
type SampleType int

const (
	Byte SampleType = iota // signed 8-bit
	UByte
	Short // signed 16-bit
	UShort
	Int // signed 32-bit
	UInt
	Float // 32-bit IEEE float
)

// Bytes returns the size of one sample of this type.
func (t SampleType) Bytes() int {
	switch t {
	case Byte, UByte:
		return 1
	case Short, UShort:
		return 2
	case Int, UInt, Float:
		return 4
	}
	return 0
}

func (t SampleType) String() string {
	switch t {
	case Byte:
		return "Int8"
	case UByte:
		return "UInt8"
	case Short:
		return "Int16"
	case UShort:
		return "UInt16"
	case Int:
		return "Int32"
	case UInt:
		return "UInt32"
	case Float:
		return "Float32"
	}
	return fmt.Sprintf("SampleType(%d)", int(t))
}

// FrameSize returns the byte size of one interleaved frame.
func FrameSize(c Channels, t SampleType) int {
	return c.Count() * t.Bytes()
}
