package wasapi

import (
	"fmt"
	"math"
	"time"

	"github.com/uniqlow/openal-soft/internal/audio"
)

// subFormat classifies the wave sub-type. Anything beyond integer PCM and
// IEEE float is unknown and gets normalized during negotiation.
type subFormat int

const (
	subUnknown subFormat = iota
	subPCM
	subFloat
)

func (s subFormat) String() string {
	switch s {
	case subPCM:
		return "PCM"
	case subFloat:
		return "IEEE Float"
	}
	return "Unknown"
}

// waveFormat is the OS-neutral view of an extensible wave format used by the
// negotiation logic. The Windows layer converts to and from the wire layout.
type waveFormat struct {
	channels  uint32
	mask      uint32
	rate      uint32
	bits      uint16
	validBits uint16
	sub       subFormat
}

// playbackWireType widens a requested sample type to one the OS render path
// accepts: signed 8-bit becomes unsigned, unsigned 16/32-bit become signed.
// Returns the caller-visible effective type and the wire bits/sub-type.
func playbackWireType(t audio.SampleType) (effective audio.SampleType, bits uint16, sub subFormat) {
	switch t {
	case audio.Byte, audio.UByte:
		return audio.UByte, 8, subPCM
	case audio.UShort, audio.Short:
		return audio.Short, 16, subPCM
	case audio.UInt, audio.Int:
		return audio.Int, 32, subPCM
	case audio.Float:
		return audio.Float, 32, subFloat
	}
	return audio.Short, 16, subPCM
}

// captureWireBits maps a requested capture type to wire bits and sub-type.
// Signedness is irrelevant on the wire; the converter handles it.
func captureWireBits(t audio.SampleType) (bits uint16, sub subFormat) {
	switch t {
	case audio.Byte, audio.UByte:
		return 8, subPCM
	case audio.Short, audio.UShort:
		return 16, subPCM
	case audio.Int, audio.UInt:
		return 32, subPCM
	case audio.Float:
		return 32, subFloat
	}
	return 16, subPCM
}

// playbackTypeFromWire re-derives the caller-visible sample type from a
// returned wire format. ok is false when the wire format had to be rewritten
// to 16-bit signed PCM to become representable.
func playbackTypeFromWire(f *waveFormat) (audio.SampleType, bool) {
	switch f.sub {
	case subPCM:
		switch f.bits {
		case 8:
			return audio.UByte, true
		case 16:
			return audio.Short, true
		case 32:
			return audio.Int, true
		}
		f.bits = 16
		f.validBits = 16
		return audio.Short, false
	case subFloat:
		f.bits = 32
		f.validBits = 32
		return audio.Float, true
	}
	f.sub = subPCM
	f.bits = 16
	f.validBits = 16
	return audio.Short, false
}

// captureTypeFromWire maps a returned capture wire format to the converter
// source type. Unknown combinations are not representable for capture.
func captureTypeFromWire(f *waveFormat) (audio.SampleType, bool) {
	switch f.sub {
	case subPCM:
		switch f.bits {
		case 8:
			return audio.UByte, true
		case 16:
			return audio.Short, true
		case 32:
			return audio.Int, true
		}
	case subFloat:
		if f.bits == 32 {
			return audio.Float, true
		}
	}
	return 0, false
}

// framesDuration converts a frame count at a rate to wall time.
func framesDuration(frames, rate uint32) time.Duration {
	return time.Duration(frames) * time.Second / time.Duration(rate)
}

// durationFrames converts wall time to a frame count at a rate, rounding
// half up.
func durationFrames(d time.Duration, rate uint32) uint32 {
	f := (d.Nanoseconds()*int64(rate) + int64(time.Second)/2) / int64(time.Second)
	if f > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(f)
}

// logFormat traces a wave format at debug level.
func logFormat(msg string, f waveFormat) {
	log.Debug(msg,
		"channels", f.channels,
		"mask", fmt.Sprintf("0x%x", f.mask),
		"rate", f.rate,
		"bits", f.bits,
		"validBits", f.validBits,
		"subtype", f.sub.String(),
	)
}

// alignPeriod rounds the device period up to the nearest multiple reaching
// the requested update time.
func alignPeriod(devPeriod, updateTime time.Duration) time.Duration {
	if devPeriod <= 0 || devPeriod >= updateTime {
		return devPeriod
	}
	mult := (updateTime + devPeriod - 1) / devPeriod
	if mult < 1 {
		mult = 1
	}
	return devPeriod * mult
}
