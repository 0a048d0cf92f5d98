package wasapi

import (
	"math/bits"

	"github.com/uniqlow/openal-soft/internal/audio"
)

// Speaker position bits, matching the KSAUDIO channel mask layout.
const (
	speakerFrontLeft     = 0x1
	speakerFrontRight    = 0x2
	speakerFrontCenter   = 0x4
	speakerLowFrequency  = 0x8
	speakerBackLeft      = 0x10
	speakerBackRight     = 0x20
	speakerBackCenter    = 0x100
	speakerSideLeft      = 0x200
	speakerSideRight     = 0x400
	speakerTopFrontLeft  = 0x1000
	speakerTopFrontRight = 0x4000
	speakerTopBackLeft   = 0x8000
	speakerTopBackRight  = 0x20000
)

// Channel masks for the recognized layouts.
const (
	maskMono   = speakerFrontCenter
	maskStereo = speakerFrontLeft | speakerFrontRight
	maskQuad   = maskStereo | speakerBackLeft | speakerBackRight
	mask51     = maskStereo | speakerFrontCenter | speakerLowFrequency | speakerSideLeft | speakerSideRight
	mask51Rear = maskStereo | speakerFrontCenter | speakerLowFrequency | speakerBackLeft | speakerBackRight
	mask61     = mask51 | speakerBackCenter
	mask71     = mask51 | speakerBackLeft | speakerBackRight
	mask714    = mask71 | speakerTopFrontLeft | speakerTopFrontRight | speakerTopBackLeft | speakerTopBackRight
)

// maskFromTopBits propagates the highest set bit downward, producing the
// smallest contiguous mask covering bit 0 through the input's top bit. Match
// tests use it so extra speakers above a layout don't disqualify the layout
// while missing lower speakers do.
func maskFromTopBits(b uint32) uint32 {
	b |= b >> 1
	b |= b >> 2
	b |= b >> 4
	b |= b >> 8
	b |= b >> 16
	return b
}

var (
	fillMono   = maskFromTopBits(maskMono)
	fillStereo = maskFromTopBits(maskStereo)
	fillQuad   = maskFromTopBits(maskQuad)
	fill51     = maskFromTopBits(mask51)
	fill51Rear = maskFromTopBits(mask51Rear)
	fill61     = maskFromTopBits(mask61)
	fill71     = maskFromTopBits(mask71)
	fill714    = maskFromTopBits(mask714)
)

// layoutFromMask auto-selects a channel layout for a device mask when the
// caller did not request one, preferring the widest layout whose speakers
// are all present. A zero mask can only be assumed mono or stereo.
func layoutFromMask(count, mask uint32) (chans audio.Channels, isRear51, ok bool) {
	switch {
	case count >= 12 && mask&fill714 == mask714:
		return audio.X714, false, true
	case count >= 8 && mask&fill71 == mask71:
		return audio.X71, false, true
	case count >= 7 && mask&fill61 == mask61:
		return audio.X61, false, true
	case count >= 6 && mask&fill51 == mask51:
		return audio.X51, false, true
	case count >= 6 && mask&fill51Rear == mask51Rear:
		return audio.X51, true, true
	case count >= 4 && mask&fillQuad == maskQuad:
		return audio.Quad, false, true
	case count >= 2 && mask&fillStereo == maskStereo, count == 2 && mask == 0:
		return audio.Stereo, false, true
	case count >= 1 && mask&fillMono == maskMono, count == 1 && mask == 0:
		return audio.Mono, false, true
	}
	return 0, false, false
}

// layoutSatisfies reports whether a returned channel count and mask can carry
// the requested layout without gaps. A zero mask is assumed compatible when
// the channel count suffices.
func layoutSatisfies(c audio.Channels, count, mask uint32) bool {
	switch c {
	case audio.Mono:
		return count >= 1 && (mask&fillMono == maskMono || mask == 0)
	case audio.Stereo:
		return count >= 2 && (mask&fillStereo == maskStereo || mask == 0)
	case audio.Quad:
		return count >= 4 && (mask&fillQuad == maskQuad || mask == 0)
	case audio.X51:
		return count >= 6 && (mask&fill51 == mask51 || mask&fill51Rear == mask51Rear || mask == 0)
	case audio.X61:
		return count >= 7 && (mask&fill61 == mask61 || mask == 0)
	case audio.X71, audio.X3D71:
		return count >= 8 && (mask&fill71 == mask71 || mask == 0)
	case audio.X714:
		return count >= 12 && (mask&fill714 == mask714 || mask == 0)
	}
	return false
}

// fallbackLayout downgrades to the best layout a returned mask supports when
// the request cannot be honored. 5.1 side and rear are interchangeable here.
func fallbackLayout(count, mask uint32) (audio.Channels, bool) {
	switch {
	case count >= 12 && mask&fill714 == mask714:
		return audio.X714, true
	case count >= 8 && mask&fill71 == mask71:
		return audio.X71, true
	case count >= 7 && mask&fill61 == mask61:
		return audio.X61, true
	case count >= 6 && (mask&fill51 == mask51 || mask&fill51Rear == mask51Rear):
		return audio.X51, true
	case count >= 4 && mask&fillQuad == maskQuad:
		return audio.Quad, true
	case count >= 2 && (mask&fillStereo == maskStereo || mask == 0):
		return audio.Stereo, true
	case count >= 1 && (mask&fillMono == maskMono || mask == 0):
		return audio.Mono, true
	}
	return 0, false
}

// wireLayout maps a requested layout to the channel count and mask asked of
// the OS. Ambisonic output rides on stereo; 3D7.1 uses the plain 7.1 wire
// layout while the caller-visible layout is preserved.
func wireLayout(c audio.Channels, isRear51 bool) (effective audio.Channels, count, mask uint32) {
	switch c {
	case audio.Mono:
		return audio.Mono, 1, maskMono
	case audio.Ambi3D:
		return audio.Stereo, 2, maskStereo
	case audio.Stereo:
		return audio.Stereo, 2, maskStereo
	case audio.Quad:
		return audio.Quad, 4, maskQuad
	case audio.X51:
		if isRear51 {
			return audio.X51, 6, mask51Rear
		}
		return audio.X51, 6, mask51
	case audio.X61:
		return audio.X61, 7, mask61
	case audio.X71:
		return audio.X71, 8, mask71
	case audio.X3D71:
		return audio.X3D71, 8, mask71
	case audio.X714:
		return audio.X714, 12, mask714
	}
	return audio.Stereo, 2, maskStereo
}

// captureLayoutOK validates a capture device format against the caller's
// requested layout. Capture never downgrades: a mono request accepts any
// input, stereo accepts mono or stereo, and everything else must match the
// channel count exactly with a compatible (or absent) mask.
func captureLayoutOK(c audio.Channels, ambiChans, count, mask uint32) bool {
	switch c {
	case audio.Mono:
		return true
	case audio.Stereo:
		return (count == 2 && (mask == 0 || mask&fillStereo == maskStereo)) ||
			(count == 1 && mask&fillMono == maskMono)
	case audio.Quad:
		return count == 4 && (mask == 0 || mask&fillQuad == maskQuad)
	case audio.X51:
		return count == 6 && (mask == 0 || mask&fill51 == mask51 || mask&fill51Rear == mask51Rear)
	case audio.X61:
		return count == 7 && (mask == 0 || mask&fill61 == mask61)
	case audio.X71, audio.X3D71:
		return count == 8 && (mask == 0 || mask&fill71 == mask71)
	case audio.X714:
		return count == 12 && (mask == 0 || mask&fill714 == mask714)
	case audio.Ambi3D:
		return mask == 0 && count == ambiChans
	}
	return false
}

// downmixMask selects the input channels participating in a mono fold-down:
// every channel, minus the LFE if the input mask carries one. The LFE's
// channel index is the number of mask bits at or below the LFE bit, less one.
func downmixMask(channels, mask uint32) uint32 {
	m := uint32(1)<<channels - 1
	if mask&speakerLowFrequency != 0 {
		lfeIdx := bits.OnesCount32(mask&maskFromTopBits(speakerLowFrequency)) - 1
		m &^= uint32(1) << uint(lfeIdx)
	}
	return m
}
