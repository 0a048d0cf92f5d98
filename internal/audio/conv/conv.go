// Package conv provides the streaming sample-rate/type converter and the
// channel up/down-mixer used by platform backends to bridge a negotiated
// device format to the format the library mixes at.
package conv

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/uniqlow/openal-soft/internal/audio"
)

const (
	fracBits = 16
	fracOne  = 1 << fracBits
)

// SampleConverter converts interleaved PCM between sample types and rates.
// It is a streaming converter: partial source buffers are accepted and the
// inter-frame position carries across calls.
type SampleConverter struct {
	srcType  audio.SampleType
	dstType  audio.SampleType
	channels int
	srcRate  uint32
	dstRate  uint32

	increment uint64
	frac      uint64
	prev      []float32
}

// NewSampleConverter creates a converter for interleaved frames of the given
// channel count from srcType at srcRate to dstType at dstRate.
func NewSampleConverter(srcType, dstType audio.SampleType, channels int, srcRate, dstRate uint32) (*SampleConverter, error) {
	if channels < 1 {
		return nil, fmt.Errorf("invalid channel count %d", channels)
	}
	if srcRate == 0 || dstRate == 0 {
		return nil, fmt.Errorf("invalid sample rates %d -> %d", srcRate, dstRate)
	}
	return &SampleConverter{
		srcType:   srcType,
		dstType:   dstType,
		channels:  channels,
		srcRate:   srcRate,
		dstRate:   dstRate,
		increment: (uint64(srcRate)<<fracBits + uint64(dstRate)/2) / uint64(dstRate),
		frac:      fracOne,
		prev:      make([]float32, channels),
	}, nil
}

// SrcFrameSize returns the byte size of one source frame.
func (c *SampleConverter) SrcFrameSize() int { return c.channels * c.srcType.Bytes() }

// DstFrameSize returns the byte size of one destination frame.
func (c *SampleConverter) DstFrameSize() int { return c.channels * c.dstType.Bytes() }

// Convert reads up to srcFrames frames from src and writes up to dstFrames
// frames into dst, returning the source frames consumed and destination
// frames produced. It always makes progress when both counts are non-zero
// unless the stride owed from a previous call exhausts the source first.
func (c *SampleConverter) Convert(src []byte, srcFrames int, dst []byte, dstFrames int) (consumed, produced int) {
	srcSize := c.srcType.Bytes()
	dstSize := c.dstType.Bytes()
	next := make([]float32, c.channels)

	for produced < dstFrames {
		for c.frac >= fracOne {
			if consumed >= srcFrames {
				return consumed, produced
			}
			decodeFrame(c.prev, src[consumed*c.channels*srcSize:], c.srcType)
			consumed++
			c.frac -= fracOne
		}
		if consumed >= srcFrames {
			return consumed, produced
		}
		decodeFrame(next, src[consumed*c.channels*srcSize:], c.srcType)

		mu := float32(c.frac) / fracOne
		out := dst[produced*c.channels*dstSize:]
		for ch := 0; ch < c.channels; ch++ {
			encodeSample(out[ch*dstSize:], c.prev[ch]+(next[ch]-c.prev[ch])*mu, c.dstType)
		}
		produced++
		c.frac += c.increment
	}
	return consumed, produced
}

// InputDelay returns the source frames currently buffered inside the
// converter, including the fractional inter-frame position. Latency queries
// add this to the frames still staged outside the converter.
func (c *SampleConverter) InputDelay() float64 {
	if c.frac >= fracOne {
		return 0
	}
	return 1 - float64(c.frac)/fracOne
}

// ChannelConverter folds multichannel input down to mono or broadcasts mono
// to stereo. Output is always float32; a SampleConverter downstream handles
// any further type or rate change. The zero value is inactive.
type ChannelConverter struct {
	srcType  audio.SampleType
	srcChans int
	mask     uint32
	dst      audio.Channels
	active   bool
}

// NewChannelConverter builds a converter from srcChans interleaved channels
// of srcType to the dst layout (Mono or Stereo). mask selects, bit per
// source channel, which channels participate in a mono fold-down.
func NewChannelConverter(srcType audio.SampleType, srcChans int, mask uint32, dst audio.Channels) ChannelConverter {
	return ChannelConverter{
		srcType:  srcType,
		srcChans: srcChans,
		mask:     mask,
		dst:      dst,
		active:   true,
	}
}

// Active reports whether the converter was constructed.
func (c *ChannelConverter) Active() bool { return c.active }

// DstChannels returns the output channel count.
func (c *ChannelConverter) DstChannels() int { return c.dst.Count() }

// Convert processes frames interleaved frames from src into dst, which must
// hold frames*DstChannels() float32 samples.
func (c *ChannelConverter) Convert(src []byte, dst []float32, frames int) {
	srcSize := c.srcType.Bytes()
	in := make([]float32, c.srcChans)

	switch c.dst {
	case audio.Mono:
		count := 0
		for ch := 0; ch < c.srcChans; ch++ {
			if c.mask&(1<<uint(ch)) != 0 {
				count++
			}
		}
		scale := float32(1)
		if count > 0 {
			scale = 1 / float32(count)
		}
		for i := 0; i < frames; i++ {
			decodeFrame(in, src[i*c.srcChans*srcSize:], c.srcType)
			var sum float32
			for ch := 0; ch < c.srcChans; ch++ {
				if c.mask&(1<<uint(ch)) != 0 {
					sum += in[ch]
				}
			}
			dst[i] = sum * scale
		}
	case audio.Stereo:
		const monoScale = 0.70710678 // -3dB equal-power split
		for i := 0; i < frames; i++ {
			decodeFrame(in[:1], src[i*srcSize:], c.srcType)
			dst[i*2] = in[0] * monoScale
			dst[i*2+1] = in[0] * monoScale
		}
	}
}

func decodeFrame(dst []float32, src []byte, t audio.SampleType) {
	size := t.Bytes()
	for ch := range dst {
		s := src[ch*size:]
		switch t {
		case audio.Byte:
			dst[ch] = float32(int8(s[0])) / 128
		case audio.UByte:
			dst[ch] = (float32(s[0]) - 128) / 128
		case audio.Short:
			dst[ch] = float32(int16(binary.LittleEndian.Uint16(s))) / 32768
		case audio.UShort:
			dst[ch] = (float32(binary.LittleEndian.Uint16(s)) - 32768) / 32768
		case audio.Int:
			dst[ch] = float32(int32(binary.LittleEndian.Uint32(s))) / 2147483648
		case audio.UInt:
			dst[ch] = (float32(binary.LittleEndian.Uint32(s)) - 2147483648) / 2147483648
		case audio.Float:
			dst[ch] = math.Float32frombits(binary.LittleEndian.Uint32(s))
		}
	}
}

func encodeSample(dst []byte, v float32, t audio.SampleType) {
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	switch t {
	case audio.Byte:
		dst[0] = byte(int8(clampf(v*128, -128, 127)))
	case audio.UByte:
		dst[0] = byte(clampf(v*128+128, 0, 255))
	case audio.Short:
		binary.LittleEndian.PutUint16(dst, uint16(int16(clampf(v*32768, -32768, 32767))))
	case audio.UShort:
		binary.LittleEndian.PutUint16(dst, uint16(clampf(v*32768+32768, 0, 65535)))
	case audio.Int:
		binary.LittleEndian.PutUint32(dst, uint32(int32(clampf(v*2147483648, -2147483648, 2147483647))))
	case audio.UInt:
		binary.LittleEndian.PutUint32(dst, uint32(clampf(v*2147483648+2147483648, 0, 4294967295)))
	case audio.Float:
		binary.LittleEndian.PutUint32(dst, math.Float32bits(v))
	}
}

func clampf(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
