package conv

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/uniqlow/openal-soft/internal/audio"
)

func shortBytes(vals ...int16) []byte {
	out := make([]byte, len(vals)*2)
	for i, v := range vals {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

func floatAt(buf []byte, i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
}

func TestSampleConverterRejectsBadArgs(t *testing.T) {
	if _, err := NewSampleConverter(audio.Short, audio.Short, 0, 48000, 48000); err == nil {
		t.Fatal("zero channels should fail")
	}
	if _, err := NewSampleConverter(audio.Short, audio.Short, 2, 0, 48000); err == nil {
		t.Fatal("zero source rate should fail")
	}
}

func TestSampleConverterPassthroughStreams(t *testing.T) {
	c, err := NewSampleConverter(audio.Short, audio.Short, 1, 48000, 48000)
	if err != nil {
		t.Fatal(err)
	}

	src := shortBytes(10, 20, 30)
	dst := make([]byte, 8*2)
	consumed, produced := c.Convert(src, 3, dst, 8)
	if consumed != 3 || produced != 2 {
		t.Fatalf("Convert = (%d, %d), want (3, 2)", consumed, produced)
	}
	if got := int16(binary.LittleEndian.Uint16(dst)); got != 10 {
		t.Errorf("dst[0] = %d, want 10", got)
	}
	if got := int16(binary.LittleEndian.Uint16(dst[2:])); got != 20 {
		t.Errorf("dst[1] = %d, want 20", got)
	}

	// The held frame comes out when more source arrives.
	consumed, produced = c.Convert(shortBytes(40), 1, dst, 8)
	if produced < 1 {
		t.Fatalf("follow-up Convert = (%d, %d), want at least one frame", consumed, produced)
	}
	if got := int16(binary.LittleEndian.Uint16(dst)); got != 30 {
		t.Errorf("held frame = %d, want 30", got)
	}
}

func TestSampleConverterShortToFloat(t *testing.T) {
	c, err := NewSampleConverter(audio.Short, audio.Float, 1, 44100, 44100)
	if err != nil {
		t.Fatal(err)
	}

	dst := make([]byte, 4*4)
	_, produced := c.Convert(shortBytes(16384, -16384, 0), 3, dst, 4)
	if produced != 2 {
		t.Fatalf("produced = %d, want 2", produced)
	}
	if got := floatAt(dst, 0); got != 0.5 {
		t.Errorf("dst[0] = %v, want 0.5", got)
	}
	if got := floatAt(dst, 1); got != -0.5 {
		t.Errorf("dst[1] = %v, want -0.5", got)
	}
}

func TestSampleConverterDownsampleHalves(t *testing.T) {
	c, err := NewSampleConverter(audio.Short, audio.Short, 1, 96000, 48000)
	if err != nil {
		t.Fatal(err)
	}

	src := shortBytes(0, 1, 2, 3, 4, 5, 6, 7)
	dst := make([]byte, 16*2)
	consumed, produced := c.Convert(src, 8, dst, 16)
	if consumed != 8 {
		t.Fatalf("consumed = %d, want 8", consumed)
	}
	// Every other source frame, minus the converter's one-frame hold.
	if produced < 3 || produced > 4 {
		t.Fatalf("produced = %d, want 3 or 4", produced)
	}
	for i := 0; i < produced; i++ {
		if got := int16(binary.LittleEndian.Uint16(dst[i*2:])); got != int16(2*i) {
			t.Errorf("dst[%d] = %d, want %d", i, got, 2*i)
		}
	}
}

func TestSampleConverterUpsampleDoubles(t *testing.T) {
	c, err := NewSampleConverter(audio.Short, audio.Short, 1, 24000, 48000)
	if err != nil {
		t.Fatal(err)
	}

	src := shortBytes(0, 100, 200, 300)
	dst := make([]byte, 16*2)
	consumed, produced := c.Convert(src, 4, dst, 16)
	if consumed != 4 {
		t.Fatalf("consumed = %d, want 4", consumed)
	}
	if produced < 6 || produced > 8 {
		t.Fatalf("produced = %d, want about 2x input", produced)
	}
	// Interpolated midpoints land between neighboring source values.
	if got := int16(binary.LittleEndian.Uint16(dst[2:])); got != 50 {
		t.Errorf("dst[1] = %d, want 50", got)
	}
}

func TestSampleConverterProgressOnTinyDst(t *testing.T) {
	c, err := NewSampleConverter(audio.Short, audio.Short, 1, 48000, 48000)
	if err != nil {
		t.Fatal(err)
	}

	src := shortBytes(1, 2, 3, 4)
	dst := make([]byte, 2)
	total := 0
	remaining := 4
	offset := 0
	for remaining > 0 {
		consumed, produced := c.Convert(src[offset*2:], remaining, dst, 1)
		if consumed == 0 && produced == 0 {
			break
		}
		offset += consumed
		remaining -= consumed
		total += produced
	}
	if total < 3 {
		t.Fatalf("total produced = %d, want at least 3", total)
	}
}

func TestInputDelayBounds(t *testing.T) {
	c, err := NewSampleConverter(audio.Short, audio.Short, 1, 44100, 48000)
	if err != nil {
		t.Fatal(err)
	}
	if got := c.InputDelay(); got != 0 {
		t.Fatalf("fresh InputDelay() = %v, want 0", got)
	}

	dst := make([]byte, 64*2)
	c.Convert(shortBytes(1, 2, 3, 4, 5, 6, 7, 8), 8, dst, 64)
	if got := c.InputDelay(); got < 0 || got > 1 {
		t.Fatalf("InputDelay() = %v, want within [0, 1]", got)
	}
}

func TestChannelConverterMonoDownmixSkipsMaskedOut(t *testing.T) {
	// Six channels with channel 3 (the LFE slot) excluded from the mix.
	cc := NewChannelConverter(audio.Short, 6, 0b110111, audio.Mono)
	if !cc.Active() {
		t.Fatal("converter should be active")
	}
	if got := cc.DstChannels(); got != 1 {
		t.Fatalf("DstChannels() = %d, want 1", got)
	}

	src := shortBytes(16384, 16384, 16384, 32000, 16384, 16384)
	dst := make([]float32, 1)
	cc.Convert(src, dst, 1)
	if math.Abs(float64(dst[0]-0.5)) > 1e-4 {
		t.Fatalf("downmix = %v, want 0.5 (LFE excluded)", dst[0])
	}
}

func TestChannelConverterMonoToStereo(t *testing.T) {
	cc := NewChannelConverter(audio.Short, 1, 0x1, audio.Stereo)
	src := shortBytes(16384, -16384)
	dst := make([]float32, 4)
	cc.Convert(src, dst, 2)

	const want = 0.5 * 0.70710678
	if math.Abs(float64(dst[0]-want)) > 1e-4 || dst[0] != dst[1] {
		t.Fatalf("frame 0 = (%v, %v), want both %v", dst[0], dst[1], want)
	}
	if math.Abs(float64(dst[2]+want)) > 1e-4 || dst[2] != dst[3] {
		t.Fatalf("frame 1 = (%v, %v), want both %v", dst[2], dst[3], -want)
	}
}

func TestChannelConverterZeroValueInactive(t *testing.T) {
	var cc ChannelConverter
	if cc.Active() {
		t.Fatal("zero value should be inactive")
	}
}
