package wasapi

import (
	"testing"
	"time"

	"github.com/uniqlow/openal-soft/internal/audio"
)

func TestPlaybackWireTypeWidening(t *testing.T) {
	tests := []struct {
		in       audio.SampleType
		wantEff  audio.SampleType
		wantBits uint16
		wantSub  subFormat
	}{
		{audio.Byte, audio.UByte, 8, subPCM},
		{audio.UByte, audio.UByte, 8, subPCM},
		{audio.UShort, audio.Short, 16, subPCM},
		{audio.Short, audio.Short, 16, subPCM},
		{audio.UInt, audio.Int, 32, subPCM},
		{audio.Int, audio.Int, 32, subPCM},
		{audio.Float, audio.Float, 32, subFloat},
	}
	for _, tt := range tests {
		eff, bits, sub := playbackWireType(tt.in)
		if eff != tt.wantEff || bits != tt.wantBits || sub != tt.wantSub {
			t.Errorf("playbackWireType(%v) = (%v, %d, %v), want (%v, %d, %v)",
				tt.in, eff, bits, sub, tt.wantEff, tt.wantBits, tt.wantSub)
		}
	}
}

func TestCaptureWireBitsIgnoresSignedness(t *testing.T) {
	for _, typ := range []audio.SampleType{audio.Byte, audio.UByte} {
		if bits, sub := captureWireBits(typ); bits != 8 || sub != subPCM {
			t.Errorf("captureWireBits(%v) = (%d, %v)", typ, bits, sub)
		}
	}
	if bits, sub := captureWireBits(audio.Float); bits != 32 || sub != subFloat {
		t.Errorf("captureWireBits(Float) = (%d, %v)", bits, sub)
	}
}

func TestPlaybackTypeFromWire(t *testing.T) {
	tests := []struct {
		name     string
		f        waveFormat
		want     audio.SampleType
		wantOK   bool
		wantBits uint16
	}{
		{"pcm 8", waveFormat{bits: 8, sub: subPCM}, audio.UByte, true, 8},
		{"pcm 16", waveFormat{bits: 16, sub: subPCM}, audio.Short, true, 16},
		{"pcm 32", waveFormat{bits: 32, sub: subPCM}, audio.Int, true, 32},
		{"pcm 24 rewritten", waveFormat{bits: 24, sub: subPCM}, audio.Short, false, 16},
		{"float 32", waveFormat{bits: 32, sub: subFloat}, audio.Float, true, 32},
		{"unknown rewritten", waveFormat{bits: 16, sub: subUnknown}, audio.Short, false, 16},
	}
	for _, tt := range tests {
		f := tt.f
		got, ok := playbackTypeFromWire(&f)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("%s: = (%v, %v), want (%v, %v)", tt.name, got, ok, tt.want, tt.wantOK)
		}
		if f.bits != tt.wantBits {
			t.Errorf("%s: bits rewritten to %d, want %d", tt.name, f.bits, tt.wantBits)
		}
	}
}

func TestCaptureTypeFromWire(t *testing.T) {
	f := waveFormat{bits: 16, sub: subPCM}
	if got, ok := captureTypeFromWire(&f); !ok || got != audio.Short {
		t.Fatalf("captureTypeFromWire(pcm16) = (%v, %v)", got, ok)
	}
	f = waveFormat{bits: 24, sub: subPCM}
	if _, ok := captureTypeFromWire(&f); ok {
		t.Fatal("pcm 24 should not be representable for capture")
	}
	f = waveFormat{bits: 32, sub: subUnknown}
	if _, ok := captureTypeFromWire(&f); ok {
		t.Fatal("unknown sub-type should not be representable for capture")
	}
}

func TestFramesDurationRoundTrip(t *testing.T) {
	if got := framesDuration(48000, 48000); got != time.Second {
		t.Fatalf("framesDuration(48000, 48000) = %v, want 1s", got)
	}
	if got := durationFrames(time.Second, 44100); got != 44100 {
		t.Fatalf("durationFrames(1s, 44100) = %d, want 44100", got)
	}
	// 10ms at 48kHz is exactly 480 frames.
	if got := durationFrames(10*time.Millisecond, 48000); got != 480 {
		t.Fatalf("durationFrames(10ms, 48000) = %d, want 480", got)
	}
}

func TestAlignPeriod(t *testing.T) {
	tests := []struct {
		name   string
		period time.Duration
		update time.Duration
		want   time.Duration
	}{
		{"period already covers update", 20 * time.Millisecond, 10 * time.Millisecond, 20 * time.Millisecond},
		{"exact multiple", 10 * time.Millisecond, 20 * time.Millisecond, 20 * time.Millisecond},
		{"rounds up to reach the update time", 10 * time.Millisecond, 21 * time.Millisecond, 30 * time.Millisecond},
		{"rounds up past half", 10 * time.Millisecond, 26 * time.Millisecond, 30 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := alignPeriod(tt.period, tt.update); got != tt.want {
			t.Errorf("%s: alignPeriod(%v, %v) = %v, want %v", tt.name, tt.period, tt.update, got, tt.want)
		}
	}
}
