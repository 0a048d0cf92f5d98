package wasapi

import (
	"testing"

	"github.com/uniqlow/openal-soft/internal/audio"
)

func TestMaskFromTopBits(t *testing.T) {
	tests := []struct {
		in, want uint32
	}{
		{0x4, 0x7},
		{0x3, 0x3},
		{0x8, 0xF},
		{0x2D63F, 0x3FFFF},
	}
	for _, tt := range tests {
		if got := maskFromTopBits(tt.in); got != tt.want {
			t.Errorf("maskFromTopBits(0x%x) = 0x%x, want 0x%x", tt.in, got, tt.want)
		}
	}
}

func TestLayoutFromMask(t *testing.T) {
	tests := []struct {
		name     string
		count    uint32
		mask     uint32
		want     audio.Channels
		wantRear bool
		wantOK   bool
	}{
		{"7.1.4", 12, mask714, audio.X714, false, true},
		{"7.1", 8, mask71, audio.X71, false, true},
		{"6.1", 7, mask61, audio.X61, false, true},
		{"5.1 side", 6, mask51, audio.X51, false, true},
		{"5.1 rear", 6, mask51Rear, audio.X51, true, true},
		{"quad", 4, maskQuad, audio.Quad, false, true},
		{"stereo", 2, maskStereo, audio.Stereo, false, true},
		{"mono", 1, maskMono, audio.Mono, false, true},
		{"no mask one channel", 1, 0, audio.Mono, false, true},
		{"no mask two channels", 2, 0, audio.Stereo, false, true},
		{"no mask many channels", 6, 0, 0, false, false},
		{"extra top speakers keep 7.1", 10, mask71 | speakerTopFrontLeft | speakerTopFrontRight, audio.X71, false, true},
		{"missing center falls back to stereo", 6, mask51 &^ speakerFrontCenter, audio.Stereo, false, true},
	}
	for _, tt := range tests {
		got, rear, ok := layoutFromMask(tt.count, tt.mask)
		if ok != tt.wantOK {
			t.Errorf("%s: ok = %v, want %v", tt.name, ok, tt.wantOK)
			continue
		}
		if !ok {
			continue
		}
		if got != tt.want || rear != tt.wantRear {
			t.Errorf("%s: got (%v, rear=%v), want (%v, rear=%v)", tt.name, got, rear, tt.want, tt.wantRear)
		}
	}
}

func TestLayoutSatisfies(t *testing.T) {
	tests := []struct {
		name  string
		chans audio.Channels
		count uint32
		mask  uint32
		want  bool
	}{
		{"5.1 request on 7.1 device", audio.X51, 8, mask71, true},
		{"5.1 request on rear 5.1", audio.X51, 6, mask51Rear, true},
		{"5.1 request on stereo", audio.X51, 2, maskStereo, false},
		{"stereo request no mask", audio.Stereo, 2, 0, true},
		{"3D7.1 request satisfied by 7.1 mask", audio.X3D71, 8, mask71, true},
		{"7.1.4 request on 7.1", audio.X714, 8, mask71, false},
		{"mono request on anything masked mono", audio.Mono, 1, maskMono, true},
	}
	for _, tt := range tests {
		if got := layoutSatisfies(tt.chans, tt.count, tt.mask); got != tt.want {
			t.Errorf("%s: layoutSatisfies = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestFallbackLayout(t *testing.T) {
	tests := []struct {
		count  uint32
		mask   uint32
		want   audio.Channels
		wantOK bool
	}{
		{12, mask714, audio.X714, true},
		{8, mask71, audio.X71, true},
		{6, mask51Rear, audio.X51, true},
		{6, mask51, audio.X51, true},
		{2, 0, audio.Stereo, true},
		{1, maskMono, audio.Mono, true},
		{6, speakerBackCenter, 0, false},
	}
	for _, tt := range tests {
		got, ok := fallbackLayout(tt.count, tt.mask)
		if ok != tt.wantOK || (ok && got != tt.want) {
			t.Errorf("fallbackLayout(%d, 0x%x) = (%v, %v), want (%v, %v)",
				tt.count, tt.mask, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestWireLayout(t *testing.T) {
	tests := []struct {
		chans     audio.Channels
		rear      bool
		wantEff   audio.Channels
		wantCount uint32
		wantMask  uint32
	}{
		{audio.Ambi3D, false, audio.Stereo, 2, maskStereo},
		{audio.X3D71, false, audio.X3D71, 8, mask71},
		{audio.X51, false, audio.X51, 6, mask51},
		{audio.X51, true, audio.X51, 6, mask51Rear},
		{audio.X714, false, audio.X714, 12, mask714},
	}
	for _, tt := range tests {
		eff, count, mask := wireLayout(tt.chans, tt.rear)
		if eff != tt.wantEff || count != tt.wantCount || mask != tt.wantMask {
			t.Errorf("wireLayout(%v, rear=%v) = (%v, %d, 0x%x), want (%v, %d, 0x%x)",
				tt.chans, tt.rear, eff, count, mask, tt.wantEff, tt.wantCount, tt.wantMask)
		}
	}
}

func TestCaptureLayoutOK(t *testing.T) {
	tests := []struct {
		name  string
		chans audio.Channels
		count uint32
		mask  uint32
		want  bool
	}{
		{"mono accepts 5.1", audio.Mono, 6, mask51, true},
		{"stereo accepts mono", audio.Stereo, 1, maskMono, true},
		{"stereo accepts stereo", audio.Stereo, 2, maskStereo, true},
		{"stereo rejects quad", audio.Stereo, 4, maskQuad, false},
		{"5.1 rear interchangeable", audio.X51, 6, mask51Rear, true},
		{"5.1 rejects 7.1", audio.X51, 8, mask71, false},
		{"quad needs exact count", audio.Quad, 4, maskQuad, true},
		{"7.1 no mask", audio.X71, 8, 0, true},
	}
	for _, tt := range tests {
		if got := captureLayoutOK(tt.chans, uint32(tt.chans.Count()), tt.count, tt.mask); got != tt.want {
			t.Errorf("%s: captureLayoutOK = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestDownmixMaskClearsLFE(t *testing.T) {
	// 5.1 input: the LFE sits at channel index 3, so the converter mask is
	// all six channels minus bit 3.
	if got := downmixMask(6, mask51); got != 0b110111 {
		t.Fatalf("downmixMask(6, 5.1) = %#b, want 0b110111", got)
	}
	// No LFE in the input mask: every channel participates.
	if got := downmixMask(4, maskQuad); got != 0b1111 {
		t.Fatalf("downmixMask(4, quad) = %#b, want 0b1111", got)
	}
	// Stereo + LFE puts the LFE at index 2.
	if got := downmixMask(3, maskStereo|speakerLowFrequency); got != 0b011 {
		t.Fatalf("downmixMask(3, 2.1) = %#b, want 0b011", got)
	}
}
