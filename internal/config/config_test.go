package config

import "testing"

func TestGetBoolDefault(t *testing.T) {
	Reset()
	if !GetBool("", "wasapi", "allow-resampler", true) {
		t.Fatal("unset key should return the default")
	}
	if GetBool("", "wasapi", "allow-resampler", false) {
		t.Fatal("unset key should return the default")
	}
}

func TestGetBoolBlockValue(t *testing.T) {
	Reset()
	Set("wasapi.allow-resampler", false)
	if GetBool("", "wasapi", "allow-resampler", true) {
		t.Fatal("block value should override the default")
	}
}

func TestGetBoolDeviceOverride(t *testing.T) {
	Reset()
	Set("wasapi.allow-resampler", true)
	Set("wasapi.devices.Speakers.allow-resampler", false)

	if GetBool("Speakers", "wasapi", "allow-resampler", true) {
		t.Fatal("device override should win")
	}
	if !GetBool("Headphones", "wasapi", "allow-resampler", true) {
		t.Fatal("other devices should see the block value")
	}
}

func TestGetStringAndInt(t *testing.T) {
	Reset()
	Set("wasapi.output-mode", "surround")
	Set("wasapi.buffer-count", 4)

	if got := GetString("", "wasapi", "output-mode", "stereo"); got != "surround" {
		t.Fatalf("GetString = %q, want %q", got, "surround")
	}
	if got := GetInt("", "wasapi", "buffer-count", 2); got != 4 {
		t.Fatalf("GetInt = %d, want 4", got)
	}
	if got := GetInt("", "wasapi", "missing", 7); got != 7 {
		t.Fatalf("GetInt default = %d, want 7", got)
	}
}
