package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/uniqlow/openal-soft/internal/audio"
	"github.com/uniqlow/openal-soft/internal/backend/wasapi"
	"github.com/uniqlow/openal-soft/internal/device"
)

var (
	recordOutput   string
	recordSeconds  float64
	recordRate     uint32
	recordChannels string
	recordDevice   string
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record from a capture device to a WAV file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return recordWAV()
	},
}

func init() {
	recordCmd.Flags().StringVarP(&recordOutput, "output", "o", "capture.wav", "output WAV file")
	recordCmd.Flags().Float64VarP(&recordSeconds, "duration", "d", 5, "recording duration in seconds")
	recordCmd.Flags().Uint32VarP(&recordRate, "rate", "r", 44100, "sample rate in Hz")
	recordCmd.Flags().StringVarP(&recordChannels, "channels", "c", "stereo", "channel layout (mono, stereo)")
	recordCmd.Flags().StringVar(&recordDevice, "device", "", "capture device name (default endpoint if empty)")
}

func recordWAV() error {
	dev := device.New("")
	dev.Frequency = recordRate
	dev.FrequencyRequest = true
	dev.FmtType = audio.Short
	dev.ChannelsRequest = true
	switch recordChannels {
	case "mono":
		dev.FmtChans = audio.Mono
	case "stereo":
		dev.FmtChans = audio.Stereo
	default:
		return fmt.Errorf("unsupported channel layout %q", recordChannels)
	}
	// Roughly 200ms of capture buffering.
	dev.BufferSize = recordRate / 5
	dev.UpdateSize = recordRate / 50

	eng, err := wasapi.NewCapture(dev)
	if err != nil {
		return err
	}
	if err := eng.Open(recordDevice); err != nil {
		return err
	}
	defer eng.Close()

	if err := eng.Start(); err != nil {
		return err
	}

	log.Info("recording", "device", dev.Name, "rate", dev.Frequency,
		"channels", dev.FmtChans.String(), "duration", recordSeconds)

	frameSize := int(dev.FrameSize())
	wantFrames := int(float64(dev.Frequency) * recordSeconds)
	pcm := make([]byte, 0, wantFrames*frameSize)
	chunk := make([]byte, int(dev.UpdateSize)*frameSize)

	for captured := 0; captured < wantFrames; {
		avail := int(eng.AvailableSamples())
		if avail == 0 {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		for avail > 0 && captured < wantFrames {
			n := min(avail, int(dev.UpdateSize))
			n = min(n, wantFrames-captured)
			eng.CaptureSamples(chunk, uint32(n))
			pcm = append(pcm, chunk[:n*frameSize]...)
			captured += n
			avail -= n
		}
	}
	eng.Stop()

	wav := encodeWAV(pcm, uint16(dev.FmtChans.Count()), dev.Frequency, 16)
	if err := os.WriteFile(recordOutput, wav, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", recordOutput, err)
	}
	log.Info("wrote recording", "file", recordOutput, "bytes", len(wav))
	return nil
}

// encodeWAV wraps 16-bit PCM data in a RIFF/WAVE header.
func encodeWAV(data []byte, channels uint16, rate uint32, bits uint16) []byte {
	blockAlign := channels * bits / 8
	buf := new(bytes.Buffer)

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(len(data)+36))
	buf.WriteString("WAVEfmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, channels)
	binary.Write(buf, binary.LittleEndian, rate)
	binary.Write(buf, binary.LittleEndian, rate*uint32(blockAlign))
	binary.Write(buf, binary.LittleEndian, blockAlign)
	binary.Write(buf, binary.LittleEndian, bits)
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(data)))
	buf.Write(data)

	return buf.Bytes()
}
