//go:build windows

package wasapi

import (
	"errors"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/go-ole/go-ole"
	"github.com/moutend/go-wca/pkg/wca"
	"golang.org/x/sys/windows"

	"github.com/uniqlow/openal-soft/internal/audio"
	"github.com/uniqlow/openal-soft/internal/audio/conv"
	"github.com/uniqlow/openal-soft/internal/audio/ring"
	"github.com/uniqlow/openal-soft/internal/backend"
	"github.com/uniqlow/openal-soft/internal/device"
	"github.com/uniqlow/openal-soft/internal/events"
)

// capture records from one endpoint into a ring buffer the caller drains.
// The record thread is the sole producer; callers are the sole consumer.
type capture struct {
	dev *device.Device

	opened      bool
	mmdev       *wca.IMMDevice
	client      *wca.IAudioClient
	capture     *wca.IAudioCaptureClient
	notifyEvent windows.Handle

	channelConv conv.ChannelConverter
	sampleConv  *conv.SampleConverter
	ring        *ring.Buffer

	wireFormat waveFormat

	killNow atomic.Bool
	thread  sync.WaitGroup
}

func newCapture(dev *device.Device) *capture {
	c := &capture{dev: dev}
	c.killNow.Store(true)
	return c
}

// Open binds the engine to a device and immediately negotiates the stream
// format; capture has no separate reset entry point.
func (c *capture) Open(name string) error {
	if c.opened {
		return backend.Errf(backend.DeviceError, "unexpected duplicate open call")
	}

	if c.notifyEvent == 0 {
		ev, err := windows.CreateEvent(nil, 0, 0, nil)
		if err != nil {
			log.Error("failed to create notify event", errAttr(err))
			return backend.Errf(backend.DeviceError, "failed to create notify events")
		}
		c.notifyEvent = ev
	}

	if err := initThread(); err != nil {
		return backend.Errf(backend.DeviceError, "failed to init COM thread: %s", hrText(err))
	}

	devname := strings.TrimPrefix(name, deviceNamePrefix)
	if devname != "" && captureDevices.empty() {
		pushMessageStatic(msgEnumerateCapture)
	}

	if err := <-pushMessage(c, msgOpenDevice, devname); err != nil {
		deinitThread()
		return backend.Errf(backend.DeviceError, "device init failed: %s", hrText(err))
	}
	c.opened = true

	if err := <-pushMessage(c, msgResetDevice, ""); err != nil {
		if isOutOfMemory(err) {
			return backend.Errf(backend.OutOfMemory, "out of memory")
		}
		return backend.Errf(backend.DeviceError, "device reset failed")
	}
	return nil
}

// Close releases the device; the engine may be reopened.
func (c *capture) Close() {
	if c.opened {
		<-pushMessage(c, msgCloseDevice, "")
		deinitThread()
		c.opened = false
	}
	if c.notifyEvent != 0 {
		windows.CloseHandle(c.notifyEvent)
		c.notifyEvent = 0
	}
}

func (c *capture) openProxy(name string) error {
	devid := ""
	display := name
	if name != "" {
		entry, ok := captureDevices.find(name)
		if !ok {
			log.Warn("failed to find device name", "device", name)
			return errDeviceNotFound
		}
		display = entry.name
		devid = entry.devid
	}

	dev, err := helper.openDevice(devid, events.Capture)
	if err != nil {
		log.Warn("failed to open device", "device", display, hrAttr(err))
		return err
	}
	if c.mmdev != nil {
		c.mmdev.Release()
	}
	c.mmdev = dev
	if c.client != nil {
		c.client.Release()
		c.client = nil
	}

	if name != "" {
		c.dev.Name = deviceNamePrefix + display
	} else {
		n, _ := deviceNameAndGUID(dev)
		c.dev.Name = deviceNamePrefix + n
	}
	return nil
}

func (c *capture) closeProxy() {
	if c.client != nil {
		c.client.Release()
		c.client = nil
	}
	if c.mmdev != nil {
		c.mmdev.Release()
		c.mmdev = nil
	}
}

func (c *capture) resetProxy() error {
	if c.client != nil {
		c.client.Release()
		c.client = nil
	}
	client, err := helper.activateAudioClient(c.mmdev)
	if err != nil {
		log.Error("failed to reactivate audio client", hrAttr(err))
		return err
	}
	c.client = client

	var wfx *wca.WAVEFORMATEX
	if err := c.client.GetMixFormat(&wfx); err != nil {
		log.Error("failed to get capture format", hrAttr(err))
		return err
	}
	mix, ok := extFromWFX(wfx)
	ole.CoTaskMemFree(uintptr(unsafe.Pointer(wfx)))
	if !ok {
		return errors.New("unhandled capture format")
	}
	logFormat("device capture format", mix)

	dev := c.dev
	isRear51 := mix.channels == 6 && mix.mask&fill51Rear == mask51Rear

	if dev.FmtChans == audio.X3D71 || dev.FmtChans == audio.Ambi3D {
		return errors.New("unsupported capture channel layout " + dev.FmtChans.String())
	}

	// The capture buffer must cover at least 100ms.
	bufTime := framesDuration(dev.BufferSize, dev.Frequency)
	if bufTime < 100*time.Millisecond {
		bufTime = 100 * time.Millisecond
	}

	_, wireChans, wireMask := wireLayout(dev.FmtChans, isRear51)
	wireBits, wireSub := captureWireBits(dev.FmtType)

	want := waveFormat{
		channels:  wireChans,
		mask:      wireMask,
		rate:      dev.Frequency,
		bits:      wireBits,
		validBits: wireBits,
		sub:       wireSub,
	}
	logFormat("requesting capture format", want)

	wire := wireFromFormat(want)
	var closest *wca.WAVEFORMATEX
	err = c.client.IsFormatSupported(wca.AUDCLNT_SHAREMODE_SHARED, wire.wfx(), &closest)
	if err != nil {
		log.Warn("failed to check capture format support", hrAttr(err))
		if closest != nil {
			ole.CoTaskMemFree(uintptr(unsafe.Pointer(closest)))
			closest = nil
		}
		err = c.client.GetMixFormat(&closest)
	}
	if err != nil {
		log.Error("failed to find a supported capture format", hrAttr(err))
		return err
	}

	c.sampleConv = nil
	c.channelConv = conv.ChannelConverter{}

	input := want
	if closest != nil {
		got, ok := extFromWFX(closest)
		ole.CoTaskMemFree(uintptr(unsafe.Pointer(closest)))
		if !ok {
			return errors.New("unhandled returned capture format")
		}
		logFormat("got capture format", got)

		// Capture never downgrades the requested layout; the device either
		// satisfies it (mono accepts anything, stereo accepts mono) or the
		// reset fails.
		if !captureLayoutOK(dev.FmtChans, uint32(dev.FmtChans.Count()), got.channels, got.mask) {
			log.Error("failed to match capture format",
				"wantedChannels", dev.FmtChans.String(), "wantedType", dev.FmtType.String(),
				"wantedRate", dev.Frequency,
				"gotMask", got.mask, "gotChannels", got.channels,
				"gotBits", got.bits, "gotRate", got.rate)
			return errors.New("capture format mismatch")
		}
		input = got
	}

	srcType, ok := captureTypeFromWire(&input)
	if !ok {
		log.Error("unhandled capture sample format", "bits", input.bits, "subtype", input.sub.String())
		return errors.New("unhandled capture sample format")
	}

	if dev.FmtChans == audio.Mono && input.channels != 1 {
		c.channelConv = conv.NewChannelConverter(srcType, int(input.channels),
			downmixMask(input.channels, input.mask), audio.Mono)
		log.Debug("created multichannel-to-mono converter", "type", srcType.String())
		// The channel converter outputs float; that becomes the sample
		// converter's input type.
		srcType = audio.Float
	} else if dev.FmtChans == audio.Stereo && input.channels == 1 {
		c.channelConv = conv.NewChannelConverter(srcType, 1, 0x1, audio.Stereo)
		log.Debug("created mono-to-stereo converter", "type", srcType.String())
		srcType = audio.Float
	}

	if dev.Frequency != input.rate || dev.FmtType != srcType {
		sc, err := conv.NewSampleConverter(srcType, dev.FmtType, dev.FmtChans.Count(),
			input.rate, dev.Frequency)
		if err != nil {
			log.Error("failed to create sample converter",
				"dstType", dev.FmtType.String(), "dstRate", dev.Frequency,
				"srcType", srcType.String(), "srcRate", input.rate, errAttr(err))
			return err
		}
		c.sampleConv = sc
		log.Debug("created sample converter",
			"channels", dev.FmtChans.String(),
			"dstType", dev.FmtType.String(), "dstRate", dev.Frequency,
			"srcType", srcType.String(), "srcRate", input.rate)
	}

	wire = wireFromFormat(input)
	err = c.client.Initialize(wca.AUDCLNT_SHAREMODE_SHARED, wca.AUDCLNT_STREAMFLAGS_EVENTCALLBACK,
		refTime(bufTime), 0, wire.wfx(), nil)
	if err != nil {
		log.Error("failed to initialize audio client", hrAttr(err))
		return err
	}

	var defPeriod, minPeriod wca.REFERENCE_TIME
	err = c.client.GetDevicePeriod(&defPeriod, &minPeriod)
	var bufferLen uint32
	if err == nil {
		err = c.client.GetBufferSize(&bufferLen)
	}
	if err != nil {
		log.Error("failed to get buffer size", hrAttr(err))
		return err
	}
	dev.UpdateSize = durationFrames(time.Duration(defPeriod)*100, dev.Frequency)
	dev.BufferSize = bufferLen

	c.wireFormat = input
	c.ring = ring.New(int(bufferLen), int(dev.FrameSize()))

	if err := c.client.SetEventHandle(uintptr(c.notifyEvent)); err != nil {
		log.Error("failed to set event handle", hrAttr(err))
		return err
	}
	return nil
}

// Start begins recording and spawns the record thread.
func (c *capture) Start() error {
	if err := <-pushMessage(c, msgStartDevice, ""); err != nil {
		return backend.Errf(backend.DeviceError, "failed to start recording: %s", hrText(err))
	}
	return nil
}

func (c *capture) startProxy() error {
	windows.ResetEvent(c.notifyEvent)

	if err := c.client.Start(); err != nil {
		log.Error("failed to start audio client", hrAttr(err))
		return err
	}

	err := c.client.GetService(wca.IID_IAudioCaptureClient, &c.capture)
	if err == nil {
		c.killNow.Store(false)
		c.thread.Add(1)
		go c.recordProc()
	} else {
		c.capture = nil
		c.client.Stop()
		c.client.Reset()
	}
	return err
}

// Stop joins the record thread and halts the stream.
func (c *capture) Stop() {
	<-pushMessage(c, msgStopDevice, "")
}

func (c *capture) stopProxy() {
	if c.capture == nil {
		return
	}

	c.killNow.Store(true)
	c.thread.Wait()

	c.capture.Release()
	c.capture = nil
	c.client.Stop()
	c.client.Reset()
}

func (c *capture) recordProc() {
	defer c.thread.Done()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
		log.Error("CoInitializeEx failed", errAttr(err))
		c.dev.HandleDisconnect("COM init failed: %v", err)
		return
	}
	defer ole.CoUninitialize()

	setThreadName("alsoft-record")

	wireFrameSize := int(c.wireFormat.channels) * int(c.wireFormat.bits) / 8
	var samples []float32
	for !c.killNow.Load() {
		var avail uint32
		err := c.capture.GetNextPacketSize(&avail)
		if err != nil {
			log.Error("failed to get next packet size", hrAttr(err))
		}
		for err == nil && avail > 0 {
			var data *byte
			var numFrames, flags uint32
			err = c.capture.GetBuffer(&data, &numFrames, &flags, nil, nil)
			if err != nil {
				log.Error("failed to get capture buffer", hrAttr(err))
				break
			}

			rdata := unsafe.Slice(data, int(numFrames)*wireFrameSize)
			if c.channelConv.Active() {
				need := int(numFrames) * c.channelConv.DstChannels()
				if cap(samples) < need {
					samples = make([]float32, need)
				}
				samples = samples[:need]
				c.channelConv.Convert(rdata, samples, int(numFrames))
				rdata = unsafe.Slice((*byte)(unsafe.Pointer(&samples[0])), need*4)
			}

			wvec := c.ring.WriteVector()
			var dstFrames int
			if c.sampleConv != nil {
				consumed, produced := c.sampleConv.Convert(rdata, int(numFrames),
					wvec[0].Buf, wvec[0].Frames)
				dstFrames = produced
				if consumed < int(numFrames) && produced == wvec[0].Frames && wvec[1].Frames > 0 {
					// Source remains, the first block filled, and the write
					// vector wraps: run again on the second block.
					srcSize := c.sampleConv.SrcFrameSize()
					_, p2 := c.sampleConv.Convert(rdata[consumed*srcSize:], int(numFrames)-consumed,
						wvec[1].Buf, wvec[1].Frames)
					dstFrames += p2
				}
			} else {
				frameSize := int(c.dev.FrameSize())
				n1 := min(wvec[0].Frames, int(numFrames))
				n2 := min(wvec[1].Frames, int(numFrames)-n1)
				copy(wvec[0].Buf[:n1*frameSize], rdata)
				if n2 > 0 {
					copy(wvec[1].Buf[:n2*frameSize], rdata[n1*frameSize:])
				}
				dstFrames = n1 + n2
			}
			c.ring.WriteAdvance(dstFrames)

			err = c.capture.ReleaseBuffer(numFrames)
			if err != nil {
				log.Error("failed to release capture buffer", hrAttr(err))
				break
			}
			err = c.capture.GetNextPacketSize(&avail)
			if err != nil {
				log.Error("failed to get next packet size", hrAttr(err))
			}
		}
		if err != nil {
			c.dev.HandleDisconnect("Failed to capture samples: %v", err)
			break
		}

		rc, werr := windows.WaitForSingleObject(c.notifyEvent, 2000)
		if werr != nil || rc != windows.WAIT_OBJECT_0 {
			log.Error("WaitForSingleObject error", "result", rc)
		}
	}
}

// CaptureSamples copies frames frames from the ring, zero-filling whatever
// has not been recorded yet.
func (c *capture) CaptureSamples(dst []byte, frames uint32) {
	if c.ring == nil {
		for i := range dst[:int(frames)*int(c.dev.FrameSize())] {
			dst[i] = 0
		}
		return
	}
	c.ring.Read(dst, int(frames))
}

// AvailableSamples reports the frames ready to be read.
func (c *capture) AvailableSamples() uint32 {
	if c.ring == nil {
		return 0
	}
	return uint32(c.ring.ReadSpace())
}
