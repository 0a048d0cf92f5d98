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
	"github.com/uniqlow/openal-soft/internal/backend"
	"github.com/uniqlow/openal-soft/internal/config"
	"github.com/uniqlow/openal-soft/internal/device"
	"github.com/uniqlow/openal-soft/internal/events"
)

var errDeviceNotFound = errors.New("device not found")

// playback renders mixer output to one endpoint. Every COM call runs on the
// proxy thread; the mixer thread it spawns does its own COM initialization
// and only touches the render client and the audio client's padding query.
type playback struct {
	dev *device.Device

	opened      bool
	mmdev       *wca.IMMDevice
	client      *wca.IAudioClient
	render      *wca.IAudioRenderClient
	notifyEvent windows.Handle

	origBufferSize uint32
	origUpdateSize uint32
	resampleBuf    []byte
	bufferFilled   uint32
	resampler      *conv.SampleConverter

	format  waveFormat
	padding atomic.Uint32

	mu      sync.Mutex
	killNow atomic.Bool
	thread  sync.WaitGroup
}

func newPlayback(dev *device.Device) *playback {
	p := &playback{dev: dev}
	p.killNow.Store(true)
	return p
}

// Open binds the engine to a device by name. The name may carry the library
// prefix; an empty residue selects the default endpoint.
func (p *playback) Open(name string) error {
	if p.opened {
		return backend.Errf(backend.DeviceError, "unexpected duplicate open call")
	}

	if p.notifyEvent == 0 {
		ev, err := windows.CreateEvent(nil, 0, 0, nil)
		if err != nil {
			log.Error("failed to create notify event", errAttr(err))
			return backend.Errf(backend.DeviceError, "failed to create notify events")
		}
		p.notifyEvent = ev
	}

	if err := initThread(); err != nil {
		return backend.Errf(backend.DeviceError, "failed to init COM thread: %s", hrText(err))
	}

	devname := strings.TrimPrefix(name, deviceNamePrefix)
	if devname != "" && playbackDevices.empty() {
		pushMessageStatic(msgEnumeratePlayback)
	}

	if err := <-pushMessage(p, msgOpenDevice, devname); err != nil {
		deinitThread()
		return backend.Errf(backend.DeviceError, "device init failed: %s", hrText(err))
	}
	p.opened = true
	return nil
}

// Close releases the device; the engine may be reopened.
func (p *playback) Close() {
	if p.opened {
		<-pushMessage(p, msgCloseDevice, "")
		deinitThread()
		p.opened = false
	}
	if p.notifyEvent != 0 {
		windows.CloseHandle(p.notifyEvent)
		p.notifyEvent = 0
	}
}

func (p *playback) openProxy(name string) error {
	devid := ""
	display := name
	if name != "" {
		entry, ok := playbackDevices.find(name)
		if !ok {
			log.Warn("failed to find device name", "device", name)
			return errDeviceNotFound
		}
		display = entry.name
		devid = entry.devid
	}

	dev, err := helper.openDevice(devid, events.Playback)
	if err != nil {
		log.Warn("failed to open device", "device", display, hrAttr(err))
		return err
	}
	if p.mmdev != nil {
		p.mmdev.Release()
	}
	p.mmdev = dev
	if p.client != nil {
		p.client.Release()
		p.client = nil
	}

	if name != "" {
		p.dev.Name = deviceNamePrefix + display
	} else {
		n, _ := deviceNameAndGUID(dev)
		p.dev.Name = deviceNamePrefix + n
	}
	return nil
}

func (p *playback) closeProxy() {
	if p.client != nil {
		p.client.Release()
		p.client = nil
	}
	if p.mmdev != nil {
		p.mmdev.Release()
		p.mmdev = nil
	}
}

// Reset renegotiates the stream format against the device context's current
// requests.
func (p *playback) Reset() error {
	if err := <-pushMessage(p, msgResetDevice, ""); err != nil {
		return backend.Errf(backend.DeviceError, "%s", hrText(err))
	}
	return nil
}

func (p *playback) resetProxy() error {
	if p.client != nil {
		p.client.Release()
		p.client = nil
	}
	client, err := helper.activateAudioClient(p.mmdev)
	if err != nil {
		log.Error("failed to reactivate audio client", hrAttr(err))
		return err
	}
	p.client = client

	var wfx *wca.WAVEFORMATEX
	if err := p.client.GetMixFormat(&wfx); err != nil {
		log.Error("failed to get mix format", hrAttr(err))
		return err
	}
	mix, ok := extFromWFX(wfx)
	ole.CoTaskMemFree(uintptr(unsafe.Pointer(wfx)))
	if !ok {
		return errors.New("unhandled mix format")
	}
	logFormat("device mix format", mix)

	dev := p.dev
	perTime := framesDuration(dev.UpdateSize, dev.Frequency)
	bufTime := framesDuration(dev.BufferSize, dev.Frequency)
	isRear51 := false

	if !dev.FrequencyRequest {
		dev.Frequency = mix.rate
	}
	if !dev.ChannelsRequest {
		// Auto-select what fits the mask's low bits so the output has no
		// channel gaps. Without a mask only mono or stereo can be assumed.
		if chans, rear, ok := layoutFromMask(mix.channels, mix.mask); ok {
			dev.FmtChans = chans
			isRear51 = rear
		} else {
			log.Error("unhandled channel config", "channels", mix.channels, "mask", mix.mask)
		}
	} else {
		isRear51 = mix.channels == 6 && mix.mask&fill51Rear == mask51Rear
	}

	effChans, wireChans, wireMask := wireLayout(dev.FmtChans, isRear51)
	dev.FmtChans = effChans
	effType, wireBits, wireSub := playbackWireType(dev.FmtType)
	dev.FmtType = effType

	want := waveFormat{
		channels:  wireChans,
		mask:      wireMask,
		rate:      dev.Frequency,
		bits:      wireBits,
		validBits: wireBits,
		sub:       wireSub,
	}
	logFormat("requesting playback format", want)

	wire := wireFromFormat(want)
	var closest *wca.WAVEFORMATEX
	err = p.client.IsFormatSupported(wca.AUDCLNT_SHAREMODE_SHARED, wire.wfx(), &closest)
	if err != nil {
		log.Warn("failed to check format support", hrAttr(err))
		if closest != nil {
			ole.CoTaskMemFree(uintptr(unsafe.Pointer(closest)))
			closest = nil
		}
		err = p.client.GetMixFormat(&closest)
	}
	if err != nil {
		log.Error("failed to find a supported format", hrAttr(err))
		return err
	}

	if closest != nil {
		got, ok := extFromWFX(closest)
		ole.CoTaskMemFree(uintptr(unsafe.Pointer(closest)))
		if !ok {
			return errors.New("unhandled returned format")
		}
		logFormat("got playback format", got)

		if !config.GetBool(dev.Name, "wasapi", "allow-resampler", true) {
			dev.Frequency = got.rate
		} else {
			dev.Frequency = minU32(dev.Frequency, got.rate)
		}

		// Keep the requested channel format when the returned mask can carry
		// it without gaps; otherwise fall back to what the mask supports.
		chansok := false
		if dev.ChannelsRequest {
			chansok = layoutSatisfies(dev.FmtChans, got.channels, got.mask)
		}
		if !chansok {
			if c, ok := fallbackLayout(got.channels, got.mask); ok {
				dev.FmtChans = c
			} else {
				log.Error("unhandled returned channels", "channels", got.channels, "mask", got.mask)
				dev.FmtChans = audio.Stereo
				got.channels = 2
				got.mask = maskStereo
			}
		}

		dev.FmtType, _ = playbackTypeFromWire(&got)
		want = got
	}
	p.format = want

	formfactor := deviceFormFactor(p.mmdev)
	dev.DirectEar = formfactor == formFactorHeadphones || formfactor == formFactorHeadset

	wire = wireFromFormat(p.format)
	err = p.client.Initialize(wca.AUDCLNT_SHAREMODE_SHARED, wca.AUDCLNT_STREAMFLAGS_EVENTCALLBACK,
		refTime(bufTime), 0, wire.wfx(), nil)
	if err != nil {
		log.Error("failed to initialize audio client", hrAttr(err))
		return err
	}

	var defPeriod, minPeriod wca.REFERENCE_TIME
	err = p.client.GetDevicePeriod(&defPeriod, &minPeriod)
	var bufferLen uint32
	if err == nil {
		err = p.client.GetBufferSize(&bufferLen)
	}
	if err != nil {
		log.Error("failed to get audio buffer info", hrAttr(err))
		return err
	}

	period := alignPeriod(time.Duration(defPeriod)*100, perTime)

	p.origBufferSize = bufferLen
	p.origUpdateSize = minU32(durationFrames(period, p.format.rate), bufferLen/2)

	dev.BufferSize = uint32(uint64(bufferLen) * uint64(dev.Frequency) / uint64(p.format.rate))
	dev.UpdateSize = minU32(durationFrames(period, dev.Frequency), dev.BufferSize/2)

	p.resampler = nil
	p.resampleBuf = nil
	p.bufferFilled = 0
	if dev.Frequency != p.format.rate {
		rs, err := conv.NewSampleConverter(dev.FmtType, dev.FmtType, int(p.format.channels),
			dev.Frequency, p.format.rate)
		if err != nil {
			log.Error("failed to create resampler", errAttr(err))
			return err
		}
		p.resampler = rs
		p.resampleBuf = make([]byte, int(dev.UpdateSize)*int(p.format.channels)*int(p.format.bits)/8)

		log.Debug("created rate converter",
			"channels", dev.FmtChans.String(), "type", dev.FmtType.String(),
			"dstRate", p.format.rate, "dstUpdate", p.origUpdateSize,
			"srcRate", dev.Frequency, "srcUpdate", dev.UpdateSize)
	}

	if err := p.client.SetEventHandle(uintptr(p.notifyEvent)); err != nil {
		log.Error("failed to set event handle", hrAttr(err))
		return err
	}
	return nil
}

// Start begins streaming and spawns the mixer thread.
func (p *playback) Start() error {
	if err := <-pushMessage(p, msgStartDevice, ""); err != nil {
		return backend.Errf(backend.DeviceError, "failed to start playback: %s", hrText(err))
	}
	return nil
}

func (p *playback) startProxy() error {
	windows.ResetEvent(p.notifyEvent)

	if err := p.client.Start(); err != nil {
		log.Error("failed to start audio client", hrAttr(err))
		return err
	}

	err := p.client.GetService(wca.IID_IAudioRenderClient, &p.render)
	if err == nil {
		p.killNow.Store(false)
		p.thread.Add(1)
		go p.mixerProc()
	} else {
		p.render = nil
		p.client.Stop()
	}
	return err
}

// Stop joins the mixer thread and halts the stream.
func (p *playback) Stop() {
	<-pushMessage(p, msgStopDevice, "")
}

func (p *playback) stopProxy() {
	if p.render == nil {
		return
	}

	p.killNow.Store(true)
	p.thread.Wait()

	p.render.Release()
	p.render = nil
	p.client.Stop()
}

func (p *playback) mixerProc() {
	defer p.thread.Done()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
		log.Error("CoInitializeEx failed", errAttr(err))
		p.dev.HandleDisconnect("COM init failed: %v", err)
		return
	}
	defer ole.CoUninitialize()

	setRTPriority()
	setThreadName("alsoft-mixer")

	frameSize := uint32(p.format.channels) * uint32(p.format.bits) / 8
	updateSize := p.origUpdateSize
	bufferLen := p.origBufferSize
	for !p.killNow.Load() {
		var written uint32
		if err := p.client.GetCurrentPadding(&written); err != nil {
			log.Error("failed to get padding", hrAttr(err))
			p.dev.HandleDisconnect("Failed to retrieve buffer padding: %v", err)
			break
		}
		p.padding.Store(written)

		length := bufferLen - written
		if length < updateSize {
			rc, err := windows.WaitForSingleObject(p.notifyEvent, 2000)
			if err != nil || rc != windows.WAIT_OBJECT_0 {
				log.Error("WaitForSingleObject error", "result", rc)
			}
			continue
		}

		var data *byte
		err := p.render.GetBuffer(length, &data)
		if err == nil {
			buf := unsafe.Slice(data, int(length*frameSize))
			if p.resampler != nil {
				p.mu.Lock()
				for done := uint32(0); done < length; {
					if p.bufferFilled == 0 {
						p.dev.RenderSamples(p.resampleBuf, p.dev.UpdateSize, uint32(p.format.channels))
						p.bufferFilled = p.dev.UpdateSize
					}

					consumed, got := p.resampler.Convert(p.resampleBuf, int(p.bufferFilled),
						buf[done*frameSize:], int(length-done))
					done += uint32(got)

					p.padding.Store(written + done)
					left := p.bufferFilled - uint32(consumed)
					if left > 0 {
						copy(p.resampleBuf, p.resampleBuf[uint32(consumed)*frameSize:(uint32(consumed)+left)*frameSize])
					}
					p.bufferFilled = left
				}
				p.mu.Unlock()
			} else {
				p.mu.Lock()
				p.dev.RenderSamples(buf, length, uint32(p.format.channels))
				p.padding.Store(written + length)
				p.mu.Unlock()
			}
			err = p.render.ReleaseBuffer(length, 0)
		}
		if err != nil {
			log.Error("failed to buffer data", hrAttr(err))
			p.dev.HandleDisconnect("Failed to send playback samples: %v", err)
			break
		}
	}
	p.padding.Store(0)
}

// ClockLatency reports the device clock alongside the frames queued but not
// yet played, including anything staged in the resampler.
func (p *playback) ClockLatency() device.ClockLatency {
	p.mu.Lock()
	defer p.mu.Unlock()

	var ret device.ClockLatency
	ret.ClockTime = p.dev.ClockTime()
	if p.format.rate == 0 {
		return ret
	}
	ret.Latency = time.Duration(p.padding.Load()) * time.Second / time.Duration(p.format.rate)
	if p.resampler != nil {
		pending := p.resampler.InputDelay() + float64(p.bufferFilled)
		ret.Latency += time.Duration(pending / float64(p.dev.Frequency) * float64(time.Second))
	}
	return ret
}
