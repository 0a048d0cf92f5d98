//go:build windows

package wasapi

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unsafe"

	"github.com/go-ole/go-ole"
	"github.com/moutend/go-wca/pkg/wca"
	"golang.org/x/sys/windows"

	"github.com/uniqlow/openal-soft/internal/logging"
)

const (
	waveFormatTagPCM        = 0x0001
	waveFormatTagIEEEFloat  = 0x0003
	waveFormatTagExtensible = 0xFFFE

	// WAVEFORMATEXTENSIBLE carries 22 bytes beyond WAVEFORMATEX.
	waveFormatExtensibleSize = 22

	hrOutOfMemory = 0x8007000E
)

var (
	ksDataFormatSubtypePCM       = ole.NewGUID("{00000001-0000-0010-8000-00AA00389B71}")
	ksDataFormatSubtypeIEEEFloat = ole.NewGUID("{00000003-0000-0010-8000-00AA00389B71}")
)

// Endpoint form factors from the AudioEndpoint property store.
const (
	formFactorHeadphones = 3
	formFactorHeadset    = 5
	formFactorUnknown    = 10
)

// waveFormatExtensible is the wire layout of WAVEFORMATEXTENSIBLE, kept flat
// so the field offsets match the packed C structure.
type waveFormatExtensible struct {
	formatTag      uint16
	channels       uint16
	samplesPerSec  uint32
	avgBytesPerSec uint32
	blockAlign     uint16
	bitsPerSample  uint16
	cbSize         uint16
	validBits      uint16 // union: valid bits / samples per block
	channelMask    uint32
	subFormat      ole.GUID
}

func (w *waveFormatExtensible) wfx() *wca.WAVEFORMATEX {
	return (*wca.WAVEFORMATEX)(unsafe.Pointer(w))
}

// extFromWFX copies an OS-owned WAVEFORMATEX into the neutral negotiation
// form. Plain PCM and float formats with more than two channels have no mask
// to report; that is logged and left zero, matching how such formats are
// treated downstream.
func extFromWFX(wfx *wca.WAVEFORMATEX) (waveFormat, bool) {
	f := waveFormat{
		channels:  uint32(wfx.NChannels),
		rate:      wfx.NSamplesPerSec,
		bits:      wfx.WBitsPerSample,
		validBits: wfx.WBitsPerSample,
	}
	switch wfx.WFormatTag {
	case waveFormatTagExtensible:
		if wfx.CbSize < waveFormatExtensibleSize {
			log.Error("extensible format too small", "cbSize", wfx.CbSize)
			return waveFormat{}, false
		}
		ext := (*waveFormatExtensible)(unsafe.Pointer(wfx))
		f.validBits = ext.validBits
		f.mask = ext.channelMask
		switch {
		case ole.IsEqualGUID(&ext.subFormat, ksDataFormatSubtypePCM):
			f.sub = subPCM
		case ole.IsEqualGUID(&ext.subFormat, ksDataFormatSubtypeIEEEFloat):
			f.sub = subFloat
		default:
			f.sub = subUnknown
		}
	case waveFormatTagPCM:
		f.sub = subPCM
		f.mask = defaultMaskFor(f.channels)
	case waveFormatTagIEEEFloat:
		f.sub = subFloat
		f.mask = defaultMaskFor(f.channels)
	default:
		log.Error("unhandled format tag", "tag", fmt.Sprintf("0x%04x", wfx.WFormatTag))
		return waveFormat{}, false
	}
	return f, true
}

func defaultMaskFor(channels uint32) uint32 {
	switch channels {
	case 1:
		return maskMono
	case 2:
		return maskStereo
	}
	log.Error("unhandled channel count for simple format", "channels", channels)
	return 0
}

// wireFromFormat builds the extensible wire format the OS is handed.
func wireFromFormat(f waveFormat) waveFormatExtensible {
	w := waveFormatExtensible{
		formatTag:     waveFormatTagExtensible,
		channels:      uint16(f.channels),
		samplesPerSec: f.rate,
		bitsPerSample: f.bits,
		cbSize:        waveFormatExtensibleSize,
		validBits:     f.validBits,
		channelMask:   f.mask,
	}
	w.blockAlign = w.channels * w.bitsPerSample / 8
	w.avgBytesPerSec = w.samplesPerSec * uint32(w.blockAlign)
	if f.sub == subFloat {
		w.subFormat = *ksDataFormatSubtypeIEEEFloat
	} else {
		w.subFormat = *ksDataFormatSubtypePCM
	}
	return w
}

// refTime converts a duration to the 100-nanosecond units REFERENCE_TIME
// uses.
func refTime(d time.Duration) wca.REFERENCE_TIME {
	return wca.REFERENCE_TIME(d.Nanoseconds() / 100)
}

func hrText(err error) string {
	var oe *ole.OleError
	if errors.As(err, &oe) {
		return fmt.Sprintf("0x%08X", uint32(oe.Code()))
	}
	return err.Error()
}

func hrAttr(err error) slog.Attr {
	return slog.String(logging.KeyHResult, hrText(err))
}

func errAttr(err error) slog.Attr {
	return slog.String(logging.KeyError, err.Error())
}

func isOutOfMemory(err error) bool {
	var oe *ole.OleError
	return errors.As(err, &oe) && uint32(oe.Code()) == hrOutOfMemory
}

var (
	kernel32                 = windows.NewLazySystemDLL("kernel32.dll")
	procSetThreadPriority    = kernel32.NewProc("SetThreadPriority")
	procSetThreadDescription = kernel32.NewProc("SetThreadDescription")
)

const threadPriorityTimeCritical = 15

// setRTPriority raises the calling thread to time-critical priority for the
// streaming deadline.
func setRTPriority() {
	h := windows.CurrentThread()
	r, _, err := procSetThreadPriority.Call(uintptr(h), threadPriorityTimeCritical)
	if r == 0 {
		log.Warn("failed to raise thread priority", errAttr(err))
	}
}

// setThreadName attaches a diagnostic name to the calling thread. Best
// effort; SetThreadDescription is absent before Windows 10 1607.
func setThreadName(name string) {
	if procSetThreadDescription.Find() != nil {
		return
	}
	p, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return
	}
	procSetThreadDescription.Call(uintptr(windows.CurrentThread()), uintptr(unsafe.Pointer(p)))
}

func minU32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}
