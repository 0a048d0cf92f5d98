//go:build windows

package wasapi

import (
	"fmt"
	"syscall"
	"unsafe"

	"github.com/go-ole/go-ole"
	"github.com/moutend/go-wca/pkg/wca"

	"github.com/uniqlow/openal-soft/internal/events"
)

// deviceHelper owns the endpoint enumerator and the default-device-change
// subscription. After factory initialization it is driven exclusively from
// the proxy thread.
type deviceHelper struct {
	enumerator *wca.IMMDeviceEnumerator
	notify     *wca.IMMNotificationClient
}

func newDeviceHelper() (*deviceHelper, error) {
	h := &deviceHelper{}
	if err := wca.CoCreateInstance(wca.CLSID_MMDeviceEnumerator, 0, wca.CLSCTX_ALL, wca.IID_IMMDeviceEnumerator, &h.enumerator); err != nil {
		return nil, fmt.Errorf("create device enumerator: %w", err)
	}
	h.notify = wca.NewIMMNotificationClient(wca.IMMNotificationClientCallback{
		OnDefaultDeviceChanged: h.onDefaultDeviceChanged,
	})
	if err := h.enumerator.RegisterEndpointNotificationCallback(h.notify); err != nil {
		log.Warn("failed to register endpoint notifications", errAttr(err))
		h.notify = nil
	}
	return h, nil
}

func (h *deviceHelper) close() {
	// go-wca has no UnregisterEndpointNotificationCallback; the client lives
	// as long as the enumerator.
	if h.enumerator != nil {
		h.enumerator.Release()
		h.enumerator = nil
	}
}

// onDefaultDeviceChanged forwards multimedia-role default changes to the
// event bus. Every other notification is ignored.
func (h *deviceHelper) onDefaultDeviceChanged(flow wca.EDataFlow, role wca.ERole, deviceID string) error {
	if role != wca.EMultimedia {
		return nil
	}
	switch flow {
	case wca.ERender:
		events.Dispatch(events.DefaultDeviceChanged, events.Playback,
			"Default playback device changed: "+deviceID)
	case wca.ECapture:
		events.Dispatch(events.DefaultDeviceChanged, events.Capture,
			"Default capture device changed: "+deviceID)
	}
	return nil
}

// openDevice resolves an endpoint by OS device ID, or the default multimedia
// endpoint when the ID is empty.
func (h *deviceHelper) openDevice(devid string, dir events.Direction) (*wca.IMMDevice, error) {
	var dev *wca.IMMDevice
	var err error
	switch {
	case devid == "" && dir == events.Playback:
		err = h.enumerator.GetDefaultAudioEndpoint(wca.ERender, wca.EMultimedia, &dev)
	case devid == "":
		err = h.enumerator.GetDefaultAudioEndpoint(wca.ECapture, wca.EMultimedia, &dev)
	default:
		err = h.enumerator.GetDevice(devid, &dev)
	}
	if err != nil {
		return nil, err
	}
	return dev, nil
}

// activateAudioClient activates IAudioClient on an endpoint through a raw
// vtable call. go-wca's wrapper passes the CLSCTX argument by reference,
// which some hosts reject with E_INVALIDARG.
func (h *deviceHelper) activateAudioClient(dev *wca.IMMDevice) (*wca.IAudioClient, error) {
	var client *wca.IAudioClient
	hr, _, _ := syscall.SyscallN(
		dev.VTable().Activate,
		uintptr(unsafe.Pointer(dev)),
		uintptr(unsafe.Pointer(wca.IID_IAudioClient)),
		uintptr(wca.CLSCTX_ALL),
		0,
		uintptr(unsafe.Pointer(&client)),
	)
	if hr != 0 {
		return nil, ole.NewError(hr)
	}
	return client, nil
}

// probeDevices rebuilds the registry for one direction: the default endpoint
// first, then every active endpoint, deduplicated by device ID.
func (h *deviceHelper) probeDevices(dir events.Direction, list *deviceList) error {
	list.clear()

	var dev *wca.IMMDevice
	var err error
	if dir == events.Playback {
		err = h.enumerator.GetDefaultAudioEndpoint(wca.ERender, wca.EMultimedia, &dev)
	} else {
		err = h.enumerator.GetDefaultAudioEndpoint(wca.ECapture, wca.EMultimedia, &dev)
	}
	if err != nil {
		log.Warn("failed to get default endpoint", "direction", dir.String(), hrAttr(err))
	} else {
		h.addDevice(dev, list)
		dev.Release()
	}

	var coll *wca.IMMDeviceCollection
	if dir == events.Playback {
		err = h.enumerator.EnumAudioEndpoints(wca.ERender, wca.DEVICE_STATE_ACTIVE, &coll)
	} else {
		err = h.enumerator.EnumAudioEndpoints(wca.ECapture, wca.DEVICE_STATE_ACTIVE, &coll)
	}
	if err != nil {
		log.Error("failed to enumerate audio endpoints", "direction", dir.String(), hrAttr(err))
		return err
	}
	defer coll.Release()

	var count uint32
	if err := coll.GetCount(&count); err != nil {
		log.Error("failed to count audio endpoints", hrAttr(err))
		return err
	}
	for i := uint32(0); i < count; i++ {
		var item *wca.IMMDevice
		if err := coll.Item(i, &item); err != nil {
			log.Warn("failed to get endpoint", "index", i, hrAttr(err))
			continue
		}
		h.addDevice(item, list)
		item.Release()
	}
	return nil
}

func (h *deviceHelper) addDevice(dev *wca.IMMDevice, list *deviceList) {
	var devid string
	if err := dev.GetId(&devid); err != nil {
		log.Warn("failed to get device id", hrAttr(err))
		return
	}
	name, guid := deviceNameAndGUID(dev)
	if list.add(name, guid, devid) {
		log.Debug("got device", "name", name, "guid", guid, "devid", devid)
	}
}

// deviceNameAndGUID reads the friendly name and endpoint GUID from the
// property store, substituting placeholders rather than failing.
func deviceNameAndGUID(dev *wca.IMMDevice) (string, string) {
	const unknownName = "Unknown Device Name"
	const unknownGUID = "Unknown Device GUID"

	var ps *wca.IPropertyStore
	if err := dev.OpenPropertyStore(wca.STGM_READ, &ps); err != nil {
		log.Warn("OpenPropertyStore failed", hrAttr(err))
		return unknownName, unknownGUID
	}
	defer ps.Release()

	name, guid := unknownName, unknownGUID

	var pvName wca.PROPVARIANT
	if err := ps.GetValue(&wca.PKEY_Device_FriendlyName, &pvName); err != nil {
		log.Warn("GetValue Device_FriendlyName failed", hrAttr(err))
	} else if s := pvName.String(); s != "" {
		name = s
	}

	var pvGUID wca.PROPVARIANT
	if err := ps.GetValue(&wca.PKEY_AudioEndpoint_GUID, &pvGUID); err != nil {
		log.Warn("GetValue AudioEndpoint_GUID failed", hrAttr(err))
	} else if s := pvGUID.String(); s != "" {
		guid = s
	}
	return name, guid
}

// deviceFormFactor reads the endpoint form factor, driving the direct-ear
// hint for headphones and headsets.
func deviceFormFactor(dev *wca.IMMDevice) uint32 {
	var ps *wca.IPropertyStore
	if err := dev.OpenPropertyStore(wca.STGM_READ, &ps); err != nil {
		log.Warn("OpenPropertyStore failed", hrAttr(err))
		return formFactorUnknown
	}
	defer ps.Release()

	var pv wca.PROPVARIANT
	if err := ps.GetValue(&wca.PKEY_AudioEndpoint_FormFactor, &pv); err != nil {
		log.Warn("GetValue AudioEndpoint_FormFactor failed", hrAttr(err))
		return formFactorUnknown
	}
	return uint32(pv.Val)
}
