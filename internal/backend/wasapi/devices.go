// Package wasapi implements the Windows shared-mode audio backend. A single
// reference-counted proxy thread owns every COM audio-client call; playback
// and capture engines negotiate formats there and stream on their own
// event-driven worker threads.
package wasapi

import (
	"strconv"
	"sync"

	"github.com/uniqlow/openal-soft/internal/logging"
)

var log = logging.L("wasapi")

// deviceNamePrefix is prepended to every device name exposed across the
// library boundary, and stripped from names passed back in.
const deviceNamePrefix = "OpenAL Soft on "

// devMap is one enumerated endpoint: the unique display name, the endpoint
// GUID from the property store, and the OS device identifier that serves as
// the identity key.
type devMap struct {
	name  string
	guid  string
	devid string
}

// deviceList is a registry of enumerated endpoints for one direction. The
// proxy thread is the only mutator; callers take snapshots.
type deviceList struct {
	mu      sync.Mutex
	entries []devMap
}

var (
	playbackDevices deviceList
	captureDevices  deviceList
)

func (l *deviceList) clear() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}

// add inserts an endpoint unless its device ID is already present. Display
// name collisions get a " #N" suffix, counting from 2.
func (l *deviceList) add(name, guid, devid string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range l.entries {
		if e.devid == devid {
			return false
		}
	}

	newname := name
	count := 1
	for l.hasNameLocked(newname) {
		count++
		newname = name + " #" + strconv.Itoa(count)
	}
	l.entries = append(l.entries, devMap{name: newname, guid: guid, devid: devid})
	return true
}

func (l *deviceList) hasNameLocked(name string) bool {
	for _, e := range l.entries {
		if e.name == name {
			return true
		}
	}
	return false
}

// find resolves a caller-supplied identifier against display name, endpoint
// GUID, and device ID, in that order.
func (l *deviceList) find(query string) (devMap, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range l.entries {
		if e.name == query {
			return e, true
		}
	}
	for _, e := range l.entries {
		if e.guid == query {
			return e, true
		}
	}
	for _, e := range l.entries {
		if e.devid == query {
			return e, true
		}
	}
	return devMap{}, false
}

func (l *deviceList) empty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries) == 0
}

func (l *deviceList) snapshot() []devMap {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]devMap, len(l.entries))
	copy(out, l.entries)
	return out
}

// probeString renders the registry as a sequence of prefixed names, each
// null-terminated, with a final extra null. Empty registry yields "".
func (l *deviceList) probeString() string {
	entries := l.snapshot()
	if len(entries) == 0 {
		return ""
	}
	var out []byte
	for _, e := range entries {
		out = append(out, deviceNamePrefix...)
		out = append(out, e.name...)
		out = append(out, 0)
	}
	out = append(out, 0)
	return string(out)
}
