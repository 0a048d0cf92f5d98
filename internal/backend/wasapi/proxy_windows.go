//go:build windows

package wasapi

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/go-ole/go-ole"

	"github.com/uniqlow/openal-soft/internal/events"
)

// The proxy thread is the single execution context for every COM audio-client
// call. It is reference counted: the first engine (or probe) to need it spins
// it up, the last one to release it joins it.
var (
	proxyMu    sync.Mutex
	proxyRefs  int
	proxyJoin  chan struct{}
	proxyQueue = newMessageQueue()

	// helper is created by factory initialization and driven only from the
	// proxy thread afterwards.
	helper *deviceHelper
)

// initThread ensures the proxy thread is running and takes a reference.
// A COM initialization failure leaves the reference count untouched.
func initThread() error {
	proxyMu.Lock()
	defer proxyMu.Unlock()

	if proxyRefs == 0 {
		ready := make(chan error, 1)
		join := make(chan struct{})
		go messageLoop(ready, join)
		if err := <-ready; err != nil {
			return err
		}
		proxyJoin = join
	}
	proxyRefs++
	return nil
}

// deinitThread drops a reference; the last release shuts the thread down and
// waits for it.
func deinitThread() {
	proxyMu.Lock()
	defer proxyMu.Unlock()

	if proxyRefs == 0 {
		return
	}
	proxyRefs--
	if proxyRefs == 0 {
		proxyQueue.push(message{kind: msgQuitThread, reply: make(chan error, 1)})
		<-proxyJoin
		proxyJoin = nil
	}
}

// pushMessage enqueues an engine-directed request and returns the future
// that resolves with its status.
func pushMessage(target proxyOps, kind msgType, param string) <-chan error {
	reply := make(chan error, 1)
	proxyQueue.push(message{kind: kind, target: target, param: param, reply: reply})
	return reply
}

// pushMessageStatic enqueues a helper-directed request (enumeration).
func pushMessageStatic(kind msgType) <-chan error {
	reply := make(chan error, 1)
	proxyQueue.push(message{kind: kind, reply: reply})
	return reply
}

func messageLoop(ready chan<- error, join chan<- struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	log.Debug("starting message thread")
	if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
		log.Warn("failed to initialize COM", errAttr(err))
		ready <- err
		return
	}
	ready <- nil

	defer close(join)
	defer ole.CoUninitialize()

	for {
		m := proxyQueue.pop()
		log.Debug("got message", "message", m.kind.String())
		if m.kind == msgQuitThread {
			m.reply <- nil
			log.Debug("message loop finished")
			return
		}
		m.reply <- runRequest(m)
	}
}

// runRequest executes one request, converting a handler panic into a failure
// status so the loop never dies on a bad request.
func runRequest(m message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("request handler panicked", "message", m.kind.String(), "panic", r)
			err = fmt.Errorf("internal failure handling %s request: %v", m.kind, r)
		}
	}()

	switch m.kind {
	case msgOpenDevice:
		return m.target.openProxy(m.param)
	case msgResetDevice:
		return m.target.resetProxy()
	case msgStartDevice:
		return m.target.startProxy()
	case msgStopDevice:
		m.target.stopProxy()
		return nil
	case msgCloseDevice:
		m.target.closeProxy()
		return nil
	case msgEnumeratePlayback:
		return helper.probeDevices(events.Playback, &playbackDevices)
	case msgEnumerateCapture:
		return helper.probeDevices(events.Capture, &captureDevices)
	}
	log.Error("unexpected message", "message", int(m.kind))
	return fmt.Errorf("unexpected message %d", m.kind)
}
