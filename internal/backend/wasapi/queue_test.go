package wasapi

import (
	"sync"
	"testing"
)

func TestQueuePopsInPushOrder(t *testing.T) {
	q := newMessageQueue()
	kinds := []msgType{msgOpenDevice, msgResetDevice, msgStartDevice, msgStopDevice, msgCloseDevice}
	for _, k := range kinds {
		q.push(message{kind: k, reply: make(chan error, 1)})
	}
	for i, want := range kinds {
		if got := q.pop(); got.kind != want {
			t.Fatalf("pop %d = %v, want %v", i, got.kind, want)
		}
	}
}

func TestQueueKeepsPerProducerOrder(t *testing.T) {
	q := newMessageQueue()

	const perProducer = 200
	var wg sync.WaitGroup
	for producer := 0; producer < 4; producer++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.push(message{
					kind:  msgType(id),
					param: string(rune('0' + i%10)),
					reply: make(chan error, 1),
				})
			}
		}(producer)
	}

	done := make(chan struct{})
	seen := make(map[msgType]int)
	go func() {
		defer close(done)
		for n := 0; n < 4*perProducer; n++ {
			m := q.pop()
			want := seen[m.kind] % 10
			if m.param != string(rune('0'+want)) {
				t.Errorf("producer %d message out of order: got %q at position %d", m.kind, m.param, seen[m.kind])
				return
			}
			seen[m.kind]++
		}
	}()

	wg.Wait()
	<-done
	total := 0
	for _, n := range seen {
		total += n
	}
	if total != 4*perProducer {
		t.Fatalf("drained %d messages, want %d", total, 4*perProducer)
	}
}

func TestQueuePopBlocksUntilPush(t *testing.T) {
	q := newMessageQueue()
	got := make(chan message, 1)
	go func() { got <- q.pop() }()

	q.push(message{kind: msgQuitThread, reply: make(chan error, 1)})
	m := <-got
	if m.kind != msgQuitThread {
		t.Fatalf("pop = %v, want %v", m.kind, msgQuitThread)
	}
}

func TestMsgTypeStrings(t *testing.T) {
	names := map[msgType]string{
		msgOpenDevice:        "Open Device",
		msgResetDevice:       "Reset Device",
		msgStartDevice:       "Start Device",
		msgStopDevice:        "Stop Device",
		msgCloseDevice:       "Close Device",
		msgEnumeratePlayback: "Enumerate Playback",
		msgEnumerateCapture:  "Enumerate Capture",
		msgQuitThread:        "Quit Thread",
	}
	for k, want := range names {
		if got := k.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(k), got, want)
		}
	}
}
