package scheduler

import (
	"sync"
	"time"
)

// dispatchBuffer implements the background dispatch contract: submissions
// arriving before the caller has signalled readiness are queued; once
// readiness arrives (explicitly or via the watchdog), the buffer is flushed
// in submission order. admit is invoked once per submission, in order.
type dispatchBuffer struct {
	mu           sync.Mutex
	ready        bool
	buffer       []pendingSubmission
	watchdog     *time.Timer
	watchdogTime time.Duration
	admit        func(path string, handle *Handle)
}

type pendingSubmission struct {
	path   string
	handle *Handle
}

func newDispatchBuffer(watchdog time.Duration, admit func(path string, handle *Handle)) *dispatchBuffer {
	return &dispatchBuffer{watchdogTime: watchdog, admit: admit}
}

func (d *dispatchBuffer) submit(path string, handle *Handle) {
	d.mu.Lock()
	if d.ready {
		d.mu.Unlock()
		d.admit(path, handle)
		return
	}

	d.buffer = append(d.buffer, pendingSubmission{path: path, handle: handle})
	if d.watchdog == nil {
		d.watchdog = time.AfterFunc(d.watchdogTime, d.signalReady)
	}
	d.mu.Unlock()
}

// signalReady marks the buffer ready and flushes any queued submissions in
// the order they arrived. Safe to call multiple times or concurrently with
// the watchdog firing.
func (d *dispatchBuffer) signalReady() {
	d.mu.Lock()
	if d.ready {
		d.mu.Unlock()
		return
	}
	d.ready = true
	if d.watchdog != nil {
		d.watchdog.Stop()
	}
	pending := d.buffer
	d.buffer = nil
	d.mu.Unlock()

	for _, p := range pending {
		d.admit(p.path, p.handle)
	}
}
