package connmgr

import "errors"

// ErrManagerStopped is returned when work is submitted after Stop has
// been called.
var ErrManagerStopped = errors.New("connection manager has been stopped")

// event describes work that mutates Manager state. While an event is
// applying, it is guaranteed to be the only accessor of that state.
// Grounded on lib/torrent/scheduler/events.go's event/eventLoop split.
type event interface {
	apply(*Manager)
}

// funcEvent adapts an arbitrary closure into an event, generalizing a
// one-struct-per-transition event type into a single mechanism: every
// outbound/inbound pipeline suspension point submits its next
// shared-state mutation as a funcEvent and blocks for it to run,
// re-entering the main loop before mutating anything, without
// hand-writing a bespoke event type for each pipeline stage.
type funcEvent struct {
	fn func(*Manager)
}

func (e funcEvent) apply(m *Manager) { e.fn(m) }

type loop struct {
	events chan event
	done   chan struct{}
}

func newLoop() *loop {
	return &loop{
		events: make(chan event),
		done:   make(chan struct{}),
	}
}

// send submits e to the loop. Returns false if the loop has stopped.
func (l *loop) send(e event) bool {
	select {
	case l.events <- e:
		return true
	case <-l.done:
		return false
	}
}

func (l *loop) run(m *Manager) {
	for {
		select {
		case e := <-l.events:
			e.apply(m)
		case <-l.done:
			return
		}
	}
}

func (l *loop) stop() {
	close(l.done)
}

// exec submits fn to the loop and blocks until it has run with
// exclusive access to Manager state. Safe to call from any goroutine
// except the loop's own; calling it from within an apply would
// deadlock waiting on its own events channel.
func (m *Manager) exec(fn func(*Manager)) {
	result := make(chan struct{})
	ok := m.loop.send(funcEvent{fn: func(mm *Manager) {
		fn(mm)
		close(result)
	}})
	if !ok {
		return
	}
	<-result
}
