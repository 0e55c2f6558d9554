package ipc

import (
	"sync"

	"spool/internal/events"
)

const eventLogLimit = 256

// eventLog keeps the most recent scheduler events for clients that poll
// instead of streaming. It reads an ordinary subscription and drains it on
// every query, so the subscription buffer holds whatever arrives in between.
type eventLog struct {
	mu     sync.Mutex
	sub    *events.Subscription
	limit  int
	closed bool
	buf    []Event
}

func newEventLog(sub *events.Subscription, limit int) *eventLog {
	if limit <= 0 {
		limit = eventLogLimit
	}
	return &eventLog{sub: sub, limit: limit}
}

// after returns up to limit of the newest retained events with a sequence
// greater than seq, oldest first.
func (l *eventLog) after(seq uint64, limit int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.drainLocked()

	out := make([]Event, 0)
	for _, evt := range l.buf {
		if evt.Sequence > seq {
			out = append(out, evt)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func (l *eventLog) drainLocked() {
	for !l.closed {
		select {
		case evt, ok := <-l.sub.Events():
			if !ok {
				l.closed = true
				return
			}
			l.appendLocked(evt)
		default:
			return
		}
	}
}

func (l *eventLog) appendLocked(evt Event) {
	if len(l.buf) == l.limit {
		copy(l.buf, l.buf[1:])
		l.buf = l.buf[:l.limit-1]
	}
	l.buf = append(l.buf, evt)
}

func (l *eventLog) close() {
	l.sub.Close()
}
