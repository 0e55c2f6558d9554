package events

import (
	"sync"
	"sync/atomic"
	"time"
)

const defaultBuffer = 1000

// Broadcaster fans events out to subscribers. Each subscriber owns a bounded
// buffer; when it fills, the oldest undelivered event is dropped so a slow
// consumer never blocks the publisher or other subscribers.
type Broadcaster struct {
	mu      sync.Mutex
	buffer  int
	nextSeq uint64
	nextID  uint64
	subs    map[uint64]*Subscription
	now     func() time.Time
}

// NewBroadcaster constructs a broadcaster with the given per-subscriber buffer.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Broadcaster{
		buffer: buffer,
		subs:   make(map[uint64]*Subscription),
		now:    time.Now,
	}
}

// Publish stamps evt with a sequence number and delivers it to every current
// subscriber. It never blocks and keeps no copy of evt; with no subscribers
// the event is discarded.
func (b *Broadcaster) Publish(evt Event) Event {
	if b == nil {
		return evt
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	evt.Sequence = b.nextSeq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = b.now().UTC()
	}
	for _, sub := range b.subs {
		sub.deliver(evt)
	}
	return evt
}

// Subscribe registers a new subscriber. Callers must Close it when done.
func (b *Broadcaster) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub := &Subscription{
		id:     b.nextID,
		ch:     make(chan Event, b.buffer),
		parent: b,
	}
	b.subs[sub.id] = sub
	return sub
}

// SubscriberCount returns the number of open subscriptions.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// CloseAll closes every subscription, ending their event channels.
func (b *Broadcaster) CloseAll() {
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()
	for _, sub := range subs {
		sub.Close()
	}
}

func (b *Broadcaster) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub.id]; !ok {
		return
	}
	delete(b.subs, sub.id)
	close(sub.ch)
}

// Subscription is one consumer's view of the event stream.
type Subscription struct {
	id      uint64
	ch      chan Event
	parent  *Broadcaster
	dropped atomic.Uint64
	once    sync.Once
}

// Events returns the channel that receives published events. It is closed
// when the subscription is closed.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Dropped reports how many events were discarded because the buffer was full.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close unregisters the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.parent.remove(s)
	})
}

// deliver runs with the broadcaster lock held, so no other publisher races
// the drop-and-retry below.
func (s *Subscription) deliver(evt Event) {
	for {
		select {
		case s.ch <- evt:
			return
		default:
		}
		select {
		case <-s.ch:
			s.dropped.Add(1)
		default:
		}
	}
}
