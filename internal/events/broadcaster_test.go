package events

import (
	"sync"
	"testing"
	"time"
)

func TestPublishWithoutSubscribers(t *testing.T) {
	b := NewBroadcaster(4)
	evt := b.Publish(Event{Type: TypeQueueSnapshot})
	if evt.Sequence != 1 || evt.Timestamp.IsZero() {
		t.Fatalf("expected stamped event, got %+v", evt)
	}
	if b.SubscriberCount() != 0 {
		t.Fatal("expected no subscribers")
	}
}

func TestFanOutPreservesOrder(t *testing.T) {
	b := NewBroadcaster(16)
	first := b.Subscribe()
	second := b.Subscribe()
	defer first.Close()
	defer second.Close()

	for i := 0; i < 5; i++ {
		b.Publish(Event{Type: TypeJobProgress, Percent: float64(i * 20)})
	}
	for _, sub := range []*Subscription{first, second} {
		for i := 0; i < 5; i++ {
			evt := <-sub.Events()
			if evt.Sequence != uint64(i+1) {
				t.Fatalf("expected sequence %d, got %d", i+1, evt.Sequence)
			}
		}
	}
}

func TestSlowSubscriberDropsOldest(t *testing.T) {
	b := NewBroadcaster(3)
	slow := b.Subscribe()
	defer slow.Close()

	for i := 1; i <= 5; i++ {
		b.Publish(Event{Type: TypeJobProgress, Percent: float64(i)})
	}
	if slow.Dropped() != 2 {
		t.Fatalf("expected 2 dropped, got %d", slow.Dropped())
	}
	var got []float64
	for i := 0; i < 3; i++ {
		got = append(got, (<-slow.Events()).Percent)
	}
	if got[0] != 3 || got[1] != 4 || got[2] != 5 {
		t.Fatalf("expected newest events retained, got %v", got)
	}
}

func TestCloseIsIdempotentAndEndsChannel(t *testing.T) {
	b := NewBroadcaster(2)
	sub := b.Subscribe()
	sub.Close()
	sub.Close()
	if _, ok := <-sub.Events(); ok {
		t.Fatal("expected closed channel")
	}
	if b.SubscriberCount() != 0 {
		t.Fatal("expected subscriber removed")
	}
	b.Publish(Event{Type: TypeJobStarted})
}

func TestCloseAll(t *testing.T) {
	b := NewBroadcaster(2)
	subs := []*Subscription{b.Subscribe(), b.Subscribe()}
	b.CloseAll()
	for _, sub := range subs {
		if _, ok := <-sub.Events(); ok {
			t.Fatal("expected closed channel")
		}
		sub.Close()
	}
}

func TestConcurrentPublishAndClose(t *testing.T) {
	b := NewBroadcaster(8)
	var wg sync.WaitGroup
	stop := make(chan struct{})
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					b.Publish(Event{Type: TypeJobProgress})
				}
			}
		}()
	}
	for i := 0; i < 50; i++ {
		sub := b.Subscribe()
		select {
		case <-sub.Events():
		case <-time.After(time.Second):
			t.Fatal("subscriber received nothing")
		}
		sub.Close()
	}
	close(stop)
	wg.Wait()
}

func TestSubscribeDoesNotReplay(t *testing.T) {
	b := NewBroadcaster(4)
	for i := 0; i < 3; i++ {
		b.Publish(Event{Type: TypeJobProgress})
	}
	sub := b.Subscribe()
	defer sub.Close()
	select {
	case evt := <-sub.Events():
		t.Fatalf("late subscriber received earlier event %+v", evt)
	default:
	}
	b.Publish(Event{Type: TypeJobStarted})
	if evt := <-sub.Events(); evt.Sequence != 4 {
		t.Fatalf("expected sequence 4, got %d", evt.Sequence)
	}
}
