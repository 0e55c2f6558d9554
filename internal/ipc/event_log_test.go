package ipc

import (
	"testing"

	"spool/internal/events"
)

func TestEventLogKeepsNewestEvents(t *testing.T) {
	b := events.NewBroadcaster(16)
	l := newEventLog(b.Subscribe(), 3)
	defer l.close()

	for i := 0; i < 5; i++ {
		b.Publish(Event{Type: events.TypeJobProgress})
	}
	got := l.after(0, 0)
	if len(got) != 3 || got[0].Sequence != 3 || got[2].Sequence != 5 {
		t.Fatalf("expected sequences 3..5, got %+v", got)
	}
	if got := l.after(4, 0); len(got) != 1 || got[0].Sequence != 5 {
		t.Fatalf("expected only sequence 5, got %+v", got)
	}
	if got := l.after(0, 2); len(got) != 2 || got[0].Sequence != 4 {
		t.Fatalf("expected newest two events, got %+v", got)
	}
}

func TestEventLogSurvivesClosedSubscription(t *testing.T) {
	b := events.NewBroadcaster(4)
	l := newEventLog(b.Subscribe(), 8)
	b.Publish(Event{Type: events.TypeJobStarted})
	if got := l.after(0, 0); len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	b.CloseAll()
	if got := l.after(0, 0); len(got) != 1 {
		t.Fatalf("expected retained event after close, got %d", len(got))
	}
	if b.SubscriberCount() != 0 {
		t.Fatal("expected subscription to be released")
	}
	l.close()
}
