package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"spool/internal/events"
)

func TestFormatStatusLabel(t *testing.T) {
	cases := map[string]string{
		"cancelled": "Cancelled",
		"running":   "Running",
		" pending ": "Pending",
		"":          "",
	}
	for in, want := range cases {
		if got := formatStatusLabel(in); got != want {
			t.Fatalf("formatStatusLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatSeconds(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "-"},
		{42, "42s"},
		{200, "3m20s"},
		{3725, "1h02m"},
	}
	for _, tc := range cases {
		if got := formatSeconds(tc.in); got != tc.want {
			t.Fatalf("formatSeconds(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestEventsURLUsesLoopbackForWildcard(t *testing.T) {
	cases := map[string]string{
		"0.0.0.0:7611":   "http://127.0.0.1:7611/api/events",
		"[::]:7611":      "http://127.0.0.1:7611/api/events",
		":7611":          "http://127.0.0.1:7611/api/events",
		"10.0.0.5:7611":  "http://10.0.0.5:7611/api/events",
		"localhost:7611": "http://localhost:7611/api/events",
	}
	for in, want := range cases {
		if got := eventsURL(in); got != want {
			t.Fatalf("eventsURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestReadSSEStopsAtTerminalEvent(t *testing.T) {
	stream := strings.Join([]string{
		": keepalive",
		"",
		"id: 1",
		"event: job_started",
		`data: {"seq":1,"type":"job_started","job_id":"aaaaaaaa-0000-0000-0000-000000000000","worker_id":1}`,
		"",
		"id: 2",
		"event: job_progress",
		`data: {"seq":2,"type":"job_progress","job_id":"bbbbbbbb-0000-0000-0000-000000000000","percent":50}`,
		"",
		"id: 3",
		"event: job_cancelled",
		`data: {"seq":3,"type":"job_cancelled","job_id":"aaaaaaaa-0000-0000-0000-000000000000","reason":"cancelled by request"}`,
		"",
		"id: 4",
		"event: queue_snapshot",
		`data: {"seq":4,"type":"queue_snapshot","snapshot":{"pending":0}}`,
		"",
	}, "\n")

	var out bytes.Buffer
	printer := newEventPrinter(&out, false, watchOptions{
		jobID: "aaaaaaaa-0000-0000-0000-000000000000",
		exit:  true,
	})
	err := readSSE(strings.NewReader(stream), printer.handle)
	if !errors.Is(err, errWatchDone) {
		t.Fatalf("expected errWatchDone, got %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 printed events, got %d:\n%s", len(lines), out.String())
	}
	if !strings.Contains(lines[0], "job_started") || !strings.Contains(lines[0], "worker 1") {
		t.Fatalf("unexpected start line %q", lines[0])
	}
	if !strings.Contains(lines[1], "cancelled by request") {
		t.Fatalf("unexpected cancel line %q", lines[1])
	}
}

func TestReadSSERejectsMalformedData(t *testing.T) {
	err := readSSE(strings.NewReader("data: {not json\n\n"), func(events.Event) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "decode event") {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestRenderTableAlignsColumns(t *testing.T) {
	out := renderTable([]column{left("Name"), right("Count")}, [][]string{{"alpha", "1"}, {"b", "22"}})
	for _, want := range []string{"Name", "Count", "alpha", "22"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table missing %q:\n%s", want, out)
		}
	}
	if !strings.HasSuffix(out, "\n") {
		t.Fatalf("table should end with a newline")
	}
}
