package ffmpeg

import (
	"bufio"
	"math"
	"strings"
	"testing"
	"time"
)

func TestParseLine(t *testing.T) {
	line := "frame= 1200 fps= 48.0 q=-0.0 size=  102400kB time=00:00:50.00 bitrate=16777.2kbits/s speed=2.00x"
	p, ok := ParseLine(line, 100*time.Second)
	if !ok {
		t.Fatal("expected progress line to parse")
	}
	if p.Elapsed != 50*time.Second {
		t.Fatalf("unexpected elapsed %v", p.Elapsed)
	}
	if p.Percent != 50 {
		t.Fatalf("expected 50%%, got %v", p.Percent)
	}
	if p.FPS == nil || *p.FPS != 48 {
		t.Fatalf("unexpected fps %v", p.FPS)
	}
	if p.ETA == nil || *p.ETA != 25*time.Second {
		t.Fatalf("expected 25s eta, got %v", p.ETA)
	}
}

func TestParseLineClampsAndHandlesUnknownDuration(t *testing.T) {
	p, ok := ParseLine("size=N/A time=01:00:00.00 bitrate=N/A speed=1x", 30*time.Minute)
	if !ok {
		t.Fatal("expected parse")
	}
	if p.Percent != 100 {
		t.Fatalf("expected clamp to 100, got %v", p.Percent)
	}
	if p.ETA == nil || *p.ETA != 0 {
		t.Fatalf("expected zero eta past the end, got %v", p.ETA)
	}

	p, ok = ParseLine("time=00:00:10.00 fps=0.0 speed=N/A", 0)
	if !ok {
		t.Fatal("expected parse without duration")
	}
	if p.Percent != 0 || p.ETA != nil || p.Speed != nil {
		t.Fatalf("expected no percent or eta without duration, got %+v", p)
	}
}

func TestParseLineSkipsNonProgress(t *testing.T) {
	for _, line := range []string{
		"",
		"Input #0, mov,mp4,m4a,3gp,3g2,mj2, from 'clip.mov':",
		"  Duration: 00:01:40.00, start: 0.000000, bitrate: 150000 kb/s",
		"frame=    0 fps=0.0 q=0.0 size=       0kB time=-00:00:00.04 bitrate=N/A speed=N/A",
		"time=garbage",
	} {
		if _, ok := ParseLine(line, time.Minute); ok {
			t.Errorf("expected %q to be skipped", line)
		}
	}
}

func TestParseLineClock(t *testing.T) {
	p, ok := ParseLine("frame=1 time=01:02:03.50 speed=1x", 0)
	if !ok {
		t.Fatal("expected clock to parse")
	}
	want := time.Hour + 2*time.Minute + 3500*time.Millisecond
	if math.Abs(float64(p.Elapsed-want)) > float64(time.Millisecond) {
		t.Fatalf("expected %v, got %v", want, p.Elapsed)
	}
	if p.Percent != 0 || p.ETA != nil {
		t.Fatalf("expected no percent without a duration, got %+v", p)
	}
	if _, ok := ParseLine("time=00:75:00.00", time.Hour); ok {
		t.Fatal("expected invalid minutes to fail")
	}
}

func TestScanStatsLines(t *testing.T) {
	input := "header\nframe=1 time=00:00:01.00\rframe=2 time=00:00:02.00\r\nlast"
	scanner := bufio.NewScanner(strings.NewReader(input))
	scanner.Split(ScanStatsLines)
	var got []string
	for scanner.Scan() {
		got = append(got, scanner.Text())
	}
	want := []string{"header", "frame=1 time=00:00:01.00", "frame=2 time=00:00:02.00", "last"}
	if len(got) != len(want) {
		t.Fatalf("expected %d tokens, got %q", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}
