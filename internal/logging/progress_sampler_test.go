package logging

import (
	"testing"
	"time"
)

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(0, 0)
	if s.bucket != 10 {
		t.Fatalf("default bucket = %v, want 10", s.bucket)
	}
	start := time.Unix(0, 0)
	steps := []struct {
		percent float64
		want    bool
	}{
		{0, true},
		{4, false},
		{10, true},
		{19.9, false},
		{35, true},
		{30, false},
		{100, true},
		{100, false},
		{120, false},
	}
	for i, step := range steps {
		if got := s.ShouldLog(step.percent, start.Add(time.Duration(i)*time.Second)); got != step.want {
			t.Fatalf("step %d: ShouldLog(%v) = %v, want %v", i, step.percent, got, step.want)
		}
	}
}

func TestProgressSamplerHeartbeat(t *testing.T) {
	s := NewProgressSampler(10, time.Minute)
	start := time.Unix(0, 0)
	if !s.ShouldLog(1, start) {
		t.Fatal("first sample should be logged")
	}
	if s.ShouldLog(2, start.Add(30*time.Second)) {
		t.Fatal("sample inside the bucket and heartbeat should be dropped")
	}
	if !s.ShouldLog(3, start.Add(61*time.Second)) {
		t.Fatal("heartbeat should force a log line")
	}
	if s.ShouldLog(4, start.Add(90*time.Second)) {
		t.Fatal("heartbeat should restart after a logged sample")
	}
}

func TestProgressSamplerNil(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(50, time.Now()) {
		t.Fatal("nil sampler should log everything")
	}
}
