package logging

import "time"

// ProgressSampler decides which transcode progress samples reach the log.
// A sample is kept when it enters a new percent bucket, or when the encode
// has been quiet for longer than the heartbeat so slow jobs still show life.
type ProgressSampler struct {
	bucket    float64
	heartbeat time.Duration
	lastIdx   int
	lastAt    time.Time
}

// NewProgressSampler returns a sampler with the given bucket width in percent
// (default 10) and heartbeat (zero disables it).
func NewProgressSampler(bucket float64, heartbeat time.Duration) *ProgressSampler {
	if bucket <= 0 {
		bucket = 10
	}
	return &ProgressSampler{bucket: bucket, heartbeat: heartbeat, lastIdx: -1}
}

// ShouldLog reports whether the sample at now should be logged.
func (s *ProgressSampler) ShouldLog(percent float64, now time.Time) bool {
	if s == nil {
		return true
	}
	if percent > 100 {
		percent = 100
	}
	idx := -1
	if percent >= 0 {
		idx = int(percent / s.bucket)
	}
	keep := idx > s.lastIdx
	if !keep && s.heartbeat > 0 && !s.lastAt.IsZero() && now.Sub(s.lastAt) >= s.heartbeat {
		keep = true
	}
	if !keep {
		return false
	}
	if idx > s.lastIdx {
		s.lastIdx = idx
	}
	s.lastAt = now
	return true
}
