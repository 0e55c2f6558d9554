package ffmpeg

import (
	"bytes"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	timePattern  = regexp.MustCompile(`time=\s*(-?\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)
	fpsPattern   = regexp.MustCompile(`fps=\s*(\d+(?:\.\d+)?)`)
	speedPattern = regexp.MustCompile(`speed=\s*(\d+(?:\.\d+)?(?:e[+-]?\d+)?)x`)
)

// Progress is one sample parsed from an ffmpeg stats line.
type Progress struct {
	Elapsed time.Duration
	Percent float64
	FPS     *float64
	Speed   *float64
	ETA     *time.Duration
}

// ParseLine extracts progress from a stats line. Lines without a time= field
// are not progress and report false. total is the source duration; when it is
// unknown Percent stays 0 and no ETA is derived.
func ParseLine(line string, total time.Duration) (Progress, bool) {
	match := timePattern.FindStringSubmatch(line)
	if match == nil {
		return Progress{}, false
	}
	elapsed, ok := parseClock(match[1], match[2], match[3])
	if !ok {
		return Progress{}, false
	}

	p := Progress{Elapsed: elapsed}
	if m := fpsPattern.FindStringSubmatch(line); m != nil {
		if fps, err := strconv.ParseFloat(m[1], 64); err == nil {
			p.FPS = &fps
		}
	}
	if m := speedPattern.FindStringSubmatch(line); m != nil {
		if speed, err := strconv.ParseFloat(m[1], 64); err == nil && !math.IsInf(speed, 0) {
			p.Speed = &speed
		}
	}

	if total > 0 {
		p.Percent = math.Min(100, float64(elapsed)/float64(total)*100)
		if p.Speed != nil && *p.Speed > 0 {
			remaining := total - elapsed
			if remaining < 0 {
				remaining = 0
			}
			eta := time.Duration(float64(remaining) / *p.Speed)
			p.ETA = &eta
		}
	}
	return p, true
}

func parseClock(hours, minutes, seconds string) (time.Duration, bool) {
	// ffmpeg prints negative clocks before the first frame is muxed.
	if strings.HasPrefix(hours, "-") {
		return 0, false
	}
	h, err := strconv.Atoi(hours)
	if err != nil {
		return 0, false
	}
	m, err := strconv.Atoi(minutes)
	if err != nil || m >= 60 {
		return 0, false
	}
	s, err := strconv.ParseFloat(seconds, 64)
	if err != nil || s >= 60 {
		return 0, false
	}
	total := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s*float64(time.Second))
	return total, true
}

// ScanStatsLines splits ffmpeg stderr on both newlines and carriage returns.
// ffmpeg rewrites its stats line in place with \r, so bufio.ScanLines alone
// would buffer an entire encode as one token.
func ScanStatsLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		advance = i + 1
		if data[i] == '\r' && i+1 < len(data) && data[i+1] == '\n' {
			advance++
		}
		return advance, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
