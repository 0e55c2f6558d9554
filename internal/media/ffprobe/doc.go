// Package ffprobe wraps the ffprobe CLI for the metadata the scheduler
// needs before a transcode: container duration for progress percentages and
// stream counts for sanity checks.
package ffprobe
