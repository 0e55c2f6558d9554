// Package ffmpeg runs the ffmpeg CLI as a child process and turns its stderr
// stats lines into typed Progress samples.
//
// Run places ffmpeg in its own process group so cancellation reaches any
// helpers it spawns. On a non-zero exit the error carries the exit status and
// the last lines of stderr; on cancellation it wraps the context error.
package ffmpeg
