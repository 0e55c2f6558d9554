// Package preset holds the closed catalog of encode configurations.
//
// Callers select a preset by name and may adjust a small set of explicit
// overrides (bitrates, sample rate, resolution, frame rate, LUT, audio
// mapping). Resolve validates the result at submission time so the worker
// never discovers a malformed configuration mid-run. Args renders a resolved
// Config as an ffmpeg argument list.
package preset
