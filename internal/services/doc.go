// Package services defines shared utilities consumed by the scheduler, the
// encoding engines, and the daemon control plane.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, worker numbers, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so runner failures can be
//     classified as launch or execution failures.
//
// Subpackages wrap the external encoders (ffmpeg CLI, Drapto library).
package services
