// Package api defines wire-format types and converters shared by the IPC and
// HTTP layers. It translates scheduler, pool, history and dependency models
// into transport-friendly DTOs so clients can render them without importing
// internal types.
//
// DTOs use camelCase JSON tags. Enums (job status, priority, engine) are
// exposed as lowercase strings and timestamps use RFC3339 with milliseconds.
// Durations are reported in seconds.
package api
