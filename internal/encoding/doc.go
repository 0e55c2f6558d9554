// Package encoding executes a single transcode job.
//
// Runner probes the source duration, picks the Engine named by the job's
// preset (the ffmpeg CLI or the in-process Drapto library), throttles
// progress callbacks, and classifies the result as success, failure, or
// cancellation. The Outcome it returns is authoritative for the job's final
// status. Failed and cancelled runs remove whatever partial output the
// engine wrote.
package encoding
