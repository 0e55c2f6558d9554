// Package drapto runs AV1 encodes through the Drapto Go library in-process.
//
// Engine wraps the library so a job can target an arbitrary output path, and
// a reporter adapter flattens Drapto's callbacks into ProgressUpdate values
// the encoding runner turns into job progress.
package drapto
