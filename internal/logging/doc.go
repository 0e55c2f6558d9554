// Package logging assembles structured slog loggers and formatting helpers used
// across spool.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so scheduler and worker code
// tag log lines with job IDs, worker numbers, and correlation IDs. A no-op
// logger is provided for tests and wiring code that cannot fail.
package logging
