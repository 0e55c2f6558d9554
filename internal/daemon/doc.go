// Package daemon coordinates the long-running spool process.
//
// It wires configuration, the scheduler, the job history archive and the
// HTTP API into a single lifecycle with flock-based locking to prevent
// multiple instances. Workers start with the daemon when workers.autostart is
// set, and the configured stop policy decides whether in-flight jobs are
// cancelled or drained at shutdown.
//
// Keep orchestration logic here: scheduling rules live in the scheduler and
// transcode details in the encoding packages.
package daemon
