// Package ipc exposes the daemon over JSON-RPC on a Unix socket and ships the
// matching client used by the CLI.
//
// Request and response types live in types.go; job and status payloads reuse
// the HTTP API DTOs so both transports describe jobs identically. Job ids may
// be given as a unique prefix of a live job.
package ipc
