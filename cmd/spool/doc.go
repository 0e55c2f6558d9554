// Command spool is the command-line front end for the spool transcode daemon.
//
// Most subcommands talk to a running daemon over its JSON-RPC socket. The
// hidden `daemon` subcommand runs the daemon in the foreground; `start`,
// `stop` and `restart` manage it as a background process. `watch` follows
// the live event stream over the HTTP API when one is bound and falls back
// to polling the socket otherwise.
package main
