// Package logs reads the daemon log file for `spool logs`.
//
// Last returns the final lines of a file with bounded memory, and Follow
// polls for appended lines from an offset, starting over when the file is
// truncated or replaced. Both treat a missing file as empty so the CLI works
// before the daemon has logged anything.
package logs
