// Package config loads, normalizes, and validates spool configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SPOOL_FFMPEG. The Config type centralizes every knob the daemon and CLI need
// so binaries, pool sizing, and shutdown policy are discovered in one pass.
package config
