// Package job defines the transcode job model: identity, priority, status,
// and the permitted lifecycle transitions.
//
// A job moves Pending -> Running -> {Completed, Failed, Cancelled}, or
// Pending -> Cancelled. Terminal states are final. Transition methods return
// ErrInvalidTransition instead of silently overwriting state.
package job
