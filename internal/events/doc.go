// Package events delivers scheduler notifications to any number of
// subscribers.
//
// Publishing never blocks: each subscription has a bounded buffer and drops
// its oldest undelivered event when full, counting the loss. Events carry a
// monotonically increasing sequence number so consumers can detect gaps.
package events
