// Package notifications pushes job outcomes to ntfy.
//
// New returns a Notifier that posts to the configured topic URL, or a no-op
// when no topic is set. Watcher consumes a scheduler event subscription and
// turns job completions, failures and the queue going idle into messages,
// honoring the per-kind toggles in the [notifications] config section.
package notifications
