package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"spool/internal/config"
	"spool/internal/events"
	"spool/internal/logging"
)

// Watcher converts scheduler events into notifications. It is not safe for
// concurrent use; Run owns it.
type Watcher struct {
	notifier Notifier
	settings config.Notifications
	logger   *slog.Logger

	runStart  time.Time
	completed int
	failed    int
	cancelled int
}

// NewWatcher returns a watcher sending through notifier.
func NewWatcher(cfg *config.Config, notifier Notifier, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	var settings config.Notifications
	if cfg != nil {
		settings = cfg.Notifications
	}
	return &Watcher{
		notifier: notifier,
		settings: settings,
		logger:   logging.NewComponentLogger(logger, "notifications"),
	}
}

// Run consumes sub until ctx ends or the subscription is closed, then closes
// sub.
func (w *Watcher) Run(ctx context.Context, sub *events.Subscription) {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub.Events():
			if !ok {
				return
			}
			for _, msg := range w.Messages(evt) {
				w.send(ctx, msg)
			}
		}
	}
}

// Messages updates run tracking with evt and returns the notifications it
// triggers.
func (w *Watcher) Messages(evt events.Event) []Message {
	switch evt.Type {
	case events.TypeJobStarted:
		if w.runStart.IsZero() {
			w.runStart = evt.Timestamp
		}
	case events.TypeJobCompleted:
		w.completed++
		if w.settings.NotifyCompleted {
			return []Message{completedMessage(evt)}
		}
	case events.TypeJobFailed:
		w.failed++
		if w.settings.NotifyFailed {
			return []Message{failedMessage(evt)}
		}
	case events.TypeJobCancelled:
		w.cancelled++
	case events.TypeQueueSnapshot:
		snap := evt.Snapshot
		if snap == nil || snap.Pending > 0 || snap.Running > 0 {
			return nil
		}
		msg, ok := w.idleMessage(evt.Timestamp)
		w.reset()
		if ok && w.settings.NotifyQueueIdle {
			return []Message{msg}
		}
	}
	return nil
}

func (w *Watcher) reset() {
	w.runStart = time.Time{}
	w.completed, w.failed, w.cancelled = 0, 0, 0
}

// idleMessage summarizes the run that just ended. Runs where nothing
// completed or failed are not reported.
func (w *Watcher) idleMessage(now time.Time) (Message, bool) {
	if w.completed+w.failed == 0 {
		return Message{}, false
	}
	elapsed := time.Duration(0)
	if !w.runStart.IsZero() && now.After(w.runStart) {
		elapsed = now.Sub(w.runStart).Round(time.Second)
	}
	msg := Message{
		Title: "Spool - Queue Complete",
		Tags:  []string{"spool", "queue", "completed"},
	}
	if w.failed == 0 {
		msg.Body = fmt.Sprintf("Queue idle: %d completed in %s", w.completed, elapsed)
	} else {
		msg.Title = "Spool - Queue Complete (with errors)"
		msg.Body = fmt.Sprintf("Queue idle: %d completed, %d failed in %s", w.completed, w.failed, elapsed)
	}
	if w.cancelled > 0 {
		msg.Body += fmt.Sprintf(" (%d cancelled)", w.cancelled)
	}
	return msg, true
}

func (w *Watcher) send(ctx context.Context, msg Message) {
	if w.notifier == nil || !w.notifier.Enabled() {
		return
	}
	if err := w.notifier.Send(ctx, msg); err != nil && ctx.Err() == nil {
		logging.WarnWithContext(w.logger, "notification failed", "notification_failed",
			logging.String("title", msg.Title),
			logging.Error(err),
			logging.String(logging.FieldImpact, "job outcome was not pushed"),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network access"),
		)
	}
}

func completedMessage(evt events.Event) Message {
	body := fmt.Sprintf("✅ %s → %s", filepath.Base(evt.InputPath), evt.OutputPath)
	if evt.Duration > 0 {
		body += fmt.Sprintf(" in %s", evt.Duration.Round(time.Second))
	}
	return Message{
		Title: "Spool - Transcode Complete",
		Body:  body,
		Tags:  []string{"spool", "transcode", "completed"},
	}
}

func failedMessage(evt events.Event) Message {
	reason := evt.Reason
	if reason == "" {
		reason = "unknown error"
	}
	return Message{
		Title:    "Spool - Transcode Failed",
		Body:     fmt.Sprintf("❌ %s: %s", filepath.Base(evt.InputPath), reason),
		Tags:     []string{"spool", "transcode", "failed"},
		Priority: "high",
	}
}
