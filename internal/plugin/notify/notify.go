// Package notify delivers human-facing events. The desktop variant uses
// beeep for cross-platform notifications; the log variant writes to the
// structured log for headless hosts.
package notify

import (
	"context"
	"log/slog"

	"github.com/gen2brain/beeep"

	"github.com/drover-dev/drover/internal/logger"
	"github.com/drover-dev/drover/internal/plugin"
)

// notifyFunc matches beeep.Notify, swappable in tests.
type notifyFunc func(title, message string, icon any) error

// Desktop implements plugin.Notifier with desktop notifications.
type Desktop struct {
	log    *slog.Logger
	notify notifyFunc
}

// NewDesktop creates a beeep-backed notifier.
func NewDesktop() *Desktop {
	return &Desktop{
		log:    logger.ComponentLogger("notify"),
		notify: beeep.Notify,
	}
}

// Notify sends a desktop notification. Failures are logged and returned but
// callers treat them as non-fatal.
func (d *Desktop) Notify(ctx context.Context, event plugin.Event, priority string) error {
	title := event.Title
	if title == "" {
		title = "drover"
	}
	if err := d.notify(title, event.Message, ""); err != nil {
		d.log.Warn("desktop notification failed",
			"session", event.SessionID, "title", title, "error", err)
		return err
	}
	d.log.Debug("notification sent", "session", event.SessionID, "priority", priority)
	return nil
}

// Log implements plugin.Notifier by writing events to the structured log.
type Log struct {
	log *slog.Logger
}

// NewLog creates a log-only notifier.
func NewLog() *Log {
	return &Log{log: logger.ComponentLogger("notify")}
}

// Notify records the event at a level matching its priority.
func (l *Log) Notify(ctx context.Context, event plugin.Event, priority string) error {
	attrs := []any{"session", event.SessionID, "title", event.Title, "message", event.Message}
	if priority == "high" {
		l.log.Warn("notification", attrs...)
	} else {
		l.log.Info("notification", attrs...)
	}
	return nil
}
