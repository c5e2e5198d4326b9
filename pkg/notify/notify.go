// Package notify delivers fire-and-forget run notifications. Delivery
// failure is always advisory: a build never fails because its announcement
// did.
package notify

import (
	"context"
	"log/slog"
)

// Kind classifies a notification event.
type Kind string

const (
	KindSuccess Kind = "success"
	KindFailure Kind = "failure"
)

// Event is one run notification.
type Event struct {
	Kind     Kind   `json:"kind"`
	Platform string `json:"platform"`
	RunID    string `json:"run_id"`
	Message  string `json:"message"`
}

// Notifier delivers events to some sink.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// LogNotifier writes events to the run log. It is the fallback sink when no
// webhook is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n *LogNotifier) Notify(_ context.Context, ev Event) error {
	n.Logger.Info("pipeline notification",
		"kind", string(ev.Kind),
		"platform", ev.Platform,
		"run_id", ev.RunID,
		"message", ev.Message,
	)
	return nil
}
