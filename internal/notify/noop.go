package notify

import (
	"context"
	"log/slog"
)

// NoOpNotifier implements Notifier by logging discarded events. It is used
// when Discord (or another notification backend) is not configured.
type NoOpNotifier struct {
	log *slog.Logger
}

// NewNoOpNotifier creates a notifier that discards events with a log message.
func NewNoOpNotifier(log *slog.Logger) *NoOpNotifier {
	return &NoOpNotifier{log: log}
}

// PublishResult logs and discards a publish event.
func (n *NoOpNotifier) PublishResult(_ context.Context, event PublishEvent) error {
	n.log.Debug("notification discarded (no backend configured)",
		"provider", event.Provider,
		"title", event.Title,
		"listing_id", event.ListingID,
	)
	return nil
}
