// Package notify defines the notification interface and implementations
// for publish-event delivery.
package notify

import (
	"context"

	domain "github.com/dmaier/listify/pkg/types"
)

// PublishEvent describes the outcome of one publish attempt.
type PublishEvent struct {
	Provider  domain.Provider
	Title     string
	ListingID string
	Price     float64
	ImageURL  string
	Err       error
}

// Notifier defines the interface for delivering publish events.
type Notifier interface {
	PublishResult(ctx context.Context, event PublishEvent) error
}
