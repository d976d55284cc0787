// Package engine runs the background maintenance tasks: the token refresh
// sweep and the catalog stats snapshot.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmaier/listify/internal/metrics"
	"github.com/dmaier/listify/internal/store"
	domain "github.com/dmaier/listify/pkg/types"
)

// TokenRefresher refreshes every OAuth session that expires within the window.
type TokenRefresher interface {
	RefreshExpiring(ctx context.Context, window time.Duration)
}

// Engine owns the periodic maintenance tasks.
type Engine struct {
	store         store.Store
	refresher     TokenRefresher
	refreshWindow time.Duration
	log           *slog.Logger
}

// New creates an Engine.
func New(
	s store.Store,
	refresher TokenRefresher,
	refreshWindow time.Duration,
	log *slog.Logger,
) *Engine {
	return &Engine{
		store:         s,
		refresher:     refresher,
		refreshWindow: refreshWindow,
		log:           log,
	}
}

// RunTokenRefreshSweep proactively refreshes sessions nearing expiry so
// publish calls rarely pay the refresh latency.
func (e *Engine) RunTokenRefreshSweep(ctx context.Context) {
	e.refresher.RefreshExpiring(ctx, e.refreshWindow)
}

// RunCatalogStats updates the catalog gauges from the store.
func (e *Engine) RunCatalogStats(ctx context.Context) error {
	counts, err := e.store.CountProducts(ctx)
	if err != nil {
		return err
	}

	metrics.CatalogProducts.Set(float64(counts.Total))
	metrics.CatalogPublished.WithLabelValues(string(domain.ProviderEbay)).
		Set(float64(counts.PublishedEbay))
	metrics.CatalogPublished.WithLabelValues(string(domain.ProviderEtsy)).
		Set(float64(counts.PublishedEtsy))

	e.log.Debug("catalog stats updated",
		"total", counts.Total,
		"ebay", counts.PublishedEbay,
		"etsy", counts.PublishedEtsy,
	)
	return nil
}
