// Package publisher orchestrates the publish workflow: session check,
// catalog lookup, provider protocol, and publish-state persistence.
package publisher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dmaier/listify/internal/blob"
	"github.com/dmaier/listify/internal/ebay"
	"github.com/dmaier/listify/internal/etsy"
	"github.com/dmaier/listify/internal/metrics"
	"github.com/dmaier/listify/internal/notify"
	"github.com/dmaier/listify/internal/store"
	domain "github.com/dmaier/listify/pkg/types"
)

// Every listing goes live with the same stock quantity; inventory sync is
// out of scope for this tool.
const defaultQuantity = 10

// Sessions yields a valid OAuth session for a provider, refreshing behind
// the scenes when needed.
type Sessions interface {
	EnsureValid(ctx context.Context, provider domain.Provider) (*domain.OAuthSession, error)
}

// EbayLister runs the eBay publish protocol.
type EbayLister interface {
	PublishListing(ctx context.Context, draft ebay.ListingDraft) (string, error)
}

// EtsyLister creates Etsy listings and attaches images to them.
type EtsyLister interface {
	CreateListing(ctx context.Context, shopID string, draft etsy.ListingDraft) (string, error)
	UploadListingImage(ctx context.Context, shopID, listingID, filename string, image io.Reader) error
}

// Publisher drives one publish attempt end to end. Provider failures are
// reported to the caller unmasked; only the image upload and the outcome
// notification are best-effort.
type Publisher struct {
	store     store.Store
	sessions  Sessions
	ebay      EbayLister
	etsy      EtsyLister
	blobs     blob.Store
	notifier  notify.Notifier
	logger    *slog.Logger
	publicURL string
}

// New creates a Publisher. publicURL is the externally reachable base URL
// used to hand image references to eBay.
func New(
	s store.Store,
	sessions Sessions,
	ebayClient EbayLister,
	etsyClient EtsyLister,
	blobs blob.Store,
	notifier notify.Notifier,
	logger *slog.Logger,
	publicURL string,
) *Publisher {
	return &Publisher{
		store:     s,
		sessions:  sessions,
		ebay:      ebayClient,
		etsy:      etsyClient,
		blobs:     blobs,
		notifier:  notifier,
		logger:    logger,
		publicURL: publicURL,
	}
}

// Publish pushes the product to the given marketplace and records the new
// listing id. Publishing an already-published product is a no-op that
// returns the current record.
func (p *Publisher) Publish(
	ctx context.Context,
	productID int64,
	provider domain.Provider,
) (*domain.Product, error) {
	start := time.Now()

	product, err := p.publish(ctx, productID, provider)

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	metrics.PublishAttemptsTotal.WithLabelValues(string(provider), outcome).Inc()
	metrics.PublishDuration.WithLabelValues(string(provider)).
		Observe(time.Since(start).Seconds())

	return product, err
}

func (p *Publisher) publish(
	ctx context.Context,
	productID int64,
	provider domain.Provider,
) (*domain.Product, error) {
	session, err := p.sessions.EnsureValid(ctx, provider)
	if err != nil {
		return nil, err
	}

	product, err := p.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	if product.State(provider).Published {
		p.logger.Info("product already published, skipping",
			slog.Int64("product_id", productID),
			slog.String("provider", string(provider)))
		return product, nil
	}

	var listingID string
	switch provider {
	case domain.ProviderEbay:
		listingID, err = p.publishEbay(ctx, product)
	case domain.ProviderEtsy:
		listingID, err = p.publishEtsy(ctx, session, product)
	default:
		err = fmt.Errorf("unknown provider %q", provider)
	}
	if err != nil {
		p.notify(ctx, provider, product, "", err)
		return nil, err
	}

	if err := p.store.SetPublishState(
		ctx, productID, provider, listingID, product.Version,
	); err != nil {
		// The listing is live but the record was not updated. Surface
		// the listing id so the operator can reconcile by hand.
		p.logger.Error("publish state not recorded",
			slog.Int64("product_id", productID),
			slog.String("provider", string(provider)),
			slog.String("listing_id", listingID),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("recording listing %s: %w", listingID, err)
	}

	p.logger.Info("product published",
		slog.Int64("product_id", productID),
		slog.String("provider", string(provider)),
		slog.String("listing_id", listingID))

	updated, err := p.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	p.notify(ctx, provider, updated, listingID, nil)
	return updated, nil
}

func (p *Publisher) publishEbay(
	ctx context.Context,
	product *domain.Product,
) (string, error) {
	draft := ebay.ListingDraft{
		Title:       product.Title,
		Description: product.Description,
		Price:       product.Price,
		Quantity:    defaultQuantity,
	}
	if url := p.imageURL(product); url != "" {
		draft.ImageURLs = []string{url}
	}

	return p.ebay.PublishListing(ctx, draft)
}

func (p *Publisher) publishEtsy(
	ctx context.Context,
	session *domain.OAuthSession,
	product *domain.Product,
) (string, error) {
	if session.ShopID == "" {
		return "", &domain.UpstreamError{
			Provider: domain.ProviderEtsy,
			Step:     "shop_lookup",
			Detail:   "session has no shop; re-authorize to resolve the shop id",
		}
	}

	listingID, err := p.etsy.CreateListing(ctx, session.ShopID, etsy.ListingDraft{
		Title:       product.Title,
		Description: product.Description,
		Price:       product.Price,
		Quantity:    defaultQuantity,
	})
	if err != nil {
		return "", err
	}

	// The listing exists once CreateListing returns; a failed photo
	// upload downgrades the listing, it does not unpublish it.
	if product.ImageFilename != "" {
		if err := p.uploadEtsyImage(ctx, session.ShopID, listingID, product); err != nil {
			p.logger.Warn("etsy image upload failed",
				slog.String("listing_id", listingID),
				slog.String("error", err.Error()))
		}
	}

	return listingID, nil
}

func (p *Publisher) uploadEtsyImage(
	ctx context.Context,
	shopID, listingID string,
	product *domain.Product,
) error {
	image, err := p.blobs.Open(product.ImageFilename)
	if err != nil {
		return err
	}
	defer image.Close()

	return p.etsy.UploadListingImage(
		ctx, shopID, listingID, product.ImageFilename, image,
	)
}

// imageURL builds the externally reachable URL of the product photo, or ""
// when the product has no photo or no public base URL is configured.
func (p *Publisher) imageURL(product *domain.Product) string {
	if product.ImageFilename == "" || p.publicURL == "" {
		return ""
	}
	return p.publicURL + p.blobs.URL(product.ImageFilename)
}

func (p *Publisher) notify(
	ctx context.Context,
	provider domain.Provider,
	product *domain.Product,
	listingID string,
	publishErr error,
) {
	event := notify.PublishEvent{
		Provider:  provider,
		Title:     product.Title,
		ListingID: listingID,
		Price:     product.Price,
		ImageURL:  p.imageURL(product),
		Err:       publishErr,
	}
	if err := p.notifier.PublishResult(ctx, event); err != nil {
		p.logger.Warn("publish notification failed",
			slog.String("provider", string(provider)),
			slog.String("error", err.Error()))
	}
}
