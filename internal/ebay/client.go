// Package ebay publishes catalog products through the eBay Sell Inventory
// API: inventory item, offer, then publish.
package ebay

import (
	"context"
)

// TokenProvider defines the interface for obtaining OAuth2 access tokens.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// ListingDraft is the provider-neutral input to a publish call.
type ListingDraft struct {
	Title       string
	Description string
	Price       float64
	Quantity    int
	ImageURLs   []string
}
