// Package etsy publishes catalog products through the Etsy Open API v3
// listings endpoints.
package etsy

import (
	"context"
)

// TokenProvider defines the interface for obtaining OAuth2 access tokens.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// ListingDraft is the input to a listing creation call. The image is
// uploaded separately after the listing exists.
type ListingDraft struct {
	Title       string
	Description string
	Price       float64
	Quantity    int
}

// ListingSettings are the shop-level attributes Etsy requires on every
// physical listing.
type ListingSettings struct {
	WhoMade           string
	WhenMade          string
	IsSupply          bool
	TaxonomyID        int
	ShippingProfileID int64
}
