// Package domain defines the core business types for listify.
package domain

import (
	"fmt"
	"time"
)

// Provider identifies a marketplace that products can be published to.
type Provider string

// Supported providers.
const (
	ProviderEtsy Provider = "etsy"
	ProviderEbay Provider = "ebay"
)

// Providers lists all supported providers in a stable order.
func Providers() []Provider {
	return []Provider{ProviderEtsy, ProviderEbay}
}

// ParseProvider converts a string to a Provider, rejecting unknown values.
func ParseProvider(s string) (Provider, error) {
	switch Provider(s) {
	case ProviderEtsy:
		return ProviderEtsy, nil
	case ProviderEbay:
		return ProviderEbay, nil
	default:
		return "", fmt.Errorf("unknown provider %q", s)
	}
}

// PublishState tracks whether a product is live on one marketplace.
// ListingID is set if and only if Published is true.
type PublishState struct {
	Published bool   `json:"published"            db:"published"`
	ListingID string `json:"listing_id,omitempty" db:"listing_id"`
}

// Product is one catalog record.
type Product struct {
	ID          int64   `json:"id"          db:"id"`
	Title       string  `json:"title"       db:"title"`
	Description string  `json:"description" db:"description"`
	Price       float64 `json:"price"       db:"price"`
	Cost        float64 `json:"cost"        db:"cost"`

	// ImageFilename is the blob store key of the product photo.
	ImageFilename string `json:"image_filename,omitempty" db:"image_filename"`

	PredictedMargin float64 `json:"predicted_profit_margin" db:"predicted_margin"`

	Ebay PublishState `json:"ebay"`
	Etsy PublishState `json:"etsy"`

	// Version increments on every publish-state mutation and backs the
	// optimistic concurrency check in the store.
	Version int `json:"version" db:"version"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// State returns the publish state for the given provider.
func (p *Product) State(provider Provider) PublishState {
	if provider == ProviderEbay {
		return p.Ebay
	}
	return p.Etsy
}

// OAuthSession holds the operator's tokens for one provider. It is created
// by a successful authorization-code exchange, replaced wholesale on
// re-authorization, mutated in place on refresh, and discarded when a
// refresh fails.
type OAuthSession struct {
	Provider     Provider  `json:"provider"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`

	// Etsy-only extras needed by later listing calls.
	ShopID   string `json:"shop_id,omitempty"`
	ShopName string `json:"shop_name,omitempty"`
}

// Expired reports whether the access token has passed its expiry.
func (s *OAuthSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
