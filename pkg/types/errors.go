package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the publishing workflow.
var (
	// ErrNotAuthenticated means no OAuth session exists for the provider.
	// Recoverable by running the authorization flow again.
	ErrNotAuthenticated = errors.New("not authenticated with provider")

	// ErrItemNotFound means the requested catalog item does not exist.
	ErrItemNotFound = errors.New("catalog item not found")

	// ErrNoRefreshToken means the session cannot be refreshed; the operator
	// must re-authorize.
	ErrNoRefreshToken = errors.New("session has no refresh token")
)

// TokenError is a failure of an OAuth token-endpoint call.
type TokenError struct {
	Provider   Provider
	Grant      string // "authorization_code" or "refresh_token"
	StatusCode int
	Detail     string
}

func (e *TokenError) Error() string {
	return fmt.Sprintf(
		"%s token request failed (grant %s, status %d): %s",
		e.Provider, e.Grant, e.StatusCode, e.Detail,
	)
}

// UpstreamError is a non-2xx response from a provider API call other than
// the token endpoints. It carries the provider's raw diagnostic.
type UpstreamError struct {
	Provider   Provider
	Step       string // protocol step, e.g. "inventory_item", "offer", "publish", "listing", "shop_lookup"
	StatusCode int
	Detail     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf(
		"%s %s call failed (status %d): %s",
		e.Provider, e.Step, e.StatusCode, e.Detail,
	)
}
