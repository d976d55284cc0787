// Package oauth manages authorization-code OAuth sessions for the
// marketplace providers: browser handoff, code exchange, token refresh,
// and session storage.
package oauth

import (
	"net/url"
)

// ClientConfig holds the OAuth client registration for one provider.
type ClientConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthURL      string
	TokenURL     string
	Scopes       string

	// APIBaseURL is the provider's REST base, used for the Etsy shop
	// lookup after a successful exchange. Unused for eBay.
	APIBaseURL string
}

// authorizeURL builds the browser redirect URL for the authorization step.
func (c ClientConfig) authorizeURL(state string) string {
	q := url.Values{
		"response_type": {"code"},
		"client_id":     {c.ClientID},
		"redirect_uri":  {c.RedirectURI},
		"scope":         {c.Scopes},
		"state":         {state},
	}
	return c.AuthURL + "?" + q.Encode()
}
