package etsy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmaier/listify/internal/metrics"
	domain "github.com/dmaier/listify/pkg/types"
)

const defaultAPIBaseURL = "https://openapi.etsy.com/v3"

// Protocol steps.
const (
	StepListing      = "listing"
	StepListingImage = "listing_image"
)

// ListingClient creates draft listings in the operator's shop. The API key
// header carries the OAuth client id, which Etsy requires on every call on
// top of the bearer token.
type ListingClient struct {
	baseURL  string
	apiKey   string
	tokens   TokenProvider
	client   *http.Client
	settings ListingSettings
}

// ListingOption configures the ListingClient.
type ListingOption func(*ListingClient)

// WithAPIBaseURL overrides the default Etsy API base URL.
func WithAPIBaseURL(u string) ListingOption {
	return func(c *ListingClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) ListingOption {
	return func(c *ListingClient) {
		c.client = hc
	}
}

// NewListingClient creates an Etsy listing client.
func NewListingClient(
	apiKey string,
	tokens TokenProvider,
	settings ListingSettings,
	opts ...ListingOption,
) *ListingClient {
	c := &ListingClient{
		baseURL:  defaultAPIBaseURL,
		apiKey:   apiKey,
		tokens:   tokens,
		client:   &http.Client{Timeout: 30 * time.Second},
		settings: settings,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type listingResponse struct {
	ListingID int64 `json:"listing_id"`
}

// CreateListing creates a draft listing in the shop and returns its id.
func (c *ListingClient) CreateListing(
	ctx context.Context,
	shopID string,
	draft ListingDraft,
) (string, error) {
	form := url.Values{
		"title":               {draft.Title},
		"description":         {draft.Description},
		"price":               {strconv.FormatFloat(draft.Price, 'f', 2, 64)},
		"quantity":            {strconv.Itoa(draft.Quantity)},
		"who_made":            {c.settings.WhoMade},
		"when_made":           {c.settings.WhenMade},
		"is_supply":           {strconv.FormatBool(c.settings.IsSupply)},
		"taxonomy_id":         {strconv.Itoa(c.settings.TaxonomyID)},
		"shipping_profile_id": {strconv.FormatInt(c.settings.ShippingProfileID, 10)},
	}

	endpoint := fmt.Sprintf("%s/application/shops/%s/listings", c.baseURL, shopID)

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		endpoint,
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return "", fmt.Errorf("creating listing request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.do(ctx, req)
	if err != nil {
		return "", fmt.Errorf("executing listing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", c.upstreamError(StepListing, resp)
	}

	var listing listingResponse
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return "", fmt.Errorf("parsing listing response: %w", err)
	}
	if listing.ListingID == 0 {
		return "", fmt.Errorf("listing response missing listing_id")
	}

	return strconv.FormatInt(listing.ListingID, 10), nil
}

// UploadListingImage attaches a photo to an existing listing. Callers treat
// a failure here as non-fatal; the listing is already live without it.
func (c *ListingClient) UploadListingImage(
	ctx context.Context,
	shopID, listingID, filename string,
	image io.Reader,
) error {
	var buf strings.Builder
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return fmt.Errorf("creating image form field: %w", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return fmt.Errorf("encoding image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalizing image form: %w", err)
	}

	endpoint := fmt.Sprintf(
		"%s/application/shops/%s/listings/%s/images",
		c.baseURL, shopID, listingID,
	)

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		endpoint,
		strings.NewReader(buf.String()),
	)
	if err != nil {
		return fmt.Errorf("creating image upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.do(ctx, req)
	if err != nil {
		return fmt.Errorf("executing image upload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return c.upstreamError(StepListingImage, resp)
	}
	return nil
}

func (c *ListingClient) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}

	metrics.ProviderAPICallsTotal.WithLabelValues(string(domain.ProviderEtsy)).Inc()
	return resp, nil
}

func (c *ListingClient) upstreamError(step string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096)) //nolint:errcheck // best-effort diagnostic
	return &domain.UpstreamError{
		Provider:   domain.ProviderEtsy,
		Step:       step,
		StatusCode: resp.StatusCode,
		Detail:     string(body),
	}
}
