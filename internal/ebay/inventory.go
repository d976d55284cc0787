package ebay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dmaier/listify/internal/metrics"
	domain "github.com/dmaier/listify/pkg/types"
)

const (
	defaultAPIBaseURL = "https://api.ebay.com"
	skuPrefix         = "LISTIFY-"
)

// Protocol steps, in order. Each maps to one Sell Inventory API call.
const (
	StepInventoryItem = "inventory_item"
	StepOffer         = "offer"
	StepPublish       = "publish"
)

// ListingPolicies holds the seller's business policy ids that every offer
// references.
type ListingPolicies struct {
	FulfillmentPolicyID string
	PaymentPolicyID     string
	ReturnPolicyID      string
}

// InventoryClient drives the three-step Sell Inventory publish protocol.
// Earlier steps are not rolled back when a later step fails; eBay garbage
// collects unpublished inventory items and offers.
type InventoryClient struct {
	baseURL     string
	tokens      TokenProvider
	client      *http.Client
	limiter     *RateLimiter
	marketplace string
	currency    string
	categoryID  string
	policies    ListingPolicies
}

// InventoryOption configures the InventoryClient.
type InventoryOption func(*InventoryClient)

// WithAPIBaseURL overrides the default eBay API base URL.
func WithAPIBaseURL(u string) InventoryOption {
	return func(c *InventoryClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) InventoryOption {
	return func(c *InventoryClient) {
		c.client = hc
	}
}

// NewInventoryClient creates an eBay inventory client.
func NewInventoryClient(
	tokens TokenProvider,
	limiter *RateLimiter,
	marketplace, currency, categoryID string,
	policies ListingPolicies,
	opts ...InventoryOption,
) *InventoryClient {
	c := &InventoryClient{
		baseURL:     defaultAPIBaseURL,
		tokens:      tokens,
		client:      &http.Client{Timeout: 30 * time.Second},
		limiter:     limiter,
		marketplace: marketplace,
		currency:    currency,
		categoryID:  categoryID,
		policies:    policies,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type inventoryItemRequest struct {
	Availability struct {
		ShipToLocationAvailability struct {
			Quantity int `json:"quantity"`
		} `json:"shipToLocationAvailability"`
	} `json:"availability"`
	Condition string `json:"condition"`
	Product   struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		ImageURLs   []string `json:"imageUrls,omitempty"`
	} `json:"product"`
}

type offerRequest struct {
	SKU                string `json:"sku"`
	MarketplaceID      string `json:"marketplaceId"`
	Format             string `json:"format"`
	AvailableQuantity  int    `json:"availableQuantity"`
	CategoryID         string `json:"categoryId"`
	ListingDescription string `json:"listingDescription"`
	ListingPolicies    struct {
		FulfillmentPolicyID string `json:"fulfillmentPolicyId"`
		PaymentPolicyID     string `json:"paymentPolicyId"`
		ReturnPolicyID      string `json:"returnPolicyId"`
	} `json:"listingPolicies"`
	PricingSummary struct {
		Price struct {
			Value    string `json:"value"`
			Currency string `json:"currency"`
		} `json:"price"`
	} `json:"pricingSummary"`
}

type offerResponse struct {
	OfferID string `json:"offerId"`
}

type publishResponse struct {
	ListingID string `json:"listingId"`
}

// PublishListing creates an inventory item under a fresh SKU, attaches an
// offer, and publishes it. It returns the live listing id. A failure at any
// step aborts the remaining steps.
func (c *InventoryClient) PublishListing(
	ctx context.Context,
	draft ListingDraft,
) (string, error) {
	sku := skuPrefix + uuid.NewString()

	if err := c.putInventoryItem(ctx, sku, draft); err != nil {
		return "", err
	}

	offerID, err := c.createOffer(ctx, sku, draft)
	if err != nil {
		return "", err
	}

	return c.publishOffer(ctx, offerID)
}

func (c *InventoryClient) putInventoryItem(
	ctx context.Context,
	sku string,
	draft ListingDraft,
) error {
	var body inventoryItemRequest
	body.Availability.ShipToLocationAvailability.Quantity = draft.Quantity
	body.Condition = "NEW"
	body.Product.Title = draft.Title
	body.Product.Description = draft.Description
	body.Product.ImageURLs = draft.ImageURLs

	resp, err := c.do(ctx, http.MethodPut,
		"/sell/inventory/v1/inventory_item/"+sku, body, StepInventoryItem)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// eBay returns 204 on update and 200/201 on create.
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return nil
	default:
		return c.upstreamError(StepInventoryItem, resp)
	}
}

func (c *InventoryClient) createOffer(
	ctx context.Context,
	sku string,
	draft ListingDraft,
) (string, error) {
	var body offerRequest
	body.SKU = sku
	body.MarketplaceID = c.marketplace
	body.Format = "FIXED_PRICE"
	body.AvailableQuantity = draft.Quantity
	body.CategoryID = c.categoryID
	body.ListingDescription = draft.Description
	body.ListingPolicies.FulfillmentPolicyID = c.policies.FulfillmentPolicyID
	body.ListingPolicies.PaymentPolicyID = c.policies.PaymentPolicyID
	body.ListingPolicies.ReturnPolicyID = c.policies.ReturnPolicyID
	body.PricingSummary.Price.Value = strconv.FormatFloat(draft.Price, 'f', 2, 64)
	body.PricingSummary.Price.Currency = c.currency

	resp, err := c.do(ctx, http.MethodPost,
		"/sell/inventory/v1/offer", body, StepOffer)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", c.upstreamError(StepOffer, resp)
	}

	var offer offerResponse
	if err := json.NewDecoder(resp.Body).Decode(&offer); err != nil {
		return "", fmt.Errorf("parsing offer response: %w", err)
	}
	if offer.OfferID == "" {
		return "", fmt.Errorf("offer response missing offerId")
	}
	return offer.OfferID, nil
}

func (c *InventoryClient) publishOffer(
	ctx context.Context,
	offerID string,
) (string, error) {
	resp, err := c.do(ctx, http.MethodPost,
		"/sell/inventory/v1/offer/"+offerID+"/publish", nil, StepPublish)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.upstreamError(StepPublish, resp)
	}

	var published publishResponse
	if err := json.NewDecoder(resp.Body).Decode(&published); err != nil {
		return "", fmt.Errorf("parsing publish response: %w", err)
	}
	if published.ListingID == "" {
		return "", fmt.Errorf("publish response missing listingId")
	}
	return published.ListingID, nil
}

// do runs one rate-limited, authenticated API call. The token is fetched
// per call so a refresh mid-protocol is picked up by the next step.
func (c *InventoryClient) do(
	ctx context.Context,
	method, path string,
	body any,
	step string,
) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", step, err)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", step, err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding %s request: %w", step, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating %s request: %w", step, err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Language", "en-US")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing %s request: %w", step, err)
	}

	metrics.ProviderAPICallsTotal.WithLabelValues(string(domain.ProviderEbay)).Inc()
	return resp, nil
}

func (c *InventoryClient) upstreamError(step string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096)) //nolint:errcheck // best-effort diagnostic
	return &domain.UpstreamError{
		Provider:   domain.ProviderEbay,
		Step:       step,
		StatusCode: resp.StatusCode,
		Detail:     string(body),
	}
}
