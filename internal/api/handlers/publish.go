package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dmaier/listify/internal/store"
	domain "github.com/dmaier/listify/pkg/types"
)

// ProductPublisher runs one publish attempt end to end.
type ProductPublisher interface {
	Publish(
		ctx context.Context,
		productID int64,
		provider domain.Provider,
	) (*domain.Product, error)
}

// PublishHandler handles publish endpoints.
type PublishHandler struct {
	publisher ProductPublisher
}

// NewPublishHandler creates a new PublishHandler.
func NewPublishHandler(p ProductPublisher) *PublishHandler {
	return &PublishHandler{publisher: p}
}

// PublishInput is the input for publishing a product.
type PublishInput struct {
	ID       int64  `path:"id"       doc:"Product id"`
	Provider string `path:"provider" doc:"Target marketplace" enum:"etsy,ebay"`
}

// PublishOutput is the response for a successful publish.
type PublishOutput struct {
	Body domain.Product
}

// Publish pushes a product to a marketplace. Provider failures map to the
// gateway status codes so the caller can tell a broken request from a
// broken marketplace.
func (h *PublishHandler) Publish(
	ctx context.Context,
	input *PublishInput,
) (*PublishOutput, error) {
	provider, err := domain.ParseProvider(input.Provider)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity(err.Error())
	}

	product, err := h.publisher.Publish(ctx, input.ID, provider)
	if err != nil {
		return nil, mapPublishError(err)
	}

	return &PublishOutput{Body: *product}, nil
}

func mapPublishError(err error) error {
	var tokenErr *domain.TokenError
	var upstreamErr *domain.UpstreamError

	switch {
	case errors.Is(err, domain.ErrNotAuthenticated),
		errors.Is(err, domain.ErrNoRefreshToken):
		return huma.Error401Unauthorized(err.Error())
	case errors.Is(err, domain.ErrItemNotFound):
		return huma.Error404NotFound("product not found")
	case errors.Is(err, store.ErrVersionConflict):
		return huma.Error409Conflict(err.Error())
	case errors.As(err, &tokenErr), errors.As(err, &upstreamErr):
		return huma.Error502BadGateway(err.Error())
	default:
		return huma.Error500InternalServerError(err.Error())
	}
}

// RegisterPublishRoutes registers publish endpoints with the Huma API.
func RegisterPublishRoutes(api huma.API, h *PublishHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "publish-product",
		Method:      http.MethodPost,
		Path:        "/api/v1/products/{id}/publish/{provider}",
		Summary:     "Publish a product to a marketplace",
		Description: "Runs the provider's listing protocol and records the listing id.",
		Tags:        []string{"publish"},
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusBadGateway,
		},
	}, h.Publish)
}
