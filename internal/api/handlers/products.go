package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dmaier/listify/internal/store"
	"github.com/dmaier/listify/pkg/margin"
	domain "github.com/dmaier/listify/pkg/types"
)

// ProductsHandler handles catalog endpoints.
type ProductsHandler struct {
	store store.Store
}

// NewProductsHandler creates a new ProductsHandler.
func NewProductsHandler(s store.Store) *ProductsHandler {
	return &ProductsHandler{store: s}
}

// --- Input/Output types ---

// CreateProductInput is the input for creating a catalog product.
type CreateProductInput struct {
	Body struct {
		Title         string  `json:"title"          doc:"Product title"                  minLength:"1" maxLength:"255"`
		Description   string  `json:"description"    doc:"Product description"`
		Price         float64 `json:"price"          doc:"Sale price"                     exclusiveMinimum:"0"`
		Cost          float64 `json:"cost"           doc:"Acquisition cost"               minimum:"0"`
		ImageFilename string  `json:"image_filename" doc:"Uploaded image name, if any"    required:"false"`
	}
}

// CreateProductOutput is the response for creating a product.
type CreateProductOutput struct {
	Body domain.Product
}

// ListProductsOutput is the response for listing the catalog.
type ListProductsOutput struct {
	Body struct {
		Products []domain.Product `json:"products"`
		Total    int              `json:"total"`
	}
}

// GetProductInput is the input for getting a single product.
type GetProductInput struct {
	ID int64 `path:"id" doc:"Product id"`
}

// GetProductOutput is the response for getting a single product.
type GetProductOutput struct {
	Body domain.Product
}

// --- Handlers ---

// CreateProduct appends a product to the catalog. The predicted profit
// margin is computed server side from price and cost.
func (h *ProductsHandler) CreateProduct(
	ctx context.Context,
	input *CreateProductInput,
) (*CreateProductOutput, error) {
	product := &domain.Product{
		Title:           input.Body.Title,
		Description:     input.Body.Description,
		Price:           input.Body.Price,
		Cost:            input.Body.Cost,
		ImageFilename:   input.Body.ImageFilename,
		PredictedMargin: margin.Predict(input.Body.Price, input.Body.Cost),
	}

	if err := h.store.AppendProduct(ctx, product); err != nil {
		return nil, huma.Error500InternalServerError("creating product: " + err.Error())
	}

	return &CreateProductOutput{Body: *product}, nil
}

// ListProducts returns the whole catalog in insertion order.
func (h *ProductsHandler) ListProducts(
	ctx context.Context,
	_ *struct{},
) (*ListProductsOutput, error) {
	products, err := h.store.ListProducts(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing products: " + err.Error())
	}

	resp := &ListProductsOutput{}
	resp.Body.Products = products
	resp.Body.Total = len(products)
	return resp, nil
}

// GetProduct returns a single product by id.
func (h *ProductsHandler) GetProduct(
	ctx context.Context,
	input *GetProductInput,
) (*GetProductOutput, error) {
	product, err := h.store.GetProduct(ctx, input.ID)
	if err != nil {
		if errors.Is(err, domain.ErrItemNotFound) {
			return nil, huma.Error404NotFound("product not found")
		}
		return nil, huma.Error500InternalServerError("fetching product: " + err.Error())
	}

	return &GetProductOutput{Body: *product}, nil
}

// RegisterProductRoutes registers catalog endpoints with the Huma API.
func RegisterProductRoutes(api huma.API, h *ProductsHandler) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-product",
		Method:        http.MethodPost,
		Path:          "/api/v1/products",
		Summary:       "Create a product",
		Description:   "Appends a product to the catalog and predicts its profit margin.",
		Tags:          []string{"products"},
		DefaultStatus: http.StatusCreated,
	}, h.CreateProduct)

	huma.Register(api, huma.Operation{
		OperationID: "list-products",
		Method:      http.MethodGet,
		Path:        "/api/v1/products",
		Summary:     "List products",
		Description: "Returns all catalog products in insertion order.",
		Tags:        []string{"products"},
	}, h.ListProducts)

	huma.Register(api, huma.Operation{
		OperationID: "get-product",
		Method:      http.MethodGet,
		Path:        "/api/v1/products/{id}",
		Summary:     "Get a product by id",
		Tags:        []string{"products"},
		Errors:      []int{http.StatusNotFound},
	}, h.GetProduct)
}
