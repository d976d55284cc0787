package client

import (
	"context"
	"fmt"
	"io"
	"net/http"

	domain "github.com/dmaier/listify/pkg/types"
)

// productRequest contains only the fields the API accepts on create.
type productRequest struct {
	Title         string  `json:"title"`
	Description   string  `json:"description,omitempty"`
	Price         float64 `json:"price"`
	Cost          float64 `json:"cost"`
	ImageFilename string  `json:"image_filename,omitempty"`
}

type productList struct {
	Products []domain.Product `json:"products"`
	Total    int              `json:"total"`
}

// ListProducts returns all catalog products.
func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var list productList
	if err := c.get(ctx, "/api/v1/products", &list); err != nil {
		return nil, err
	}
	return list.Products, nil
}

// GetProduct returns a single product by id.
func (c *Client) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	if err := c.get(ctx, fmt.Sprintf("/api/v1/products/%d", id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProduct creates a new catalog product.
func (c *Client) CreateProduct(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	var created domain.Product
	req := productRequest{
		Title:         p.Title,
		Description:   p.Description,
		Price:         p.Price,
		Cost:          p.Cost,
		ImageFilename: p.ImageFilename,
	}
	if err := c.post(ctx, "/api/v1/products", req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// Publish pushes a product to a marketplace and returns the updated record.
func (c *Client) Publish(
	ctx context.Context,
	id int64,
	provider domain.Provider,
) (*domain.Product, error) {
	var updated domain.Product
	path := fmt.Sprintf("/api/v1/products/%d/publish/%s", id, provider)
	if err := c.post(ctx, path, nil, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Export downloads the catalog CSV.
func (c *Client) Export(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.baseURL+"/api/v1/export.csv", nil,
	)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (HTTP %d)", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
