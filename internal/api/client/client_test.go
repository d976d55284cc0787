package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmaier/listify/internal/api/client"
	domain "github.com/dmaier/listify/pkg/types"
)

func TestClient_ListProducts(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/products", r.URL.Path)
			_, _ = w.Write([]byte(
				`{"products":[{"id":1,"title":"Ceramic mug"}],"total":1}`,
			))
		}),
	)
	defer srv.Close()

	c := client.New(srv.URL)

	products, err := c.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Ceramic mug", products[0].Title)
}

func TestClient_CreateProduct(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":5,"title":"Linen tote","version":1}`))
		}),
	)
	defer srv.Close()

	c := client.New(srv.URL)

	created, err := c.CreateProduct(context.Background(), &domain.Product{
		Title: "Linen tote",
		Price: 35.5,
		Cost:  14,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), created.ID)
}

func TestClient_Publish(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/products/7/publish/etsy", r.URL.Path)
			_, _ = w.Write([]byte(
				`{"id":7,"etsy":{"published":true,"listing_id":"987654"}}`,
			))
		}),
	)
	defer srv.Close()

	c := client.New(srv.URL)

	updated, err := c.Publish(context.Background(), 7, domain.ProviderEtsy)
	require.NoError(t, err)
	assert.True(t, updated.Etsy.Published)
	assert.Equal(t, "987654", updated.Etsy.ListingID)
}

func TestClient_APIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"not authenticated with provider"}`))
		}),
	)
	defer srv.Close()

	c := client.New(srv.URL)

	_, err := c.Publish(context.Background(), 7, domain.ProviderEbay)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 401")
	assert.Contains(t, err.Error(), "not authenticated")
}

func TestClient_Export(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/export.csv", r.URL.Path)
			w.Header().Set("Content-Type", "text/csv")
			_, _ = w.Write([]byte("id,title\n1,Ceramic mug\n"))
		}),
	)
	defer srv.Close()

	c := client.New(srv.URL)

	data, err := c.Export(context.Background())
	require.NoError(t, err)
	assert.Contains(t, string(data), "Ceramic mug")
}
