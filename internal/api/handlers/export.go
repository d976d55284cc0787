package handlers

import (
	"encoding/csv"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/dmaier/listify/internal/store"
	domain "github.com/dmaier/listify/pkg/types"
)

// ExportHandler streams the catalog as CSV.
type ExportHandler struct {
	store store.Store
}

// NewExportHandler creates a new ExportHandler.
func NewExportHandler(s store.Store) *ExportHandler {
	return &ExportHandler{store: s}
}

var exportHeader = []string{
	"id", "title", "price", "cost", "predicted_profit_margin",
	"ebay_published", "ebay_listing_id",
	"etsy_published", "etsy_listing_id",
}

// Export writes all products as a CSV attachment.
func (h *ExportHandler) Export(c echo.Context) error {
	products, err := h.store.ListProducts(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError,
			ErrorResponse{Error: "listing products: " + err.Error()})
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().Header().Set(echo.HeaderContentDisposition,
		`attachment; filename="products.csv"`)
	c.Response().WriteHeader(http.StatusOK)

	w := csv.NewWriter(c.Response())
	if err := w.Write(exportHeader); err != nil {
		return err
	}
	for i := range products {
		if err := w.Write(exportRow(&products[i])); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func exportRow(p *domain.Product) []string {
	return []string{
		strconv.FormatInt(p.ID, 10),
		p.Title,
		strconv.FormatFloat(p.Price, 'f', 2, 64),
		strconv.FormatFloat(p.Cost, 'f', 2, 64),
		strconv.FormatFloat(p.PredictedMargin, 'f', 2, 64),
		strconv.FormatBool(p.Ebay.Published),
		p.Ebay.ListingID,
		strconv.FormatBool(p.Etsy.Published),
		p.Etsy.ListingID,
	}
}
