package handlers

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/dmaier/listify/internal/blob"
)

// allowedImageExtensions are the photo formats the marketplaces accept.
var allowedImageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".webp": {},
}

// UploadsHandler stores product photos for later listing calls.
type UploadsHandler struct {
	blobs blob.Store
}

// NewUploadsHandler creates a new UploadsHandler.
func NewUploadsHandler(b blob.Store) *UploadsHandler {
	return &UploadsHandler{blobs: b}
}

// Upload accepts a multipart "image" file and returns its stored name and
// serving URL. The returned name goes into the product's image_filename.
func (h *UploadsHandler) Upload(c echo.Context) error {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		return c.JSON(http.StatusBadRequest,
			ErrorResponse{Error: "missing image file"})
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if _, ok := allowedImageExtensions[ext]; !ok {
		return c.JSON(http.StatusBadRequest,
			ErrorResponse{Error: "unsupported image type"})
	}

	src, err := fileHeader.Open()
	if err != nil {
		return c.JSON(http.StatusInternalServerError,
			ErrorResponse{Error: "reading upload: " + err.Error()})
	}
	defer src.Close()

	stored, err := h.blobs.Save(fileHeader.Filename, src)
	if err != nil {
		return c.JSON(http.StatusInternalServerError,
			ErrorResponse{Error: "storing upload: " + err.Error()})
	}

	return c.JSON(http.StatusCreated, map[string]string{
		"filename": stored,
		"url":      h.blobs.URL(stored),
	})
}
