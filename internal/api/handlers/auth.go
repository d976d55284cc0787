package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dmaier/listify/internal/oauth"
	domain "github.com/dmaier/listify/pkg/types"
)

// AuthHandler drives the browser half of the OAuth authorization flow.
type AuthHandler struct {
	manager *oauth.Manager
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(m *oauth.Manager) *AuthHandler {
	return &AuthHandler{manager: m}
}

// Authorize redirects the operator's browser to the provider's consent page.
func (h *AuthHandler) Authorize(c echo.Context) error {
	provider, err := domain.ParseProvider(c.Param("provider"))
	if err != nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	}

	authURL, err := h.manager.AuthorizeURL(provider)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}

	return c.Redirect(http.StatusFound, authURL)
}

// Callback completes the authorization-code exchange. The provider calls it
// with code and state query parameters.
func (h *AuthHandler) Callback(c echo.Context) error {
	provider, err := domain.ParseProvider(c.Param("provider"))
	if err != nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	}

	code := c.QueryParam("code")
	state := c.QueryParam("state")
	if code == "" || state == "" {
		return c.JSON(http.StatusBadRequest,
			ErrorResponse{Error: "missing code or state"})
	}

	session, err := h.manager.HandleCallback(c.Request().Context(), provider, code, state)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}

	resp := map[string]string{
		"status":   "authenticated",
		"provider": string(provider),
	}
	if session.ShopName != "" {
		resp["shop_name"] = session.ShopName
	}
	return c.JSON(http.StatusOK, resp)
}

// Status reports which providers currently hold a session.
func (h *AuthHandler) Status(c echo.Context) error {
	status := make(map[string]bool, len(domain.Providers()))
	for _, provider := range domain.Providers() {
		_, ok := h.manager.Session(provider)
		status[string(provider)] = ok
	}
	return c.JSON(http.StatusOK, status)
}
