package oauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dmaier/listify/internal/metrics"
	domain "github.com/dmaier/listify/pkg/types"
)

const expirySkew = 60 * time.Second

// Manager runs the authorization-code flow for every configured provider
// and keeps the resulting sessions fresh. Refreshes are single-flight per
// provider; a failed refresh discards the session so the next publish
// attempt reports "not authenticated" instead of retrying a dead token.
type Manager struct {
	configs  map[domain.Provider]ClientConfig
	sessions SessionStore
	states   *stateRegistry
	client   *http.Client
	logger   *slog.Logger
	nowFunc  func() time.Time

	refreshMu map[domain.Provider]*sync.Mutex
}

// Option configures the Manager.
type Option func(*Manager)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) {
		m.client = c
	}
}

// WithNowFunc overrides the time function for testing.
func WithNowFunc(f func() time.Time) Option {
	return func(m *Manager) {
		m.nowFunc = f
	}
}

// WithSessionStore overrides the default in-memory session store.
func WithSessionStore(s SessionStore) Option {
	return func(m *Manager) {
		m.sessions = s
	}
}

// NewManager creates a Manager for the given provider configurations.
func NewManager(
	configs map[domain.Provider]ClientConfig,
	logger *slog.Logger,
	opts ...Option,
) *Manager {
	m := &Manager{
		configs:   configs,
		sessions:  NewMemorySessionStore(),
		client:    &http.Client{Timeout: 15 * time.Second},
		logger:    logger,
		nowFunc:   time.Now,
		refreshMu: make(map[domain.Provider]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.states = newStateRegistry(m.nowFunc)
	for provider := range configs {
		m.refreshMu[provider] = &sync.Mutex{}
	}
	return m
}

func (m *Manager) config(provider domain.Provider) (ClientConfig, error) {
	cfg, ok := m.configs[provider]
	if !ok {
		return ClientConfig{}, fmt.Errorf("provider %s is not configured", provider)
	}
	return cfg, nil
}

// AuthorizeURL issues a fresh state token and returns the URL to send the
// operator's browser to.
func (m *Manager) AuthorizeURL(provider domain.Provider) (string, error) {
	cfg, err := m.config(provider)
	if err != nil {
		return "", err
	}

	state, err := m.states.Issue(provider)
	if err != nil {
		return "", err
	}

	return cfg.authorizeURL(state), nil
}

// HandleCallback verifies the state, exchanges the authorization code, and
// stores the resulting session. For Etsy it also looks up the operator's
// shop; a failed lookup is logged but does not fail the callback, since the
// tokens themselves are good.
func (m *Manager) HandleCallback(
	ctx context.Context,
	provider domain.Provider,
	code, state string,
) (*domain.OAuthSession, error) {
	cfg, err := m.config(provider)
	if err != nil {
		return nil, err
	}

	if !m.states.Verify(provider, state) {
		return nil, fmt.Errorf("state mismatch for provider %s", provider)
	}

	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {cfg.RedirectURI},
	}
	if provider == domain.ProviderEtsy {
		// Etsy wants the client_id in the form body as well as the
		// Basic auth header.
		form.Set("client_id", cfg.ClientID)
	}

	session, err := m.tokenRequest(ctx, provider, cfg, "authorization_code", form)
	if err != nil {
		return nil, err
	}

	if provider == domain.ProviderEtsy {
		if err := m.lookupEtsyShop(ctx, cfg, session); err != nil {
			m.logger.Warn("etsy shop lookup failed",
				slog.String("error", err.Error()))
		}
	}

	m.sessions.Put(session)
	return session, nil
}

// Session returns the current session for the provider, if any.
func (m *Manager) Session(provider domain.Provider) (*domain.OAuthSession, bool) {
	return m.sessions.Get(provider)
}

// EnsureValid returns a session with a non-expired access token, refreshing
// first when needed. It returns domain.ErrNotAuthenticated when no session
// exists.
func (m *Manager) EnsureValid(
	ctx context.Context,
	provider domain.Provider,
) (*domain.OAuthSession, error) {
	session, ok := m.sessions.Get(provider)
	if !ok {
		return nil, fmt.Errorf("%s: %w", provider, domain.ErrNotAuthenticated)
	}

	if !session.Expired(m.nowFunc().Add(expirySkew)) {
		return session, nil
	}

	return m.Refresh(ctx, provider)
}

// Refresh exchanges the refresh token for a new access token. Concurrent
// callers for the same provider are serialized, and the second caller
// reuses the first caller's result. On failure the session is discarded.
func (m *Manager) Refresh(
	ctx context.Context,
	provider domain.Provider,
) (*domain.OAuthSession, error) {
	cfg, err := m.config(provider)
	if err != nil {
		return nil, err
	}

	mu := m.refreshMu[provider]
	mu.Lock()
	defer mu.Unlock()

	session, ok := m.sessions.Get(provider)
	if !ok {
		return nil, fmt.Errorf("%s: %w", provider, domain.ErrNotAuthenticated)
	}

	// Another caller may have refreshed while we waited on the lock.
	if !session.Expired(m.nowFunc().Add(expirySkew)) {
		return session, nil
	}

	if session.RefreshToken == "" {
		m.sessions.Delete(provider)
		metrics.TokenRefreshesTotal.WithLabelValues(string(provider), "failure").Inc()
		return nil, fmt.Errorf("%s: %w", provider, domain.ErrNoRefreshToken)
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {session.RefreshToken},
	}
	if provider == domain.ProviderEtsy {
		form.Set("client_id", cfg.ClientID)
	}

	refreshed, err := m.tokenRequest(ctx, provider, cfg, "refresh_token", form)
	if err != nil {
		m.sessions.Delete(provider)
		metrics.TokenRefreshesTotal.WithLabelValues(string(provider), "failure").Inc()
		m.logger.Warn("token refresh failed, session discarded",
			slog.String("provider", string(provider)),
			slog.String("error", err.Error()))
		return nil, err
	}

	// Providers that do not rotate the refresh token omit it from the
	// response; keep the old one in that case. Shop details survive too.
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = session.RefreshToken
	}
	refreshed.ShopID = session.ShopID
	refreshed.ShopName = session.ShopName

	m.sessions.Put(refreshed)
	metrics.TokenRefreshesTotal.WithLabelValues(string(provider), "success").Inc()

	return refreshed, nil
}

// RefreshExpiring refreshes every session that expires within the window.
// Failures are logged per provider and do not stop the sweep.
func (m *Manager) RefreshExpiring(ctx context.Context, window time.Duration) {
	deadline := m.nowFunc().Add(window)

	for _, provider := range domain.Providers() {
		session, ok := m.sessions.Get(provider)
		if !ok {
			continue
		}
		if !session.Expired(deadline) {
			continue
		}

		if _, err := m.Refresh(ctx, provider); err != nil {
			m.logger.Warn("scheduled token refresh failed",
				slog.String("provider", string(provider)),
				slog.String("error", err.Error()))
			continue
		}
		m.logger.Info("token refreshed",
			slog.String("provider", string(provider)))
	}
}

// TokenSource returns a per-call token getter for the provider, suitable
// for the marketplace clients.
func (m *Manager) TokenSource(provider domain.Provider) *TokenSource {
	return &TokenSource{manager: m, provider: provider}
}

// TokenSource yields valid access tokens for a single provider.
type TokenSource struct {
	manager  *Manager
	provider domain.Provider
}

// Token returns a currently-valid access token.
func (t *TokenSource) Token(ctx context.Context) (string, error) {
	session, err := t.manager.EnsureValid(ctx, t.provider)
	if err != nil {
		return "", err
	}
	return session.AccessToken, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

type tokenErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (m *Manager) tokenRequest(
	ctx context.Context,
	provider domain.Provider,
	cfg ClientConfig,
	grant string,
	form url.Values,
) (*domain.OAuthSession, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		cfg.TokenURL,
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return nil, fmt.Errorf("creating token request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	creds := base64.StdEncoding.EncodeToString(
		[]byte(cfg.ClientID + ":" + cfg.ClientSecret),
	)
	req.Header.Set("Authorization", "Basic "+creds)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp tokenErrorResponse
		_ = json.Unmarshal(body, &errResp) //nolint:errcheck // best-effort error parsing
		detail := errResp.Error
		if errResp.ErrorDescription != "" {
			detail += ": " + errResp.ErrorDescription
		}
		return nil, &domain.TokenError{
			Provider:   provider,
			Grant:      grant,
			StatusCode: resp.StatusCode,
			Detail:     detail,
		}
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("parsing token response: %w", err)
	}

	return &domain.OAuthSession{
		Provider:     provider,
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		ExpiresAt: m.nowFunc().Add(
			time.Duration(tokenResp.ExpiresIn) * time.Second,
		),
	}, nil
}

type shopLookupResponse struct {
	Count   int `json:"count"`
	Results []struct {
		ShopID   int64  `json:"shop_id"`
		ShopName string `json:"shop_name"`
	} `json:"results"`
}

// lookupEtsyShop resolves the operator's shop so listing calls can target
// it. Listing creation requires a shop id, so a session without one can
// still browse but not publish.
func (m *Manager) lookupEtsyShop(
	ctx context.Context,
	cfg ClientConfig,
	session *domain.OAuthSession,
) error {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		cfg.APIBaseURL+"/application/shops",
		nil,
	)
	if err != nil {
		return fmt.Errorf("creating shop lookup request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+session.AccessToken)
	req.Header.Set("x-api-key", cfg.ClientID)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("executing shop lookup request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading shop lookup response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &domain.UpstreamError{
			Provider:   domain.ProviderEtsy,
			Step:       "shop_lookup",
			StatusCode: resp.StatusCode,
			Detail:     string(body),
		}
	}

	var shops shopLookupResponse
	if err := json.Unmarshal(body, &shops); err != nil {
		return fmt.Errorf("parsing shop lookup response: %w", err)
	}
	if len(shops.Results) == 0 {
		return fmt.Errorf("shop lookup returned no shops")
	}

	session.ShopID = strconv.FormatInt(shops.Results[0].ShopID, 10)
	session.ShopName = shops.Results[0].ShopName
	return nil
}
