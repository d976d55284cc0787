package oauth_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmaier/listify/internal/oauth"
	"github.com/dmaier/listify/pkg/logger"
	domain "github.com/dmaier/listify/pkg/types"
)

// tokenJSON returns a valid OAuth2 token response as JSON bytes.
func tokenJSON(access, refresh string, expiresIn int) []byte {
	return []byte(fmt.Sprintf(
		`{"access_token":%q,"refresh_token":%q,"expires_in":%d,"token_type":"Bearer"}`,
		access, refresh, expiresIn,
	))
}

func newManager(
	t *testing.T,
	configs map[domain.Provider]oauth.ClientConfig,
	opts ...oauth.Option,
) *oauth.Manager {
	t.Helper()
	return oauth.NewManager(configs, logger.Discard(), opts...)
}

// authorize runs the full redirect + callback handshake against the given
// token server and returns the stored session.
func authorize(
	t *testing.T,
	m *oauth.Manager,
	provider domain.Provider,
) *domain.OAuthSession {
	t.Helper()

	authURL, err := m.AuthorizeURL(provider)
	require.NoError(t, err)

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	state := parsed.Query().Get("state")
	require.NotEmpty(t, state)

	session, err := m.HandleCallback(
		context.Background(), provider, "auth-code", state,
	)
	require.NoError(t, err)
	return session
}

func TestManager_AuthorizeURL(t *testing.T) {
	t.Parallel()

	m := newManager(t, map[domain.Provider]oauth.ClientConfig{
		domain.ProviderEtsy: {
			ClientID:    "etsy-client",
			RedirectURI: "http://localhost:8080/callback/etsy",
			AuthURL:     "https://www.etsy.com/oauth/connect",
			Scopes:      "listings_r listings_w",
		},
	})

	authURL, err := m.AuthorizeURL(domain.ProviderEtsy)
	require.NoError(t, err)

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	q := parsed.Query()
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "etsy-client", q.Get("client_id"))
	assert.Equal(t, "http://localhost:8080/callback/etsy", q.Get("redirect_uri"))
	assert.Equal(t, "listings_r listings_w", q.Get("scope"))
	assert.NotEmpty(t, q.Get("state"))
}

func TestManager_AuthorizeURL_UnknownProvider(t *testing.T) {
	t.Parallel()

	m := newManager(t, map[domain.Provider]oauth.ClientConfig{})

	_, err := m.AuthorizeURL(domain.ProviderEbay)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestManager_HandleCallback_Ebay(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Contains(t, r.Header.Get("Authorization"), "Basic ")
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "authorization_code", r.FormValue("grant_type"))
			assert.Equal(t, "auth-code", r.FormValue("code"))
			assert.Empty(t, r.FormValue("client_id"))

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(tokenJSON("ebay-at", "ebay-rt", 7200))
		}),
	)
	defer srv.Close()

	m := newManager(t, map[domain.Provider]oauth.ClientConfig{
		domain.ProviderEbay: {
			ClientID:     "ebay-client",
			ClientSecret: "ebay-secret",
			RedirectURI:  "http://localhost:8080/callback/ebay",
			AuthURL:      "https://auth.ebay.com/oauth2/authorize",
			TokenURL:     srv.URL,
		},
	})

	session := authorize(t, m, domain.ProviderEbay)
	assert.Equal(t, "ebay-at", session.AccessToken)
	assert.Equal(t, "ebay-rt", session.RefreshToken)

	stored, ok := m.Session(domain.ProviderEbay)
	require.True(t, ok)
	assert.Equal(t, "ebay-at", stored.AccessToken)
}

func TestManager_HandleCallback_EtsyShopLookup(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		// Etsy wants the client_id in the body on top of Basic auth.
		assert.Equal(t, "etsy-client", r.FormValue("client_id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(tokenJSON("etsy-at", "etsy-rt", 3600))
	})
	mux.HandleFunc("/application/shops", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer etsy-at", r.Header.Get("Authorization"))
		assert.Equal(t, "etsy-client", r.Header.Get("x-api-key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(
			`{"count":1,"results":[{"shop_id":4242,"shop_name":"MugWorks"}]}`,
		))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	m := newManager(t, map[domain.Provider]oauth.ClientConfig{
		domain.ProviderEtsy: {
			ClientID:     "etsy-client",
			ClientSecret: "etsy-secret",
			RedirectURI:  "http://localhost:8080/callback/etsy",
			AuthURL:      "https://www.etsy.com/oauth/connect",
			TokenURL:     srv.URL + "/token",
			APIBaseURL:   srv.URL,
		},
	})

	session := authorize(t, m, domain.ProviderEtsy)
	assert.Equal(t, "4242", session.ShopID)
	assert.Equal(t, "MugWorks", session.ShopName)
}

func TestManager_HandleCallback_ShopLookupFailureKeepsSession(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(tokenJSON("etsy-at", "etsy-rt", 3600))
	})
	mux.HandleFunc("/application/shops", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	m := newManager(t, map[domain.Provider]oauth.ClientConfig{
		domain.ProviderEtsy: {
			ClientID:    "etsy-client",
			AuthURL:     "https://www.etsy.com/oauth/connect",
			TokenURL:    srv.URL + "/token",
			APIBaseURL:  srv.URL,
			RedirectURI: "http://localhost:8080/callback/etsy",
		},
	})

	session := authorize(t, m, domain.ProviderEtsy)
	assert.Equal(t, "etsy-at", session.AccessToken)
	assert.Empty(t, session.ShopID)
}

func TestManager_HandleCallback_ReauthorizeReplacesSession(t *testing.T) {
	t.Parallel()

	var tokenCalls, shopCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if tokenCalls.Add(1) == 1 {
			_, _ = w.Write(tokenJSON("at-1", "rt-1", 3600))
			return
		}
		// Second grant comes back without a refresh token.
		_, _ = w.Write([]byte(
			`{"access_token":"at-2","expires_in":3600,"token_type":"Bearer"}`,
		))
	})
	mux.HandleFunc("/application/shops", func(w http.ResponseWriter, _ *http.Request) {
		if shopCalls.Add(1) == 1 {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(
				`{"count":1,"results":[{"shop_id":4242,"shop_name":"MugWorks"}]}`,
			))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	m := newManager(t, map[domain.Provider]oauth.ClientConfig{
		domain.ProviderEtsy: {
			ClientID:    "etsy-client",
			AuthURL:     "https://www.etsy.com/oauth/connect",
			TokenURL:    srv.URL + "/token",
			APIBaseURL:  srv.URL,
			RedirectURI: "http://localhost:8080/callback/etsy",
		},
	})

	first := authorize(t, m, domain.ProviderEtsy)
	assert.Equal(t, "rt-1", first.RefreshToken)
	assert.Equal(t, "4242", first.ShopID)

	// Re-authorization replaces the session wholesale: nothing from the
	// first exchange survives, not even the refresh token or shop.
	second := authorize(t, m, domain.ProviderEtsy)
	assert.Equal(t, "at-2", second.AccessToken)
	assert.Empty(t, second.RefreshToken)
	assert.Empty(t, second.ShopID)
	assert.Empty(t, second.ShopName)

	stored, ok := m.Session(domain.ProviderEtsy)
	require.True(t, ok)
	assert.Equal(t, "at-2", stored.AccessToken)
	assert.Empty(t, stored.RefreshToken)
	assert.Empty(t, stored.ShopID)
}

func TestManager_HandleCallback_BadState(t *testing.T) {
	t.Parallel()

	m := newManager(t, map[domain.Provider]oauth.ClientConfig{
		domain.ProviderEbay: {ClientID: "c", TokenURL: "http://unused"},
	})

	_, err := m.HandleCallback(
		context.Background(), domain.ProviderEbay, "code", "forged-state",
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "state mismatch")

	_, ok := m.Session(domain.ProviderEbay)
	assert.False(t, ok)
}

func TestManager_HandleCallback_TokenEndpointError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(
				`{"error":"invalid_grant","error_description":"code expired"}`,
			))
		}),
	)
	defer srv.Close()

	m := newManager(t, map[domain.Provider]oauth.ClientConfig{
		domain.ProviderEbay: {ClientID: "c", TokenURL: srv.URL},
	})

	authURL, err := m.AuthorizeURL(domain.ProviderEbay)
	require.NoError(t, err)
	parsed, err := url.Parse(authURL)
	require.NoError(t, err)

	_, err = m.HandleCallback(
		context.Background(),
		domain.ProviderEbay,
		"stale-code",
		parsed.Query().Get("state"),
	)
	require.Error(t, err)

	var tokenErr *domain.TokenError
	require.ErrorAs(t, err, &tokenErr)
	assert.Equal(t, domain.ProviderEbay, tokenErr.Provider)
	assert.Equal(t, "authorization_code", tokenErr.Grant)
	assert.Equal(t, http.StatusBadRequest, tokenErr.StatusCode)
	assert.Contains(t, tokenErr.Detail, "invalid_grant")
}

func TestManager_EnsureValid_NoSession(t *testing.T) {
	t.Parallel()

	m := newManager(t, map[domain.Provider]oauth.ClientConfig{
		domain.ProviderEbay: {ClientID: "c"},
	})

	_, err := m.EnsureValid(context.Background(), domain.ProviderEbay)
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
}

func TestManager_EnsureValid_RefreshesExpired(t *testing.T) {
	t.Parallel()

	var refreshCalls atomic.Int32
	now := time.Now()
	var mu sync.Mutex
	current := now

	srv := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.NoError(t, r.ParseForm())
			if r.FormValue("grant_type") == "refresh_token" {
				refreshCalls.Add(1)
				assert.Equal(t, "rt-1", r.FormValue("refresh_token"))
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write(tokenJSON("at-2", "rt-2", 7200))
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(tokenJSON("at-1", "rt-1", 3600))
		}),
	)
	defer srv.Close()

	m := newManager(t,
		map[domain.Provider]oauth.ClientConfig{
			domain.ProviderEbay: {
				ClientID:    "c",
				AuthURL:     "https://auth.example/authorize",
				TokenURL:    srv.URL,
				RedirectURI: "http://localhost/callback/ebay",
			},
		},
		oauth.WithNowFunc(func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return current
		}),
	)

	authorize(t, m, domain.ProviderEbay)

	// Still fresh, no refresh yet.
	session, err := m.EnsureValid(context.Background(), domain.ProviderEbay)
	require.NoError(t, err)
	assert.Equal(t, "at-1", session.AccessToken)
	assert.Equal(t, int32(0), refreshCalls.Load())

	mu.Lock()
	current = now.Add(3600 * time.Second)
	mu.Unlock()

	session, err = m.EnsureValid(context.Background(), domain.ProviderEbay)
	require.NoError(t, err)
	assert.Equal(t, "at-2", session.AccessToken)
	assert.Equal(t, "rt-2", session.RefreshToken)
	assert.Equal(t, int32(1), refreshCalls.Load())
}

func TestManager_Refresh_KeepsOldRefreshToken(t *testing.T) {
	t.Parallel()

	now := time.Now()
	var mu sync.Mutex
	current := now

	srv := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.NoError(t, r.ParseForm())
			w.Header().Set("Content-Type", "application/json")
			if r.FormValue("grant_type") == "refresh_token" {
				// No rotated refresh token in the response.
				_, _ = w.Write([]byte(
					`{"access_token":"at-2","expires_in":7200,"token_type":"Bearer"}`,
				))
				return
			}
			_, _ = w.Write(tokenJSON("at-1", "rt-1", 3600))
		}),
	)
	defer srv.Close()

	m := newManager(t,
		map[domain.Provider]oauth.ClientConfig{
			domain.ProviderEbay: {
				ClientID:    "c",
				AuthURL:     "https://auth.example/authorize",
				TokenURL:    srv.URL,
				RedirectURI: "http://localhost/callback/ebay",
			},
		},
		oauth.WithNowFunc(func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return current
		}),
	)

	authorize(t, m, domain.ProviderEbay)

	mu.Lock()
	current = now.Add(3600 * time.Second)
	mu.Unlock()

	session, err := m.Refresh(context.Background(), domain.ProviderEbay)
	require.NoError(t, err)
	assert.Equal(t, "at-2", session.AccessToken)
	assert.Equal(t, "rt-1", session.RefreshToken)
}

func TestManager_Refresh_FailureDiscardsSession(t *testing.T) {
	t.Parallel()

	now := time.Now()
	var mu sync.Mutex
	current := now

	srv := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.NoError(t, r.ParseForm())
			w.Header().Set("Content-Type", "application/json")
			if r.FormValue("grant_type") == "refresh_token" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
				return
			}
			_, _ = w.Write(tokenJSON("at-1", "rt-1", 3600))
		}),
	)
	defer srv.Close()

	m := newManager(t,
		map[domain.Provider]oauth.ClientConfig{
			domain.ProviderEbay: {
				ClientID:    "c",
				AuthURL:     "https://auth.example/authorize",
				TokenURL:    srv.URL,
				RedirectURI: "http://localhost/callback/ebay",
			},
		},
		oauth.WithNowFunc(func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return current
		}),
	)

	authorize(t, m, domain.ProviderEbay)

	mu.Lock()
	current = now.Add(3600 * time.Second)
	mu.Unlock()

	_, err := m.Refresh(context.Background(), domain.ProviderEbay)
	require.Error(t, err)

	var tokenErr *domain.TokenError
	assert.ErrorAs(t, err, &tokenErr)

	// The dead session is gone, so the next use reports unauthenticated.
	_, err = m.EnsureValid(context.Background(), domain.ProviderEbay)
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
}

func TestManager_Refresh_NoRefreshToken(t *testing.T) {
	t.Parallel()

	store := oauth.NewMemorySessionStore()
	store.Put(&domain.OAuthSession{
		Provider:    domain.ProviderEtsy,
		AccessToken: "at-1",
		ExpiresAt:   time.Now().Add(-time.Hour),
	})

	m := newManager(t,
		map[domain.Provider]oauth.ClientConfig{
			domain.ProviderEtsy: {ClientID: "c"},
		},
		oauth.WithSessionStore(store),
	)

	_, err := m.Refresh(context.Background(), domain.ProviderEtsy)
	assert.ErrorIs(t, err, domain.ErrNoRefreshToken)

	_, ok := m.Session(domain.ProviderEtsy)
	assert.False(t, ok)
}

func TestManager_Refresh_SingleFlight(t *testing.T) {
	t.Parallel()

	var refreshCalls atomic.Int32
	now := time.Now()
	var timeMu sync.Mutex
	current := now

	srv := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.NoError(t, r.ParseForm())
			w.Header().Set("Content-Type", "application/json")
			if r.FormValue("grant_type") == "refresh_token" {
				refreshCalls.Add(1)
				time.Sleep(10 * time.Millisecond)
				// Freshen the clock so waiters see a valid session.
				timeMu.Lock()
				current = now
				timeMu.Unlock()
				_, _ = w.Write(tokenJSON("at-2", "rt-2", 7200))
				return
			}
			_, _ = w.Write(tokenJSON("at-1", "rt-1", 3600))
		}),
	)
	defer srv.Close()

	m := newManager(t,
		map[domain.Provider]oauth.ClientConfig{
			domain.ProviderEbay: {
				ClientID:    "c",
				AuthURL:     "https://auth.example/authorize",
				TokenURL:    srv.URL,
				RedirectURI: "http://localhost/callback/ebay",
			},
		},
		oauth.WithNowFunc(func() time.Time {
			timeMu.Lock()
			defer timeMu.Unlock()
			return current
		}),
	)

	authorize(t, m, domain.ProviderEbay)

	timeMu.Lock()
	current = now.Add(3600 * time.Second)
	timeMu.Unlock()

	const goroutines = 8

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for range goroutines {
		go func() {
			defer wg.Done()
			session, err := m.Refresh(context.Background(), domain.ProviderEbay)
			assert.NoError(t, err)
			assert.Equal(t, "at-2", session.AccessToken)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), refreshCalls.Load())
}

func TestManager_RefreshExpiring(t *testing.T) {
	t.Parallel()

	var refreshCalls atomic.Int32

	srv := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.NoError(t, r.ParseForm())
			if r.FormValue("grant_type") == "refresh_token" {
				refreshCalls.Add(1)
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(tokenJSON("at-2", "rt-2", 7200))
		}),
	)
	defer srv.Close()

	store := oauth.NewMemorySessionStore()
	// Expires within the sweep window.
	store.Put(&domain.OAuthSession{
		Provider:     domain.ProviderEtsy,
		AccessToken:  "at-old",
		RefreshToken: "rt-old",
		ExpiresAt:    time.Now().Add(2 * time.Minute),
	})
	// Plenty of life left; must be skipped.
	store.Put(&domain.OAuthSession{
		Provider:     domain.ProviderEbay,
		AccessToken:  "at-fresh",
		RefreshToken: "rt-fresh",
		ExpiresAt:    time.Now().Add(6 * time.Hour),
	})

	m := newManager(t,
		map[domain.Provider]oauth.ClientConfig{
			domain.ProviderEtsy: {ClientID: "c", TokenURL: srv.URL},
			domain.ProviderEbay: {ClientID: "c", TokenURL: srv.URL},
		},
		oauth.WithSessionStore(store),
	)

	m.RefreshExpiring(context.Background(), 10*time.Minute)

	assert.Equal(t, int32(1), refreshCalls.Load())

	etsy, ok := m.Session(domain.ProviderEtsy)
	require.True(t, ok)
	assert.Equal(t, "at-2", etsy.AccessToken)

	ebay, ok := m.Session(domain.ProviderEbay)
	require.True(t, ok)
	assert.Equal(t, "at-fresh", ebay.AccessToken)
}

func TestTokenSource_Token(t *testing.T) {
	t.Parallel()

	store := oauth.NewMemorySessionStore()
	store.Put(&domain.OAuthSession{
		Provider:    domain.ProviderEbay,
		AccessToken: "at-live",
		ExpiresAt:   time.Now().Add(time.Hour),
	})

	m := newManager(t,
		map[domain.Provider]oauth.ClientConfig{
			domain.ProviderEbay: {ClientID: "c"},
		},
		oauth.WithSessionStore(store),
	)

	token, err := m.TokenSource(domain.ProviderEbay).Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "at-live", token)

	_, err = m.TokenSource(domain.ProviderEtsy).Token(context.Background())
	require.Error(t, err)
}
