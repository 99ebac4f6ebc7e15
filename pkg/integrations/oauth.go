package integrations

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/paradyne-ai/callcore/pkg/models"
)

const (
	// expirySkew renews tokens before the vendor's stated expiry so a
	// token never dies mid-request.
	expirySkew = 60 * time.Second

	maxTokenCache = 30 * time.Minute

	// defaultTokenTTL is used when the vendor omits an expiry.
	defaultTokenTTL = 5 * time.Minute
)

// TokenStore persists rotated OAuth tokens. Satisfied by *store.Store.
type TokenStore interface {
	PatchIntegrationConfig(ctx context.Context, tenantID string, integration models.Integration, patch map[string]any) error
}

// OAuthApp is our registration with one OAuth vendor.
type OAuthApp struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
}

// TokenRefresher exchanges refresh tokens for access tokens. CRM B and the
// calendar vendor rotate the refresh token on every exchange, so concurrent
// refreshes for the same (tenant, integration) must share one flight: the
// loser of a race would consume a token that no longer exists. The rotated
// token is persisted before any waiter is released.
type TokenRefresher struct {
	store  TokenStore
	apps   map[models.Integration]OAuthApp
	cache  *cache.Cache
	group  singleflight.Group
	client *http.Client
	now    func() time.Time
}

// NewTokenRefresher builds a refresher for the given vendor registrations.
func NewTokenRefresher(store TokenStore, apps map[models.Integration]OAuthApp) *TokenRefresher {
	return &TokenRefresher{
		store:  store,
		apps:   apps,
		cache:  cache.New(maxTokenCache, 10*time.Minute),
		client: &http.Client{Timeout: requestTimeout},
		now:    time.Now,
	}
}

func tokenKey(tenantID string, integration models.Integration) string {
	return tenantID + ":" + string(integration)
}

// AccessToken returns a valid access token for an OAuth-backed integration,
// refreshing through the single-flight guard when the cached one is missing
// or stale.
func (t *TokenRefresher) AccessToken(ctx context.Context, cfg *models.IntegrationConfig) (string, error) {
	key := tokenKey(cfg.TenantID, cfg.Integration)
	if tok, ok := t.cache.Get(key); ok {
		return tok.(string), nil
	}

	v, err, _ := t.group.Do(key, func() (any, error) {
		// A concurrent flight may have populated the cache while this
		// caller was queueing.
		if tok, ok := t.cache.Get(key); ok {
			return tok.(string), nil
		}
		if tok, ok := t.storedToken(cfg); ok {
			return tok, nil
		}
		return t.refresh(ctx, key, cfg)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached access token so the next call refreshes.
// Called when a vendor rejects a token that should still be valid.
func (t *TokenRefresher) Invalidate(tenantID string, integration models.Integration) {
	key := tokenKey(tenantID, integration)
	t.cache.Delete(key)
	// Tombstone the key so a stale access_token on the config row is not
	// re-served before the next successful refresh.
	t.cache.Set("revoked:"+key, true, cache.DefaultExpiration)
}

// storedToken returns the access token persisted on the config row when it
// has not expired yet. Avoids burning a refresh on every process restart.
func (t *TokenRefresher) storedToken(cfg *models.IntegrationConfig) (string, bool) {
	key := tokenKey(cfg.TenantID, cfg.Integration)
	if _, revoked := t.cache.Get("revoked:" + key); revoked {
		return "", false
	}
	tok := cfg.ConfigString("access_token")
	if tok == "" {
		return "", false
	}
	expiresAt, err := time.Parse(time.RFC3339, cfg.ConfigString("expires_at"))
	if err != nil {
		return "", false
	}
	remaining := expiresAt.Sub(t.now()) - expirySkew
	if remaining <= 0 {
		return "", false
	}
	t.cacheToken(key, tok, remaining)
	return tok, true
}

func (t *TokenRefresher) refresh(ctx context.Context, key string, cfg *models.IntegrationConfig) (string, error) {
	app, ok := t.apps[cfg.Integration]
	if !ok {
		return "", &Error{Integration: cfg.Integration, Op: "refresh_token", Message: "no oauth app registered"}
	}
	refreshToken := cfg.ConfigString("refresh_token")
	// The config row was read before this process may have rotated the
	// token; the in-memory copy is authoritative within the process.
	if latest, ok := t.cache.Get("refresh:" + key); ok {
		refreshToken = latest.(string)
	}
	if refreshToken == "" {
		return "", &Error{Integration: cfg.Integration, Op: "refresh_token", Message: "integration has no refresh token"}
	}

	oc := &oauth2.Config{
		ClientID:     app.ClientID,
		ClientSecret: app.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: app.TokenURL},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, t.client)
	tok, err := oc.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return "", classifyRefreshError(cfg.Integration, err)
	}

	// Persist before releasing waiters: the old refresh token is consumed,
	// and a crash here would otherwise orphan the integration.
	patch := map[string]any{"access_token": tok.AccessToken}
	if tok.RefreshToken != "" && tok.RefreshToken != refreshToken {
		patch["refresh_token"] = tok.RefreshToken
		// Hold the rotated token in memory first: if the persist fails,
		// this is the only surviving copy.
		t.cache.Set("refresh:"+key, tok.RefreshToken, cache.NoExpiration)
	}
	if !tok.Expiry.IsZero() {
		patch["expires_at"] = tok.Expiry.UTC().Format(time.RFC3339)
	}
	if err := t.store.PatchIntegrationConfig(ctx, cfg.TenantID, cfg.Integration, patch); err != nil {
		return "", fmt.Errorf("failed to persist rotated token: %w", err)
	}

	ttl := defaultTokenTTL
	if !tok.Expiry.IsZero() {
		ttl = tok.Expiry.Sub(t.now()) - expirySkew
	}
	t.cache.Delete("revoked:" + key)
	t.cacheToken(key, tok.AccessToken, ttl)
	return tok.AccessToken, nil
}

func (t *TokenRefresher) cacheToken(key, token string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	if ttl > maxTokenCache {
		ttl = maxTokenCache
	}
	t.cache.Set(key, token, ttl)
}

func classifyRefreshError(integration models.Integration, err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) && rerr.Response != nil {
		code := rerr.Response.StatusCode
		return &Error{
			Integration: integration, Op: "refresh_token",
			StatusCode: code,
			Message:    truncate(string(rerr.Body), 300),
			Transient:  code == http.StatusTooManyRequests || code >= 500,
		}
	}
	return &Error{Integration: integration, Op: "refresh_token", Message: err.Error(), Transient: true}
}
