package identity

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partnerbot/internal/domain"
	"partnerbot/internal/infra/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// unsignedIDToken builds a JWT-shaped id token with the given claims and a
// dummy signature; the client reads claims without verifying.
func unsignedIDToken(t *testing.T, claims map[string]any) string {
	t.Helper()
	header, err := json.Marshal(map[string]string{"alg": "none", "typ": "JWT"})
	require.NoError(t, err)
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	enc := base64.RawURLEncoding
	return enc.EncodeToString(header) + "." + enc.EncodeToString(payload) + "." + enc.EncodeToString([]byte("sig"))
}

func newIdentityFixture(t *testing.T, handler http.HandlerFunc) (*Client, *MemoryCache) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cache := NewMemoryCache()
	c := NewClient(config.IdentityConfig{
		Authority:    srv.URL,
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		Timeout:      5 * time.Second,
	}, cache, testLogger())
	return c, cache
}

func TestAuthorizationURL(t *testing.T) {
	c, _ := newIdentityFixture(t, nil)
	u := c.AuthorizationURL("common", "https://bot.example.test/api/callback", "https://api.example.test", "state-1")
	assert.Contains(t, u, "/common/oauth2/authorize")
	assert.Contains(t, u, "client_id=client-1")
	assert.Contains(t, u, "response_type=code")
	assert.Contains(t, u, "state=state-1")
}

func TestExchangeCode(t *testing.T) {
	idToken := unsignedIDToken(t, map[string]any{
		"tid": "tenant-1", "oid": "object-1", "name": "Dana",
	})
	c, cache := newIdentityFixture(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "code-1", r.PostForm.Get("code"))
		assert.True(t, strings.HasSuffix(r.URL.Path, "/common/oauth2/token"))
		fmt.Fprintf(w, `{"access_token":"tok-1","refresh_token":"rt-1","expires_in":"3600","id_token":"%s"}`, idToken)
	})

	tok, err := c.ExchangeCode(context.Background(), "common", "code-1", "res", "https://bot.example.test/api/callback")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok.AccessToken)
	assert.Equal(t, "tenant-1", tok.TenantID)
	assert.Equal(t, "object-1", tok.ObjectID)
	assert.Equal(t, "Dana", tok.DisplayName)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.ExpiresOn, time.Minute)

	rt, err := cache.GetRefreshToken(context.Background(), "object-1")
	require.NoError(t, err)
	assert.Equal(t, "rt-1", rt)
}

func TestRefreshSilent(t *testing.T) {
	idToken := unsignedIDToken(t, map[string]any{"tid": "tenant-1", "oid": "object-1"})
	c, cache := newIdentityFixture(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "rt-1", r.PostForm.Get("refresh_token"))
		fmt.Fprintf(w, `{"access_token":"tok-2","refresh_token":"rt-2","expires_in":"3600","id_token":"%s"}`, idToken)
	})
	require.NoError(t, cache.PutRefreshToken(context.Background(), "object-1", "rt-1"))

	tok, err := c.RefreshSilent(context.Background(), "tenant-1", "res", "object-1")
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok.AccessToken)

	rt, err := cache.GetRefreshToken(context.Background(), "object-1")
	require.NoError(t, err)
	assert.Equal(t, "rt-2", rt, "rotated refresh material is kept")
}

func TestRefreshSilentNoMaterial(t *testing.T) {
	c, _ := newIdentityFixture(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Error("token endpoint must not be called without refresh material")
	})

	_, err := c.RefreshSilent(context.Background(), "tenant-1", "res", "object-unknown")
	assert.ErrorIs(t, err, domain.ErrTokenRefresh)
}

func TestRefreshSilentRevokedMaterialEvicted(t *testing.T) {
	c, cache := newIdentityFixture(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_grant"}`)
	})
	require.NoError(t, cache.PutRefreshToken(context.Background(), "object-1", "rt-revoked"))

	_, err := c.RefreshSilent(context.Background(), "tenant-1", "res", "object-1")
	assert.ErrorIs(t, err, domain.ErrTokenRefresh)

	_, err = cache.GetRefreshToken(context.Background(), "object-1")
	assert.ErrorIs(t, err, domain.ErrNotFound, "revoked material is evicted")
}

func TestMemoryCache(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	_, err := cache.GetRefreshToken(ctx, "o1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, cache.PutRefreshToken(ctx, "o1", "rt"))
	got, err := cache.GetRefreshToken(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, "rt", got)

	require.NoError(t, cache.DeleteRefreshToken(ctx, "o1"))
	_, err = cache.GetRefreshToken(ctx, "o1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAppTokenSourceCachesPerTenant(t *testing.T) {
	calls := 0
	c, _ := newIdentityFixture(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		fmt.Fprint(w, `{"access_token":"app-tok","expires_in":"3600"}`)
	})
	src := NewAppTokenSource(c, "https://directory.example.test")

	tok, err := src.Token(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, "app-tok", tok)

	_, err = src.Token(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "second call within the token lifetime hits the cache")

	_, err = src.Token(context.Background(), "tenant-2")
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "tenants are cached independently")
}
