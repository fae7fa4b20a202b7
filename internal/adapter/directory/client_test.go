package directory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
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

func staticToken(tok string) TokenFunc {
	return func(_ context.Context, _ string) (string, error) { return tok, nil }
}

func newDirectoryFixture(t *testing.T, token TokenFunc, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.DirectoryConfig{Endpoint: srv.URL, Timeout: 5 * time.Second}, token, testLogger())
}

func TestGetRoles(t *testing.T) {
	c := newDirectoryFixture(t, staticToken("app-tok"), func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer app-tok", r.Header.Get("Authorization"))
		assert.Equal(t, "/tenant-1/users/object-1/memberOf", r.URL.Path)
		fmt.Fprint(w, `{"value":[
			{"objectType":"Role","displayName":"HelpdeskAgent","description":"Helpdesk"},
			{"objectType":"Group","displayName":"All Hands"},
			{"objectType":"Role","displayName":"GlobalAdmin"}
		]}`)
	})

	got, err := c.GetRoles(context.Background(), "tenant-1", "object-1")
	require.NoError(t, err)
	require.Len(t, got, 2, "group memberships are not roles")
	assert.Equal(t, "HelpdeskAgent", got[0].DisplayName)
	assert.Equal(t, "GlobalAdmin", got[1].DisplayName)
}

func TestGetRolesTokenFailure(t *testing.T) {
	failing := func(_ context.Context, _ string) (string, error) { return "", errors.New("no app token") }
	c := newDirectoryFixture(t, failing, func(w http.ResponseWriter, _ *http.Request) {
		t.Error("directory must not be called without a token")
	})

	_, err := c.GetRoles(context.Background(), "tenant-1", "object-1")
	assert.Error(t, err)
}

func TestGetRolesServerError(t *testing.T) {
	c := newDirectoryFixture(t, staticToken("app-tok"), func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.GetRoles(context.Background(), "tenant-1", "object-1")
	assert.ErrorIs(t, err, domain.ErrServiceFailure)
}
