package partner

import (
	"context"
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

func newPartnerFixture(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.PartnerConfig{Endpoint: srv.URL, Timeout: 5 * time.Second}, testLogger())
}

func authedCtx() context.Context {
	return domain.ContextWithAccessToken(context.Background(), "tok-1")
}

func TestListCustomers(t *testing.T) {
	c := newPartnerFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, "/customers", r.URL.Path)
		fmt.Fprint(w, `{"items":[
			{"id":"c1","companyProfile":{"companyName":"Contoso","domain":"contoso.example","country":"NL"}},
			{"id":"c2","companyProfile":{"companyName":"Fabrikam"}}
		]}`)
	})

	got, err := c.ListCustomers(authedCtx())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.Customer{ID: "c1", CompanyName: "Contoso", Domain: "contoso.example", Country: "NL"}, got[0])
	assert.Equal(t, "Fabrikam", got[1].CompanyName)
}

func TestGetCustomerNotFound(t *testing.T) {
	c := newPartnerFixture(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.GetCustomer(authedCtx(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetForbidden(t *testing.T) {
	c := newPartnerFixture(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := c.ListCustomers(authedCtx())
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestGetWithoutCredentialFails(t *testing.T) {
	c := newPartnerFixture(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Error("backend must not be reached without a credential")
	})

	_, err := c.ListCustomers(context.Background())
	assert.ErrorIs(t, err, domain.ErrAuthFailed)
}

func TestCorrelationIDForwarded(t *testing.T) {
	c := newPartnerFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "corr-1", r.Header.Get("MS-CorrelationId"))
		fmt.Fprint(w, `{"items":[]}`)
	})

	ctx := domain.ContextWithCorrelationID(authedCtx(), "corr-1")
	_, err := c.ListCustomers(ctx)
	require.NoError(t, err)
}

func TestListSubscriptions(t *testing.T) {
	c := newPartnerFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/customers/c1/subscriptions", r.URL.Path)
		fmt.Fprint(w, `{"items":[{"id":"s1","friendlyName":"Office Suite","status":"active","quantity":5}]}`)
	})

	got, err := c.ListSubscriptions(authedCtx(), "c1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Office Suite", got[0].FriendlyName)
	assert.Equal(t, 5, got[0].Quantity)
}

func TestGetCountryRules(t *testing.T) {
	c := newPartnerFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/countryvalidationrules/NL", r.URL.Path)
		fmt.Fprint(w, `{"countryCode":"NL","defaultCulture":"nl-NL","supportedCulturesList":["nl-NL","en-US"]}`)
	})

	got, err := c.GetCountryRules(authedCtx(), "NL")
	require.NoError(t, err)
	assert.Equal(t, "NL", got.CountryCode)
	assert.Equal(t, []string{"nl-NL", "en-US"}, got.SupportedCultures)
}
