package identity

import (
	"context"
	"net/url"
	"sync"
	"time"

	"partnerbot/internal/domain"
)

// AppTokenSource acquires application (client credentials) tokens for a fixed
// resource, caching one token per tenant until shortly before expiry. It
// backs the directory lookups, which run under the bot's own identity in the
// signed-in user's tenant rather than under the user's token.
type AppTokenSource struct {
	client   *Client
	resource string

	mu     sync.Mutex
	tokens map[string]cachedToken // tenant -> token
}

type cachedToken struct {
	token     string
	expiresOn time.Time
}

// NewAppTokenSource creates a token source for one resource.
func NewAppTokenSource(client *Client, resource string) *AppTokenSource {
	return &AppTokenSource{
		client:   client,
		resource: resource,
		tokens:   make(map[string]cachedToken),
	}
}

// refreshSkew renews tokens this long before their stated expiry.
const refreshSkew = 2 * time.Minute

// Token returns a valid application token for the tenant, acquiring a fresh
// one when the cached token is absent or near expiry. Safe for concurrent use.
func (s *AppTokenSource) Token(ctx context.Context, tenant string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cached, ok := s.tokens[tenant]; ok && time.Now().Before(cached.expiresOn.Add(-refreshSkew)) {
		return cached.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", s.client.clientID)
	form.Set("client_secret", s.client.clientSecret)
	form.Set("resource", s.resource)

	wire, err := s.client.tokenRequest(ctx, tenant, form)
	if err != nil {
		return "", domain.NewDomainError("Identity.AppToken", domain.ErrServiceFailure, err.Error())
	}
	tok, err := wire.toDomain()
	if err != nil {
		return "", domain.NewDomainError("Identity.AppToken", domain.ErrServiceFailure, err.Error())
	}

	s.tokens[tenant] = cachedToken{token: tok.AccessToken, expiresOn: tok.ExpiresOn}
	return tok.AccessToken, nil
}
