package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"partnerbot/internal/domain"
	"partnerbot/internal/infra/config"
	"partnerbot/internal/infra/tracer"
)

const maxResponseBody = 1 * 1024 * 1024 // 1 MB

// RefreshTokenCache holds refresh material keyed by object id. Entries are
// written on code exchange and read back on silent refresh.
type RefreshTokenCache interface {
	PutRefreshToken(ctx context.Context, objectID, refreshToken string) error
	GetRefreshToken(ctx context.Context, objectID string) (string, error)
	DeleteRefreshToken(ctx context.Context, objectID string) error
}

// Client implements domain.IdentityService against an OAuth2 authorization
// code flow. Refresh material never leaves the server side: it is cached
// here and the conversation store only ever sees access tokens.
type Client struct {
	authority    string
	clientID     string
	clientSecret string
	cache        RefreshTokenCache
	client       *http.Client
	logger       *slog.Logger
}

// NewClient creates an identity client.
func NewClient(cfg config.IdentityConfig, cache RefreshTokenCache, logger *slog.Logger) *Client {
	return &Client{
		authority:    strings.TrimRight(cfg.Authority, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		cache:        cache,
		client:       &http.Client{Timeout: cfg.Timeout},
		logger:       logger,
	}
}

// AuthorizationURL implements domain.IdentityService.
func (c *Client) AuthorizationURL(tenant, redirectURI, resource, state string) string {
	q := url.Values{}
	q.Set("client_id", c.clientID)
	q.Set("response_type", "code")
	q.Set("redirect_uri", redirectURI)
	q.Set("resource", resource)
	q.Set("state", state)
	return fmt.Sprintf("%s/%s/oauth2/authorize?%s", c.authority, url.PathEscape(tenant), q.Encode())
}

// ExchangeCode implements domain.IdentityService.
func (c *Client) ExchangeCode(ctx context.Context, tenant, code, resource, redirectURI string) (domain.Token, error) {
	ctx, span := tracer.StartSpan(ctx, "identity.exchange_code")
	defer span.End()

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("code", code)
	form.Set("resource", resource)
	form.Set("redirect_uri", redirectURI)

	wire, err := c.tokenRequest(ctx, tenant, form)
	if err != nil {
		tracer.RecordError(span, err)
		return domain.Token{}, err
	}

	tok, err := wire.toDomain()
	if err != nil {
		tracer.RecordError(span, err)
		return domain.Token{}, err
	}

	if wire.RefreshToken != "" {
		if err := c.cache.PutRefreshToken(ctx, tok.ObjectID, wire.RefreshToken); err != nil {
			c.logger.Warn("failed to cache refresh token", "error", err)
		}
	}

	tracer.SetOK(span)
	return tok, nil
}

// RefreshSilent implements domain.IdentityService.
func (c *Client) RefreshSilent(ctx context.Context, tenant, resource, objectID string) (domain.Token, error) {
	ctx, span := tracer.StartSpan(ctx, "identity.refresh_silent")
	defer span.End()

	refreshToken, err := c.cache.GetRefreshToken(ctx, objectID)
	if err != nil {
		err = domain.NewDomainError("Identity.RefreshSilent", domain.ErrTokenRefresh, "no cached refresh material")
		tracer.RecordError(span, err)
		return domain.Token{}, err
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("refresh_token", refreshToken)
	form.Set("resource", resource)

	wire, err := c.tokenRequest(ctx, tenant, form)
	if err != nil {
		// Revoked or expired material is useless; drop it so the next
		// attempt goes straight to the interactive flow.
		if derr := c.cache.DeleteRefreshToken(ctx, objectID); derr != nil {
			c.logger.Warn("failed to evict refresh token", "error", derr)
		}
		err = domain.NewDomainError("Identity.RefreshSilent", domain.ErrTokenRefresh, err.Error())
		tracer.RecordError(span, err)
		return domain.Token{}, err
	}

	tok, err := wire.toDomain()
	if err != nil {
		tracer.RecordError(span, err)
		return domain.Token{}, err
	}

	// Providers rotate refresh tokens; keep the newest.
	if wire.RefreshToken != "" {
		if err := c.cache.PutRefreshToken(ctx, tok.ObjectID, wire.RefreshToken); err != nil {
			c.logger.Warn("failed to cache rotated refresh token", "error", err)
		}
	}

	tracer.SetOK(span)
	return tok, nil
}

func (c *Client) tokenRequest(ctx context.Context, tenant string, form url.Values) (tokenResponse, error) {
	tokenURL := fmt.Sprintf("%s/%s/oauth2/token", c.authority, url.PathEscape(tenant))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return tokenResponse{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return tokenResponse{}, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return tokenResponse{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var oauthErr struct {
			Error       string `json:"error"`
			Description string `json:"error_description"`
		}
		_ = json.Unmarshal(body, &oauthErr)
		return tokenResponse{}, fmt.Errorf("token endpoint status %d: %s", resp.StatusCode, oauthErr.Error)
	}

	var wire tokenResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return tokenResponse{}, fmt.Errorf("unmarshal response: %w", err)
	}
	return wire, nil
}

// --- token endpoint wire types ---

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in,string"`
	IDToken      string `json:"id_token"`
}

// toDomain extracts the identity fields from the id token claims. The id
// token arrives over the direct TLS channel from the token endpoint, so the
// payload is trusted without local signature verification.
func (r tokenResponse) toDomain() (domain.Token, error) {
	if r.AccessToken == "" {
		return domain.Token{}, fmt.Errorf("token response missing access_token")
	}

	tok := domain.Token{
		AccessToken: r.AccessToken,
		ExpiresOn:   time.Now().Add(time.Duration(r.ExpiresIn) * time.Second),
	}

	if r.IDToken != "" {
		claims := jwt.MapClaims{}
		parser := jwt.NewParser()
		if _, _, err := parser.ParseUnverified(r.IDToken, claims); err != nil {
			return domain.Token{}, fmt.Errorf("parse id token: %w", err)
		}
		tok.TenantID, _ = claims["tid"].(string)
		tok.ObjectID, _ = claims["oid"].(string)
		tok.DisplayName, _ = claims["name"].(string)
	}
	return tok, nil
}
