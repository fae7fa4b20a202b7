package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"partnerbot/internal/domain"
	"partnerbot/internal/infra/config"
	"partnerbot/internal/infra/tracer"
)

const maxResponseBody = 1 * 1024 * 1024 // 1 MB

// TokenFunc supplies an application token for a tenant.
type TokenFunc func(ctx context.Context, tenant string) (string, error)

// Client resolves a user's directory role memberships. Calls run under the
// bot's application identity via the supplied token source.
type Client struct {
	endpoint string
	token    TokenFunc
	client   *http.Client
	logger   *slog.Logger
}

// NewClient creates a directory client.
func NewClient(cfg config.DirectoryConfig, token TokenFunc, logger *slog.Logger) *Client {
	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		token:    token,
		client:   &http.Client{Timeout: cfg.Timeout},
		logger:   logger,
	}
}

// GetRoles implements domain.DirectoryService. Unknown directory roles (ones
// with no matching permission flag) pass through untouched; the authorization
// filter simply never matches them.
func (c *Client) GetRoles(ctx context.Context, tenant, objectID string) ([]domain.RoleModel, error) {
	ctx, span := tracer.StartSpan(ctx, "directory.get_roles")
	defer span.End()

	tok, err := c.token(ctx, tenant)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, domain.WrapOp("Directory.GetRoles", err)
	}

	reqURL := fmt.Sprintf("%s/%s/users/%s/memberOf", c.endpoint,
		url.PathEscape(tenant), url.PathEscape(objectID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := c.client.Do(req)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, domain.NewDomainError("Directory.GetRoles", domain.ErrServiceFailure, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		err := domain.NewDomainError("Directory.GetRoles", domain.ErrServiceFailure,
			fmt.Sprintf("status %d", resp.StatusCode))
		tracer.RecordError(span, err)
		return nil, err
	}

	var wire memberOfResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	roles := make([]domain.RoleModel, 0, len(wire.Value))
	for _, m := range wire.Value {
		if m.ObjectType != "Role" {
			continue
		}
		roles = append(roles, domain.RoleModel{
			DisplayName: m.DisplayName,
			Description: m.Description,
		})
	}

	c.logger.Debug("directory roles resolved", "tenant", tenant, "roles", len(roles))
	tracer.SetOK(span)
	return roles, nil
}

// --- directory API wire types ---

type memberOfResponse struct {
	Value []struct {
		ObjectType  string `json:"objectType"`
		DisplayName string `json:"displayName"`
		Description string `json:"description,omitempty"`
	} `json:"value"`
}
