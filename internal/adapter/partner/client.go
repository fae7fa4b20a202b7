package partner

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

const maxResponseBody = 4 * 1024 * 1024 // 4 MB, customer lists can be large

// Client calls the partner-management backend. Every request carries the
// credential of the principal whose turn it serves, read from the request
// context; the client holds no credentials of its own.
type Client struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewClient creates a partner backend client.
func NewClient(cfg config.PartnerConfig, logger *slog.Logger) *Client {
	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		client:   &http.Client{Timeout: cfg.Timeout},
		logger:   logger,
	}
}

// GetCustomer implements domain.PartnerAPI.
func (c *Client) GetCustomer(ctx context.Context, customerID string) (domain.Customer, error) {
	var wire wireCustomer
	if err := c.get(ctx, "/customers/"+url.PathEscape(customerID), &wire); err != nil {
		return domain.Customer{}, domain.WrapOp("Partner.GetCustomer", err)
	}
	return wire.toDomain(), nil
}

// ListCustomers implements domain.PartnerAPI.
func (c *Client) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	var wire struct {
		Items []wireCustomer `json:"items"`
	}
	if err := c.get(ctx, "/customers", &wire); err != nil {
		return nil, domain.WrapOp("Partner.ListCustomers", err)
	}
	out := make([]domain.Customer, 0, len(wire.Items))
	for _, w := range wire.Items {
		out = append(out, w.toDomain())
	}
	return out, nil
}

// ListSubscriptions implements domain.PartnerAPI.
func (c *Client) ListSubscriptions(ctx context.Context, customerID string) ([]domain.Subscription, error) {
	var wire struct {
		Items []wireSubscription `json:"items"`
	}
	path := "/customers/" + url.PathEscape(customerID) + "/subscriptions"
	if err := c.get(ctx, path, &wire); err != nil {
		return nil, domain.WrapOp("Partner.ListSubscriptions", err)
	}
	out := make([]domain.Subscription, 0, len(wire.Items))
	for _, w := range wire.Items {
		out = append(out, w.toDomain())
	}
	return out, nil
}

// GetSubscription implements domain.PartnerAPI.
func (c *Client) GetSubscription(ctx context.Context, customerID, subscriptionID string) (domain.Subscription, error) {
	var wire wireSubscription
	path := "/customers/" + url.PathEscape(customerID) + "/subscriptions/" + url.PathEscape(subscriptionID)
	if err := c.get(ctx, path, &wire); err != nil {
		return domain.Subscription{}, domain.WrapOp("Partner.GetSubscription", err)
	}
	return wire.toDomain(), nil
}

// GetLegalBusinessProfile implements domain.PartnerAPI.
func (c *Client) GetLegalBusinessProfile(ctx context.Context) (domain.LegalBusinessProfile, error) {
	var wire wireProfile
	if err := c.get(ctx, "/profiles/legalbusiness", &wire); err != nil {
		return domain.LegalBusinessProfile{}, domain.WrapOp("Partner.GetLegalBusinessProfile", err)
	}
	return domain.LegalBusinessProfile{
		CompanyName: wire.CompanyName,
		Address:     wire.Address.AddressLine1,
		City:        wire.Address.City,
		Country:     wire.Address.Country,
	}, nil
}

// GetCountryRules implements domain.PartnerAPI.
func (c *Client) GetCountryRules(ctx context.Context, countryCode string) (domain.CountryRules, error) {
	var wire wireCountryRules
	if err := c.get(ctx, "/countryvalidationrules/"+url.PathEscape(countryCode), &wire); err != nil {
		return domain.CountryRules{}, domain.WrapOp("Partner.GetCountryRules", err)
	}
	return domain.CountryRules{
		CountryCode:       wire.CountryCode,
		DefaultCulture:    wire.DefaultCulture,
		SupportedCultures: wire.SupportedCultures,
	}, nil
}

// get performs one authenticated GET and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, path string, out any) error {
	ctx, span := tracer.StartSpan(ctx, "partner.get",
		tracer.WithAttrs(tracer.StringAttr("path", path)))
	defer span.End()

	token := domain.AccessTokenFromContext(ctx)
	if token == "" {
		err := domain.NewDomainError("Partner.get", domain.ErrAuthFailed, "no credential on context")
		tracer.RecordError(span, err)
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if cid := domain.CorrelationIDFromContext(ctx); cid != "" {
		req.Header.Set("MS-CorrelationId", cid)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		tracer.RecordError(span, err)
		return domain.NewDomainError("Partner.get", domain.ErrServiceFailure, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		tracer.RecordError(span, err)
		return fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		err := domain.ErrNotFound
		tracer.RecordError(span, err)
		return err
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		err := domain.NewDomainError("Partner.get", domain.ErrForbidden,
			fmt.Sprintf("status %d", resp.StatusCode))
		tracer.RecordError(span, err)
		return err
	default:
		err := domain.NewDomainError("Partner.get", domain.ErrServiceFailure,
			fmt.Sprintf("status %d", resp.StatusCode))
		tracer.RecordError(span, err)
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		tracer.RecordError(span, err)
		return fmt.Errorf("unmarshal response: %w", err)
	}
	tracer.SetOK(span)
	return nil
}

// --- partner backend wire types ---

type wireCustomer struct {
	ID             string `json:"id"`
	CompanyProfile struct {
		CompanyName string `json:"companyName"`
		Domain      string `json:"domain"`
		Country     string `json:"country"`
	} `json:"companyProfile"`
}

func (w wireCustomer) toDomain() domain.Customer {
	return domain.Customer{
		ID:          w.ID,
		CompanyName: w.CompanyProfile.CompanyName,
		Domain:      w.CompanyProfile.Domain,
		Country:     w.CompanyProfile.Country,
	}
}

type wireSubscription struct {
	ID           string `json:"id"`
	FriendlyName string `json:"friendlyName"`
	OfferName    string `json:"offerName"`
	Status       string `json:"status"`
	Quantity     int    `json:"quantity"`
}

func (w wireSubscription) toDomain() domain.Subscription {
	return domain.Subscription{
		ID:           w.ID,
		FriendlyName: w.FriendlyName,
		OfferName:    w.OfferName,
		Status:       w.Status,
		Quantity:     w.Quantity,
	}
}

type wireProfile struct {
	CompanyName string `json:"companyName"`
	Address     struct {
		AddressLine1 string `json:"addressLine1"`
		City         string `json:"city"`
		Country      string `json:"country"`
	} `json:"address"`
}

type wireCountryRules struct {
	CountryCode       string   `json:"countryCode"`
	DefaultCulture    string   `json:"defaultCulture"`
	SupportedCultures []string `json:"supportedCulturesList"`
}
