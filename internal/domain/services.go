package domain

import (
	"context"
	"time"
)

// NLUService classifies an utterance into a top-scoring intent label.
type NLUService interface {
	Classify(ctx context.Context, text string) (NLUResult, error)
}

// QAService answers a free-form question from the knowledge base.
// A confident miss returns empty string, not an error.
type QAService interface {
	Query(ctx context.Context, text string) (string, error)
}

// Token is a credential issued by the identity provider. The identity
// fields are extracted from the provider's id token claims.
type Token struct {
	AccessToken string
	ExpiresOn   time.Time
	TenantID    string
	ObjectID    string
	DisplayName string
}

// IdentityService acquires and refreshes credentials against the identity
// provider.
type IdentityService interface {
	// AuthorizationURL builds the interactive sign-in URL carrying the
	// opaque state payload.
	AuthorizationURL(tenant, redirectURI, resource, state string) string
	// ExchangeCode redeems an authorization code for a user token and
	// caches the refresh material under the token's object id.
	ExchangeCode(ctx context.Context, tenant, code, resource, redirectURI string) (Token, error)
	// RefreshSilent renews a user token without interaction, using the
	// cached refresh material for the given object id. Fails with
	// ErrTokenRefresh when the material is missing, expired, or revoked.
	RefreshSilent(ctx context.Context, tenant, resource, objectID string) (Token, error)
}

// DirectoryService looks up a user's directory roles.
type DirectoryService interface {
	GetRoles(ctx context.Context, tenant, objectID string) ([]RoleModel, error)
}

// Customer is a partner-managed customer account.
type Customer struct {
	ID          string `json:"id"`
	CompanyName string `json:"company_name"`
	Domain      string `json:"domain,omitempty"`
	Country     string `json:"country,omitempty"`
}

// Subscription is one customer's subscription to an offer.
type Subscription struct {
	ID           string `json:"id"`
	FriendlyName string `json:"friendly_name"`
	OfferName    string `json:"offer_name,omitempty"`
	Status       string `json:"status,omitempty"`
	Quantity     int    `json:"quantity,omitempty"`
}

// LegalBusinessProfile describes the partner organization itself.
type LegalBusinessProfile struct {
	CompanyName string `json:"company_name"`
	Address     string `json:"address,omitempty"`
	City        string `json:"city,omitempty"`
	Country     string `json:"country,omitempty"`
}

// CountryRules holds per-country validation data from the partner backend.
type CountryRules struct {
	CountryCode       string   `json:"country_code"`
	DefaultCulture    string   `json:"default_culture,omitempty"`
	SupportedCultures []string `json:"supported_cultures,omitempty"`
}

// PartnerAPI is the partner-management backend, consumed as a black box.
// Each call carries the principal's credential via the client's token source.
type PartnerAPI interface {
	GetCustomer(ctx context.Context, customerID string) (Customer, error)
	ListCustomers(ctx context.Context) ([]Customer, error)
	ListSubscriptions(ctx context.Context, customerID string) ([]Subscription, error)
	GetSubscription(ctx context.Context, customerID, subscriptionID string) (Subscription, error)
	GetLegalBusinessProfile(ctx context.Context) (LegalBusinessProfile, error)
	GetCountryRules(ctx context.Context, countryCode string) (CountryRules, error)
}

// PrincipalStore persists one principal snapshot per conversation.
// Get returns ErrPrincipalNotFound when the conversation has no principal
// (never authenticated, or the record expired).
type PrincipalStore interface {
	Get(ctx context.Context, conversationID string) (Principal, error)
	Put(ctx context.Context, conversationID string, p Principal) error
	Delete(ctx context.Context, conversationID string) error
}

// NonceStore persists the login nonce issued per conversation until the
// OAuth callback consumes it. Get returns ErrNonceNotFound when absent.
type NonceStore interface {
	PutNonce(ctx context.Context, conversationID, nonce string) error
	GetNonce(ctx context.Context, conversationID string) (string, error)
	DeleteNonce(ctx context.Context, conversationID string) error
}

// Sweeper removes expired records. Stores that expire records natively
// (TTL-backed caches) need not implement it.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (int, error)
}
