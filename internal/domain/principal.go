package domain

import "time"

// OperationContext is the per-principal selection state threaded across
// conversation turns. A subscription belongs to exactly one customer, so
// selecting a new customer always clears the subscription.
type OperationContext struct {
	CustomerID     string `json:"customer_id,omitempty"`
	SubscriptionID string `json:"subscription_id,omitempty"`
}

// HasCustomer reports whether a customer has been selected.
func (c OperationContext) HasCustomer() bool { return c.CustomerID != "" }

// Principal is the authenticated identity of one conversation plus its
// derived authorization state. Principals are immutable snapshots: every
// mutation returns a copy that the caller persists wholesale, so concurrent
// readers never observe a torn write.
type Principal struct {
	AccessToken string           `json:"access_token"`
	ExpiresOn   time.Time        `json:"expires_on"`
	TenantID    string           `json:"tenant_id"`
	ObjectID    string           `json:"object_id"`
	DisplayName string           `json:"display_name"`
	Roles       []string         `json:"roles"`
	Authorized  map[string]bool  `json:"authorized"` // intent name -> invocable
	Ctx         OperationContext `json:"ctx"`
}

// TokenExpired reports whether the access token must be refreshed before use.
func (p Principal) TokenExpired(now time.Time) bool {
	return !now.Before(p.ExpiresOn)
}

// CanInvoke reports whether the named intent is in the principal's
// authorized set.
func (p Principal) CanInvoke(intentName string) bool {
	return p.Authorized[intentName]
}

// WithToken returns a copy of the principal carrying a renewed access token.
func (p Principal) WithToken(accessToken string, expiresOn time.Time) Principal {
	p.AccessToken = accessToken
	p.ExpiresOn = expiresOn
	return p
}

// WithCustomer returns a copy with the given customer selected. Any prior
// subscription selection is cleared.
func (p Principal) WithCustomer(customerID string) Principal {
	p.Ctx = OperationContext{CustomerID: customerID}
	return p
}

// WithSubscription returns a copy with the given subscription selected.
// Fails with ErrInvalidContext when no customer has been selected first.
func (p Principal) WithSubscription(subscriptionID string) (Principal, error) {
	if !p.Ctx.HasCustomer() {
		return p, NewDomainError("Principal.WithSubscription", ErrInvalidContext, "no customer selected")
	}
	p.Ctx.SubscriptionID = subscriptionID
	return p, nil
}
