package usecase

import (
	"context"
	"log/slog"
	"time"

	"partnerbot/internal/domain"
)

// TokenRefresher keeps a principal's access token valid, refreshing silently
// through the identity provider when expired. Refresh failure is an expected
// condition represented by ok=false, never an error that reaches the
// conversation layer.
type TokenRefresher struct {
	identity   domain.IdentityService
	principals *PrincipalManager
	resource   string
	logger     *slog.Logger
	now        func() time.Time // test seam
}

// NewTokenRefresher creates a refresher acquiring tokens for the given
// backend resource.
func NewTokenRefresher(identity domain.IdentityService, principals *PrincipalManager, resource string, logger *slog.Logger) *TokenRefresher {
	return &TokenRefresher{
		identity:   identity,
		principals: principals,
		resource:   resource,
		logger:     logger,
		now:        time.Now,
	}
}

// EnsureFresh returns a principal whose token is valid for use. A still-valid
// token passes through with zero identity-provider calls. An expired token is
// renewed silently, persisted, and returned as a new snapshot. When silent
// refresh fails (refresh material expired or revoked) the principal is
// dropped and ok=false tells the caller to restart the login flow.
func (t *TokenRefresher) EnsureFresh(ctx context.Context, conversationID string, p domain.Principal) (domain.Principal, bool, error) {
	if !p.TokenExpired(t.now()) {
		return p, true, nil
	}

	tok, err := t.identity.RefreshSilent(ctx, p.TenantID, t.resource, p.ObjectID)
	if err != nil {
		t.logger.Info("silent token refresh failed, re-login required",
			"conversation", conversationID,
			"object_id", p.ObjectID,
			"error", err)
		if dropErr := t.principals.Drop(ctx, conversationID); dropErr != nil {
			t.logger.Warn("failed to drop stale principal", "conversation", conversationID, "error", dropErr)
		}
		return domain.Principal{}, false, nil
	}

	refreshed := p.WithToken(tok.AccessToken, tok.ExpiresOn)
	if err := t.principals.Save(ctx, conversationID, refreshed); err != nil {
		return domain.Principal{}, false, err
	}
	t.logger.Debug("token refreshed", "conversation", conversationID, "expires_on", tok.ExpiresOn)
	return refreshed, true, nil
}
