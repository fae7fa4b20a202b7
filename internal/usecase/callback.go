package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"

	"partnerbot/internal/domain"
)

// AuthCompleter finishes an authentication attempt at the OAuth callback:
// it validates the returned state against the persisted nonce, redeems the
// code, resolves directory roles, computes the authorized-intent set, and
// persists the resulting principal. No principal is ever constructed on a
// failed validation.
type AuthCompleter struct {
	signer     *StateSigner
	nonces     domain.NonceStore
	identity   domain.IdentityService
	directory  domain.DirectoryService
	partner    domain.PartnerAPI
	principals *PrincipalManager
	registry   *Registry
	cfg        LoginConfig
	logger     *slog.Logger
}

// NewAuthCompleter wires the callback-side half of the login flow.
func NewAuthCompleter(signer *StateSigner, nonces domain.NonceStore, identity domain.IdentityService,
	directory domain.DirectoryService, partner domain.PartnerAPI, principals *PrincipalManager,
	registry *Registry, cfg LoginConfig, logger *slog.Logger) *AuthCompleter {
	return &AuthCompleter{
		signer:     signer,
		nonces:     nonces,
		identity:   identity,
		directory:  directory,
		partner:    partner,
		principals: principals,
		registry:   registry,
		cfg:        cfg,
		logger:     logger,
	}
}

// Complete processes the code/state pair from the callback endpoint.
// Returns the constructed principal, or ErrAuthFailed / ErrNonceMismatch /
// ErrNoRelationship for the failure classes the HTTP adapter maps to 400.
// The ctx is the inbound request context; cancellation aborts the exchange.
func (a *AuthCompleter) Complete(ctx context.Context, code, state string) (domain.Principal, error) {
	claims, err := a.signer.Verify(state)
	if err != nil {
		return domain.Principal{}, err
	}

	nonce, err := a.nonces.GetNonce(ctx, claims.ConversationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Principal{}, domain.NewDomainError("AuthCompleter.Complete", domain.ErrNonceMismatch, "no pending login for conversation")
		}
		return domain.Principal{}, domain.WrapOp("AuthCompleter.Complete", err)
	}
	if subtle.ConstantTimeCompare([]byte(nonce), []byte(claims.UniqueID)) != 1 {
		a.logger.Warn("state nonce mismatch", "conversation", claims.ConversationID)
		return domain.Principal{}, domain.NewDomainError("AuthCompleter.Complete", domain.ErrNonceMismatch, "")
	}
	// Nonce is one-shot: consume it before the exchange so a replayed
	// callback cannot race a second principal into existence.
	if err := a.nonces.DeleteNonce(ctx, claims.ConversationID); err != nil {
		a.logger.Warn("failed to delete consumed nonce", "conversation", claims.ConversationID, "error", err)
	}

	tok, err := a.identity.ExchangeCode(ctx, a.cfg.Tenant, code, a.cfg.Resource, a.cfg.RedirectURI)
	if err != nil {
		return domain.Principal{}, domain.NewDomainError("AuthCompleter.Complete", domain.ErrAuthFailed, err.Error())
	}

	// The authenticated tenant must have a relationship with the partner
	// backend; otherwise nothing in the bot can serve it.
	relCtx := domain.ContextWithAccessToken(ctx, tok.AccessToken)
	if _, err := a.partner.GetCustomer(relCtx, tok.TenantID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Principal{}, domain.NewDomainError("AuthCompleter.Complete", domain.ErrNoRelationship, tok.TenantID)
		}
		return domain.Principal{}, domain.WrapOp("AuthCompleter.Complete", err)
	}

	roles, err := a.directory.GetRoles(ctx, tok.TenantID, tok.ObjectID)
	if err != nil {
		return domain.Principal{}, domain.WrapOp("AuthCompleter.Complete", err)
	}
	roleNames := domain.RoleNames(roles)

	p := domain.Principal{
		AccessToken: tok.AccessToken,
		ExpiresOn:   tok.ExpiresOn,
		TenantID:    tok.TenantID,
		ObjectID:    tok.ObjectID,
		DisplayName: tok.DisplayName,
		Roles:       roleNames,
		Authorized:  AuthorizedNames(roleNames, a.registry),
	}
	if err := a.principals.Save(ctx, claims.ConversationID, p); err != nil {
		return domain.Principal{}, err
	}

	a.logger.Info("principal authenticated",
		"conversation", claims.ConversationID,
		"tenant", p.TenantID,
		"roles", len(p.Roles),
		"intents", len(p.Authorized))
	return p, nil
}
