package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"partnerbot/internal/domain"
)

// LoginConfig holds the fixed identifiers the login flow stamps into every
// state token.
type LoginConfig struct {
	BotID       string
	Tenant      string // organizations/common endpoint tenant for interactive sign-in
	Resource    string // backend API resource the user token must be scoped to
	RedirectURI string // OAuth callback URL
}

// LoginFlow issues the interactive sign-in prompt: a signed state token plus
// a conversation-scoped nonce the callback later verifies by exact match.
type LoginFlow struct {
	identity domain.IdentityService
	nonces   domain.NonceStore
	signer   *StateSigner
	cfg      LoginConfig
	logger   *slog.Logger
}

// NewLoginFlow creates the login flow.
func NewLoginFlow(identity domain.IdentityService, nonces domain.NonceStore, signer *StateSigner, cfg LoginConfig, logger *slog.Logger) *LoginFlow {
	return &LoginFlow{identity: identity, nonces: nonces, signer: signer, cfg: cfg, logger: logger}
}

// newNonce generates a fresh ULID nonce for one login attempt.
func newNonce() string {
	t := time.Now()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// Begin starts one authentication attempt for the conversation: persists a
// fresh nonce, signs the state token, and replies with the sign-in link.
// A repeated "login" simply supersedes the previous nonce.
func (l *LoginFlow) Begin(ctx context.Context, msg domain.InboundMessage) (domain.OutboundMessage, error) {
	nonce := newNonce()
	if err := l.nonces.PutNonce(ctx, msg.ConversationID, nonce); err != nil {
		return domain.OutboundMessage{}, domain.WrapOp("LoginFlow.Begin", err)
	}

	state, err := l.signer.Sign(StateClaims{
		BotID:          l.cfg.BotID,
		ChannelID:      msg.ChannelID,
		UserID:         msg.UserID,
		ConversationID: msg.ConversationID,
		ServiceURL:     msg.ServiceURL,
		UniqueID:       nonce,
	})
	if err != nil {
		return domain.OutboundMessage{}, err
	}

	signinURL := l.identity.AuthorizationURL(l.cfg.Tenant, l.cfg.RedirectURI, l.cfg.Resource, state)
	l.logger.Info("login prompt issued", "conversation", msg.ConversationID, "channel", msg.ChannelID)

	return domain.OutboundMessage{
		ConversationID: msg.ConversationID,
		Content:        fmt.Sprintf("Please sign in to continue: %s", signinURL),
	}, nil
}
