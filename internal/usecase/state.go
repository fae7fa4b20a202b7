package usecase

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"partnerbot/internal/domain"
)

// StateClaims is the signed state payload round-tripped through the identity
// provider during login. It carries everything needed to resume the
// conversation at the OAuth callback, plus a one-shot nonce.
type StateClaims struct {
	BotID          string `json:"botId"`
	ChannelID      string `json:"channelId"`
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId"`
	ServiceURL     string `json:"serviceUrl"`
	UniqueID       string `json:"uniqueId"` // nonce, verified by exact match
	jwt.RegisteredClaims
}

// StateSigner signs and verifies the OAuth state token (HMAC-SHA256, URL-safe
// compact serialization). The signature rejects forged callbacks before any
// nonce comparison happens.
type StateSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time // test seam
}

// NewStateSigner creates a signer. ttl bounds how long an issued sign-in
// link stays redeemable.
func NewStateSigner(secret []byte, ttl time.Duration) *StateSigner {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &StateSigner{secret: secret, ttl: ttl, now: time.Now}
}

// Sign serializes the claims into a signed state token.
func (s *StateSigner) Sign(claims StateClaims) (string, error) {
	now := s.now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", domain.WrapOp("StateSigner.Sign", err)
	}
	return signed, nil
}

// Verify parses a state token and validates its signature and expiry.
// Any failure is an authentication failure: the state did not come from
// this bot's login flow.
func (s *StateSigner) Verify(state string) (StateClaims, error) {
	var claims StateClaims
	_, err := jwt.ParseWithClaims(state, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.NewDomainError("StateSigner.Verify", domain.ErrAuthFailed, "unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil {
		return StateClaims{}, domain.NewDomainError("StateSigner.Verify", domain.ErrAuthFailed, err.Error())
	}
	return claims, nil
}
