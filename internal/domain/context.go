package domain

import "context"

type ctxKey string

const (
	conversationCtxKey ctxKey = "conversation_id"
	correlationCtxKey  ctxKey = "correlation_id"
	accessTokenCtxKey  ctxKey = "access_token"
)

// ContextWithConversationID returns a new context carrying the conversation ID.
func ContextWithConversationID(ctx context.Context, conversationID string) context.Context {
	return context.WithValue(ctx, conversationCtxKey, conversationID)
}

// ConversationIDFromContext extracts the conversation ID from the context.
// Returns empty string if not set.
func ConversationIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(conversationCtxKey).(string); ok {
		return v
	}
	return ""
}

// ContextWithCorrelationID returns a new context carrying the per-request
// correlation ID set by the gateway middleware.
func ContextWithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationCtxKey, correlationID)
}

// CorrelationIDFromContext extracts the correlation ID from the context.
// Returns empty string if not set.
func CorrelationIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(correlationCtxKey).(string); ok {
		return v
	}
	return ""
}

// ContextWithAccessToken returns a new context carrying the principal's
// access token. The partner backend client reads it per call, so each call
// travels with the credential of the principal whose turn it serves.
func ContextWithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, accessTokenCtxKey, token)
}

// AccessTokenFromContext extracts the access token from the context.
// Returns empty string if not set.
func AccessTokenFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(accessTokenCtxKey).(string); ok {
		return v
	}
	return ""
}
