package domain

import "context"

// InboundMessage is one user utterance received from a conversation channel.
type InboundMessage struct {
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
	ChannelID      string `json:"channel_id"`
	BotID          string `json:"bot_id,omitempty"`
	UserID         string `json:"user_id,omitempty"`
	UserName       string `json:"user_name,omitempty"`
	ServiceURL     string `json:"service_url,omitempty"`
}

// OutboundMessage is the bot's reply for one turn.
type OutboundMessage struct {
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
	IsError        bool   `json:"is_error,omitempty"`
}

// MessageHandler is the callback a channel invokes for each inbound turn.
// The external transport serializes turns per conversation (at most one
// in-flight turn per conversation); handlers do not re-derive that locking.
type MessageHandler func(ctx context.Context, msg InboundMessage) (OutboundMessage, error)

// Channel is the interface for conversation transport adapters.
type Channel interface {
	Start(ctx context.Context, handler MessageHandler) error
	Stop(ctx context.Context) error
	Name() string
}
