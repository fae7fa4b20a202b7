package channel

import (
	"context"
	"log/slog"

	"partnerbot/internal/domain"
)

// WebChatChannel is a thin stub channel for the webchat surface. It manages
// no transport of its own; the gateway calls the registered handler directly
// for both the REST and WebSocket endpoints and returns replies
// synchronously.
type WebChatChannel struct {
	handler domain.MessageHandler
	logger  *slog.Logger
}

// NewWebChatChannel creates a webchat stub channel.
func NewWebChatChannel(logger *slog.Logger) *WebChatChannel {
	return &WebChatChannel{logger: logger}
}

func (w *WebChatChannel) Name() string { return "webchat" }

// Start stores the handler. Webchat has no transport to start.
func (w *WebChatChannel) Start(_ context.Context, handler domain.MessageHandler) error {
	w.handler = handler
	w.logger.Info("webchat channel registered")
	return nil
}

// Stop is a no-op for webchat.
func (w *WebChatChannel) Stop(_ context.Context) error { return nil }

// Handler returns the registered handler for the gateway to invoke.
func (w *WebChatChannel) Handler() domain.MessageHandler { return w.handler }
