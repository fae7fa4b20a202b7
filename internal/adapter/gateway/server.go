package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"partnerbot/internal/domain"
	"partnerbot/internal/infra/config"
	"partnerbot/internal/infra/middleware"
)

// Completer finishes an authentication attempt from the OAuth callback.
type Completer interface {
	Complete(ctx context.Context, code, state string) (domain.Principal, error)
}

// Server is the HTTP face of the bot: the OAuth callback, a synchronous
// message endpoint for webchat REST clients, a WebSocket transport for
// interactive webchat, and a health probe.
type Server struct {
	handler   domain.MessageHandler
	completer Completer
	cfg       config.GatewayConfig
	logger    *slog.Logger
	httpSrv   *http.Server
	boundAddr string
}

// NewServer creates a gateway server.
func NewServer(handler domain.MessageHandler, completer Completer, cfg config.GatewayConfig, logger *slog.Logger) *Server {
	return &Server{
		handler:   handler,
		completer: completer,
		cfg:       cfg,
		logger:    logger,
	}
}

// Addr returns the bound listen address, available after Start.
func (s *Server) Addr() string { return s.boundAddr }

// Start begins serving. Blocks until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/callback", s.handleCallback)
	mux.HandleFunc("POST /api/messages", s.handleMessage)
	mux.HandleFunc("GET /ws", s.handleUpgrade)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	var h http.Handler = mux
	h = middleware.RateLimit(ctx, s.cfg.RequestsPerMin, s.cfg.Burst)(h)
	h = middleware.Correlation(h)
	h = middleware.SecurityHeaders(h)

	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("gateway listen: %w", err)
	}
	s.boundAddr = listener.Addr().String()
	s.httpSrv = &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("gateway started", "addr", s.boundAddr)

	go func() {
		<-ctx.Done()
		s.Stop(context.Background())
	}()

	if err := s.httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("gateway serve: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the gateway server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}

// handleCallback is the OAuth redirect target. Validation failures of the
// auth class answer 400 so the identity provider's redirect surface shows a
// definitive failure; anything else is a 500.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		http.Error(w, "missing code or state", http.StatusBadRequest)
		return
	}

	p, err := s.completer.Complete(r.Context(), code, state)
	if err != nil {
		s.logger.Warn("authentication attempt failed", "code", domain.ErrorCodeOf(err), "error", err)
		switch {
		case errors.Is(err, domain.ErrNonceMismatch),
			errors.Is(err, domain.ErrAuthFailed),
			errors.Is(err, domain.ErrNoRelationship):
			http.Error(w, "authentication failed", http.StatusBadRequest)
		default:
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<html><body><p>Welcome %s. You are signed in; you can close this window and return to the conversation.</p></body></html>",
		html.EscapeString(p.DisplayName))
}

// handleMessage serves synchronous webchat REST clients: one inbound message
// in, one reply out.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var msg domain.InboundMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, "invalid message body", http.StatusBadRequest)
		return
	}
	if msg.ConversationID == "" {
		http.Error(w, "conversation_id is required", http.StatusBadRequest)
		return
	}
	if msg.ChannelID == "" {
		msg.ChannelID = "webchat"
	}

	out, err := s.handler(r.Context(), msg)
	if err != nil {
		s.logger.Error("message handling failed", "conversation", msg.ConversationID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		s.logger.Warn("failed to encode reply", "error", err)
	}
}

// handleUpgrade serves the interactive webchat WebSocket. The read loop is
// serial per connection, so each conversation has at most one in-flight turn.
func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close(websocket.StatusInternalError, "closing")

	ctx := r.Context()
	for {
		var msg domain.InboundMessage
		if err := wsjson.Read(ctx, ws, &msg); err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || ctx.Err() != nil {
				ws.Close(websocket.StatusNormalClosure, "")
				return
			}
			s.logger.Debug("websocket read failed", "error", err)
			return
		}
		if msg.ConversationID == "" {
			continue
		}
		if msg.ChannelID == "" {
			msg.ChannelID = "webchat"
		}

		out, err := s.handler(ctx, msg)
		if err != nil {
			s.logger.Error("message handling failed", "conversation", msg.ConversationID, "error", err)
			out = domain.OutboundMessage{
				ConversationID: msg.ConversationID,
				Content:        "Sorry, something went wrong while handling that. Please try again.",
				IsError:        true,
			}
		}
		if err := wsjson.Write(ctx, ws, out); err != nil {
			s.logger.Debug("websocket write failed", "error", err)
			return
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}

