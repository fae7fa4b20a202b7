package usecase

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"partnerbot/internal/domain"
	"partnerbot/internal/infra/tracer"
)

// Reply text for the fixed conversation flows.
const (
	replyNotAuthenticated = "I can't help with that until you sign in. Type `login` to get started."
	replyGenericError     = "Sorry, something went wrong while handling that. Please try again."
	replyHelpHeader       = "Here's what you can do:"
	replyHelpEmpty        = "Your account has no partner operations enabled. Ask your administrator for access, or type a question and I'll search the knowledge base."
)

// Sentinel classifier label meaning "no intent recognized".
const intentNone = "none"

// QuestionIntentName is the registry key of the Q&A fallback path.
const QuestionIntentName = "question"

// Dispatcher is the per-turn control flow: it decides between the login
// flow, the help flow, the Q&A fallback, and intent-based dispatch, and is
// the single catch boundary for intent execution failures.
//
// Turns for different conversations run concurrently; the external
// conversation transport guarantees at most one in-flight turn per
// conversation, so the dispatcher holds no per-conversation locks.
type Dispatcher struct {
	registry   *Registry
	principals *PrincipalManager
	refresher  *TokenRefresher
	login      *LoginFlow
	nlu        domain.NLUService
	logger     *slog.Logger
}

// NewDispatcher creates the dispatcher. The registry must contain a
// "question" intent; the Q&A fallback routes through it.
func NewDispatcher(registry *Registry, principals *PrincipalManager, refresher *TokenRefresher,
	login *LoginFlow, nlu domain.NLUService, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		registry:   registry,
		principals: principals,
		refresher:  refresher,
		login:      login,
		nlu:        nlu,
		logger:     logger,
	}
}

// Handle processes one inbound turn end-to-end and returns the reply.
// Safe to call concurrently for different conversations.
func (d *Dispatcher) Handle(ctx context.Context, msg domain.InboundMessage) (domain.OutboundMessage, error) {
	ctx, span := tracer.StartSpan(ctx, "dispatcher.handle",
		tracer.WithAttrs(tracer.StringAttr("channel", msg.ChannelID)))
	defer span.End()
	ctx = domain.ContextWithConversationID(ctx, msg.ConversationID)

	command := strings.ToLower(strings.TrimSpace(msg.Content))

	p, authenticated, err := d.principals.Load(ctx, msg.ConversationID)
	if err != nil {
		tracer.RecordError(span, err)
		return d.apologize(msg), nil
	}

	// Authentication check precedes everything else: unauthenticated
	// conversations never reach the classifier or the registry.
	if !authenticated {
		if command == "login" {
			return d.login.Begin(ctx, msg)
		}
		return domain.OutboundMessage{
			ConversationID: msg.ConversationID,
			Content:        replyNotAuthenticated,
		}, nil
	}

	p, fresh, err := d.refresher.EnsureFresh(ctx, msg.ConversationID, p)
	if err != nil {
		tracer.RecordError(span, err)
		return d.apologize(msg), nil
	}
	if !fresh {
		// Refresh material is gone; restart the login flow silently.
		return d.login.Begin(ctx, msg)
	}

	switch command {
	case "login":
		// Already authenticated; re-issue the prompt so the user can
		// switch accounts.
		return d.login.Begin(ctx, msg)
	case "help":
		return d.helpReply(msg, p), nil
	}

	result, err := d.nlu.Classify(ctx, msg.Content)
	if err != nil {
		d.logger.Warn("intent classification failed", "conversation", msg.ConversationID, "error", err)
		tracer.RecordError(span, err)
		return d.apologize(msg), nil
	}

	key := canonicalizeIntent(result.Intent)
	if key == "" || key == intentNone {
		key = QuestionIntentName
		// The Q&A fallback serves any authenticated principal even when
		// the question intent is not in the authorized set.
		return d.execute(ctx, key, msg, result, p)
	}

	if !p.CanInvoke(key) {
		// Recognized but unauthorized, or unrecognized label: fall back
		// to help, never an error.
		d.logger.Debug("intent not authorized, showing help", "conversation", msg.ConversationID, "intent", key)
		return d.helpReply(msg, p), nil
	}

	return d.execute(ctx, key, msg, result, p)
}

// execute runs one intent inside the dispatch catch boundary. Failures are
// logged and surfaced as a generic apology; the conversation continues and
// the operation context is left unchanged.
func (d *Dispatcher) execute(ctx context.Context, key string, msg domain.InboundMessage, nlu domain.NLUResult, p domain.Principal) (domain.OutboundMessage, error) {
	in, ok := d.registry.Get(key)
	if !ok {
		return d.helpReply(msg, p), nil
	}

	ctx, span := tracer.StartSpan(ctx, "intent."+key)
	defer span.End()

	// Backend calls made during this turn carry this principal's credential.
	ctx = domain.ContextWithAccessToken(ctx, p.AccessToken)

	out, err := in.Execute(ctx, &domain.Turn{
		ConversationID: msg.ConversationID,
		Message:        msg,
		NLU:            nlu,
		Principal:      p,
	})
	if err != nil {
		d.logger.Error("intent execution failed",
			"conversation", msg.ConversationID,
			"intent", key,
			"code", domain.ErrorCodeOf(err),
			"error", err)
		tracer.RecordError(span, err)
		return d.apologize(msg), nil
	}
	tracer.SetOK(span)
	out.ConversationID = msg.ConversationID
	return out, nil
}

// helpReply enumerates the principal's authorized intents' help text.
func (d *Dispatcher) helpReply(msg domain.InboundMessage, p domain.Principal) domain.OutboundMessage {
	names := make([]string, 0, len(p.Authorized))
	for name := range p.Authorized {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		in, ok := d.registry.Get(name)
		if !ok || in.HelpText() == "" {
			continue
		}
		b.WriteString("\n- ")
		b.WriteString(in.HelpText())
	}

	content := replyHelpEmpty
	if b.Len() > 0 {
		content = replyHelpHeader + b.String()
	}
	return domain.OutboundMessage{ConversationID: msg.ConversationID, Content: content}
}

func (d *Dispatcher) apologize(msg domain.InboundMessage) domain.OutboundMessage {
	return domain.OutboundMessage{
		ConversationID: msg.ConversationID,
		Content:        replyGenericError,
		IsError:        true,
	}
}

// canonicalizeIntent lowers the first rune of a classifier label, producing
// the registry lookup key.
func canonicalizeIntent(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(label)
	return string(unicode.ToLower(r)) + label[size:]
}
