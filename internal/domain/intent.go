package domain

import "context"

// Entity is a named value the classifier extracted from the utterance.
type Entity struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// NLUResult is the outcome of classifying one utterance.
type NLUResult struct {
	Intent   string   `json:"intent"`
	Score    float64  `json:"score"`
	Entities []Entity `json:"entities,omitempty"`
}

// FirstEntity returns the value of the first entity of the given type,
// or empty string when absent.
func (r NLUResult) FirstEntity(entityType string) string {
	for _, e := range r.Entities {
		if e.Type == entityType {
			return e.Value
		}
	}
	return ""
}

// Turn carries the conversation-scoped data handed to an intent execution:
// the inbound message, the classifier result, and the principal snapshot
// current at dispatch time.
type Turn struct {
	ConversationID string
	Message        InboundMessage
	NLU            NLUResult
	Principal      Principal
}

// Intent is one recognized user goal bound to exactly one handler. Intents
// are stateless and safe to invoke concurrently for different conversations;
// per-conversation state lives on the principal.
type Intent interface {
	// Name is the dispatch key, unique across the registry. Canonical form
	// is lowerCamel (the dispatcher lower-cases the classifier label's
	// first rune before lookup).
	Name() string
	// RequiredPermission is the bitset of role flags that may invoke this
	// intent. Zero means the top permission tier only.
	RequiredPermission() Permission
	// HelpText is the one-line usage hint shown by the help flow.
	// Empty means the intent is omitted from help output.
	HelpText() string
	// Execute runs the intent and returns the outbound reply.
	Execute(ctx context.Context, turn *Turn) (OutboundMessage, error)
}
