package usecase

import (
	"context"
	"log/slog"

	"partnerbot/internal/domain"
)

// PrincipalManager mediates access to the conversation-scoped principal
// store. Principals are immutable snapshots replaced wholesale on every
// mutation; the manager never hands out shared mutable state.
type PrincipalManager struct {
	store  domain.PrincipalStore
	logger *slog.Logger
}

// NewPrincipalManager creates a manager over the given store.
func NewPrincipalManager(store domain.PrincipalStore, logger *slog.Logger) *PrincipalManager {
	return &PrincipalManager{store: store, logger: logger}
}

// Load rehydrates the principal for a conversation. The second return is
// false when the conversation has never authenticated or its record expired;
// that is the expected unauthenticated state, not an error.
func (m *PrincipalManager) Load(ctx context.Context, conversationID string) (domain.Principal, bool, error) {
	p, err := m.store.Get(ctx, conversationID)
	if err != nil {
		if domain.ErrorCodeOf(err) == domain.CodeNotFound {
			return domain.Principal{}, false, nil
		}
		return domain.Principal{}, false, domain.WrapOp("PrincipalManager.Load", err)
	}
	return p, true, nil
}

// Save persists a principal snapshot for a conversation.
func (m *PrincipalManager) Save(ctx context.Context, conversationID string, p domain.Principal) error {
	if err := m.store.Put(ctx, conversationID, p); err != nil {
		return domain.WrapOp("PrincipalManager.Save", err)
	}
	m.logger.Debug("principal saved",
		"conversation", conversationID,
		"object_id", p.ObjectID,
		"intents", len(p.Authorized))
	return nil
}

// Drop removes the principal for a conversation. Used when refresh material
// is gone and the login flow must restart cleanly.
func (m *PrincipalManager) Drop(ctx context.Context, conversationID string) error {
	if err := m.store.Delete(ctx, conversationID); err != nil {
		return domain.WrapOp("PrincipalManager.Drop", err)
	}
	return nil
}
