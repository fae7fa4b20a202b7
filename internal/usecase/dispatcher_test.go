package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partnerbot/internal/domain"
)

type dispatcherFixture struct {
	dispatcher *Dispatcher
	store      *fakeStore
	identity   *fakeIdentity
	nlu        *fakeNLU
	list       *stubIntent
	question   *stubIntent
}

func newDispatcherFixture(t *testing.T) *dispatcherFixture {
	t.Helper()
	store := newFakeStore()
	identity := &fakeIdentity{}
	nluSvc := &fakeNLU{}

	list := &stubIntent{
		name:       "listCustomers",
		permission: domain.PermissionPartner,
		help:       "`list customers` — show the customers you manage",
		reply:      domain.OutboundMessage{Content: "customer list"},
	}
	question := &stubIntent{
		name:       QuestionIntentName,
		permission: domain.PermissionAnyRole,
		help:       "ask any question",
		reply:      domain.OutboundMessage{Content: "an answer"},
	}
	admin := &stubIntent{name: "adminOnly", permission: 0, help: "`admin only`"}

	reg, err := BuildRegistry(list, question, admin)
	require.NoError(t, err)

	principals := NewPrincipalManager(store, testLogger())
	signer := NewStateSigner(testSecret, 15*time.Minute)
	cfg := LoginConfig{BotID: "bot-1", Tenant: "common", Resource: "res", RedirectURI: "https://bot.example.test/api/callback"}
	login := NewLoginFlow(identity, store, signer, cfg, testLogger())
	refresher := NewTokenRefresher(identity, principals, "res", testLogger())

	return &dispatcherFixture{
		dispatcher: NewDispatcher(reg, principals, refresher, login, nluSvc, testLogger()),
		store:      store,
		identity:   identity,
		nlu:        nluSvc,
		list:       list,
		question:   question,
	}
}

func inbound(content string) domain.InboundMessage {
	return domain.InboundMessage{ConversationID: "conv-1", ChannelID: "webchat", Content: content}
}

func TestHandleUnauthenticatedPromptsSignIn(t *testing.T) {
	f := newDispatcherFixture(t)

	out, err := f.dispatcher.Handle(context.Background(), inbound("list customers"))
	require.NoError(t, err)
	assert.Equal(t, replyNotAuthenticated, out.Content)
	assert.Zero(t, f.list.calls)
	assert.Zero(t, f.question.calls)
}

func TestHandleUnauthenticatedLoginCommand(t *testing.T) {
	f := newDispatcherFixture(t)

	out, err := f.dispatcher.Handle(context.Background(), inbound("login"))
	require.NoError(t, err)
	assert.Contains(t, out.Content, "sign in")
	assert.NotEmpty(t, f.store.nonces["conv-1"])
}

func TestHandleDispatchesAuthorizedIntent(t *testing.T) {
	f := newDispatcherFixture(t)
	f.store.principals["conv-1"] = validPrincipal("listCustomers", "question")
	f.nlu.result = domain.NLUResult{Intent: "ListCustomers", Score: 0.92}

	out, err := f.dispatcher.Handle(context.Background(), inbound("show my customers"))
	require.NoError(t, err)
	assert.Equal(t, "customer list", out.Content)
	assert.Equal(t, "conv-1", out.ConversationID)
	assert.Equal(t, 1, f.list.calls, "classifier label is canonicalized before lookup")
}

func TestHandleUnauthorizedIntentFallsBackToHelp(t *testing.T) {
	f := newDispatcherFixture(t)
	f.store.principals["conv-1"] = validPrincipal("question") // no listCustomers
	f.nlu.result = domain.NLUResult{Intent: "listCustomers", Score: 0.9}

	out, err := f.dispatcher.Handle(context.Background(), inbound("show my customers"))
	require.NoError(t, err)
	assert.Contains(t, out.Content, replyHelpHeader)
	assert.Contains(t, out.Content, "ask any question")
	assert.NotContains(t, out.Content, "list customers")
	assert.Zero(t, f.list.calls)
	assert.False(t, out.IsError)
}

func TestHandleNoIntentFallsBackToQuestion(t *testing.T) {
	f := newDispatcherFixture(t)
	// Question not in the authorized set: the fallback still serves it.
	f.store.principals["conv-1"] = validPrincipal("listCustomers")
	f.nlu.result = domain.NLUResult{Intent: "None", Score: 0.1}

	out, err := f.dispatcher.Handle(context.Background(), inbound("what is the meaning of life"))
	require.NoError(t, err)
	assert.Equal(t, "an answer", out.Content)
	assert.Equal(t, 1, f.question.calls)
}

func TestHandleHelpListsOnlyAuthorizedIntents(t *testing.T) {
	f := newDispatcherFixture(t)
	f.store.principals["conv-1"] = validPrincipal("listCustomers")

	out, err := f.dispatcher.Handle(context.Background(), inbound("  Help "))
	require.NoError(t, err)
	assert.Contains(t, out.Content, "list customers")
	assert.NotContains(t, out.Content, "admin only")
}

func TestHandleHelpEmptyAuthorizedSet(t *testing.T) {
	f := newDispatcherFixture(t)
	f.store.principals["conv-1"] = validPrincipal()

	out, err := f.dispatcher.Handle(context.Background(), inbound("help"))
	require.NoError(t, err)
	assert.Equal(t, replyHelpEmpty, out.Content)
}

func TestHandleClassifierFailureApologizes(t *testing.T) {
	f := newDispatcherFixture(t)
	f.store.principals["conv-1"] = validPrincipal("listCustomers")
	f.nlu.err = errors.New("classifier down")

	out, err := f.dispatcher.Handle(context.Background(), inbound("show my customers"))
	require.NoError(t, err, "turn failures never propagate as errors")
	assert.Equal(t, replyGenericError, out.Content)
	assert.True(t, out.IsError)
}

func TestHandleIntentFailureApologizes(t *testing.T) {
	f := newDispatcherFixture(t)
	f.store.principals["conv-1"] = validPrincipal("listCustomers")
	f.nlu.result = domain.NLUResult{Intent: "listCustomers", Score: 0.95}
	f.list.err = errors.New("backend exploded")

	out, err := f.dispatcher.Handle(context.Background(), inbound("show my customers"))
	require.NoError(t, err)
	assert.Equal(t, replyGenericError, out.Content)
	assert.True(t, out.IsError)

	// The conversation is not poisoned: the next turn works.
	f.list.err = nil
	out, err = f.dispatcher.Handle(context.Background(), inbound("show my customers"))
	require.NoError(t, err)
	assert.Equal(t, "customer list", out.Content)
}

func TestHandleExpiredTokenRefreshFailureRestartsLogin(t *testing.T) {
	f := newDispatcherFixture(t)
	p := validPrincipal("listCustomers")
	p.ExpiresOn = time.Now().Add(-time.Minute)
	f.store.principals["conv-1"] = p
	f.identity.refreshErr = errors.New("refresh material gone")

	out, err := f.dispatcher.Handle(context.Background(), inbound("show my customers"))
	require.NoError(t, err)
	assert.Contains(t, out.Content, "sign in", "failed silent refresh falls back to the login flow")
	assert.Zero(t, f.list.calls)
}

func TestCanonicalizeIntent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ListCustomers", "listCustomers"},
		{"listCustomers", "listCustomers"},
		{"None", "none"},
		{"", ""},
		{"  Question ", "question"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, canonicalizeIntent(tt.in), "input %q", tt.in)
	}
}
