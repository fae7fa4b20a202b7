package usecase

import (
	"context"
	"io"
	"log/slog"
	"time"

	"partnerbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore is an in-memory PrincipalStore and NonceStore.
type fakeStore struct {
	principals map[string]domain.Principal
	nonces     map[string]string
	putErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		principals: make(map[string]domain.Principal),
		nonces:     make(map[string]string),
	}
}

func (f *fakeStore) Get(_ context.Context, conversationID string) (domain.Principal, error) {
	p, ok := f.principals[conversationID]
	if !ok {
		return domain.Principal{}, domain.ErrPrincipalNotFound
	}
	return p, nil
}

func (f *fakeStore) Put(_ context.Context, conversationID string, p domain.Principal) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.principals[conversationID] = p
	return nil
}

func (f *fakeStore) Delete(_ context.Context, conversationID string) error {
	delete(f.principals, conversationID)
	return nil
}

func (f *fakeStore) PutNonce(_ context.Context, conversationID, nonce string) error {
	f.nonces[conversationID] = nonce
	return nil
}

func (f *fakeStore) GetNonce(_ context.Context, conversationID string) (string, error) {
	n, ok := f.nonces[conversationID]
	if !ok {
		return "", domain.ErrNonceNotFound
	}
	return n, nil
}

func (f *fakeStore) DeleteNonce(_ context.Context, conversationID string) error {
	delete(f.nonces, conversationID)
	return nil
}

// fakeIdentity is a scripted IdentityService.
type fakeIdentity struct {
	exchangeToken domain.Token
	exchangeErr   error
	refreshToken  domain.Token
	refreshErr    error
	refreshCalls  int
	exchangeCalls int
}

func (f *fakeIdentity) AuthorizationURL(tenant, redirectURI, resource, state string) string {
	return "https://login.example.test/" + tenant + "/authorize?state=" + state
}

func (f *fakeIdentity) ExchangeCode(_ context.Context, _, _, _, _ string) (domain.Token, error) {
	f.exchangeCalls++
	return f.exchangeToken, f.exchangeErr
}

func (f *fakeIdentity) RefreshSilent(_ context.Context, _, _, _ string) (domain.Token, error) {
	f.refreshCalls++
	return f.refreshToken, f.refreshErr
}

// fakeDirectory returns a fixed role set.
type fakeDirectory struct {
	roles []domain.RoleModel
	err   error
}

func (f *fakeDirectory) GetRoles(_ context.Context, _, _ string) ([]domain.RoleModel, error) {
	return f.roles, f.err
}

// fakePartner is a scripted PartnerAPI.
type fakePartner struct {
	customers     []domain.Customer
	customersByID map[string]domain.Customer
	subscriptions []domain.Subscription
	profile       domain.LegalBusinessProfile
	rules         domain.CountryRules
	err           error
}

func (f *fakePartner) GetCustomer(_ context.Context, customerID string) (domain.Customer, error) {
	if f.err != nil {
		return domain.Customer{}, f.err
	}
	c, ok := f.customersByID[customerID]
	if !ok {
		return domain.Customer{}, domain.ErrNotFound
	}
	return c, nil
}

func (f *fakePartner) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	return f.customers, f.err
}

func (f *fakePartner) ListSubscriptions(_ context.Context, _ string) ([]domain.Subscription, error) {
	return f.subscriptions, f.err
}

func (f *fakePartner) GetSubscription(_ context.Context, _, subscriptionID string) (domain.Subscription, error) {
	if f.err != nil {
		return domain.Subscription{}, f.err
	}
	for _, s := range f.subscriptions {
		if s.ID == subscriptionID {
			return s, nil
		}
	}
	return domain.Subscription{}, domain.ErrNotFound
}

func (f *fakePartner) GetLegalBusinessProfile(_ context.Context) (domain.LegalBusinessProfile, error) {
	return f.profile, f.err
}

func (f *fakePartner) GetCountryRules(_ context.Context, _ string) (domain.CountryRules, error) {
	return f.rules, f.err
}

// fakeNLU returns a fixed classification.
type fakeNLU struct {
	result domain.NLUResult
	err    error
}

func (f *fakeNLU) Classify(_ context.Context, _ string) (domain.NLUResult, error) {
	return f.result, f.err
}

// fakeQA returns a fixed answer.
type fakeQA struct {
	answer string
	err    error
}

func (f *fakeQA) Query(_ context.Context, _ string) (string, error) {
	return f.answer, f.err
}

// stubIntent is a configurable intent handler.
type stubIntent struct {
	name       string
	permission domain.Permission
	help       string
	reply      domain.OutboundMessage
	err        error
	calls      int
}

func (s *stubIntent) Name() string                          { return s.name }
func (s *stubIntent) RequiredPermission() domain.Permission { return s.permission }
func (s *stubIntent) HelpText() string                      { return s.help }

func (s *stubIntent) Execute(_ context.Context, _ *domain.Turn) (domain.OutboundMessage, error) {
	s.calls++
	return s.reply, s.err
}

func validPrincipal(authorized ...string) domain.Principal {
	auth := make(map[string]bool, len(authorized))
	for _, name := range authorized {
		auth[name] = true
	}
	return domain.Principal{
		AccessToken: "tok-valid",
		ExpiresOn:   time.Now().Add(time.Hour),
		TenantID:    "tenant-1",
		ObjectID:    "object-1",
		Roles:       []string{"HelpdeskAgent"},
		Authorized:  auth,
	}
}
