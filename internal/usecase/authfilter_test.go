package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partnerbot/internal/domain"
)

func partnerRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := BuildRegistry(
		&stubIntent{name: "listCustomers", permission: domain.PermissionPartner},
		&stubIntent{name: "question", permission: domain.PermissionAnyRole},
		&stubIntent{name: "adminOnly", permission: 0}, // top tier only
		&stubIntent{name: "billing", permission: domain.PermissionBillingAdmin},
	)
	require.NoError(t, err)
	return reg
}

func TestAuthorizedIntents(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		want  []string
	}{
		{
			name:  "helpdesk agent gets partner intents",
			roles: []string{"HelpdeskAgent"},
			want:  []string{"listCustomers", "question"},
		},
		{
			name:  "one qualifying role suffices",
			roles: []string{"SalesAgent", "SomethingUnknown"},
			want:  []string{"listCustomers", "question"},
		},
		{
			name:  "global admin gets the zero-permission intent",
			roles: []string{"GlobalAdmin"},
			want:  []string{"adminOnly", "question"},
		},
		{
			name:  "billing admin",
			roles: []string{"BillingAdmin"},
			want:  []string{"billing", "question"},
		},
		{
			name:  "no roles yields empty set",
			roles: nil,
			want:  nil,
		},
		{
			name:  "unknown roles yield empty set",
			roles: []string{"Stranger"},
			want:  []string{},
		},
	}

	reg := partnerRegistry(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AuthorizedIntents(tt.roles, reg)
			assert.Len(t, got, len(tt.want))
			for _, name := range tt.want {
				assert.Contains(t, got, name)
			}
		})
	}
}

func TestAuthorizedNamesMatchesIntents(t *testing.T) {
	reg := partnerRegistry(t)
	names := AuthorizedNames([]string{"HelpdeskAgent"}, reg)
	assert.True(t, names["listCustomers"])
	assert.True(t, names["question"])
	assert.False(t, names["adminOnly"])
	assert.False(t, names["billing"])
}
