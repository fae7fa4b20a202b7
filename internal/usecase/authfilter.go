package usecase

import "partnerbot/internal/domain"

// AuthorizedIntents computes the subset of the registry a principal with the
// given directory roles may invoke, keyed by intent name for O(1) dispatch.
//
// An intent is authorized when at least one of its required permission's
// expanded role names is held by the user (OR semantics across the
// constituent roles). Empty userRoles yields the empty map: such a principal
// may still use login and help, but no business intents.
//
// This runs exactly once per principal, at authentication time. Roles
// revoked mid-conversation remain effective until re-authentication.
func AuthorizedIntents(userRoles []string, reg *Registry) map[string]domain.Intent {
	out := make(map[string]domain.Intent)
	if len(userRoles) == 0 {
		return out
	}
	held := make(map[string]bool, len(userRoles))
	for _, r := range userRoles {
		held[r] = true
	}
	for _, name := range reg.Names() {
		in, _ := reg.Get(name)
		for _, role := range domain.RequiredRolesFor(in.RequiredPermission()) {
			if held[role] {
				out[name] = in
				break
			}
		}
	}
	return out
}

// AuthorizedNames reduces AuthorizedIntents to the name set persisted on the
// principal snapshot.
func AuthorizedNames(userRoles []string, reg *Registry) map[string]bool {
	authorized := AuthorizedIntents(userRoles, reg)
	out := make(map[string]bool, len(authorized))
	for name := range authorized {
		out[name] = true
	}
	return out
}
