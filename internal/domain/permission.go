package domain

// Permission is a bitset of partner directory role flags. Every elementary
// flag occupies its own bit so that composite permissions decompose cleanly
// under RequiredRolesFor.
type Permission uint32

const (
	PermissionAdminAgents Permission = 1 << iota
	PermissionBillingAdmin
	PermissionGlobalAdmin
	PermissionHelpdeskAgent
	PermissionSalesAgent
	PermissionUser
	PermissionUserAdministrator
)

// PermissionPartner is the composite partner-facing agent tier. It is a
// union of elementary flags, never matched as an opaque name.
const PermissionPartner = PermissionAdminAgents | PermissionHelpdeskAgent | PermissionSalesAgent

// PermissionAnyRole covers every known directory role. Intents carrying it
// are available to any principal that holds at least one role.
const PermissionAnyRole = PermissionPartner | PermissionBillingAdmin | PermissionGlobalAdmin |
	PermissionUser | PermissionUserAdministrator

// permissionRoles maps each elementary flag to the canonical directory role
// display name, in declaration order. RequiredRolesFor iterates this slice so
// its output order is stable.
var permissionRoles = []struct {
	flag Permission
	name string
}{
	{PermissionAdminAgents, "AdminAgents"},
	{PermissionBillingAdmin, "BillingAdmin"},
	{PermissionGlobalAdmin, "GlobalAdmin"},
	{PermissionHelpdeskAgent, "HelpdeskAgent"},
	{PermissionSalesAgent, "SalesAgent"},
	{PermissionUser, "User"},
	{PermissionUserAdministrator, "UserAdministrator"},
}

// Has reports whether every bit of flag is set in p.
func (p Permission) Has(flag Permission) bool {
	return p&flag == flag
}

// RequiredRolesFor expands a permission bitset into the list of directory
// role display names that satisfy it. A zero permission means the top tier
// only and expands to GlobalAdmin. The result is stable-ordered and free of
// duplicates.
func RequiredRolesFor(p Permission) []string {
	if p == 0 {
		return []string{"GlobalAdmin"}
	}
	names := make([]string, 0, len(permissionRoles))
	for _, pr := range permissionRoles {
		if p.Has(pr.flag) {
			names = append(names, pr.name)
		}
	}
	return names
}

// RoleModel is a raw directory role as returned by the identity provider.
// Roles are compared by DisplayName only.
type RoleModel struct {
	DisplayName string `json:"displayName"`
	Description string `json:"description,omitempty"`
}

// RoleNames extracts the display names from a directory role list.
func RoleNames(roles []RoleModel) []string {
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.DisplayName)
	}
	return names
}
