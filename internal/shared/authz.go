package shared

// Permission names are stored and compared as exact strings. Code never
// spells them inline; it goes through these constants so a typo fails to
// compile instead of silently denying everyone.
const (
	PermViewDashboard = "view dashboard"

	PermViewRoles   = "view roles"
	PermCreateRoles = "create roles"
	PermEditRoles   = "edit roles"
	PermDeleteRoles = "delete roles"

	PermViewPermissions   = "view permissions"
	PermCreatePermissions = "create permissions"
	PermEditPermissions   = "edit permissions"
	PermDeletePermissions = "delete permissions"

	PermViewUsers   = "view users"
	PermCreateUsers = "create users"
	PermEditUsers   = "edit users"
	PermDeleteUsers = "delete users"

	PermViewProfile = "view profile"
	PermEditProfile = "edit profile"
)

// PermissionCatalog lists every permission the panel knows about, in the
// order the seeder creates them.
func PermissionCatalog() []string {
	return []string{
		PermViewDashboard,

		PermViewRoles,
		PermCreateRoles,
		PermEditRoles,
		PermDeleteRoles,

		PermViewPermissions,
		PermCreatePermissions,
		PermEditPermissions,
		PermDeletePermissions,

		PermViewUsers,
		PermCreateUsers,
		PermEditUsers,
		PermDeleteUsers,

		PermViewProfile,
		PermEditProfile,
	}
}

// DefaultUserPermissions lists the grants the seeded "user" role receives.
func DefaultUserPermissions() []string {
	return []string{
		PermViewDashboard,
		PermViewProfile,
		PermEditProfile,
	}
}
