package enum

// Staff roles (CHECK constrained in DB).
const (
	UserRoleAdmin   = "ADMIN"
	UserRoleCashier = "CASHIER"
)

// StaffRoles lists every role allowed to use the authenticated API.
var StaffRoles = []string{UserRoleAdmin, UserRoleCashier}

// IsStaffRole reports whether role is a known staff role.
func IsStaffRole(role string) bool {
	for _, r := range StaffRoles {
		if r == role {
			return true
		}
	}
	return false
}
