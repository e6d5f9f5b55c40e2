package auth

// Role is the access level carried in a payout API token. Viewers read
// statements, operators move money (settle, fund-and-queue, drain), and
// admins additionally export statements and read the audit trail.
type Role string

const (
	RoleViewer   Role = "viewer"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

// NormalizeRole maps a token claim onto a known role. Unknown values are
// rejected rather than defaulted: a typo in a role claim must not grant
// viewer access.
func NormalizeRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleViewer, RoleOperator, RoleAdmin:
		return Role(value), true
	default:
		return "", false
	}
}

// RoleAtLeast reports whether role satisfies the required level. Roles are
// strictly ordered: admin implies operator implies viewer.
func RoleAtLeast(role Role, required Role) bool {
	return roleRank(role) >= roleRank(required)
}

func roleRank(role Role) int {
	switch role {
	case RoleAdmin:
		return 3
	case RoleOperator:
		return 2
	case RoleViewer:
		return 1
	default:
		return 0
	}
}
