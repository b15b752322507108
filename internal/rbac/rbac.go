// Package rbac decides which library actions a caller may perform.
package rbac

type Role string
type Action string

const (
	RoleVisitor Role = "visitor"
	RoleAdmin   Role = "admin"
)

const (
	ActionRead   Action = "read"
	ActionSubmit Action = "submit"
	ActionWrite  Action = "write"
	ActionAdmin  Action = "admin"
)

// Can reports whether role may perform action. Visitors browse, search,
// download and leave submissions; everything else is admin only.
func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleVisitor:
		return action == ActionRead || action == ActionSubmit
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleVisitor, RoleAdmin:
		return Role(role)
	default:
		return RoleVisitor
	}
}
