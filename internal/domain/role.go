package domain

// Role is the ordered role set handed to the core by the auth
// collaborator: user < admin < superadmin.
type Role int

const (
	RoleUser Role = iota
	RoleAdmin
	RoleSuperadmin
)

func ParseRole(s string) (Role, bool) {
	switch s {
	case "user":
		return RoleUser, true
	case "admin":
		return RoleAdmin, true
	case "superadmin":
		return RoleSuperadmin, true
	}
	return RoleUser, false
}

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleSuperadmin:
		return "superadmin"
	}
	return "user"
}

func (r Role) AtLeast(min Role) bool { return r >= min }

// CanChangeRole decides whether an actor may move a target from its
// current role to a proposed one. A non-superadmin can neither touch a
// superadmin's role nor grant superadmin.
func (r Role) CanChangeRole(target, proposed Role) bool {
	if !r.AtLeast(RoleAdmin) {
		return false
	}
	if target == RoleSuperadmin && r != RoleSuperadmin {
		return false
	}
	if proposed == RoleSuperadmin && r != RoleSuperadmin {
		return false
	}
	return true
}
