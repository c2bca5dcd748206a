package rbac

// Conference participant roles as carried in access tokens. Keep these
// stable; they are part of the auth contract.
const (
	RoleChair = "chair"
	RoleGuest = "guest"
)

// CanDial reports whether role may start dial-outs.
func CanDial(role string) bool { return role == RoleChair }
