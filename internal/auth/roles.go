package auth

import "waitline/internal/queue"

const (
	RoleStaff   = "staff"
	RoleManager = "manager"
)

var rolePermissions = map[string][]queue.Permission{
	RoleStaff: {queue.PermAdmit, queue.PermCall, queue.PermComplete, queue.PermCancel},
	RoleManager: {
		queue.PermAdmit, queue.PermCall, queue.PermComplete, queue.PermCancel, queue.PermManage,
	},
}

// ValidRole reports whether role is known.
func ValidRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}

// CapabilityFor turns an authenticated role into the grant the queue
// engine checks. Unknown roles get no permissions.
func CapabilityFor(staffID, role string) queue.Capability {
	return queue.NewCapability(staffID, rolePermissions[role]...)
}
