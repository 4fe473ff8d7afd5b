package queue

import "fmt"

// Permission is a single staff operation a Capability may grant.
type Permission string

const (
	PermAdmit    Permission = "admit"
	PermCall     Permission = "call"
	PermComplete Permission = "complete"
	PermCancel   Permission = "cancel"
	PermManage   Permission = "manage"
)

// Capability is an already-authorized grant handed to the engine by the
// auth layer. The engine only checks membership; it never looks at roles.
type Capability struct {
	StaffID string
	perms   map[Permission]bool
}

func NewCapability(staffID string, perms ...Permission) Capability {
	m := make(map[Permission]bool, len(perms))
	for _, p := range perms {
		m[p] = true
	}
	return Capability{StaffID: staffID, perms: m}
}

func (c Capability) Grants(p Permission) bool {
	return c.StaffID != "" && c.perms[p]
}

func (c Capability) require(p Permission) error {
	if !c.Grants(p) {
		return fmt.Errorf("%w: %s requires %q", ErrForbidden, c.describe(), p)
	}
	return nil
}

func (c Capability) describe() string {
	if c.StaffID == "" {
		return "anonymous caller"
	}
	return "staff " + c.StaffID
}
