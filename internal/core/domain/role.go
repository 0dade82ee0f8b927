package domain

import "fmt"

type Role string

const (
	RoleSuperAdmin     Role = "superadmin"
	RoleOlderSibling   Role = "older-sibling"
	RoleYoungerSibling Role = "younger-sibling"
	RoleOther          Role = "other"
)

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalid, s)
	}
	return r, nil
}

func (r Role) Valid() bool {
	_, ok := capabilities[r]
	return ok
}

func (r Role) String() string {
	return string(r)
}

// Can reports whether the role is granted c by the capability table.
func (r Role) Can(c Capability) bool {
	for _, granted := range capabilities[r] {
		if granted == c {
			return true
		}
	}
	return false
}

type Capability string

const (
	CapBypassLock     Capability = "bypass-lock"
	CapToggleGame     Capability = "toggle-game"
	CapManageUsers    Capability = "manage-users"
	CapCreateUsers    Capability = "create-users"
	CapManageSettings Capability = "manage-settings"
	CapOpenAdmin      Capability = "open-admin"
	CapContactAnyone  Capability = "contact-anyone"
	CapAllApps        Capability = "all-apps"
)

var capabilities = map[Role][]Capability{
	RoleSuperAdmin: {
		CapBypassLock,
		CapToggleGame,
		CapManageUsers,
		CapCreateUsers,
		CapManageSettings,
		CapOpenAdmin,
		CapContactAnyone,
		CapAllApps,
	},
	RoleOlderSibling: {
		CapToggleGame,
		CapManageUsers,
		CapOpenAdmin,
		CapContactAnyone,
		CapAllApps,
	},
	RoleYoungerSibling: {},
	RoleOther: {
		CapContactAnyone,
	},
}
