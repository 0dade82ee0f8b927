package domain

type Approvals struct {
	Apps     []App    `json:"apps,omitempty"`
	Contacts []UserID `json:"contacts,omitempty"`
}

type User struct {
	ID   UserID `json:"id,omitempty"`
	Name string `json:"name"`
	// PIN holds the bcrypt hash, never the PIN itself.
	PIN               string     `json:"pin,omitempty"`
	Role              Role       `json:"role"`
	Bedtime           string     `json:"bedtime,omitempty"`
	Approvals         *Approvals `json:"approvals,omitempty"`
	IsManuallyLocked  bool       `json:"isManuallyLocked,omitempty"`
	ManualLockMessage string     `json:"manualLockMessage,omitempty"`
	DeviceIDs         []string   `json:"deviceIds,omitempty"`
	AvatarURL         string     `json:"avatarUrl,omitempty"`
}

// Public strips the PIN hash before the user leaves the server.
func (u User) Public() User {
	u.PIN = ""
	return u
}

func (u User) Can(c Capability) bool {
	return u.Role.Can(c)
}

func (u User) HasApprovedContact(id UserID) bool {
	if u.Approvals == nil {
		return false
	}
	for _, c := range u.Approvals.Contacts {
		if c == id {
			return true
		}
	}
	return false
}

func (u User) HasApprovedApp(app App) bool {
	if u.Approvals == nil {
		return false
	}
	for _, a := range u.Approvals.Apps {
		if a == app {
			return true
		}
	}
	return false
}

// CanContact decides whether u may call or message other.
func (u User) CanContact(other User) bool {
	if other.ID == u.ID {
		return false
	}
	if u.Can(CapContactAnyone) {
		return true
	}
	return u.HasApprovedContact(other.ID)
}
