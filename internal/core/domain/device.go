package domain

import "time"

// Device records which user last used a physical device. Device ids also
// serve as push registration tokens.
type Device struct {
	ID                    string     `json:"id,omitempty"`
	LastKnownUserID       UserID     `json:"lastKnownUserId,omitempty"`
	LastKnownUserName     string     `json:"lastKnownUserName,omitempty"`
	LinkedAt              *time.Time `json:"linkedAt,omitempty"`
	LastUnlinkedTimestamp *time.Time `json:"lastUnlinkedTimestamp,omitempty"`
}

type Credentials struct {
	UserID   UserID `json:"userId"`
	PIN      string `json:"pin"`
	DeviceID string `json:"deviceId,omitempty"`
}
