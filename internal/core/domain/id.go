package domain

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Document ids in the store are opaque strings, so ids are string-backed.
type UserID string
type CallID string
type MessageID string

func NewUserID() UserID {
	return UserID(uuid.New().String())
}

func NewCallID() CallID {
	return CallID(uuid.New().String())
}

func NewMessageID() MessageID {
	return MessageID(uuid.New().String())
}

func (id UserID) String() string {
	return string(id)
}

func (id CallID) String() string {
	return string(id)
}

func (id MessageID) String() string {
	return string(id)
}

// ChatID is the same for both participants regardless of who writes first.
func ChatID(a, b UserID) string {
	ids := []string{string(a), string(b)}
	sort.Strings(ids)
	return strings.Join(ids, "_")
}
