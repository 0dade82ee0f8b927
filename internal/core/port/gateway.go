package port

import (
	"context"

	"github.com/matej-benes/mos-family-c/internal/core/domain"
)

// Notifier shows transient notifications to the local user.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification)
}

// Pusher delivers a notification to a user's devices out of band.
type Pusher interface {
	Push(ctx context.Context, user domain.User, n domain.Notification) error
}
