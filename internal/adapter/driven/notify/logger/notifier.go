package logger

import (
	"context"

	"github.com/matej-benes/mos-family-c/internal/core/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Notifier shows transient notifications as log lines, for headless
// devices. Listeners, if any, get every notification as well.
type Notifier struct {
	logger    zerolog.Logger
	listeners []func(domain.Notification)
}

func NewNotifier(listeners ...func(domain.Notification)) *Notifier {
	return &Notifier{
		logger:    log.With().Str("module", "notifications").Logger(),
		listeners: listeners,
	}
}

func (n *Notifier) Notify(ctx context.Context, note domain.Notification) {
	ev := n.logger.Info()
	if note.Kind == domain.NotifyError {
		ev = n.logger.Warn()
	}
	ev.Str("kind", string(note.Kind)).Str("body", note.Body).Msg(note.Title)
	for _, fn := range n.listeners {
		fn(note)
	}
}

// Pusher logs pushes for deployments without FCM.
type Pusher struct{}

func (Pusher) Push(ctx context.Context, user domain.User, note domain.Notification) error {
	log.Info().Str("user_id", user.ID.String()).Int("devices", len(user.DeviceIDs)).Str("kind", string(note.Kind)).Msg(note.Title)
	return nil
}
