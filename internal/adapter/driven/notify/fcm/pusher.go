package fcm

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/matej-benes/mos-family-c/internal/core/domain"
	"github.com/rs/zerolog/log"
)

// Sender is the part of the FCM client the pusher needs.
type Sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// Pusher sends notifications to every device registered on a user. Device
// ids are FCM registration tokens.
type Pusher struct {
	client Sender
}

func NewPusher(ctx context.Context, app *firebase.App) (*Pusher, error) {
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error initializing FCM client: %w", err)
	}
	return &Pusher{client: client}, nil
}

func NewPusherWithSender(s Sender) *Pusher {
	return &Pusher{client: s}
}

func (p *Pusher) Push(ctx context.Context, user domain.User, n domain.Notification) error {
	var errs []error
	for _, token := range user.DeviceIDs {
		msg := &messaging.Message{
			Notification: &messaging.Notification{
				Title: n.Title,
				Body:  n.Body,
			},
			Data:  withKind(n),
			Token: token,
		}
		id, err := p.client.Send(ctx, msg)
		if err != nil {
			errs = append(errs, fmt.Errorf("device %s: %w", token, err))
			continue
		}
		log.Debug().Str("user_id", user.ID.String()).Str("message_id", id).Msg("Push sent")
	}
	return errors.Join(errs...)
}

func withKind(n domain.Notification) map[string]string {
	data := make(map[string]string, len(n.Data)+1)
	for k, v := range n.Data {
		data[k] = v
	}
	data["kind"] = string(n.Kind)
	return data
}
