package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/matej-benes/mos-family-c/internal/core/domain"
	"github.com/matej-benes/mos-family-c/internal/core/port"
	"github.com/rs/zerolog/log"
)

type ChatService struct {
	store port.DocumentStore
	dir   *Directory
}

func NewChatService(store port.DocumentStore) *ChatService {
	return &ChatService{
		store: store,
		dir:   NewDirectory(store),
	}
}

func (s *ChatService) SendMessage(ctx context.Context, sender domain.User, recipientID domain.UserID, text string) (*domain.Message, error) {
	msg, err := domain.NewMessage(sender.ID, text)
	if err != nil {
		return nil, err
	}
	recipient, err := s.dir.GetUser(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	if !sender.CanContact(recipient) {
		return nil, fmt.Errorf("%w: %s may not message %s", domain.ErrPermissionDenied, sender.Name, recipient.Name)
	}

	chatID := domain.ChatID(sender.ID, recipientID)
	entry := map[string]any{
		"senderId":  sender.ID.String(),
		"text":      msg.Text,
		"timestamp": port.ServerTimestamp,
	}
	id, err := s.store.Add(ctx, domain.MessagesPath(chatID), entry)
	if err != nil {
		return nil, fmt.Errorf("store message: %w", err)
	}
	msg.ID = domain.MessageID(id)

	err = s.store.Merge(ctx, domain.ChatPath(chatID), map[string]any{
		"participants": []any{sender.ID.String(), recipientID.String()},
		"lastMessage": map[string]any{
			"text":      msg.Text,
			"senderId":  sender.ID.String(),
			"timestamp": port.ServerTimestamp,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("update chat: %w", err)
	}
	return msg, nil
}

// Contacts lists who self may message or call.
func (s *ChatService) Contacts(ctx context.Context, self domain.User) ([]domain.User, error) {
	return s.dir.Contacts(ctx, self)
}

// History returns the conversation between self and other, oldest first.
func (s *ChatService) History(ctx context.Context, self domain.User, otherID domain.UserID) ([]domain.Message, error) {
	docs, err := s.store.Query(ctx, messagesQuery(self.ID, otherID))
	if err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}
	msgs := make([]domain.Message, 0, len(docs))
	for _, doc := range docs {
		m, err := decodeMessage(doc)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	sortMessages(msgs)
	return msgs, nil
}

// WatchMessages calls fn with the whole conversation every time it changes.
// fn runs on the store's delivery goroutine.
func (s *ChatService) WatchMessages(ctx context.Context, self domain.User, otherID domain.UserID, fn func([]domain.Message, error)) (port.Unsubscribe, error) {
	byID := make(map[string]domain.Message)
	return s.store.WatchQuery(ctx, messagesQuery(self.ID, otherID), func(changes []port.Change, err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		for _, c := range changes {
			if c.Kind == port.ChangeRemoved {
				delete(byID, c.Doc.ID)
				continue
			}
			m, err := decodeMessage(c.Doc)
			if err != nil {
				log.Warn().Err(err).Str("message_id", c.Doc.ID).Msg("Skipping undecodable message")
				continue
			}
			byID[c.Doc.ID] = m
		}
		msgs := make([]domain.Message, 0, len(byID))
		for _, m := range byID {
			msgs = append(msgs, m)
		}
		sortMessages(msgs)
		fn(msgs, nil)
	})
}

func messagesQuery(a, b domain.UserID) port.Query {
	return port.NewQuery(domain.MessagesPath(domain.ChatID(a, b))).Order("timestamp", false)
}

func decodeMessage(doc port.Document) (domain.Message, error) {
	m, err := port.Decode[domain.Message](doc.Data)
	if err != nil {
		return m, err
	}
	m.ID = domain.MessageID(doc.ID)
	return m, nil
}

// sortMessages orders by timestamp. Messages whose server timestamp is not
// resolved yet go last.
func sortMessages(msgs []domain.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		a, b := msgs[i].Timestamp, msgs[j].Timestamp
		if a == nil || b == nil {
			return a != nil
		}
		if a.Equal(*b) {
			return msgs[i].ID < msgs[j].ID
		}
		return a.Before(*b)
	})
}
