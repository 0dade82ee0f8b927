package domain

import (
	"fmt"
	"strings"
	"time"
)

type Message struct {
	ID        MessageID  `json:"id,omitempty"`
	SenderID  UserID     `json:"senderId"`
	Text      string     `json:"text"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

func NewMessage(senderID UserID, text string) (*Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: message content cannot be empty", ErrInvalid)
	}
	return &Message{
		SenderID: senderID,
		Text:     text,
	}, nil
}

type Chat struct {
	ID           string   `json:"id,omitempty"`
	Participants []UserID `json:"participants"`
	LastMessage  *Message `json:"lastMessage,omitempty"`
}
