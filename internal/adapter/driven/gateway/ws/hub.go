package ws

import (
	"context"
	"sync"

	"github.com/matej-benes/mos-family-c/internal/adapter/protocol"
	"github.com/matej-benes/mos-family-c/internal/core/domain"
	"github.com/rs/zerolog/log"
)

// Hub tracks live connections per user. It implements port.Pusher by
// sending notification frames to every connection of the user.
type Hub struct {
	mu      sync.RWMutex
	clients map[domain.UserID]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	quit       chan struct{}
	stopOnce   sync.Once
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[domain.UserID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for id, set := range h.clients {
				for client := range set {
					client.Close()
				}
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			set, ok := h.clients[client.userID]
			if !ok {
				set = make(map[*Client]bool)
				h.clients[client.userID] = set
			}
			set[client] = true
			h.mu.Unlock()
			log.Info().Str("user_id", client.userID.String()).Msg("Client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if set, ok := h.clients[client.userID]; ok && set[client] {
				delete(set, client)
				if len(set) == 0 {
					delete(h.clients, client.userID)
				}
				log.Info().Str("user_id", client.userID.String()).Msg("Client unregistered")
			}
			h.mu.Unlock()
			client.Close()
		}
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.quit:
		c.Close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}

// Connected reports how many live connections the user has.
func (h *Hub) Connected(userID domain.UserID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Push delivers n to the user's open connections. An offline user is not an
// error; FCM covers that case.
func (h *Hub) Push(ctx context.Context, user domain.User, n domain.Notification) error {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients[user.ID]))
	for c := range h.clients[user.ID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	frame := protocol.Frame{Type: protocol.TypeNotification, Notification: &n}
	for _, c := range targets {
		if err := c.Send(frame); err != nil {
			log.Warn().Err(err).Str("user_id", user.ID.String()).Msg("Push to client failed")
		}
	}
	return nil
}
