// Package remote implements the document store on a device by relaying
// every call to the server over one websocket.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/matej-benes/mos-family-c/internal/adapter/protocol"
	"github.com/matej-benes/mos-family-c/internal/core/domain"
	"github.com/matej-benes/mos-family-c/internal/core/port"
	"github.com/matej-benes/mos-family-c/internal/eventloop"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

var ErrDisconnected = fmt.Errorf("%w: connection to server lost", domain.ErrSignaling)

type Option func(*Store)

// WithNotificationHandler receives notification frames pushed by the server.
func WithNotificationHandler(fn func(domain.Notification)) Option {
	return func(s *Store) { s.onNotify = fn }
}

func WithDialer(d *websocket.Dialer) Option {
	return func(s *Store) { s.dialer = d }
}

type subscription struct {
	doc   port.DocumentListener
	query port.QueryListener
}

// Store is a port.DocumentStore backed by the server relay. Listeners run
// one at a time on a delivery goroutine, in the order events arrived.
type Store struct {
	conn     *websocket.Conn
	dialer   *websocket.Dialer
	onNotify func(domain.Notification)
	events   *eventloop.Loop
	seq      atomic.Uint64

	mu      sync.Mutex
	pending map[string]chan protocol.Frame
	subs    map[string]subscription
	err     error

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to the relay at serverURL (http or https) with a session
// token from Authenticator.
func Dial(ctx context.Context, serverURL, token string, opts ...Option) (*Store, error) {
	s := &Store{
		dialer:  websocket.DefaultDialer,
		events:  eventloop.New(),
		pending: make(map[string]chan protocol.Frame),
		subs:    make(map[string]subscription),
		send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	endpoint, err := relayURL(serverURL)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, resp, err := s.dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: relay rejected the session token", domain.ErrAuthFailure)
		}
		return nil, fmt.Errorf("%w: dial relay: %v", domain.ErrSignaling, err)
	}
	s.conn = conn

	go s.events.Run()
	go s.writePump()
	go s.readPump()
	return s, nil
}

func relayURL(serverURL string) (string, error) {
	u, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return "", fmt.Errorf("%w: server url: %v", domain.ErrInvalid, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("%w: unsupported server url scheme %q", domain.ErrInvalid, u.Scheme)
	}
	u.Path += "/ws"
	return u.String(), nil
}

func (s *Store) Close() error {
	s.shutdown(ErrDisconnected)
	return nil
}

// Done is closed when the connection is gone.
func (s *Store) Done() <-chan struct{} {
	return s.done
}

func (s *Store) Get(ctx context.Context, path string) (port.Document, error) {
	res, err := s.request(ctx, protocol.Frame{Type: protocol.TypeGet, Path: path})
	if err != nil {
		return port.Document{}, err
	}
	if res.Doc == nil {
		return port.Document{}, fmt.Errorf("%w: get %s: empty result", domain.ErrSignaling, path)
	}
	return res.Doc.Port(), nil
}

func (s *Store) Query(ctx context.Context, q port.Query) ([]port.Document, error) {
	res, err := s.request(ctx, protocol.Frame{Type: protocol.TypeQuery, Query: protocol.FromQuery(q)})
	if err != nil {
		return nil, err
	}
	docs := make([]port.Document, len(res.Docs))
	for i, d := range res.Docs {
		docs[i] = d.Port()
	}
	return docs, nil
}

func (s *Store) Set(ctx context.Context, path string, data map[string]any) error {
	_, err := s.request(ctx, protocol.Frame{Type: protocol.TypeSet, Path: path, Data: protocol.EncodeData(data)})
	return err
}

func (s *Store) Merge(ctx context.Context, path string, data map[string]any) error {
	_, err := s.request(ctx, protocol.Frame{Type: protocol.TypeMerge, Path: path, Data: protocol.EncodeData(data)})
	return err
}

func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	_, err := s.request(ctx, protocol.Frame{Type: protocol.TypeUpdate, Path: path, Data: protocol.EncodeData(fields)})
	return err
}

func (s *Store) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	res, err := s.request(ctx, protocol.Frame{Type: protocol.TypeAdd, Collection: collection, Data: protocol.EncodeData(data)})
	if err != nil {
		return "", err
	}
	if res.Doc == nil || res.Doc.ID == "" {
		return "", fmt.Errorf("%w: add to %s: no id returned", domain.ErrSignaling, collection)
	}
	return res.Doc.ID, nil
}

func (s *Store) WatchDocument(ctx context.Context, path string, fn port.DocumentListener) (port.Unsubscribe, error) {
	return s.watch(ctx, protocol.Frame{Type: protocol.TypeWatchDoc, Path: path}, subscription{doc: fn})
}

func (s *Store) WatchQuery(ctx context.Context, q port.Query, fn port.QueryListener) (port.Unsubscribe, error) {
	return s.watch(ctx, protocol.Frame{Type: protocol.TypeWatchQuery, Query: protocol.FromQuery(q)}, subscription{query: fn})
}

// watch registers the listener before the request goes out, since the
// first event can beat the result frame.
func (s *Store) watch(ctx context.Context, req protocol.Frame, sub subscription) (port.Unsubscribe, error) {
	req.ID = s.nextID()

	s.mu.Lock()
	if s.err != nil {
		err := s.err
		s.mu.Unlock()
		return nil, err
	}
	s.subs[req.ID] = sub
	s.mu.Unlock()

	if _, err := s.roundTrip(ctx, req); err != nil {
		s.dropSub(req.ID)
		return nil, err
	}

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			if s.dropSub(req.ID) {
				s.enqueue(protocol.Frame{ID: s.nextID(), Type: protocol.TypeUnwatch, Sub: req.ID})
			}
		})
	}
	context.AfterFunc(ctx, unsub)
	return unsub, nil
}

func (s *Store) dropSub(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.subs[id]
	delete(s.subs, id)
	return ok && s.err == nil
}

func (s *Store) nextID() string {
	return strconv.FormatUint(s.seq.Add(1), 10)
}

func (s *Store) request(ctx context.Context, req protocol.Frame) (protocol.Frame, error) {
	req.ID = s.nextID()
	return s.roundTrip(ctx, req)
}

func (s *Store) roundTrip(ctx context.Context, req protocol.Frame) (protocol.Frame, error) {
	ch := make(chan protocol.Frame, 1)
	s.mu.Lock()
	if s.err != nil {
		err := s.err
		s.mu.Unlock()
		return protocol.Frame{}, err
	}
	s.pending[req.ID] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, req.ID)
		s.mu.Unlock()
	}()

	if err := s.enqueue(req); err != nil {
		return protocol.Frame{}, err
	}

	select {
	case res := <-ch:
		if res.Error != nil {
			return res, res.Error
		}
		return res, nil
	case <-ctx.Done():
		return protocol.Frame{}, ctx.Err()
	case <-s.done:
		return protocol.Frame{}, s.failure()
	}
}

func (s *Store) enqueue(f protocol.Frame) error {
	raw, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("%w: encode frame: %v", domain.ErrInvalid, err)
	}
	select {
	case s.send <- raw:
		return nil
	case <-s.done:
		return s.failure()
	}
}

func (s *Store) failure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	return ErrDisconnected
}

func (s *Store) readPump() {
	defer s.shutdown(ErrDisconnected)

	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Msg("Relay connection lost")
			}
			return
		}
		// any inbound traffic proves the server is alive
		s.conn.SetReadDeadline(time.Now().Add(pongWait))

		var f protocol.Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			log.Warn().Err(err).Msg("Dropping malformed frame")
			continue
		}
		s.dispatch(f)
	}
}

func (s *Store) dispatch(f protocol.Frame) {
	switch f.Type {
	case protocol.TypeResult:
		s.mu.Lock()
		ch := s.pending[f.ID]
		s.mu.Unlock()
		if ch != nil {
			ch <- f
		}

	case protocol.TypeEvent:
		s.events.Post(func() { s.deliver(f) })

	case protocol.TypeNotification:
		if f.Notification != nil && s.onNotify != nil {
			n := *f.Notification
			s.events.Post(func() { s.onNotify(n) })
		}
	}
}

// deliver runs on the event loop and skips subscriptions cancelled after
// the event was queued.
func (s *Store) deliver(f protocol.Frame) {
	s.mu.Lock()
	sub, ok := s.subs[f.Sub]
	s.mu.Unlock()
	if !ok {
		return
	}

	var err error
	if f.Error != nil {
		err = f.Error
	}
	switch {
	case sub.doc != nil:
		var doc port.Document
		if f.Doc != nil {
			doc = f.Doc.Port()
		}
		sub.doc(doc, err)
	case sub.query != nil:
		sub.query(protocol.PortChanges(f.Changes), err)
	}
}

func (s *Store) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case raw := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				s.shutdown(ErrDisconnected)
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.shutdown(ErrDisconnected)
				return
			}
		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// shutdown fails every live subscription with err so listeners fail closed.
func (s *Store) shutdown(err error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.err = err
		subs := s.subs
		s.subs = make(map[string]subscription)
		s.mu.Unlock()

		close(s.done)
		for _, sub := range subs {
			sub := sub
			s.events.Post(func() {
				if sub.doc != nil {
					sub.doc(port.Document{}, err)
				} else {
					sub.query(nil, err)
				}
			})
		}
		s.events.Stop()
	})
}

var _ port.DocumentStore = (*Store)(nil)
