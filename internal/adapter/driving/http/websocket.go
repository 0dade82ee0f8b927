package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/matej-benes/mos-family-c/internal/adapter/driven/gateway/ws"
	"github.com/matej-benes/mos-family-c/internal/adapter/protocol"
	"github.com/matej-benes/mos-family-c/internal/core/domain"
	"github.com/matej-benes/mos-family-c/internal/core/port"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// devices run on the home LAN without a fixed origin
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades an authenticated request into a store relay session.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Error while upgrading ws")
		return
	}

	client := ws.NewClient(h.hub, conn, user.ID)
	rl := newRelay(h.store, client, user)

	l := log.With().Str("user_id", user.ID.String()).Logger()
	l.Info().Msg("New client connected")

	h.hub.Register(client)
	go client.WritePump()
	client.ReadPump(rl.handle)

	rl.close()
	l.Info().Msg("Client disconnected")
}

type sender interface {
	Send(v any) error
}

// relay serves store requests for one connection. Requests are handled in
// arrival order; watch events are delivered as they happen.
type relay struct {
	store  port.DocumentStore
	out    sender
	rules  rules
	log    zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	subs map[string]port.Unsubscribe
}

func newRelay(store port.DocumentStore, out sender, user domain.User) *relay {
	ctx, cancel := context.WithCancel(context.Background())
	return &relay{
		store:  store,
		out:    out,
		rules:  rules{store: store, self: user},
		log:    log.With().Str("module", "relay").Str("user_id", user.ID.String()).Logger(),
		ctx:    ctx,
		cancel: cancel,
		subs:   make(map[string]port.Unsubscribe),
	}
}

func (rl *relay) handle(raw []byte) {
	var req protocol.Frame
	if err := json.Unmarshal(raw, &req); err != nil {
		rl.reply(protocol.Frame{}, fmt.Errorf("%w: malformed frame: %v", domain.ErrInvalid, err))
		return
	}
	res, err := rl.serve(req)
	if err != nil {
		rl.log.Debug().Err(err).Str("type", string(req.Type)).Str("path", req.Path).Msg("Request rejected")
	}
	rl.reply(res, err)
}

func (rl *relay) reply(res protocol.Frame, err error) {
	res.Type = protocol.TypeResult
	res.Error = protocol.NewError(err)
	if err := rl.out.Send(res); err != nil {
		rl.log.Debug().Err(err).Msg("Reply dropped")
	}
}

func (rl *relay) serve(req protocol.Frame) (protocol.Frame, error) {
	res := protocol.Frame{ID: req.ID}
	ctx := rl.ctx

	data, err := protocol.DecodeData(req.Data)
	if err != nil {
		return res, fmt.Errorf("%w: %v", domain.ErrInvalid, err)
	}

	switch req.Type {
	case protocol.TypeGet:
		if err := rl.rules.canRead(ctx, req.Path); err != nil {
			return res, err
		}
		doc, err := rl.store.Get(ctx, req.Path)
		if err != nil {
			return res, err
		}
		d := protocol.FromDocument(stripPrivate(doc))
		res.Doc = &d

	case protocol.TypeQuery:
		q, err := requireQuery(req)
		if err != nil {
			return res, err
		}
		if err := rl.rules.canQuery(ctx, q); err != nil {
			return res, err
		}
		docs, err := rl.store.Query(ctx, q)
		if err != nil {
			return res, err
		}
		res.Docs = make([]protocol.Document, len(docs))
		for i, doc := range docs {
			res.Docs[i] = protocol.FromDocument(stripPrivate(doc))
		}

	case protocol.TypeSet, protocol.TypeMerge, protocol.TypeUpdate:
		if err := rl.rules.canWrite(ctx, req.Type, req.Path, data); err != nil {
			return res, err
		}
		switch req.Type {
		case protocol.TypeSet:
			err = rl.store.Set(ctx, req.Path, data)
		case protocol.TypeMerge:
			err = rl.store.Merge(ctx, req.Path, data)
		default:
			err = rl.store.Update(ctx, req.Path, data)
		}
		if err != nil {
			return res, err
		}

	case protocol.TypeAdd:
		if err := rl.rules.canAdd(ctx, req.Collection, data); err != nil {
			return res, err
		}
		id, err := rl.store.Add(ctx, req.Collection, data)
		if err != nil {
			return res, err
		}
		res.Doc = &protocol.Document{ID: id, Path: req.Collection + "/" + id, Exists: true}

	case protocol.TypeWatchDoc:
		if err := rl.rules.canRead(ctx, req.Path); err != nil {
			return res, err
		}
		return res, rl.watchDoc(req)

	case protocol.TypeWatchQuery:
		q, err := requireQuery(req)
		if err != nil {
			return res, err
		}
		if err := rl.rules.canQuery(ctx, q); err != nil {
			return res, err
		}
		return res, rl.watchQuery(req, q)

	case protocol.TypeUnwatch:
		rl.unwatch(req.Sub)

	default:
		return res, fmt.Errorf("%w: unknown frame type %q", domain.ErrInvalid, req.Type)
	}
	return res, nil
}

func requireQuery(req protocol.Frame) (port.Query, error) {
	if req.Query == nil || req.Query.Collection == "" {
		return port.Query{}, fmt.Errorf("%w: query frame without a collection", domain.ErrInvalid)
	}
	return req.Query.Port(), nil
}

// The subscription id is the request id the device chose.
func subID(req protocol.Frame) (string, error) {
	if req.ID == "" {
		return "", fmt.Errorf("%w: watch frames need an id", domain.ErrInvalid)
	}
	return req.ID, nil
}

func (rl *relay) watchDoc(req protocol.Frame) error {
	sub, err := subID(req)
	if err != nil {
		return err
	}
	unsub, err := rl.store.WatchDocument(rl.ctx, req.Path, func(doc port.Document, err error) {
		ev := protocol.Frame{Type: protocol.TypeEvent, Sub: sub, Error: protocol.NewError(err)}
		if err == nil {
			d := protocol.FromDocument(stripPrivate(doc))
			ev.Doc = &d
		}
		rl.emit(sub, ev)
	})
	if err != nil {
		return err
	}
	rl.track(sub, unsub)
	return nil
}

func (rl *relay) watchQuery(req protocol.Frame, q port.Query) error {
	sub, err := subID(req)
	if err != nil {
		return err
	}
	unsub, err := rl.store.WatchQuery(rl.ctx, q, func(changes []port.Change, err error) {
		ev := protocol.Frame{Type: protocol.TypeEvent, Sub: sub, Error: protocol.NewError(err)}
		if err == nil {
			clean := make([]port.Change, len(changes))
			for i, c := range changes {
				clean[i] = port.Change{Kind: c.Kind, Doc: stripPrivate(c.Doc)}
			}
			ev.Changes = protocol.FromChanges(clean)
		}
		rl.emit(sub, ev)
	})
	if err != nil {
		return err
	}
	rl.track(sub, unsub)
	return nil
}

func (rl *relay) emit(sub string, ev protocol.Frame) {
	if err := rl.out.Send(ev); err != nil {
		rl.log.Debug().Err(err).Str("sub", sub).Msg("Event dropped")
	}
}

func (rl *relay) track(sub string, unsub port.Unsubscribe) {
	rl.mu.Lock()
	old := rl.subs[sub]
	rl.subs[sub] = unsub
	rl.mu.Unlock()
	if old != nil {
		old()
	}
}

func (rl *relay) unwatch(sub string) {
	rl.mu.Lock()
	unsub := rl.subs[sub]
	delete(rl.subs, sub)
	rl.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (rl *relay) close() {
	rl.mu.Lock()
	subs := rl.subs
	rl.subs = make(map[string]port.Unsubscribe)
	rl.mu.Unlock()
	for _, unsub := range subs {
		unsub()
	}
	rl.cancel()
}
