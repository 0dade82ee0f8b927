package http

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/matej-benes/mos-family-c/internal/adapter/protocol"
	"github.com/matej-benes/mos-family-c/internal/core/domain"
	"github.com/matej-benes/mos-family-c/internal/core/port"
)

var errForbidden = fmt.Errorf("%w: not allowed over the relay", domain.ErrPermissionDenied)

// rules decide what a device may touch through the relay. Reads cover the
// directory, global state and the user's own calls and chats. Writes are
// limited to call signaling; everything else goes through the REST API.
type rules struct {
	store port.DocumentStore
	self  domain.User
}

func segments(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}

func (ru rules) canRead(ctx context.Context, path string) error {
	seg := segments(path)
	switch {
	case len(seg) == 2 && seg[0] == domain.UsersCollection:
		return nil
	case path == domain.GameStatePath, path == domain.SettingsPath:
		return nil
	case seg[0] == domain.CallsCollection && (len(seg) == 2 || (len(seg) == 4 && isCandidates(seg[2]))):
		_, err := ru.participant(ctx, domain.CallID(seg[1]))
		return err
	case seg[0] == domain.ChatsCollection && (len(seg) == 2 || (len(seg) == 4 && seg[2] == domain.MessagesCollection)):
		return ru.inChat(seg[1])
	}
	return errForbidden
}

func (ru rules) canQuery(ctx context.Context, q port.Query) error {
	seg := segments(q.Collection)
	switch {
	case len(seg) == 1 && seg[0] == domain.UsersCollection:
		return nil
	case len(seg) == 1 && seg[0] == domain.CallsCollection:
		if ru.hasFilter(q, "callerId", port.OpEqual) || ru.hasFilter(q, "calleeId", port.OpEqual) {
			return nil
		}
		return fmt.Errorf("%w: call queries must filter on callerId or calleeId", domain.ErrPermissionDenied)
	case len(seg) == 3 && seg[0] == domain.CallsCollection && isCandidates(seg[2]):
		_, err := ru.participant(ctx, domain.CallID(seg[1]))
		return err
	case len(seg) == 1 && seg[0] == domain.ChatsCollection:
		if ru.hasFilter(q, "participants", port.OpArrayContains) {
			return nil
		}
		return fmt.Errorf("%w: chat queries must filter on participants", domain.ErrPermissionDenied)
	case len(seg) == 3 && seg[0] == domain.ChatsCollection && seg[2] == domain.MessagesCollection:
		return ru.inChat(seg[1])
	}
	return errForbidden
}

// canWrite covers set, merge and update of one call document. An existing
// call only takes partial writes: its parties never change, a closed call
// stays closed and the status only moves forward.
func (ru rules) canWrite(ctx context.Context, op protocol.FrameType, path string, data map[string]any) error {
	seg := segments(path)
	if len(seg) != 2 || seg[0] != domain.CallsCollection {
		return errForbidden
	}
	call, err := ru.participant(ctx, domain.CallID(seg[1]))
	if errors.Is(err, domain.ErrNotFound) {
		// creating under a chosen id
		return ru.canPlace(data)
	}
	if err != nil {
		return err
	}
	if op == protocol.TypeSet {
		return fmt.Errorf("%w: call %s exists and cannot be replaced", domain.ErrPermissionDenied, call.ID)
	}
	if call.Status.Terminal() {
		return fmt.Errorf("%w: call %s is %s", domain.ErrPermissionDenied, call.ID, call.Status)
	}

	side := domain.CalleeSide
	if call.CallerID == ru.self.ID {
		side = domain.CallerSide
	}
	for key, v := range data {
		field, nested, _ := strings.Cut(key, ".")
		switch field {
		case "callerId", "calleeId", "callerName":
			want := map[string]string{
				"callerId":   call.CallerID.String(),
				"calleeId":   call.CalleeID.String(),
				"callerName": call.CallerName,
			}[field]
			if nested != "" || v != want {
				return fmt.Errorf("%w: call parties are immutable", domain.ErrPermissionDenied)
			}
		case "createdAt", "id":
			return fmt.Errorf("%w: %s is immutable", domain.ErrPermissionDenied, field)
		case "status":
			next, ok := v.(string)
			if !ok || nested != "" || !call.Status.CanMove(domain.CallStatus(next), side) {
				return fmt.Errorf("%w: %s may not move call %s from %s to %v", domain.ErrPermissionDenied, side, call.ID, call.Status, v)
			}
		case "offer":
			if side != domain.CallerSide {
				return fmt.Errorf("%w: only the caller publishes the offer", domain.ErrPermissionDenied)
			}
		case "answer":
			if side != domain.CalleeSide {
				return fmt.Errorf("%w: only the callee publishes the answer", domain.ErrPermissionDenied)
			}
		}
	}
	return nil
}

func (ru rules) canAdd(ctx context.Context, collection string, data map[string]any) error {
	seg := segments(collection)
	switch {
	case len(seg) == 1 && seg[0] == domain.CallsCollection:
		return ru.canPlace(data)
	case len(seg) == 3 && seg[0] == domain.CallsCollection && isCandidates(seg[2]):
		call, err := ru.participant(ctx, domain.CallID(seg[1]))
		if err != nil {
			return err
		}
		// each side only publishes its own candidates
		own := domain.CalleeSide
		if call.CallerID == ru.self.ID {
			own = domain.CallerSide
		}
		if seg[2] != own.CandidatesCollection() {
			return fmt.Errorf("%w: candidates belong to the other side", domain.ErrPermissionDenied)
		}
		return nil
	}
	return errForbidden
}

// canPlace checks a new call record: placed by self, to someone else, and
// still ringing.
func (ru rules) canPlace(data map[string]any) error {
	if !fieldIs(data, "callerId", ru.self.ID.String()) {
		return fmt.Errorf("%w: new calls must be placed by the caller", domain.ErrPermissionDenied)
	}
	callee, _ := data["calleeId"].(string)
	if callee == "" || callee == ru.self.ID.String() {
		return fmt.Errorf("%w: new calls need another user as callee", domain.ErrInvalid)
	}
	if !fieldIs(data, "status", string(domain.CallPending)) {
		return fmt.Errorf("%w: new calls start %s", domain.ErrInvalid, domain.CallPending)
	}
	return nil
}

func (ru rules) participant(ctx context.Context, id domain.CallID) (domain.Call, error) {
	doc, err := ru.store.Get(ctx, domain.CallPath(id))
	if err != nil {
		return domain.Call{}, err
	}
	call, err := port.Decode[domain.Call](doc.Data)
	if err != nil {
		return domain.Call{}, err
	}
	call.ID = id
	if call.CallerID != ru.self.ID && call.CalleeID != ru.self.ID {
		return domain.Call{}, fmt.Errorf("%w: not a party to call %s", domain.ErrPermissionDenied, id)
	}
	return call, nil
}

func (ru rules) inChat(chatID string) error {
	for _, id := range strings.Split(chatID, "_") {
		if id == ru.self.ID.String() {
			return nil
		}
	}
	return fmt.Errorf("%w: not a participant of chat %s", domain.ErrPermissionDenied, chatID)
}

func (ru rules) hasFilter(q port.Query, field string, op port.Op) bool {
	for _, f := range q.Filters {
		if f.Field == field && f.Op == op && f.Value == ru.self.ID.String() {
			return true
		}
	}
	return false
}

func isCandidates(name string) bool {
	return name == domain.CallerSide.CandidatesCollection() || name == domain.CalleeSide.CandidatesCollection()
}

func fieldIs(data map[string]any, field, want string) bool {
	v, ok := data[field].(string)
	return ok && v == want
}

// stripPrivate removes PIN hashes from user documents.
func stripPrivate(doc port.Document) port.Document {
	seg := segments(doc.Path)
	if len(seg) != 2 || seg[0] != domain.UsersCollection || doc.Data == nil {
		return doc
	}
	if _, ok := doc.Data["pin"]; !ok {
		return doc
	}
	data := make(map[string]any, len(doc.Data))
	for k, v := range doc.Data {
		if k != "pin" {
			data[k] = v
		}
	}
	doc.Data = data
	return doc
}
