// Package protocol defines the JSON frames exchanged between devices and
// the server over the store relay websocket.
package protocol

import (
	"github.com/matej-benes/mos-family-c/internal/core/domain"
	"github.com/matej-benes/mos-family-c/internal/core/port"
)

type FrameType string

// Requests, sent by the device.
const (
	TypeGet        FrameType = "get"
	TypeQuery      FrameType = "query"
	TypeSet        FrameType = "set"
	TypeMerge      FrameType = "merge"
	TypeUpdate     FrameType = "update"
	TypeAdd        FrameType = "add"
	TypeWatchDoc   FrameType = "watchDoc"
	TypeWatchQuery FrameType = "watchQuery"
	TypeUnwatch    FrameType = "unwatch"
)

// Server frames.
const (
	TypeResult       FrameType = "result"
	TypeEvent        FrameType = "event"
	TypeNotification FrameType = "notification"
)

// Frame is the single envelope for every message. ID correlates a request
// with its result; Sub tags watch events.
type Frame struct {
	ID   string    `json:"id,omitempty"`
	Type FrameType `json:"type"`
	Sub  string    `json:"sub,omitempty"`

	Path       string         `json:"path,omitempty"`
	Collection string         `json:"collection,omitempty"`
	Query      *Query         `json:"query,omitempty"`
	Data       map[string]any `json:"data,omitempty"`

	Doc          *Document            `json:"doc,omitempty"`
	Docs         []Document           `json:"docs,omitempty"`
	Changes      []Change             `json:"changes,omitempty"`
	Error        *Error               `json:"error,omitempty"`
	Notification *domain.Notification `json:"notification,omitempty"`
}

func (t FrameType) IsWrite() bool {
	switch t {
	case TypeSet, TypeMerge, TypeUpdate, TypeAdd:
		return true
	}
	return false
}

type Filter struct {
	Field string  `json:"field"`
	Op    port.Op `json:"op"`
	Value any     `json:"value"`
}

type Query struct {
	Collection string   `json:"collection"`
	Filters    []Filter `json:"filters,omitempty"`
	OrderBy    string   `json:"orderBy,omitempty"`
	Descending bool     `json:"descending,omitempty"`
}

func FromQuery(q port.Query) *Query {
	out := &Query{
		Collection: q.Collection,
		OrderBy:    q.OrderBy,
		Descending: q.Descending,
	}
	for _, f := range q.Filters {
		out.Filters = append(out.Filters, Filter{Field: f.Field, Op: f.Op, Value: f.Value})
	}
	return out
}

func (q *Query) Port() port.Query {
	out := port.NewQuery(q.Collection).Order(q.OrderBy, q.Descending)
	for _, f := range q.Filters {
		out = out.Where(f.Field, f.Op, f.Value)
	}
	return out
}

type Document struct {
	ID     string         `json:"id"`
	Path   string         `json:"path"`
	Exists bool           `json:"exists"`
	Data   map[string]any `json:"data,omitempty"`
}

func FromDocument(d port.Document) Document {
	return Document{ID: d.ID, Path: d.Path, Exists: d.Exists, Data: d.Data}
}

func (d Document) Port() port.Document {
	return port.Document{ID: d.ID, Path: d.Path, Exists: d.Exists, Data: d.Data}
}

type Change struct {
	Kind string   `json:"kind"`
	Doc  Document `json:"doc"`
}

func FromChanges(changes []port.Change) []Change {
	out := make([]Change, len(changes))
	for i, c := range changes {
		out[i] = Change{Kind: c.Kind.String(), Doc: FromDocument(c.Doc)}
	}
	return out
}

func PortChanges(changes []Change) []port.Change {
	out := make([]port.Change, len(changes))
	for i, c := range changes {
		kind := port.ChangeModified
		switch c.Kind {
		case "added":
			kind = port.ChangeAdded
		case "removed":
			kind = port.ChangeRemoved
		}
		out[i] = port.Change{Kind: kind, Doc: c.Doc.Port()}
	}
	return out
}
