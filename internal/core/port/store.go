package port

import (
	"context"
	"encoding/json"
	"fmt"
)

// Document is a snapshot of one stored record. Exists is false for a
// watched document that was never written.
type Document struct {
	ID     string
	Path   string
	Exists bool
	Data   map[string]any
}

type ChangeKind int

const (
	ChangeAdded ChangeKind = iota
	ChangeModified
	ChangeRemoved
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "added"
	case ChangeModified:
		return "modified"
	case ChangeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

type Change struct {
	Kind ChangeKind
	Doc  Document
}

type Op string

const (
	OpEqual         Op = "=="
	OpNotEqual      Op = "!="
	OpArrayContains Op = "array-contains"
	OpIn            Op = "in"
)

type Filter struct {
	Field string
	Op    Op
	Value any
}

// Query selects documents of a single collection.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Descending bool
}

func NewQuery(collection string) Query {
	return Query{Collection: collection}
}

func (q Query) Where(field string, op Op, value any) Query {
	filters := make([]Filter, len(q.Filters), len(q.Filters)+1)
	copy(filters, q.Filters)
	q.Filters = append(filters, Filter{Field: field, Op: op, Value: value})
	return q
}

func (q Query) Order(field string, descending bool) Query {
	q.OrderBy = field
	q.Descending = descending
	return q
}

// Unsubscribe stops a watch. It is safe to call more than once.
type Unsubscribe func()

type DocumentListener func(doc Document, err error)

// QueryListener receives the initial result set as ChangeAdded entries and
// incremental changes afterwards.
type QueryListener func(changes []Change, err error)

// DocumentStore is the reactive document store the clients and the server
// share. Writes may carry Transform values anywhere in their data.
type DocumentStore interface {
	Get(ctx context.Context, path string) (Document, error)
	Query(ctx context.Context, q Query) ([]Document, error)
	Set(ctx context.Context, path string, data map[string]any) error
	Merge(ctx context.Context, path string, data map[string]any) error
	// Update fails with domain.ErrNotFound for a missing document.
	// Keys may be dotted field paths.
	Update(ctx context.Context, path string, fields map[string]any) error
	Add(ctx context.Context, collection string, data map[string]any) (string, error)
	WatchDocument(ctx context.Context, path string, fn DocumentListener) (Unsubscribe, error)
	WatchQuery(ctx context.Context, q Query, fn QueryListener) (Unsubscribe, error)
}

// Decode converts stored data into a typed record.
func Decode[T any](data map[string]any) (T, error) {
	var v T
	raw, err := json.Marshal(data)
	if err != nil {
		return v, fmt.Errorf("encode document: %w", err)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode document: %w", err)
	}
	return v, nil
}

// Encode converts a typed record into storable data.
func Encode(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return data, nil
}
