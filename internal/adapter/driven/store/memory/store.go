package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/matej-benes/mos-family-c/internal/core/domain"
	"github.com/matej-benes/mos-family-c/internal/core/port"
	"github.com/matej-benes/mos-family-c/internal/eventloop"
)

type entry struct {
	data map[string]any
	seq  uint64
}

type watcher struct {
	active atomic.Bool

	path    string
	docFn   port.DocumentListener
	query   *port.Query
	queryFn port.QueryListener
	members map[string]bool
}

// Store is an in-process port.DocumentStore. Listeners are invoked one at
// a time from a single delivery goroutine, in write order.
type Store struct {
	mu       sync.Mutex
	docs     map[string]*entry
	seq      uint64
	watchers map[uint64]*watcher
	nextW    uint64

	now   func() time.Time
	newID func() string

	events *eventloop.Loop
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		docs:     make(map[string]*entry),
		watchers: make(map[uint64]*watcher),
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
		events:   eventloop.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.events.Run()
	return s
}

// Close stops event delivery once the events already queued are out.
func (s *Store) Close() {
	s.events.Stop()
}

func (s *Store) Get(ctx context.Context, path string) (port.Document, error) {
	if err := checkDocPath(ctx, path); err != nil {
		return port.Document{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.docs[path]
	if !ok {
		return port.Document{}, fmt.Errorf("%s: %w", path, domain.ErrNotFound)
	}
	return copyDocument(snapshot(path, e)), nil
}

func (s *Store) Query(ctx context.Context, q port.Query) ([]port.Document, error) {
	if err := checkCollectionPath(ctx, q.Collection); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runQuery(q), nil
}

func (s *Store) Set(ctx context.Context, path string, data map[string]any) error {
	if err := checkDocPath(ctx, path); err != nil {
		return err
	}
	return s.write(path, func(_ map[string]any, _ bool) (map[string]any, error) {
		return mergeInto(map[string]any{}, data, s.now()), nil
	})
}

func (s *Store) Merge(ctx context.Context, path string, data map[string]any) error {
	if err := checkDocPath(ctx, path); err != nil {
		return err
	}
	return s.write(path, func(old map[string]any, _ bool) (map[string]any, error) {
		return mergeInto(deepCopyMap(old), data, s.now()), nil
	})
}

func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	if err := checkDocPath(ctx, path); err != nil {
		return err
	}
	return s.write(path, func(old map[string]any, exists bool) (map[string]any, error) {
		if !exists {
			return nil, fmt.Errorf("%s: %w", path, domain.ErrNotFound)
		}
		next := deepCopyMap(old)
		now := s.now()
		for key, value := range fields {
			setPath(next, strings.Split(key, "."), value, now)
		}
		return next, nil
	})
}

func (s *Store) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	if err := checkCollectionPath(ctx, collection); err != nil {
		return "", err
	}
	id := s.newID()
	err := s.write(collection+"/"+id, func(_ map[string]any, _ bool) (map[string]any, error) {
		return mergeInto(map[string]any{}, data, s.now()), nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) WatchDocument(ctx context.Context, path string, fn port.DocumentListener) (port.Unsubscribe, error) {
	if err := checkDocPath(ctx, path); err != nil {
		return nil, err
	}
	w := &watcher{path: path, docFn: fn}
	w.active.Store(true)

	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.addWatcher(w)
	doc := port.Document{ID: lastSegment(path), Path: path}
	if e, ok := s.docs[path]; ok {
		doc = snapshot(path, e)
	}
	s.deliverDoc(w, doc)
	unsub := s.unsubscriber(id, w)
	context.AfterFunc(ctx, unsub)
	return unsub, nil
}

func (s *Store) WatchQuery(ctx context.Context, q port.Query, fn port.QueryListener) (port.Unsubscribe, error) {
	if err := checkCollectionPath(ctx, q.Collection); err != nil {
		return nil, err
	}
	qc := q
	w := &watcher{query: &qc, queryFn: fn, members: make(map[string]bool)}
	w.active.Store(true)

	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.addWatcher(w)
	docs := s.runQuery(q)
	changes := make([]port.Change, 0, len(docs))
	for _, d := range docs {
		w.members[d.Path] = true
		changes = append(changes, port.Change{Kind: port.ChangeAdded, Doc: d})
	}
	s.deliverChanges(w, changes)
	unsub := s.unsubscriber(id, w)
	context.AfterFunc(ctx, unsub)
	return unsub, nil
}

func (s *Store) addWatcher(w *watcher) uint64 {
	s.nextW++
	s.watchers[s.nextW] = w
	return s.nextW
}

func (s *Store) unsubscriber(id uint64, w *watcher) port.Unsubscribe {
	return func() {
		w.active.Store(false)
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}

// write applies fn to the document at path and queues notifications while
// still holding the lock, so listeners observe writes in order.
func (s *Store) write(path string, fn func(old map[string]any, exists bool) (map[string]any, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.docs[path]
	var old map[string]any
	if exists {
		old = e.data
	}
	next, err := fn(old, exists)
	if err != nil {
		return err
	}
	if exists {
		e.data = next
	} else {
		s.seq++
		e = &entry{data: next, seq: s.seq}
		s.docs[path] = e
	}
	s.notify(path, e)
	return nil
}

func (s *Store) notify(path string, e *entry) {
	doc := snapshot(path, e)
	parent := parentPath(path)

	for _, w := range s.watchers {
		if w.query == nil {
			if w.path == path {
				s.deliverDoc(w, doc)
			}
			continue
		}
		if w.query.Collection != parent {
			continue
		}
		was := w.members[path]
		now := matches(doc.Data, w.query.Filters)
		var kind port.ChangeKind
		switch {
		case now && !was:
			kind = port.ChangeAdded
			w.members[path] = true
		case now && was:
			kind = port.ChangeModified
		case !now && was:
			kind = port.ChangeRemoved
			delete(w.members, path)
		default:
			continue
		}
		s.deliverChanges(w, []port.Change{{Kind: kind, Doc: doc}})
	}
}

func (s *Store) deliverDoc(w *watcher, doc port.Document) {
	s.events.Post(func() {
		if w.active.Load() {
			w.docFn(copyDocument(doc), nil)
		}
	})
}

func (s *Store) deliverChanges(w *watcher, changes []port.Change) {
	s.events.Post(func() {
		if !w.active.Load() {
			return
		}
		out := make([]port.Change, len(changes))
		for i, c := range changes {
			out[i] = port.Change{Kind: c.Kind, Doc: copyDocument(c.Doc)}
		}
		w.queryFn(out, nil)
	})
}

func (s *Store) runQuery(q port.Query) []port.Document {
	type hit struct {
		doc port.Document
		seq uint64
	}
	var hits []hit
	for path, e := range s.docs {
		if parentPath(path) != q.Collection || !matches(e.data, q.Filters) {
			continue
		}
		hits = append(hits, hit{doc: snapshot(path, e), seq: e.seq})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if q.OrderBy != "" {
			a, _ := lookup(hits[i].doc.Data, q.OrderBy)
			b, _ := lookup(hits[j].doc.Data, q.OrderBy)
			if c := compare(a, b); c != 0 {
				if q.Descending {
					return c > 0
				}
				return c < 0
			}
		}
		return hits[i].seq < hits[j].seq
	})
	docs := make([]port.Document, len(hits))
	for i, h := range hits {
		docs[i] = copyDocument(h.doc)
	}
	return docs
}

func snapshot(path string, e *entry) port.Document {
	return port.Document{
		ID:     lastSegment(path),
		Path:   path,
		Exists: true,
		Data:   e.data,
	}
}

func copyDocument(d port.Document) port.Document {
	d.Data = deepCopyMap(d.Data)
	return d
}
