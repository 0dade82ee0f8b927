package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/matej-benes/mos-family-c/internal/core/domain"
	"github.com/matej-benes/mos-family-c/internal/core/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 14, 20, 30, 0, 0, time.UTC)

func newStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(WithClock(func() time.Time { return fixedNow }))
	t.Cleanup(s.Close)
	return s
}

// recorder collects listener calls from the delivery goroutine.
type recorder[T any] struct {
	mu     sync.Mutex
	events []T
}

func (r *recorder[T]) add(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, v)
}

func (r *recorder[T]) all() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.events...)
}

func (r *recorder[T]) len() int {
	return len(r.all())
}

func TestGetMissingDocument(t *testing.T) {
	s := newStore(t)
	_, err := s.Get(context.Background(), "users/nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPathValidation(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.Set(ctx, "users", map[string]any{}), domain.ErrInvalid)
	assert.ErrorIs(t, s.Set(ctx, "users//x", map[string]any{}), domain.ErrInvalid)
	_, err := s.Add(ctx, "users/u1", map[string]any{})
	assert.ErrorIs(t, err, domain.ErrInvalid)
}

func TestSetReplacesAndMergeCombines(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "devices/d1", map[string]any{"a": "1", "b": "2"}))
	require.NoError(t, s.Merge(ctx, "devices/d1", map[string]any{"b": "3", "c": "4"}))
	doc, err := s.Get(ctx, "devices/d1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "1", "b": "3", "c": "4"}, doc.Data)

	require.NoError(t, s.Set(ctx, "devices/d1", map[string]any{"z": "9"}))
	doc, _ = s.Get(ctx, "devices/d1")
	assert.Equal(t, map[string]any{"z": "9"}, doc.Data)
}

func TestUpdateRequiresExistingDocument(t *testing.T) {
	s := newStore(t)
	err := s.Update(context.Background(), "calls/missing", map[string]any{"status": "ended"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateDottedKeysAndTransforms(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "users/u1", map[string]any{
		"name":    "Kid",
		"bedtime": "20:00",
		"approvals": map[string]any{
			"contacts": []any{"u2"},
		},
	}))
	require.NoError(t, s.Update(ctx, "users/u1", map[string]any{
		"approvals.contacts": port.ArrayUnion("u2", "u3"),
		"approvals.apps":     port.ArrayUnion("calendar"),
		"bedtime":            port.DeleteField,
		"lastSeen":           port.ServerTimestamp,
	}))

	doc, err := s.Get(ctx, "users/u1")
	require.NoError(t, err)
	approvals := doc.Data["approvals"].(map[string]any)
	assert.Equal(t, []any{"u2", "u3"}, approvals["contacts"])
	assert.Equal(t, []any{"calendar"}, approvals["apps"])
	assert.NotContains(t, doc.Data, "bedtime")
	assert.Equal(t, fixedNow, doc.Data["lastSeen"])

	require.NoError(t, s.Update(ctx, "users/u1", map[string]any{
		"approvals.contacts": port.ArrayRemove(domain.UserID("u2")),
	}))
	doc, _ = s.Get(ctx, "users/u1")
	assert.Equal(t, []any{"u3"}, doc.Data["approvals"].(map[string]any)["contacts"])
}

func TestStoredDataIsIsolatedFromCallers(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	data := map[string]any{"tags": []any{"a"}}
	require.NoError(t, s.Set(ctx, "chats/x", data))
	data["tags"] = []any{"mutated"}

	doc, _ := s.Get(ctx, "chats/x")
	doc.Data["tags"] = []any{"also mutated"}

	again, _ := s.Get(ctx, "chats/x")
	assert.Equal(t, []any{"a"}, again.Data["tags"])
}

func TestQueryFiltersAndOrder(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	for _, c := range []struct{ id, callee, status, at string }{
		{"c1", "kid", "pending", "b"},
		{"c2", "kid", "ended", "a"},
		{"c3", "mom", "pending", "c"},
		{"c4", "kid", "pending", "a"},
	} {
		require.NoError(t, s.Set(ctx, "calls/"+c.id, map[string]any{
			"calleeId": c.callee, "status": c.status, "at": c.at,
		}))
	}

	docs, err := s.Query(ctx, port.NewQuery("calls").
		Where("calleeId", port.OpEqual, domain.UserID("kid")).
		Where("status", port.OpEqual, "pending").
		Order("at", false))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "c4", docs[0].ID)
	assert.Equal(t, "c1", docs[1].ID)

	docs, err = s.Query(ctx, port.NewQuery("calls").Where("status", port.OpIn, []string{"ended", "declined"}))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "c2", docs[0].ID)
}

func TestQueryArrayContains(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "chats/a_b", map[string]any{"participants": []any{"a", "b"}}))
	require.NoError(t, s.Set(ctx, "chats/b_c", map[string]any{"participants": []any{"b", "c"}}))

	docs, err := s.Query(ctx, port.NewQuery("chats").Where("participants", port.OpArrayContains, "a"))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a_b", docs[0].ID)
}

func TestSubcollectionsAreSeparate(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.Add(ctx, "calls/c1/callerCandidates", map[string]any{"candidate": "x"})
	require.NoError(t, err)

	docs, err := s.Query(ctx, port.NewQuery("calls"))
	require.NoError(t, err)
	assert.Empty(t, docs)

	docs, err = s.Query(ctx, port.NewQuery("calls/c1/callerCandidates"))
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestWatchDocumentDeliversInitialAndUpdates(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	var rec recorder[port.Document]
	unsub, err := s.WatchDocument(ctx, "gameState/global", func(doc port.Document, err error) {
		assert.NoError(t, err)
		rec.add(doc)
	})
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, "gameState/global", map[string]any{"mode": "playing"}))
	require.Eventually(t, func() bool { return rec.len() == 2 }, time.Second, 5*time.Millisecond)

	events := rec.all()
	assert.False(t, events[0].Exists, "initial snapshot of a missing document")
	assert.True(t, events[1].Exists)
	assert.Equal(t, "playing", events[1].Data["mode"])

	unsub()
	unsub()
	require.NoError(t, s.Set(ctx, "gameState/global", map[string]any{"mode": "not-playing"}))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 2, rec.len())
}

func TestWatchQueryTracksMembership(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "calls/old", map[string]any{"calleeId": "kid", "status": "pending"}))

	var rec recorder[port.Change]
	_, err := s.WatchQuery(ctx, port.NewQuery("calls").
		Where("calleeId", port.OpEqual, "kid").
		Where("status", port.OpEqual, "pending"),
		func(changes []port.Change, err error) {
			assert.NoError(t, err)
			for _, c := range changes {
				rec.add(c)
			}
		})
	require.NoError(t, err)

	id, err := s.Add(ctx, "calls", map[string]any{"calleeId": "kid", "status": "pending"})
	require.NoError(t, err)
	require.NoError(t, s.Update(ctx, "calls/"+id, map[string]any{"offer": "sdp"}))
	require.NoError(t, s.Update(ctx, "calls/old", map[string]any{"status": "declined"}))
	require.NoError(t, s.Set(ctx, "calls/other", map[string]any{"calleeId": "mom", "status": "pending"}))

	require.Eventually(t, func() bool { return rec.len() == 4 }, time.Second, 5*time.Millisecond)
	events := rec.all()
	assert.Equal(t, port.ChangeAdded, events[0].Kind)
	assert.Equal(t, "old", events[0].Doc.ID)
	assert.Equal(t, port.ChangeAdded, events[1].Kind)
	assert.Equal(t, id, events[1].Doc.ID)
	assert.Equal(t, port.ChangeModified, events[2].Kind)
	assert.Equal(t, port.ChangeRemoved, events[3].Kind)
	assert.Equal(t, "old", events[3].Doc.ID)
}

func TestWatchStopsWhenContextEnds(t *testing.T) {
	s := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	var rec recorder[port.Document]
	_, err := s.WatchDocument(ctx, "settings/global", func(doc port.Document, err error) {
		rec.add(doc)
	})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rec.len() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.watchers) == 0
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Set(context.Background(), "settings/global", map[string]any{"wallpaperUrl": "x"}))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, rec.len())
}

func TestCancelledContextRejectsOperations(t *testing.T) {
	s := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Get(ctx, "users/u1")
	assert.ErrorIs(t, err, context.Canceled)
}
