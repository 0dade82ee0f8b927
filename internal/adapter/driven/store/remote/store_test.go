package remote

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/matej-benes/mos-family-c/internal/adapter/driven/gateway/ws"
	"github.com/matej-benes/mos-family-c/internal/adapter/driven/store/memory"
	httpapi "github.com/matej-benes/mos-family-c/internal/adapter/driving/http"
	"github.com/matej-benes/mos-family-c/internal/core/domain"
	"github.com/matej-benes/mos-family-c/internal/core/port"
	"github.com/matej-benes/mos-family-c/internal/core/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type server struct {
	*httptest.Server
	store *memory.Store
	hub   *ws.Hub
}

func newServer(t *testing.T) *server {
	t.Helper()
	store := memory.NewStore()
	t.Cleanup(store.Close)

	hash, err := service.HashPIN("1234")
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "users/mom", map[string]any{"name": "Mom", "role": "superadmin", "pin": hash}))
	require.NoError(t, store.Set(ctx, "users/kid", map[string]any{
		"name": "Kid", "role": "younger-sibling", "pin": hash,
		"approvals": map[string]any{"contacts": []any{"mom"}},
	}))

	hub := ws.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	h := httpapi.NewHandler(httpapi.Dependencies{
		Store:  store,
		Auth:   service.NewAuthService(store, nil),
		Admin:  service.NewAdminService(store),
		Chat:   service.NewChatService(store),
		Hub:    hub,
		Tokens: httpapi.NewTokenIssuer("secret", time.Hour, nil),
	})
	srv := httptest.NewServer(h.NewRouter())
	t.Cleanup(srv.Close)
	return &server{Server: srv, store: store, hub: hub}
}

func (s *server) connect(t *testing.T, userID domain.UserID, opts ...Option) *Store {
	t.Helper()
	auth := NewAuthenticator(s.URL, s.Client())
	_, err := auth.Authenticate(context.Background(), domain.Credentials{UserID: userID, PIN: "1234"})
	require.NoError(t, err)

	store, err := Dial(context.Background(), s.URL, auth.Token(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

type docRecorder struct {
	mu   sync.Mutex
	docs []port.Document
	errs []error
}

func (r *docRecorder) listen(doc port.Document, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.errs = append(r.errs, err)
		return
	}
	r.docs = append(r.docs, doc)
}

func (r *docRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.docs)
}

func (r *docRecorder) last() port.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.docs[len(r.docs)-1]
}

func (r *docRecorder) failures() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func TestRelayURL(t *testing.T) {
	tests := map[string]string{
		"http://home.lan:8080":    "ws://home.lan:8080/ws",
		"https://family.example/": "wss://family.example/ws",
		"ws://10.0.0.2":           "ws://10.0.0.2/ws",
	}
	for in, want := range tests {
		got, err := relayURL(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := relayURL("ftp://home.lan")
	assert.ErrorIs(t, err, domain.ErrInvalid)
}

func TestAuthenticator(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()
	auth := NewAuthenticator(srv.URL+"/", srv.Client())

	_, err := auth.Authenticate(ctx, domain.Credentials{UserID: "kid", PIN: "0000"})
	assert.ErrorIs(t, err, domain.ErrAuthFailure)
	assert.Empty(t, auth.Token())

	u, err := auth.Authenticate(ctx, domain.Credentials{UserID: "kid", PIN: "1234", DeviceID: "tablet-1"})
	require.NoError(t, err)
	assert.Equal(t, "Kid", u.Name)
	assert.Empty(t, u.PIN)
	assert.NotEmpty(t, auth.Token())

	require.NoError(t, auth.UnlinkDevice(ctx, "tablet-1"))
	assert.Empty(t, auth.Token())
	dev, err := srv.store.Get(ctx, domain.DevicePath("tablet-1"))
	require.NoError(t, err)
	assert.NotNil(t, dev.Data["lastUnlinkedTimestamp"])

	require.NoError(t, auth.UnlinkDevice(ctx, "tablet-1"))
}

func TestDialRejectsBadToken(t *testing.T) {
	srv := newServer(t)
	_, err := Dial(context.Background(), srv.URL, "garbage")
	assert.ErrorIs(t, err, domain.ErrAuthFailure)
}

func TestRequestsCrossTheRelay(t *testing.T) {
	srv := newServer(t)
	kid := srv.connect(t, "kid")
	ctx := context.Background()

	doc, err := kid.Get(ctx, "users/mom")
	require.NoError(t, err)
	assert.True(t, doc.Exists)
	assert.Equal(t, "Mom", doc.Data["name"])
	assert.NotContains(t, doc.Data, "pin")

	_, err = kid.Get(ctx, domain.GameStatePath)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = kid.Get(ctx, "devices/tablet-1")
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	assert.ErrorIs(t, kid.Set(ctx, "users/kid", map[string]any{"role": "superadmin"}), domain.ErrPermissionDenied)

	id, err := kid.Add(ctx, domain.CallsCollection, map[string]any{
		"callerId": "kid", "calleeId": "mom", "callerName": "Kid", "status": "pending",
		"createdAt": port.ServerTimestamp,
	})
	require.NoError(t, err)
	stored, err := srv.store.Get(ctx, domain.CallPath(domain.CallID(id)))
	require.NoError(t, err)
	assert.IsType(t, time.Time{}, stored.Data["createdAt"])

	require.NoError(t, kid.Update(ctx, domain.CallPath(domain.CallID(id)), map[string]any{
		"offer": map[string]any{"type": "offer", "sdp": "v=0"},
	}))
	docs, err := kid.Query(ctx, port.NewQuery(domain.CallsCollection).Where("callerId", port.OpEqual, "kid"))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	call, err := port.Decode[domain.Call](docs[0].Data)
	require.NoError(t, err)
	require.NotNil(t, call.Offer)
	assert.Equal(t, "v=0", call.Offer.SDP)
	assert.NotNil(t, call.CreatedAt)
}

func TestWatchOverTheRelay(t *testing.T) {
	srv := newServer(t)
	kid := srv.connect(t, "kid")
	ctx := context.Background()

	rec := &docRecorder{}
	unsub, err := kid.WatchDocument(ctx, domain.GameStatePath, rec.listen)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rec.count() == 1 }, waitFor, tick)
	assert.False(t, rec.last().Exists)

	require.NoError(t, srv.store.Set(ctx, domain.GameStatePath, map[string]any{"mode": "playing"}))
	require.Eventually(t, func() bool { return rec.count() == 2 }, waitFor, tick)
	assert.True(t, rec.last().Exists)
	assert.Equal(t, "playing", rec.last().Data["mode"])

	unsub()
	unsub()
	require.NoError(t, srv.store.Set(ctx, domain.GameStatePath, map[string]any{"mode": "not-playing"}))
	assert.Never(t, func() bool { return rec.count() > 2 }, 100*time.Millisecond, tick)

	var mu sync.Mutex
	var kinds []port.ChangeKind
	_, err = kid.WatchQuery(ctx, port.NewQuery(domain.UsersCollection), func(changes []port.Change, err error) {
		assert.NoError(t, err)
		mu.Lock()
		defer mu.Unlock()
		for _, c := range changes {
			assert.NotContains(t, c.Doc.Data, "pin")
			kinds = append(kinds, c.Kind)
		}
	})
	require.NoError(t, err)
	require.NoError(t, srv.store.Update(ctx, "users/kid", map[string]any{"bedtime": "20:00"}))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(kinds) == 3
	}, waitFor, tick)
	mu.Lock()
	assert.Equal(t, []port.ChangeKind{port.ChangeAdded, port.ChangeAdded, port.ChangeModified}, kinds)
	mu.Unlock()

	_, err = kid.WatchDocument(ctx, "devices/tablet-1", rec.listen)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
}

func TestWatchEndsWithContext(t *testing.T) {
	srv := newServer(t)
	kid := srv.connect(t, "kid")

	ctx, cancel := context.WithCancel(context.Background())
	rec := &docRecorder{}
	_, err := kid.WatchDocument(ctx, domain.GameStatePath, rec.listen)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rec.count() == 1 }, waitFor, tick)

	cancel()
	require.Eventually(t, func() bool {
		kid.mu.Lock()
		defer kid.mu.Unlock()
		return len(kid.subs) == 0
	}, waitFor, tick)
	require.NoError(t, srv.store.Set(context.Background(), domain.GameStatePath, map[string]any{"mode": "playing"}))
	assert.Never(t, func() bool { return rec.count() > 1 }, 100*time.Millisecond, tick)
}

func TestNotificationsArrive(t *testing.T) {
	srv := newServer(t)
	got := make(chan domain.Notification, 1)
	srv.connect(t, "kid", WithNotificationHandler(func(n domain.Notification) { got <- n }))
	require.Eventually(t, func() bool { return srv.hub.Connected("kid") == 1 }, waitFor, tick)

	require.NoError(t, srv.hub.Push(context.Background(), domain.User{ID: "kid"}, domain.Notification{
		Kind: domain.NotifyIncomingCall, Title: "Incoming call", Data: map[string]string{"callId": "c1"},
	}))
	select {
	case n := <-got:
		assert.Equal(t, domain.NotifyIncomingCall, n.Kind)
		assert.Equal(t, "c1", n.Data["callId"])
	case <-time.After(waitFor):
		t.Fatal("notification not delivered")
	}
}

func TestServerDisconnectFailsClosed(t *testing.T) {
	srv := newServer(t)
	kid := srv.connect(t, "kid")
	ctx := context.Background()

	rec := &docRecorder{}
	_, err := kid.WatchDocument(ctx, domain.UserPath("kid"), rec.listen)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rec.count() == 1 }, waitFor, tick)

	srv.hub.Stop()

	select {
	case <-kid.Done():
	case <-time.After(waitFor):
		t.Fatal("store did not notice the disconnect")
	}
	require.Eventually(t, func() bool { return len(rec.failures()) == 1 }, waitFor, tick)
	assert.ErrorIs(t, rec.failures()[0], ErrDisconnected)
	assert.ErrorIs(t, rec.failures()[0], domain.ErrSignaling)

	_, err = kid.Get(ctx, "users/mom")
	assert.ErrorIs(t, err, ErrDisconnected)
	_, err = kid.WatchDocument(ctx, domain.GameStatePath, rec.listen)
	assert.ErrorIs(t, err, ErrDisconnected)
}

func TestCloseIsIdempotent(t *testing.T) {
	srv := newServer(t)
	kid := srv.connect(t, "kid")

	require.NoError(t, kid.Close())
	require.NoError(t, kid.Close())
	_, err := kid.Get(context.Background(), "users/kid")
	assert.ErrorIs(t, err, ErrDisconnected)
}
