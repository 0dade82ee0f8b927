package service

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

type recordingAuth struct {
	port.Authenticator

	mu       sync.Mutex
	unlinked []string
}

func (a *recordingAuth) UnlinkDevice(ctx context.Context, deviceID string) error {
	a.mu.Lock()
	a.unlinked = append(a.unlinked, deviceID)
	a.mu.Unlock()
	return a.Authenticator.UnlinkDevice(ctx, deviceID)
}

func (a *recordingAuth) unlinks() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.unlinked...)
}

func newTestSession(t *testing.T) (*Session, port.DocumentStore, *recordingAuth, *recordingNotifier) {
	t.Helper()
	store := newTestStore(t)
	seedFamily(t, store)
	hash, err := HashPIN("1234")
	require.NoError(t, err)
	require.NoError(t, store.Update(context.Background(), "users/kid", map[string]any{"pin": hash}))

	auth := &recordingAuth{Authenticator: NewAuthService(store, nil)}
	notify := &recordingNotifier{}
	s := NewSession(SessionConfig{
		Store:        store,
		Media:        &fakeMedia{},
		Peers:        &fakePeers{name: "kid"},
		Auth:         auth,
		Notifier:     notify,
		Clock:        newFixedClock(at(12, 0)),
		Location:     time.UTC,
		LockInterval: time.Hour,
		DeviceID:     "tablet-1",
	})
	t.Cleanup(func() { s.Close() })
	return s, store, auth, notify
}

func TestSessionLoginAndLock(t *testing.T) {
	s, store, auth, _ := newTestSession(t)
	ctx := context.Background()

	assert.Equal(t, domain.LockReasonNoUser, s.LockState().Reason)
	assert.Nil(t, s.VisibleApps())

	u, err := s.Login(ctx, "kid", "1234")
	require.NoError(t, err)
	assert.Equal(t, "Kid", u.Name)
	assert.Equal(t, domain.LockReasonGameInactive, s.LockState().Reason)
	assert.Nil(t, s.VisibleApps())

	seed(t, store, domain.GameStatePath, map[string]any{"mode": "playing"})
	require.Eventually(t, func() bool { return !s.LockState().Locked }, waitFor, tick)
	assert.Equal(t, []domain.App{domain.AppCalling, domain.AppMessaging}, s.VisibleApps())
	assert.Equal(t, domain.UserID("kid"), s.User().ID)

	require.NoError(t, s.Logout(ctx))
	assert.Equal(t, domain.LockReasonNoUser, s.LockState().Reason)
	assert.Nil(t, s.User())
	assert.Equal(t, []string{"tablet-1"}, auth.unlinks())

	require.NoError(t, s.Logout(ctx))
	assert.Len(t, auth.unlinks(), 1)

	dev, err := store.Get(ctx, domain.DevicePath("tablet-1"))
	require.NoError(t, err)
	assert.NotNil(t, dev.Data["lastUnlinkedTimestamp"])
}

func TestSessionLoginFailureNotifies(t *testing.T) {
	s, _, _, notify := newTestSession(t)

	_, err := s.Login(context.Background(), "kid", "0000")
	assert.ErrorIs(t, err, domain.ErrAuthFailure)
	assert.Equal(t, 1, notify.count(domain.NotifyError))
	assert.Equal(t, domain.LockReasonNoUser, s.LockState().Reason)
}

func TestSessionLogoutHangsUp(t *testing.T) {
	s, store, _, _ := newTestSession(t)
	ctx := context.Background()

	_, err := s.Login(ctx, "kid", "1234")
	require.NoError(t, err)
	require.NoError(t, s.Calls().StartCall(ctx, "mom"))
	assert.Equal(t, CallOutgoing, s.Calls().State())

	require.NoError(t, s.Logout(ctx))
	assert.Equal(t, CallIdle, s.Calls().State())
	assert.Equal(t, domain.CallEnded, callRecords(t, store)[0].Status)
	assert.ErrorIs(t, s.Calls().StartCall(ctx, "mom"), domain.ErrNotAuthenticated)
}
