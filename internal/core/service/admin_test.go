package service

import (
	"context"
	"testing"

	"github.com/matej-benes/mos-family-c/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	mom     = domain.User{ID: "mom", Name: "Mom", Role: domain.RoleSuperAdmin}
	big     = domain.User{ID: "big", Name: "Big", Role: domain.RoleOlderSibling}
	kid     = domain.User{ID: "kid", Name: "Kid", Role: domain.RoleYoungerSibling}
	grandma = domain.User{ID: "grandma", Name: "Grandma", Role: domain.RoleOther}
)

func TestSetBedtime(t *testing.T) {
	store := newTestStore(t)
	seedFamily(t, store)
	admin := NewAdminService(store)
	dir := NewDirectory(store)
	ctx := context.Background()

	require.NoError(t, admin.SetBedtime(ctx, big, "kid", "21:30"))
	u, err := dir.GetUser(ctx, "kid")
	require.NoError(t, err)
	assert.Equal(t, "21:30", u.Bedtime)

	assert.ErrorIs(t, admin.SetBedtime(ctx, big, "kid", "late"), domain.ErrInvalid)

	require.NoError(t, admin.SetBedtime(ctx, mom, "kid", ""))
	u, err = dir.GetUser(ctx, "kid")
	require.NoError(t, err)
	assert.Empty(t, u.Bedtime)
}

func TestAdminDenialWritesNothing(t *testing.T) {
	store := newTestStore(t)
	seedFamily(t, store)
	admin := NewAdminService(store)
	ctx := context.Background()

	before, err := store.Get(ctx, "users/big")
	require.NoError(t, err)

	assert.ErrorIs(t, admin.SetBedtime(ctx, kid, "big", "20:00"), domain.ErrPermissionDenied)
	assert.ErrorIs(t, admin.SetManualLock(ctx, grandma, "big", true, "no"), domain.ErrPermissionDenied)
	assert.ErrorIs(t, admin.AddApprovals(ctx, kid, "kid", []domain.App{domain.AppCalendar}, nil), domain.ErrPermissionDenied)

	after, err := store.Get(ctx, "users/big")
	require.NoError(t, err)
	assert.Equal(t, before.Data, after.Data)

	mine, err := store.Get(ctx, "users/kid")
	require.NoError(t, err)
	assert.NotContains(t, mine.Data["approvals"], "apps")
}

func TestOlderSiblingCannotTouchSuperadmin(t *testing.T) {
	store := newTestStore(t)
	seedFamily(t, store)
	admin := NewAdminService(store)
	ctx := context.Background()

	assert.ErrorIs(t, admin.SetManualLock(ctx, big, "mom", true, ""), domain.ErrPermissionDenied)
	assert.ErrorIs(t, admin.SetBedtime(ctx, big, "mom", "20:00"), domain.ErrPermissionDenied)
	require.NoError(t, admin.SetBedtime(ctx, mom, "big", "23:00"))
}

func TestApprovals(t *testing.T) {
	store := newTestStore(t)
	seedFamily(t, store)
	admin := NewAdminService(store)
	dir := NewDirectory(store)
	ctx := context.Background()

	require.NoError(t, admin.AddApprovals(ctx, big, "kid", []domain.App{domain.AppCalendar}, []domain.UserID{"grandma", "mom"}))
	u, err := dir.GetUser(ctx, "kid")
	require.NoError(t, err)
	assert.Equal(t, []domain.App{domain.AppCalendar}, u.Approvals.Apps)
	assert.Equal(t, []domain.UserID{"mom", "grandma"}, u.Approvals.Contacts)
	assert.True(t, u.CanContact(grandma))

	require.NoError(t, admin.RemoveApprovals(ctx, big, "kid", nil, []domain.UserID{"mom"}))
	u, err = dir.GetUser(ctx, "kid")
	require.NoError(t, err)
	assert.Equal(t, []domain.UserID{"grandma"}, u.Approvals.Contacts)
	assert.Equal(t, []domain.App{domain.AppCalendar}, u.Approvals.Apps)

	assert.ErrorIs(t, admin.AddApprovals(ctx, big, "nobody", []domain.App{domain.AppCalendar}, nil), domain.ErrNotFound)
}

func TestManualLock(t *testing.T) {
	store := newTestStore(t)
	seedFamily(t, store)
	admin := NewAdminService(store)
	dir := NewDirectory(store)
	ctx := context.Background()

	require.NoError(t, admin.SetManualLock(ctx, big, "kid", true, "  Dinner time "))
	u, err := dir.GetUser(ctx, "kid")
	require.NoError(t, err)
	assert.True(t, u.IsManuallyLocked)
	assert.Equal(t, "Dinner time", u.ManualLockMessage)

	require.NoError(t, admin.SetManualLock(ctx, big, "kid", false, "ignored"))
	u, err = dir.GetUser(ctx, "kid")
	require.NoError(t, err)
	assert.False(t, u.IsManuallyLocked)
	assert.Empty(t, u.ManualLockMessage)
}

func TestGameMode(t *testing.T) {
	store := newTestStore(t)
	admin := NewAdminService(store)
	dir := NewDirectory(store)
	ctx := context.Background()

	_, err := admin.ToggleGameMode(ctx, kid)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	_, err = store.Get(ctx, domain.GameStatePath)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	mode, err := admin.ToggleGameMode(ctx, big)
	require.NoError(t, err)
	assert.Equal(t, domain.GamePlaying, mode)

	mode, err = admin.ToggleGameMode(ctx, mom)
	require.NoError(t, err)
	assert.Equal(t, domain.GameNotPlaying, mode)

	require.NoError(t, admin.SetGameMode(ctx, mom, domain.GamePlaying))
	g, err := dir.GameState(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.GamePlaying, g.Mode)

	assert.ErrorIs(t, admin.SetGameMode(ctx, mom, "paused"), domain.ErrInvalid)
}

func TestSetWallpaper(t *testing.T) {
	store := newTestStore(t)
	admin := NewAdminService(store)
	dir := NewDirectory(store)
	ctx := context.Background()

	assert.ErrorIs(t, admin.SetWallpaper(ctx, big, "https://example.com/a.png"), domain.ErrPermissionDenied)
	require.NoError(t, admin.SetWallpaper(ctx, mom, "https://example.com/a.png"))
	s, err := dir.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a.png", s.WallpaperURL)

	require.NoError(t, admin.SetWallpaper(ctx, mom, " "))
	s, err = dir.Settings(ctx)
	require.NoError(t, err)
	assert.Empty(t, s.WallpaperURL)
}

func TestCreateUser(t *testing.T) {
	store := newTestStore(t)
	admin := NewAdminService(store)
	auth := NewAuthService(store, nil)
	ctx := context.Background()

	_, err := admin.CreateUser(ctx, big, "Baby", "1111", domain.RoleYoungerSibling)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	_, err = admin.CreateUser(ctx, mom, "Baby", "1111", domain.Role("pet"))
	assert.ErrorIs(t, err, domain.ErrInvalid)
	_, err = admin.CreateUser(ctx, mom, " ", "1111", domain.RoleYoungerSibling)
	assert.ErrorIs(t, err, domain.ErrInvalid)
	_, err = admin.CreateUser(ctx, mom, "Baby", "11", domain.RoleYoungerSibling)
	assert.ErrorIs(t, err, domain.ErrInvalid)

	u, err := admin.CreateUser(ctx, mom, " Baby ", "1111", domain.RoleYoungerSibling)
	require.NoError(t, err)
	assert.Equal(t, "Baby", u.Name)
	assert.Empty(t, u.PIN)

	doc, err := store.Get(ctx, domain.UserPath(u.ID))
	require.NoError(t, err)
	assert.NotEqual(t, "1111", doc.Data["pin"])
	assert.NotContains(t, doc.Data, "id")

	logged, err := auth.Authenticate(ctx, domain.Credentials{UserID: u.ID, PIN: "1111"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, logged.ID)
}

func TestBootstrapRunsOnce(t *testing.T) {
	store := newTestStore(t)
	admin := NewAdminService(store)
	ctx := context.Background()

	created, err := admin.Bootstrap(ctx, "Mom", "9999")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = admin.Bootstrap(ctx, "Mom", "9999")
	require.NoError(t, err)
	assert.False(t, created)

	users, err := NewDirectory(store).ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, domain.RoleSuperAdmin, users[0].Role)
}
