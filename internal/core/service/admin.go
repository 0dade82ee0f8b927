package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/matej-benes/mos-family-c/internal/core/domain"
	"github.com/matej-benes/mos-family-c/internal/core/port"
	"github.com/rs/zerolog/log"
)

// AdminService holds the privileged writes. Every operation checks the
// actor against the capability table before touching the store, and a
// rejected call writes nothing.
type AdminService struct {
	store port.DocumentStore
	dir   *Directory
}

func NewAdminService(store port.DocumentStore) *AdminService {
	return &AdminService{
		store: store,
		dir:   NewDirectory(store),
	}
}

func (s *AdminService) SetBedtime(ctx context.Context, actor domain.User, userID domain.UserID, bedtime string) error {
	if err := s.authorizeTarget(ctx, actor, userID); err != nil {
		return err
	}
	var value any = port.DeleteField
	if bedtime != "" {
		t, err := domain.ParseClockTime(bedtime)
		if err != nil {
			return err
		}
		value = t.String()
	}
	return s.updateUser(ctx, actor, userID, map[string]any{"bedtime": value})
}

func (s *AdminService) AddApprovals(ctx context.Context, actor domain.User, userID domain.UserID, apps []domain.App, contacts []domain.UserID) error {
	if err := s.authorizeTarget(ctx, actor, userID); err != nil {
		return err
	}
	return s.updateUser(ctx, actor, userID, approvalFields(apps, contacts, port.ArrayUnion))
}

func (s *AdminService) RemoveApprovals(ctx context.Context, actor domain.User, userID domain.UserID, apps []domain.App, contacts []domain.UserID) error {
	if err := s.authorizeTarget(ctx, actor, userID); err != nil {
		return err
	}
	return s.updateUser(ctx, actor, userID, approvalFields(apps, contacts, port.ArrayRemove))
}

func (s *AdminService) SetManualLock(ctx context.Context, actor domain.User, userID domain.UserID, locked bool, message string) error {
	if err := s.authorizeTarget(ctx, actor, userID); err != nil {
		return err
	}
	var msg any = port.DeleteField
	if m := strings.TrimSpace(message); locked && m != "" {
		msg = m
	}
	return s.updateUser(ctx, actor, userID, map[string]any{
		"isManuallyLocked":  locked,
		"manualLockMessage": msg,
	})
}

func (s *AdminService) SetGameMode(ctx context.Context, actor domain.User, mode domain.GameMode) error {
	if !actor.Can(domain.CapToggleGame) {
		return domain.Denied(actor.Role, domain.CapToggleGame)
	}
	if _, err := domain.ParseGameMode(string(mode)); err != nil {
		return err
	}
	err := s.store.Merge(ctx, domain.GameStatePath, map[string]any{
		"mode":      string(mode),
		"updatedBy": actor.ID.String(),
		"updatedAt": port.ServerTimestamp,
	})
	if err != nil {
		return fmt.Errorf("set game mode: %w", err)
	}
	log.Info().Str("actor_id", actor.ID.String()).Str("mode", string(mode)).Msg("Game mode changed")
	return nil
}

// ToggleGameMode flips the game state. A missing state counts as not
// playing, so the first toggle starts the game.
func (s *AdminService) ToggleGameMode(ctx context.Context, actor domain.User) (domain.GameMode, error) {
	if !actor.Can(domain.CapToggleGame) {
		return "", domain.Denied(actor.Role, domain.CapToggleGame)
	}
	current, err := s.dir.GameState(ctx)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}
	next := current.Mode.Toggle()
	if err := s.SetGameMode(ctx, actor, next); err != nil {
		return "", err
	}
	return next, nil
}

func (s *AdminService) SetWallpaper(ctx context.Context, actor domain.User, url string) error {
	if !actor.Can(domain.CapManageSettings) {
		return domain.Denied(actor.Role, domain.CapManageSettings)
	}
	var value any = port.DeleteField
	if url = strings.TrimSpace(url); url != "" {
		value = url
	}
	return s.store.Merge(ctx, domain.SettingsPath, map[string]any{"wallpaperUrl": value})
}

func (s *AdminService) CreateUser(ctx context.Context, actor domain.User, name, pin string, role domain.Role) (domain.User, error) {
	if !actor.Can(domain.CapCreateUsers) {
		return domain.User{}, domain.Denied(actor.Role, domain.CapCreateUsers)
	}
	return s.createUser(ctx, name, pin, role)
}

// Bootstrap creates the first superadmin when the directory is empty. It
// reports whether a user was created.
func (s *AdminService) Bootstrap(ctx context.Context, name, pin string) (bool, error) {
	users, err := s.dir.ListUsers(ctx)
	if err != nil {
		return false, err
	}
	if len(users) > 0 {
		return false, nil
	}
	u, err := s.createUser(ctx, name, pin, domain.RoleSuperAdmin)
	if err != nil {
		return false, err
	}
	log.Info().Str("user_id", u.ID.String()).Msg("Bootstrapped superadmin")
	return true, nil
}

func (s *AdminService) createUser(ctx context.Context, name, pin string, role domain.Role) (domain.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.User{}, fmt.Errorf("%w: name is required", domain.ErrInvalid)
	}
	if _, err := domain.ParseRole(string(role)); err != nil {
		return domain.User{}, err
	}
	hash, err := HashPIN(pin)
	if err != nil {
		return domain.User{}, err
	}

	u := domain.User{
		ID:   domain.NewUserID(),
		Name: name,
		PIN:  hash,
		Role: role,
	}
	data, err := port.Encode(u)
	if err != nil {
		return domain.User{}, err
	}
	delete(data, "id")
	if err := s.store.Set(ctx, domain.UserPath(u.ID), data); err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return u.Public(), nil
}

// authorizeTarget requires manage-users and keeps non-superadmins away from
// superadmin records.
func (s *AdminService) authorizeTarget(ctx context.Context, actor domain.User, userID domain.UserID) error {
	if !actor.Can(domain.CapManageUsers) {
		return domain.Denied(actor.Role, domain.CapManageUsers)
	}
	target, err := s.dir.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if target.Role == domain.RoleSuperAdmin && actor.Role != domain.RoleSuperAdmin {
		return fmt.Errorf("%w: only a superadmin may change a superadmin", domain.ErrPermissionDenied)
	}
	return nil
}

func (s *AdminService) updateUser(ctx context.Context, actor domain.User, userID domain.UserID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	if err := s.store.Update(ctx, domain.UserPath(userID), fields); err != nil {
		return fmt.Errorf("update user %s: %w", userID, err)
	}
	log.Info().Str("actor_id", actor.ID.String()).Str("user_id", userID.String()).Int("fields", len(fields)).Msg("User updated")
	return nil
}

func approvalFields(apps []domain.App, contacts []domain.UserID, op func(...any) port.Transform) map[string]any {
	fields := make(map[string]any)
	if len(apps) > 0 {
		values := make([]any, len(apps))
		for i, a := range apps {
			values[i] = string(a)
		}
		fields["approvals.apps"] = op(values...)
	}
	if len(contacts) > 0 {
		values := make([]any, len(contacts))
		for i, c := range contacts {
			values[i] = c.String()
		}
		fields["approvals.contacts"] = op(values...)
	}
	return fields
}
