package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/matej-benes/mos-family-c/internal/core/domain"
	"github.com/matej-benes/mos-family-c/internal/core/port"
)

// Directory reads users and the shared singletons from the store.
type Directory struct {
	store port.DocumentStore
}

func NewDirectory(store port.DocumentStore) *Directory {
	return &Directory{store: store}
}

func (d *Directory) GetUser(ctx context.Context, id domain.UserID) (domain.User, error) {
	doc, err := d.store.Get(ctx, domain.UserPath(id))
	if err != nil {
		return domain.User{}, fmt.Errorf("user %s: %w", id, err)
	}
	return decodeUser(doc)
}

func (d *Directory) ListUsers(ctx context.Context) ([]domain.User, error) {
	docs, err := d.store.Query(ctx, port.NewQuery(domain.UsersCollection))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]domain.User, 0, len(docs))
	for _, doc := range docs {
		u, err := decodeUser(doc)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

// Contacts lists who self may call or message. Superadmins are never
// listed as contacts.
func (d *Directory) Contacts(ctx context.Context, self domain.User) ([]domain.User, error) {
	users, err := d.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.User
	for _, u := range users {
		if u.Role == domain.RoleSuperAdmin || !self.CanContact(u) {
			continue
		}
		out = append(out, u.Public())
	}
	return out, nil
}

// GameState fails closed: a missing record reads as not playing.
func (d *Directory) GameState(ctx context.Context) (domain.GameState, error) {
	doc, err := d.store.Get(ctx, domain.GameStatePath)
	if err != nil {
		return domain.GameState{Mode: domain.GameNotPlaying}, err
	}
	return port.Decode[domain.GameState](doc.Data)
}

func (d *Directory) Settings(ctx context.Context) (domain.Settings, error) {
	doc, err := d.store.Get(ctx, domain.SettingsPath)
	if err != nil {
		return domain.Settings{}, err
	}
	return port.Decode[domain.Settings](doc.Data)
}

func decodeUser(doc port.Document) (domain.User, error) {
	u, err := port.Decode[domain.User](doc.Data)
	if err != nil {
		return domain.User{}, fmt.Errorf("user %s: %w", doc.ID, err)
	}
	u.ID = domain.UserID(doc.ID)
	return u, nil
}

func decodeCall(doc port.Document) (domain.Call, error) {
	c, err := port.Decode[domain.Call](doc.Data)
	if err != nil {
		return domain.Call{}, fmt.Errorf("call %s: %w", doc.ID, err)
	}
	c.ID = domain.CallID(doc.ID)
	return c, nil
}
