package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/matej-benes/mos-family-c/internal/core/domain"
	"github.com/matej-benes/mos-family-c/internal/core/service"
)

type loginRequest struct {
	UserID   domain.UserID `json:"userId"`
	PIN      string        `json:"pin"`
	DeviceID string        `json:"deviceId,omitempty"`
}

type LoginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      domain.User `json:"user"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	user, err := h.auth.Authenticate(r.Context(), domain.Credentials{
		UserID:   req.UserID,
		PIN:      req.PIN,
		DeviceID: req.DeviceID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	token, expires, err := h.tokens.Issue(user, req.DeviceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Token: token, ExpiresAt: expires, User: user})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if c := currentClaims(r); c != nil && c.DeviceID != "" {
		if err := h.auth.UnlinkDevice(r.Context(), c.DeviceID); err != nil {
			writeError(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentUser(r))
}

func (h *Handler) evaluate(r *http.Request) (domain.LockState, error) {
	user := currentUser(r)
	game, err := h.dir.GameState(r.Context())
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.LockState{}, err
	}
	return service.EvaluateLock(&user, &game, h.clock.Now().In(h.location)), nil
}

func (h *Handler) lockState(w http.ResponseWriter, r *http.Request) {
	state, err := h.evaluate(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) apps(w http.ResponseWriter, r *http.Request) {
	state, err := h.evaluate(r)
	if err != nil {
		writeError(w, err)
		return
	}
	apps := []domain.App{}
	if !state.Locked {
		apps = domain.VisibleApps(currentUser(r))
	}
	writeJSON(w, http.StatusOK, map[string]any{"apps": apps})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.dir.ListUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]domain.User, len(users))
	for i, u := range users {
		out[i] = u.Public()
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) contacts(w http.ResponseWriter, r *http.Request) {
	users, err := h.chat.Contacts(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}
