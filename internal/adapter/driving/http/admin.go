package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/matej-benes/mos-family-c/internal/core/domain"
)

type createUserRequest struct {
	Name string      `json:"name"`
	PIN  string      `json:"pin"`
	Role domain.Role `json:"role"`
}

type bedtimeRequest struct {
	Bedtime string `json:"bedtime"`
}

type approvalsRequest struct {
	Apps     []domain.App    `json:"apps,omitempty"`
	Contacts []domain.UserID `json:"contacts,omitempty"`
}

type manualLockRequest struct {
	Locked  bool   `json:"locked"`
	Message string `json:"message,omitempty"`
}

type gameRequest struct {
	Mode string `json:"mode"`
}

type wallpaperRequest struct {
	URL string `json:"url"`
}

func targetID(r *http.Request) domain.UserID {
	return domain.UserID(chi.URLParam(r, "userID"))
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	u, err := h.admin.CreateUser(r.Context(), currentUser(r), req.Name, req.PIN, req.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *Handler) setBedtime(w http.ResponseWriter, r *http.Request) {
	var req bedtimeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.admin.SetBedtime(r.Context(), currentUser(r), targetID(r), req.Bedtime); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addApprovals(w http.ResponseWriter, r *http.Request) {
	var req approvalsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.admin.AddApprovals(r.Context(), currentUser(r), targetID(r), req.Apps, req.Contacts); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeApprovals(w http.ResponseWriter, r *http.Request) {
	var req approvalsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.admin.RemoveApprovals(r.Context(), currentUser(r), targetID(r), req.Apps, req.Contacts); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setManualLock(w http.ResponseWriter, r *http.Request) {
	var req manualLockRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.admin.SetManualLock(r.Context(), currentUser(r), targetID(r), req.Locked, req.Message); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setGameMode(w http.ResponseWriter, r *http.Request) {
	var req gameRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	mode, err := domain.ParseGameMode(req.Mode)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.admin.SetGameMode(r.Context(), currentUser(r), mode); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.GameState{Mode: mode})
}

func (h *Handler) toggleGameMode(w http.ResponseWriter, r *http.Request) {
	mode, err := h.admin.ToggleGameMode(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.GameState{Mode: mode})
}

func (h *Handler) setWallpaper(w http.ResponseWriter, r *http.Request) {
	var req wallpaperRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.admin.SetWallpaper(r.Context(), currentUser(r), req.URL); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
