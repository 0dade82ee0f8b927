package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/matej-benes/mos-family-c/internal/core/domain"
)

type sendMessageRequest struct {
	Text string `json:"text"`
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	self := currentUser(r)
	other := domain.UserID(chi.URLParam(r, "userID"))
	if !h.mayChat(w, r, self, other) {
		return
	}
	msgs, err := h.chat.History(r.Context(), self, other)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	msg, err := h.chat.SendMessage(r.Context(), currentUser(r), domain.UserID(chi.URLParam(r, "userID")), req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// mayChat applies the contact policy to reads too, so a revoked contact
// also loses the history.
func (h *Handler) mayChat(w http.ResponseWriter, r *http.Request, self domain.User, otherID domain.UserID) bool {
	other, err := h.dir.GetUser(r.Context(), otherID)
	if err != nil {
		writeError(w, err)
		return false
	}
	if !self.CanContact(other) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": domain.ErrPermissionDenied.Error()})
		return false
	}
	return true
}
