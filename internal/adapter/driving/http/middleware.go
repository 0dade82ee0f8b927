package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/matej-benes/mos-family-c/internal/core/domain"
)

type ctxKey int

const (
	userKey ctxKey = iota
	claimsKey
)

// authenticate resolves the bearer token to a fresh directory record, so
// role changes apply without a new login. Browsers cannot set headers on a
// websocket handshake, hence the query fallback.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, fmt.Errorf("%w: %w", domain.ErrAuthFailure, errNoToken))
			return
		}
		claims, err := h.tokens.Parse(token)
		if err != nil {
			writeError(w, err)
			return
		}
		user, err := h.dir.GetUser(r.Context(), claims.UserID())
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				err = domain.ErrNotAuthenticated
			}
			writeError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), userKey, user.Public())
		ctx = context.WithValue(ctx, claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

func currentUser(r *http.Request) domain.User {
	u, _ := r.Context().Value(userKey).(domain.User)
	return u
}

func currentClaims(r *http.Request) *Claims {
	c, _ := r.Context().Value(claimsKey).(*Claims)
	return c
}
