package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/matej-benes/mos-family-c/internal/adapter/driven/gateway/ws"
	"github.com/matej-benes/mos-family-c/internal/core/port"
	"github.com/matej-benes/mos-family-c/internal/core/service"
)

type Dependencies struct {
	Store     port.DocumentStore
	Auth      *service.AuthService
	Admin     *service.AdminService
	Chat      *service.ChatService
	Hub       *ws.Hub
	Tokens    *TokenIssuer
	Clock     port.Clock
	Location  *time.Location
	StaticDir string
}

type Handler struct {
	store     port.DocumentStore
	auth      *service.AuthService
	admin     *service.AdminService
	chat      *service.ChatService
	dir       *service.Directory
	hub       *ws.Hub
	tokens    *TokenIssuer
	clock     port.Clock
	location  *time.Location
	staticDir string
}

func NewHandler(deps Dependencies) *Handler {
	clock := deps.Clock
	if clock == nil {
		clock = port.SystemClock
	}
	loc := deps.Location
	if loc == nil {
		loc = time.Local
	}
	return &Handler{
		store:     deps.Store,
		auth:      deps.Auth,
		admin:     deps.Admin,
		chat:      deps.Chat,
		dir:       service.NewDirectory(deps.Store),
		hub:       deps.Hub,
		tokens:    deps.Tokens,
		clock:     clock,
		location:  loc,
		staticDir: deps.StaticDir,
	}
}

func (h *Handler) NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.health)
	r.Post("/login", h.login)

	r.Group(func(r chi.Router) {
		r.Use(h.authenticate)

		r.Post("/logout", h.logout)
		r.Get("/ws", h.ServeWS)

		r.Get("/users", h.listUsers)
		r.Get("/contacts", h.contacts)
		r.Route("/me", func(r chi.Router) {
			r.Get("/", h.me)
			r.Get("/lock", h.lockState)
			r.Get("/apps", h.apps)
		})
		r.Route("/chats/{userID}/messages", func(r chi.Router) {
			r.Get("/", h.history)
			r.Post("/", h.sendMessage)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/users", h.createUser)
			r.Route("/users/{userID}", func(r chi.Router) {
				r.Put("/bedtime", h.setBedtime)
				r.Post("/approvals", h.addApprovals)
				r.Delete("/approvals", h.removeApprovals)
				r.Put("/lock", h.setManualLock)
			})
			r.Put("/game", h.setGameMode)
			r.Post("/game/toggle", h.toggleGameMode)
			r.Put("/settings/wallpaper", h.setWallpaper)
		})
	})

	if h.staticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(h.staticDir)))
	}

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
