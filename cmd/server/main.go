package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	firebase "firebase.google.com/go/v4"
	fb "github.com/matej-benes/mos-family-c/internal/adapter/driven/firebase"
	"github.com/matej-benes/mos-family-c/internal/adapter/driven/gateway/ws"
	"github.com/matej-benes/mos-family-c/internal/adapter/driven/notify/fcm"
	"github.com/matej-benes/mos-family-c/internal/adapter/driven/notify/logger"
	"github.com/matej-benes/mos-family-c/internal/adapter/driven/ratelimit/redis"
	"github.com/matej-benes/mos-family-c/internal/adapter/driven/store/firestore"
	"github.com/matej-benes/mos-family-c/internal/adapter/driven/store/memory"
	handler "github.com/matej-benes/mos-family-c/internal/adapter/driving/http"
	"github.com/matej-benes/mos-family-c/internal/config"
	"github.com/matej-benes/mos-family-c/internal/core/port"
	"github.com/matej-benes/mos-family-c/internal/core/service"
	"github.com/matej-benes/mos-family-c/internal/logging"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Setup("info", "console")
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	l := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var app *firebase.App
	if cfg.StoreBackend == config.StoreFirestore || cfg.FCMEnabled {
		app, err = fb.NewApp(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentialsPath)
		if err != nil {
			l.Fatal().Err(err).Msg("Failed to initialise Firebase")
		}
	}

	var store port.DocumentStore
	switch cfg.StoreBackend {
	case config.StoreFirestore:
		fs, err := firestore.NewStore(ctx, app)
		if err != nil {
			l.Fatal().Err(err).Msg("Failed to open Firestore")
		}
		defer fs.Close()
		store = fs
	default:
		mem := memory.NewStore()
		defer mem.Close()
		store = mem
		l.Warn().Msg("Using the in-memory store, data is lost on restart")
	}

	var limiter port.AttemptLimiter
	if cfg.RedisURL != "" {
		client, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			l.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer client.Close()
		limiter = redis.NewLimiter(client, cfg.LoginMaxAttempts, cfg.LoginWindow)
	} else {
		l.Info().Msg("REDIS_URL not set, login attempts are not limited")
	}

	authService := service.NewAuthService(store, limiter)
	adminService := service.NewAdminService(store)
	chatService := service.NewChatService(store)

	if cfg.BootstrapAdminName != "" {
		created, err := adminService.Bootstrap(ctx, cfg.BootstrapAdminName, cfg.BootstrapAdminPIN)
		if err != nil {
			l.Fatal().Err(err).Msg("Failed to bootstrap the first superadmin")
		}
		if created {
			l.Info().Str("name", cfg.BootstrapAdminName).Msg("Created the first superadmin")
		}
	}

	hub := ws.NewHub()
	go hub.Run()
	defer hub.Stop()

	pushers := []port.Pusher{hub}
	if cfg.FCMEnabled {
		pusher, err := fcm.NewPusher(ctx, app)
		if err != nil {
			l.Fatal().Err(err).Msg("Failed to initialise FCM")
		}
		pushers = append(pushers, pusher)
	} else {
		pushers = append(pushers, logger.Pusher{})
	}
	ringer := service.NewRinger(store, port.SystemClock, pushers...)
	stopRinger, err := ringer.Start(ctx)
	if err != nil {
		l.Fatal().Err(err).Msg("Failed to start the ringer")
	}
	defer stopRinger()

	h := handler.NewHandler(handler.Dependencies{
		Store:     store,
		Auth:      authService,
		Admin:     adminService,
		Chat:      chatService,
		Hub:       hub,
		Tokens:    handler.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL, port.SystemClock),
		Clock:     port.SystemClock,
		Location:  cfg.Timezone,
		StaticDir: cfg.StaticDir,
	})

	srv := &http.Server{
		Addr:    cfg.Address(),
		Handler: h.NewRouter(),
	}

	go func() {
		l.Info().Str("addr", cfg.Address()).Str("store", cfg.StoreBackend).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	l.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error().Err(err).Msg("Server forced to shutdown")
	}
	l.Info().Msg("Server exited")
}
