package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/matej-benes/mos-family-c/internal/adapter/driven/media/pion"
	"github.com/matej-benes/mos-family-c/internal/adapter/driven/notify/logger"
	"github.com/matej-benes/mos-family-c/internal/adapter/driven/store/remote"
	"github.com/matej-benes/mos-family-c/internal/config"
	"github.com/matej-benes/mos-family-c/internal/core/domain"
	"github.com/matej-benes/mos-family-c/internal/core/port"
	"github.com/matej-benes/mos-family-c/internal/core/service"
	"github.com/matej-benes/mos-family-c/internal/logging"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.LoadDevice()
	if err != nil {
		logging.Setup("info", "console")
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	l := logging.Setup(cfg.LogLevel, cfg.LogFormat).With().Str("device_id", cfg.DeviceID).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	auth := remote.NewAuthenticator(cfg.ServerURL, nil)
	user, err := auth.Authenticate(ctx, domain.Credentials{
		UserID:   domain.UserID(cfg.UserID),
		PIN:      cfg.UserPIN,
		DeviceID: cfg.DeviceID,
	})
	if err != nil {
		l.Fatal().Err(err).Msg("Login failed")
	}

	notifier := logger.NewNotifier()
	store, err := remote.Dial(ctx, cfg.ServerURL, auth.Token(),
		remote.WithNotificationHandler(func(n domain.Notification) {
			notifier.Notify(ctx, n)
		}),
	)
	if err != nil {
		l.Fatal().Err(err).Msg("Failed to connect to the server")
	}
	defer store.Close()

	peers, err := pion.NewPeerFactory(cfg.ICEServers)
	if err != nil {
		l.Fatal().Err(err).Msg("Failed to set up WebRTC")
	}

	session := service.NewSession(service.SessionConfig{
		Store:        store,
		Media:        pion.NewSampleDevices(),
		Peers:        peers,
		Auth:         auth,
		Notifier:     notifier,
		Clock:        port.SystemClock,
		Location:     cfg.Timezone,
		LockInterval: cfg.LockInterval,
		RingTimeout:  cfg.RingTimeout,
		DeviceID:     cfg.DeviceID,
	})

	session.Lock().OnChange(func(s domain.LockState) {
		if s.Locked {
			l.Info().Stringer("reason", s.Reason).Msg(s.Message)
			return
		}
		l.Info().Msg("Home screen unlocked")
	})

	calls := session.Calls()
	calls.OnChange(func(snap service.CallSnapshot) {
		l.Info().Stringer("state", snap.State).Bool("muted", snap.Muted).Msg("Call state changed")
		if cfg.AutoAnswer && snap.State == service.CallIncoming && snap.Incoming != nil {
			id := snap.Incoming.ID
			// listeners run on the session loop; answering has to leave it
			go func() {
				if err := calls.AnswerCall(ctx); err != nil {
					l.Warn().Err(err).Str("call_id", id.String()).Msg("Auto-answer failed")
				}
			}()
		}
	})

	if err := session.Start(user); err != nil {
		l.Fatal().Err(err).Msg("Failed to start session")
	}
	l.Info().Str("user_id", user.ID.String()).Str("role", user.Role.String()).Msg("Device ready")

	select {
	case <-ctx.Done():
		l.Info().Msg("Shutting down device...")
	case <-store.Done():
		l.Error().Msg("Lost the server connection")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := session.Logout(shutdownCtx); err != nil {
		l.Warn().Err(err).Msg("Logout failed")
	}
	if err := session.Close(); err != nil {
		l.Warn().Err(err).Msg("Session close failed")
	}
	l.Info().Msg("Device exited")
}
