package service

import (
	"context"
	"fmt"
	"time"

	"github.com/matej-benes/mos-family-c/internal/core/domain"
	"github.com/matej-benes/mos-family-c/internal/core/port"
	"github.com/matej-benes/mos-family-c/internal/eventloop"
	"github.com/rs/zerolog/log"
)

type SessionConfig struct {
	Store    port.DocumentStore
	Media    port.MediaDevices
	Peers    port.PeerFactory
	Auth     port.Authenticator
	Notifier port.Notifier
	Clock    port.Clock
	Location *time.Location
	// LockInterval is the bedtime recheck period.
	LockInterval time.Duration
	// RingTimeout bounds ringing on both sides. Zero means RingWindow.
	RingTimeout time.Duration
	DeviceID    string
}

// Session is one device's view of the family home screen: who is logged
// in, whether the screen is locked and what call is going on.
type Session struct {
	loop     *eventloop.Loop
	ctx      context.Context
	cancel   context.CancelFunc
	auth     port.Authenticator
	notify   port.Notifier
	deviceID string

	lock  *LockMonitor
	calls *CallManager
}

func NewSession(cfg SessionConfig) *Session {
	notify := cfg.Notifier
	if notify == nil {
		notify = nopNotifier{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	loop := eventloop.New()

	s := &Session{
		loop:     loop,
		ctx:      ctx,
		cancel:   cancel,
		auth:     cfg.Auth,
		notify:   notify,
		deviceID: cfg.DeviceID,
		lock:     NewLockMonitor(loop, cfg.Store, cfg.Clock, cfg.Location, cfg.LockInterval),
		calls:    NewCallManager(ctx, loop, cfg.Store, cfg.Media, cfg.Peers, notify, WithCallClock(cfg.Clock), WithRingTimeout(cfg.RingTimeout)),
	}
	go loop.Run()
	return s
}

// Login checks the PIN and starts the session for the user.
func (s *Session) Login(ctx context.Context, userID domain.UserID, pin string) (domain.User, error) {
	if s.auth == nil {
		return domain.User{}, fmt.Errorf("%w: no authenticator configured", domain.ErrAuthFailure)
	}
	user, err := s.auth.Authenticate(ctx, domain.Credentials{UserID: userID, PIN: pin, DeviceID: s.deviceID})
	if err != nil {
		s.notify.Notify(ctx, domain.ErrorNotification("Login failed", err))
		return domain.User{}, err
	}
	if err := s.Start(user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// Start attaches an already authenticated user.
func (s *Session) Start(user domain.User) error {
	return s.loop.Do(func() error {
		if err := s.lock.attach(s.ctx, user); err != nil {
			return err
		}
		if err := s.calls.attach(user); err != nil {
			s.lock.detach()
			return err
		}
		log.Info().Str("user_id", user.ID.String()).Msg("Session started")
		return nil
	})
}

// Logout hangs up any call and returns to the login lock.
func (s *Session) Logout(ctx context.Context) error {
	var wasLoggedIn bool
	err := s.loop.Do(func() error {
		wasLoggedIn = s.lock.subs != nil
		s.calls.detach(ctx)
		s.lock.detach()
		return nil
	})
	if err != nil || !wasLoggedIn || s.auth == nil || s.deviceID == "" {
		return err
	}
	if err := s.auth.UnlinkDevice(ctx, s.deviceID); err != nil {
		log.Warn().Err(err).Str("device_id", s.deviceID).Msg("Device unlink failed")
	}
	return nil
}

// Close logs out and stops the event loop.
func (s *Session) Close() error {
	err := s.Logout(context.Background())
	s.loop.Stop()
	<-s.loop.Done()
	s.cancel()
	return err
}

func (s *Session) User() *domain.User {
	return s.lock.User()
}

func (s *Session) LockState() domain.LockState {
	return s.lock.State()
}

func (s *Session) Lock() *LockMonitor {
	return s.lock
}

func (s *Session) Calls() *CallManager {
	return s.calls
}

// VisibleApps lists the apps of the home screen. A locked session shows
// none.
func (s *Session) VisibleApps() []domain.App {
	u := s.lock.User()
	if u == nil || s.lock.State().Locked {
		return nil
	}
	return domain.VisibleApps(*u)
}
