package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/matej-benes/mos-family-c/internal/core/domain"
	"github.com/matej-benes/mos-family-c/internal/core/port"
	"github.com/matej-benes/mos-family-c/internal/eventloop"
	"github.com/rs/zerolog/log"
)

// EvaluateLock decides whether the home screen is blocked for user. Rules
// are checked in order and the first match wins. Missing data locks.
func EvaluateLock(user *domain.User, game *domain.GameState, now time.Time) domain.LockState {
	if user == nil {
		return domain.Locked(domain.LockReasonNoUser, domain.MessageLoginRequired)
	}
	if user.Can(domain.CapBypassLock) {
		return domain.Unlocked
	}
	if user.IsManuallyLocked {
		msg := user.ManualLockMessage
		if msg == "" {
			msg = domain.MessageManualLock
		}
		return domain.Locked(domain.LockReasonManual, msg)
	}
	if game == nil || game.Mode != domain.GamePlaying {
		return domain.Locked(domain.LockReasonGameInactive, domain.MessageGameInactive)
	}
	if user.Bedtime != "" && pastBedtime(user.Bedtime, now) {
		return domain.Locked(domain.LockReasonBedtime, domain.MessageBedtime)
	}
	return domain.Unlocked
}

// pastBedtime reports whether now falls in [bedtime, 06:00), wrapping past
// midnight when bedtime is at or after 06:00.
func pastBedtime(bedtime string, now time.Time) bool {
	b, err := domain.ParseClockTime(bedtime)
	if err != nil {
		log.Warn().Str("bedtime", bedtime).Msg("Unreadable bedtime, locking")
		return true
	}
	t := domain.ClockOf(now)
	if b.Before(domain.MorningEnd) {
		return !t.Before(b) && t.Before(domain.MorningEnd)
	}
	return !t.Before(b) || t.Before(domain.MorningEnd)
}

// LockMonitor keeps the lock state of the session user current. It
// recomputes on attach and detach, on every change of the user record or
// the game state, and on a periodic tick so bedtime boundaries are caught
// without interaction.
type LockMonitor struct {
	loop     *eventloop.Loop
	store    port.DocumentStore
	clock    port.Clock
	location *time.Location
	interval time.Duration

	epoch    uint64
	user     *domain.User
	game     *domain.GameState
	subs     []port.Unsubscribe
	stopTick chan struct{}

	mu        sync.RWMutex
	state     domain.LockState
	current   *domain.User
	listeners []func(domain.LockState)
}

func NewLockMonitor(loop *eventloop.Loop, store port.DocumentStore, clock port.Clock, location *time.Location, interval time.Duration) *LockMonitor {
	if clock == nil {
		clock = port.SystemClock
	}
	if location == nil {
		location = time.Local
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &LockMonitor{
		loop:     loop,
		store:    store,
		clock:    clock,
		location: location,
		interval: interval,
		state:    EvaluateLock(nil, nil, time.Time{}),
	}
}

func (m *LockMonitor) State() domain.LockState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// User returns the latest projection of the attached user's record.
func (m *LockMonitor) User() *domain.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	u := *m.current
	return &u
}

// OnChange registers fn for lock state changes. fn runs on the event loop
// and must not block on it.
func (m *LockMonitor) OnChange(fn func(domain.LockState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Refresh forces a recompute, for callers outside the event loop.
func (m *LockMonitor) Refresh() error {
	return m.loop.Do(func() error {
		m.recompute()
		return nil
	})
}

func (m *LockMonitor) attach(ctx context.Context, user domain.User) error {
	m.detach()
	m.epoch++
	epoch := m.epoch
	m.user = &user

	unsubUser, err := m.store.WatchDocument(ctx, domain.UserPath(user.ID), func(doc port.Document, err error) {
		m.loop.Post(func() { m.onUser(epoch, doc, err) })
	})
	if err != nil {
		return fmt.Errorf("watch user record: %w", err)
	}
	m.subs = append(m.subs, unsubUser)

	unsubGame, err := m.store.WatchDocument(ctx, domain.GameStatePath, func(doc port.Document, err error) {
		m.loop.Post(func() { m.onGame(epoch, doc, err) })
	})
	if err != nil {
		m.detach()
		return fmt.Errorf("watch game state: %w", err)
	}
	m.subs = append(m.subs, unsubGame)

	stop := make(chan struct{})
	m.stopTick = stop
	go m.tick(epoch, stop)

	m.recompute()
	return nil
}

func (m *LockMonitor) detach() {
	for _, unsub := range m.subs {
		unsub()
	}
	m.subs = nil
	if m.stopTick != nil {
		close(m.stopTick)
		m.stopTick = nil
	}
	m.epoch++
	m.user = nil
	m.game = nil
	m.recompute()
}

func (m *LockMonitor) tick(epoch uint64, stop <-chan struct{}) {
	t := time.NewTicker(m.interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			m.loop.Post(func() {
				if m.epoch == epoch {
					m.recompute()
				}
			})
		case <-stop:
			return
		}
	}
}

func (m *LockMonitor) onUser(epoch uint64, doc port.Document, err error) {
	if epoch != m.epoch {
		return
	}
	switch {
	case err != nil:
		log.Error().Err(err).Msg("User record subscription failed")
		m.user = nil
	case !doc.Exists:
		m.user = nil
	default:
		u, err := decodeUser(doc)
		if err != nil {
			log.Error().Err(err).Str("user_id", doc.ID).Msg("Unreadable user record")
			m.user = nil
		} else {
			m.user = &u
		}
	}
	m.recompute()
}

func (m *LockMonitor) onGame(epoch uint64, doc port.Document, err error) {
	if epoch != m.epoch {
		return
	}
	m.game = nil
	if err != nil {
		log.Error().Err(err).Msg("Game state subscription failed")
	} else if doc.Exists {
		g, err := port.Decode[domain.GameState](doc.Data)
		if err != nil {
			log.Error().Err(err).Msg("Unreadable game state")
		} else {
			m.game = &g
		}
	}
	m.recompute()
}

func (m *LockMonitor) recompute() {
	next := EvaluateLock(m.user, m.game, m.clock.Now().In(m.location))

	m.mu.Lock()
	if m.user != nil {
		u := *m.user
		m.current = &u
	} else {
		m.current = nil
	}
	changed := next != m.state
	m.state = next
	listeners := m.listeners
	m.mu.Unlock()

	if !changed {
		return
	}
	log.Debug().Bool("locked", next.Locked).Str("reason", next.Reason.String()).Msg("Lock state changed")
	for _, fn := range listeners {
		fn(next)
	}
}
