package service

import (
	"context"
	"fmt"
	"time"

	"github.com/matej-benes/mos-family-c/internal/core/domain"
	"github.com/matej-benes/mos-family-c/internal/core/port"
	"github.com/rs/zerolog/log"
)

// RingWindow bounds how old a pending call may be and still ring. Calls
// orphaned before a restart stay silent.
const RingWindow = 45 * time.Second

// Ringer pushes a notification to the callee of every new pending call.
type Ringer struct {
	store   port.DocumentStore
	dir     *Directory
	clock   port.Clock
	pushers []port.Pusher
}

func NewRinger(store port.DocumentStore, clock port.Clock, pushers ...port.Pusher) *Ringer {
	if clock == nil {
		clock = port.SystemClock
	}
	return &Ringer{
		store:   store,
		dir:     NewDirectory(store),
		clock:   clock,
		pushers: pushers,
	}
}

func (r *Ringer) Start(ctx context.Context) (port.Unsubscribe, error) {
	q := port.NewQuery(domain.CallsCollection).Where("status", port.OpEqual, string(domain.CallPending))
	unsub, err := r.store.WatchQuery(ctx, q, func(changes []port.Change, err error) {
		if err != nil {
			log.Error().Err(err).Msg("Ringer subscription failed")
			return
		}
		for _, ch := range changes {
			if ch.Kind != port.ChangeAdded {
				continue
			}
			call, err := decodeCall(ch.Doc)
			if err != nil {
				log.Warn().Err(err).Msg("Unreadable pending call")
				continue
			}
			if call.CreatedAt != nil && r.clock.Now().Sub(*call.CreatedAt) > RingWindow {
				continue
			}
			go r.ring(ctx, call)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("watch pending calls: %w", err)
	}
	return unsub, nil
}

func (r *Ringer) ring(ctx context.Context, call domain.Call) {
	callee, err := r.dir.GetUser(ctx, call.CalleeID)
	if err != nil {
		log.Warn().Err(err).Str("call_id", call.ID.String()).Msg("Callee lookup failed")
		return
	}
	n := domain.Notification{
		Kind:  domain.NotifyIncomingCall,
		Title: "Incoming call",
		Body:  call.CallerName + " is calling",
		Data: map[string]string{
			"callId":   call.ID.String(),
			"callerId": call.CallerID.String(),
		},
	}
	for _, p := range r.pushers {
		if err := p.Push(ctx, callee, n); err != nil {
			log.Error().Err(err).Str("call_id", call.ID.String()).Str("callee_id", callee.ID.String()).Msg("Push failed")
		}
	}
}
