package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/matej-benes/mos-family-c/internal/core/domain"
	"github.com/matej-benes/mos-family-c/internal/core/port"
	"github.com/matej-benes/mos-family-c/internal/eventloop"
	"github.com/rs/zerolog/log"
)

type CallState int

const (
	CallIdle CallState = iota
	CallOutgoing
	CallIncoming
	CallInCall
)

func (s CallState) String() string {
	switch s {
	case CallIdle:
		return "idle"
	case CallOutgoing:
		return "outgoing"
	case CallIncoming:
		return "incoming"
	case CallInCall:
		return "in-call"
	default:
		return "unknown"
	}
}

// CallSnapshot is what renderers see of the manager at one point in time.
type CallSnapshot struct {
	State        CallState
	Active       *domain.Call
	Incoming     *domain.Call
	Muted        bool
	VideoEnabled bool
}

// CallManager drives the call lifecycle of one client session. All state
// transitions happen on the session event loop; store and peer callbacks
// only post events to it.
//
// Incoming calls follow a first-match policy: the first pending call
// addressed to the user is surfaced and the rest wait unseen until the
// manager is idle again. Two users calling each other at the same moment
// both stay outgoing until one of them hangs up or the ring timeout runs
// out. Pending calls older than the ring timeout are never surfaced.
type CallManager struct {
	loop   *eventloop.Loop
	base   context.Context
	store  port.DocumentStore
	dir    *Directory
	media  port.MediaDevices
	peers  port.PeerFactory
	notify port.Notifier
	clock  port.Clock

	ringTimeout time.Duration
	ringTimer   *time.Timer

	self  *domain.User
	epoch uint64
	gen   uint64

	state    CallState
	active   *domain.Call
	incoming *domain.Call
	side     domain.CallSide

	pending   []domain.Call
	dismissed map[domain.CallID]bool

	pc     port.PeerConnection
	relay  *candidateRelay
	local  port.LocalStream
	remote *RemoteStream

	callSub      port.Unsubscribe
	candidateSub port.Unsubscribe
	incomingSub  port.Unsubscribe

	mu         sync.RWMutex
	snapshot   CallSnapshot
	localView  port.LocalStream
	remoteView *RemoteStream
	listeners  []func(CallSnapshot)
}

type CallOption func(*CallManager)

// WithCallClock sets the clock pending calls are aged against.
func WithCallClock(c port.Clock) CallOption {
	return func(m *CallManager) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithRingTimeout bounds how long a call rings, on either side.
func WithRingTimeout(d time.Duration) CallOption {
	return func(m *CallManager) {
		if d > 0 {
			m.ringTimeout = d
		}
	}
}

func NewCallManager(base context.Context, loop *eventloop.Loop, store port.DocumentStore, media port.MediaDevices, peers port.PeerFactory, notify port.Notifier, opts ...CallOption) *CallManager {
	if notify == nil {
		notify = nopNotifier{}
	}
	m := &CallManager{
		loop:        loop,
		base:        base,
		store:       store,
		dir:         NewDirectory(store),
		media:       media,
		peers:       peers,
		notify:      notify,
		clock:       port.SystemClock,
		ringTimeout: RingWindow,
		dismissed:   make(map[domain.CallID]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *CallManager) Snapshot() CallSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

func (m *CallManager) State() CallState {
	return m.Snapshot().State
}

// LocalStream is the current capture stream, or nil outside a call.
func (m *CallManager) LocalStream() port.LocalStream {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.localView
}

// RemoteStream is the stream inbound tracks are attached to, or nil
// outside a call.
func (m *CallManager) RemoteStream() *RemoteStream {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.remoteView
}

// OnChange registers fn for every published snapshot. fn runs on the event
// loop and must not call back into the manager synchronously.
func (m *CallManager) OnChange(fn func(CallSnapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

func (m *CallManager) StartCall(ctx context.Context, calleeID domain.UserID) error {
	return m.loop.Do(func() error { return m.startCall(ctx, calleeID) })
}

func (m *CallManager) AnswerCall(ctx context.Context) error {
	return m.loop.Do(func() error { return m.answerCall(ctx) })
}

// HangUp ends, declines or cancels whatever call is in progress. With no
// call it does nothing.
func (m *CallManager) HangUp(ctx context.Context) error {
	return m.loop.Do(func() error { return m.hangUp(ctx, false) })
}

func (m *CallManager) SetMuted(muted bool) error {
	return m.loop.Do(func() error { return m.setTrackEnabled(port.KindAudio, !muted) })
}

func (m *CallManager) SetVideoEnabled(enabled bool) error {
	return m.loop.Do(func() error { return m.setTrackEnabled(port.KindVideo, enabled) })
}

func (m *CallManager) attach(user domain.User) error {
	m.detach(m.base)
	m.self = &user
	m.epoch++
	epoch := m.epoch

	q := port.NewQuery(domain.CallsCollection).
		Where("calleeId", port.OpEqual, user.ID.String()).
		Where("status", port.OpEqual, string(domain.CallPending))
	unsub, err := m.store.WatchQuery(m.base, q, func(changes []port.Change, err error) {
		m.loop.Post(func() { m.onIncoming(epoch, changes, err) })
	})
	if err != nil {
		return fmt.Errorf("%w: watch incoming calls: %w", domain.ErrSignaling, err)
	}
	m.incomingSub = unsub
	m.publish()
	return nil
}

func (m *CallManager) detach(ctx context.Context) {
	m.detachIncoming()
	if err := m.hangUp(ctx, false); err != nil {
		log.Warn().Err(err).Msg("Hang up on logout failed")
	}
	m.self = nil
	m.publish()
}

func (m *CallManager) detachIncoming() {
	if m.incomingSub != nil {
		m.incomingSub()
		m.incomingSub = nil
	}
	m.epoch++
	m.pending = nil
	m.dismissed = make(map[domain.CallID]bool)
}

func (m *CallManager) startCall(ctx context.Context, calleeID domain.UserID) error {
	if m.self == nil {
		return domain.ErrNotAuthenticated
	}
	if m.state != CallIdle {
		return domain.ErrCallInProgress
	}

	caller, err := m.dir.GetUser(ctx, m.self.ID)
	if err != nil {
		return m.report("Could not start call", fmt.Errorf("%w: %w", domain.ErrSignaling, err))
	}
	callee, err := m.dir.GetUser(ctx, calleeID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			err = fmt.Errorf("%w: %w", domain.ErrSignaling, err)
		}
		return m.report("Could not start call", err)
	}
	if !caller.CanContact(callee) {
		return m.report("Could not start call", fmt.Errorf("%w: %s may not call %s", domain.ErrPermissionDenied, caller.Name, callee.Name))
	}

	local, err := m.acquireMedia(ctx)
	if err != nil {
		return m.report("Could not access camera or microphone", err)
	}

	call := domain.NewCall(caller, calleeID)
	data, err := port.Encode(call)
	if err != nil {
		local.Stop()
		return m.report("Could not start call", err)
	}
	data["createdAt"] = port.ServerTimestamp
	id, err := m.store.Add(ctx, domain.CallsCollection, data)
	if err != nil {
		local.Stop()
		return m.report("Could not start call", fmt.Errorf("%w: create call record: %w", domain.ErrSignaling, err))
	}
	call.ID = domain.CallID(id)

	l := log.With().Str("call_id", id).Str("callee_id", calleeID.String()).Logger()
	l.Info().Msg("Starting call")

	m.gen++
	m.state = CallOutgoing
	m.active = &call
	m.side = domain.CallerSide
	m.local = local
	m.remote = NewRemoteStream()
	m.armRing(call.ID, CallOutgoing, m.ringTimeout)

	if err := m.openPeer(call.ID); err != nil {
		return m.abort("Could not start call", err)
	}
	offer, err := m.pc.CreateOffer()
	if err == nil {
		err = m.pc.SetLocalDescription(offer)
	}
	if err != nil {
		return m.abort("Could not start call", fmt.Errorf("%w: create offer: %w", domain.ErrSignaling, err))
	}
	if err := m.relay.localDescriptionSet(ctx); err != nil {
		m.candidateFailed(err)
	}

	desc, err := port.Encode(offer)
	if err != nil {
		return m.abort("Could not start call", err)
	}
	if err := m.store.Update(ctx, domain.CallPath(call.ID), map[string]any{"offer": desc}); err != nil {
		return m.abort("Could not start call", fmt.Errorf("%w: publish offer: %w", domain.ErrSignaling, err))
	}
	m.active.Offer = &offer

	if err := m.watchCall(call.ID); err != nil {
		return m.abort("Could not start call", err)
	}
	if err := m.watchCandidates(call.ID, domain.CalleeSide); err != nil {
		return m.abort("Could not start call", err)
	}

	m.publish()
	return nil
}

func (m *CallManager) answerCall(ctx context.Context) error {
	if m.self == nil {
		return domain.ErrNotAuthenticated
	}
	if m.state != CallIncoming || m.incoming == nil {
		return domain.ErrNoIncomingCall
	}
	id := m.incoming.ID

	doc, err := m.store.Get(ctx, domain.CallPath(id))
	if err != nil {
		return m.report("Could not answer call", fmt.Errorf("%w: read call: %w", domain.ErrSignaling, err))
	}
	call, err := decodeCall(doc)
	if err != nil {
		return m.report("Could not answer call", fmt.Errorf("%w: %w", domain.ErrSignaling, err))
	}
	if call.Status != domain.CallPending {
		return fmt.Errorf("%w: call is %s", domain.ErrNoIncomingCall, call.Status)
	}
	if call.Offer == nil {
		return m.report("Could not answer call", fmt.Errorf("%w: call has no offer yet", domain.ErrSignaling))
	}

	local, err := m.acquireMedia(ctx)
	if err != nil {
		if herr := m.hangUp(ctx, false); herr != nil {
			log.Warn().Err(herr).Str("call_id", id.String()).Msg("Decline after media failure failed")
		}
		return m.report("Could not access camera or microphone", err)
	}

	log.Info().Str("call_id", id.String()).Str("caller_id", call.CallerID.String()).Msg("Answering call")

	m.stopRing()
	m.gen++
	m.active = &call
	m.incoming = nil
	m.side = domain.CalleeSide
	m.local = local
	m.remote = NewRemoteStream()

	if err := m.openPeer(id); err != nil {
		return m.abort("Could not answer call", err)
	}
	if err := m.pc.SetRemoteDescription(*call.Offer); err != nil {
		return m.abort("Could not answer call", fmt.Errorf("%w: apply offer: %w", domain.ErrSignaling, err))
	}
	if err := m.relay.remoteDescriptionSet(); err != nil {
		log.Warn().Err(err).Str("call_id", id.String()).Msg("Buffered candidate rejected")
	}
	answer, err := m.pc.CreateAnswer()
	if err == nil {
		err = m.pc.SetLocalDescription(answer)
	}
	if err != nil {
		return m.abort("Could not answer call", fmt.Errorf("%w: create answer: %w", domain.ErrSignaling, err))
	}
	if err := m.relay.localDescriptionSet(ctx); err != nil {
		m.candidateFailed(err)
	}

	desc, err := port.Encode(answer)
	if err != nil {
		return m.abort("Could not answer call", err)
	}
	err = m.store.Update(ctx, domain.CallPath(id), map[string]any{
		"answer":     desc,
		"status":     string(domain.CallAnswered),
		"answeredAt": port.ServerTimestamp,
	})
	if err != nil {
		return m.abort("Could not answer call", fmt.Errorf("%w: publish answer: %w", domain.ErrSignaling, err))
	}
	m.active.Answer = &answer
	m.active.Status = domain.CallAnswered
	m.state = CallInCall

	if err := m.watchCall(id); err != nil {
		return m.abort("Could not answer call", err)
	}
	if err := m.watchCandidates(id, domain.CallerSide); err != nil {
		return m.abort("Could not answer call", err)
	}

	m.publish()
	return nil
}

// hangUp releases media and the peer connection and returns to idle. Only
// a local hangup writes the call record: ended for the active call,
// declined for an unanswered incoming one.
func (m *CallManager) hangUp(ctx context.Context, isRemote bool) error {
	if m.state == CallIdle && m.active == nil && m.incoming == nil && m.local == nil && m.pc == nil {
		return nil
	}

	var werr error
	if !isRemote {
		switch {
		case m.active != nil:
			werr = m.markStatus(ctx, m.active.ID, domain.CallEnded)
		case m.incoming != nil:
			werr = m.markStatus(ctx, m.incoming.ID, domain.CallDeclined)
		}
	}

	m.teardown()

	if werr != nil {
		return m.report("Could not hang up cleanly", werr)
	}
	return nil
}

func (m *CallManager) markStatus(ctx context.Context, id domain.CallID, status domain.CallStatus) error {
	err := m.store.Update(ctx, domain.CallPath(id), map[string]any{
		"status":  string(status),
		"endedAt": port.ServerTimestamp,
	})
	if err != nil {
		return fmt.Errorf("%w: mark call %s: %w", domain.ErrSignaling, status, err)
	}
	log.Info().Str("call_id", id.String()).Str("status", string(status)).Msg("Call closed")
	return nil
}

// teardown clears all call state without touching the store. Device
// handles are always released.
func (m *CallManager) teardown() {
	m.stopRing()
	if m.local != nil {
		m.local.Stop()
		m.local = nil
	}
	if m.pc != nil {
		if err := m.pc.Close(); err != nil {
			log.Warn().Err(err).Msg("Closing peer connection failed")
		}
		m.pc = nil
	}
	if m.callSub != nil {
		m.callSub()
		m.callSub = nil
	}
	if m.candidateSub != nil {
		m.candidateSub()
		m.candidateSub = nil
	}
	if m.active != nil {
		m.dismissed[m.active.ID] = true
	}
	if m.incoming != nil {
		m.dismissed[m.incoming.ID] = true
	}

	m.gen++
	m.active = nil
	m.incoming = nil
	m.relay = nil
	m.remote = nil
	m.state = CallIdle

	m.surfaceIncoming()
	m.publish()
}

func (m *CallManager) acquireMedia(ctx context.Context) (port.LocalStream, error) {
	local, err := m.media.GetUserMedia(ctx, port.AudioVideo)
	if err != nil {
		if !errors.Is(err, domain.ErrMediaAccess) {
			err = fmt.Errorf("%w: %w", domain.ErrMediaAccess, err)
		}
		return nil, err
	}
	return local, nil
}

func (m *CallManager) openPeer(id domain.CallID) error {
	pc, err := m.peers.NewPeerConnection()
	if err != nil {
		return fmt.Errorf("%w: peer connection: %w", domain.ErrSignaling, err)
	}
	m.pc = pc
	m.relay = newCandidateRelay(m.store, pc, id, m.side)

	gen := m.gen
	pc.OnICECandidate(func(c domain.ICECandidate) {
		m.loop.Post(func() {
			if gen != m.gen || m.relay == nil {
				return
			}
			if err := m.relay.local(m.base, c); err != nil {
				m.candidateFailed(err)
			}
		})
	})
	pc.OnTrack(func(t port.RemoteTrack) {
		m.loop.Post(func() {
			if gen != m.gen || m.remote == nil {
				return
			}
			log.Debug().Str("kind", string(t.Kind())).Str("track_id", t.ID()).Msg("Remote track attached")
			m.remote.add(t)
			m.publish()
		})
	})

	if err := pc.AddStream(m.local); err != nil {
		return fmt.Errorf("%w: attach local stream: %w", domain.ErrMediaAccess, err)
	}
	return nil
}

func (m *CallManager) watchCall(id domain.CallID) error {
	gen := m.gen
	unsub, err := m.store.WatchDocument(m.base, domain.CallPath(id), func(doc port.Document, err error) {
		m.loop.Post(func() { m.onCallUpdate(gen, doc, err) })
	})
	if err != nil {
		return fmt.Errorf("%w: watch call: %w", domain.ErrSignaling, err)
	}
	m.callSub = unsub
	return nil
}

func (m *CallManager) watchCandidates(id domain.CallID, from domain.CallSide) error {
	gen := m.gen
	q := port.NewQuery(domain.CandidatesPath(id, from))
	unsub, err := m.store.WatchQuery(m.base, q, func(changes []port.Change, err error) {
		m.loop.Post(func() { m.onRemoteCandidates(gen, changes, err) })
	})
	if err != nil {
		return fmt.Errorf("%w: watch candidates: %w", domain.ErrSignaling, err)
	}
	m.candidateSub = unsub
	return nil
}

func (m *CallManager) onCallUpdate(gen uint64, doc port.Document, err error) {
	if gen != m.gen || m.active == nil {
		return
	}
	if err != nil {
		m.abort("Call connection lost", fmt.Errorf("%w: call updates: %w", domain.ErrSignaling, err))
		return
	}
	if !doc.Exists {
		return
	}
	call, err := decodeCall(doc)
	if err != nil {
		log.Error().Err(err).Msg("Unreadable call record")
		return
	}

	if call.Status.Terminal() {
		log.Info().Str("call_id", call.ID.String()).Str("status", string(call.Status)).Msg("Call closed by peer")
		m.hangUp(m.base, true)
		return
	}

	if m.side == domain.CallerSide && m.state == CallOutgoing && call.Answer != nil {
		if err := m.pc.SetRemoteDescription(*call.Answer); err != nil {
			m.abort("Call could not connect", fmt.Errorf("%w: apply answer: %w", domain.ErrSignaling, err))
			return
		}
		if err := m.relay.remoteDescriptionSet(); err != nil {
			log.Warn().Err(err).Str("call_id", call.ID.String()).Msg("Buffered candidate rejected")
		}
		m.stopRing()
		m.state = CallInCall
		log.Info().Str("call_id", call.ID.String()).Msg("Call answered")
	}

	m.active = &call
	m.publish()
}

func (m *CallManager) onRemoteCandidates(gen uint64, changes []port.Change, err error) {
	if gen != m.gen || m.relay == nil {
		return
	}
	if err != nil {
		m.candidateFailed(fmt.Errorf("%w: candidate updates: %w", domain.ErrSignaling, err))
		return
	}
	for _, ch := range changes {
		if ch.Kind != port.ChangeAdded {
			continue
		}
		c, err := port.Decode[domain.ICECandidate](ch.Doc.Data)
		if err != nil {
			log.Warn().Err(err).Str("candidate_id", ch.Doc.ID).Msg("Unreadable candidate")
			continue
		}
		if err := m.relay.remote(c); err != nil {
			log.Warn().Err(err).Str("candidate_id", ch.Doc.ID).Msg("Candidate rejected")
		}
	}
}

func (m *CallManager) onIncoming(epoch uint64, changes []port.Change, err error) {
	if epoch != m.epoch {
		return
	}
	if err != nil {
		m.report("Incoming calls unavailable", fmt.Errorf("%w: incoming calls: %w", domain.ErrSignaling, err))
		return
	}

	changed := false
	for _, ch := range changes {
		id := domain.CallID(ch.Doc.ID)
		if ch.Kind == port.ChangeRemoved {
			m.pending = removeCall(m.pending, id)
			delete(m.dismissed, id)
			if m.state == CallIncoming && m.incoming != nil && m.incoming.ID == id {
				log.Info().Str("call_id", id.String()).Msg("Incoming call withdrawn")
				m.stopRing()
				m.incoming = nil
				m.state = CallIdle
				changed = true
			}
			continue
		}

		call, err := decodeCall(ch.Doc)
		if err != nil {
			log.Warn().Err(err).Msg("Unreadable incoming call")
			continue
		}
		m.pending = upsertCall(m.pending, call)
		if m.incoming != nil && m.incoming.ID == id {
			m.incoming = &call
			changed = true
		}
	}

	if m.surfaceIncoming() || changed {
		m.publish()
	}
}

// surfaceIncoming shows the first pending call when nothing else is going
// on. It reports whether a call was surfaced.
func (m *CallManager) surfaceIncoming() bool {
	if m.self == nil || m.state != CallIdle || m.incoming != nil {
		return false
	}
	for _, c := range m.pending {
		if m.dismissed[c.ID] {
			continue
		}
		left := m.ringLeft(c)
		if left <= 0 {
			log.Debug().Str("call_id", c.ID.String()).Msg("Skipping stale incoming call")
			m.dismissed[c.ID] = true
			continue
		}
		call := c
		m.incoming = &call
		m.state = CallIncoming
		m.armRing(call.ID, CallIncoming, left)
		log.Info().Str("call_id", call.ID.String()).Str("caller_id", call.CallerID.String()).Msg("Incoming call")
		m.notify.Notify(m.base, domain.Notification{
			Kind:  domain.NotifyIncomingCall,
			Title: "Incoming call",
			Body:  call.CallerName + " is calling",
			Data: map[string]string{
				"callId":   call.ID.String(),
				"callerId": call.CallerID.String(),
			},
		})
		return true
	}
	return false
}

// ringLeft reports how much longer call may ring. A call whose creation
// time is not resolved yet counts as new.
func (m *CallManager) ringLeft(call domain.Call) time.Duration {
	if call.CreatedAt == nil {
		return m.ringTimeout
	}
	age := max(m.clock.Now().Sub(*call.CreatedAt), 0)
	return m.ringTimeout - age
}

func (m *CallManager) armRing(id domain.CallID, state CallState, after time.Duration) {
	m.stopRing()
	m.ringTimer = time.AfterFunc(after, func() {
		m.loop.Post(func() { m.onRingTimeout(id, state) })
	})
}

func (m *CallManager) stopRing() {
	if m.ringTimer != nil {
		m.ringTimer.Stop()
		m.ringTimer = nil
	}
}

// onRingTimeout gives up on a call nobody picked up. An unanswered incoming
// call is only dismissed here; its caller closes the record.
func (m *CallManager) onRingTimeout(id domain.CallID, state CallState) {
	if m.state != state {
		return
	}
	switch state {
	case CallIncoming:
		if m.incoming == nil || m.incoming.ID != id {
			return
		}
		log.Info().Str("call_id", id.String()).Msg("Incoming call stopped ringing")
		m.teardown()
	case CallOutgoing:
		if m.active == nil || m.active.ID != id {
			return
		}
		log.Info().Str("call_id", id.String()).Msg("Call not answered")
		m.notify.Notify(m.base, domain.Notification{
			Kind:  domain.NotifyInfo,
			Title: "No answer",
			Data:  map[string]string{"callId": id.String()},
		})
		// failures are already reported
		_ = m.hangUp(m.base, false)
	}
}

func (m *CallManager) setTrackEnabled(kind port.MediaKind, enabled bool) error {
	if m.local == nil {
		return domain.ErrNoActiveCall
	}
	for _, t := range m.local.Tracks() {
		if t.Kind() == kind {
			t.SetEnabled(enabled)
		}
	}
	m.publish()
	return nil
}

// abort is the fail-closed path for unrecoverable call errors: local state
// is torn down and the record is left for the peer to time out.
func (m *CallManager) abort(title string, err error) error {
	m.teardown()
	return m.report(title, err)
}

func (m *CallManager) candidateFailed(err error) {
	if m.relay != nil && !m.relay.firstFailure() {
		log.Debug().Err(err).Msg("Candidate relay failure")
		return
	}
	m.report("Call connection problem", err)
}

func (m *CallManager) report(title string, err error) error {
	log.Error().Err(err).Msg(title)
	m.notify.Notify(m.base, domain.ErrorNotification(title, err))
	return err
}

func (m *CallManager) publish() {
	snap := CallSnapshot{
		State:    m.state,
		Active:   copyCall(m.active),
		Incoming: copyCall(m.incoming),
	}
	if m.local != nil {
		for _, t := range m.local.Tracks() {
			switch t.Kind() {
			case port.KindAudio:
				snap.Muted = !t.Enabled()
			case port.KindVideo:
				snap.VideoEnabled = t.Enabled()
			}
		}
	}

	m.mu.Lock()
	m.snapshot = snap
	m.localView = m.local
	m.remoteView = m.remote
	listeners := m.listeners
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

func copyCall(c *domain.Call) *domain.Call {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

func upsertCall(calls []domain.Call, call domain.Call) []domain.Call {
	for i := range calls {
		if calls[i].ID == call.ID {
			calls[i] = call
			return calls
		}
	}
	return append(calls, call)
}

func removeCall(calls []domain.Call, id domain.CallID) []domain.Call {
	out := calls[:0]
	for _, c := range calls {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, domain.Notification) {}
