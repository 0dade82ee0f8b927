package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matej-benes/mos-family-c/internal/adapter/driven/store/memory"
	"github.com/matej-benes/mos-family-c/internal/core/domain"
	"github.com/matej-benes/mos-family-c/internal/core/port"
	"github.com/matej-benes/mos-family-c/internal/eventloop"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func newTestStore(t *testing.T, opts ...memory.Option) *memory.Store {
	t.Helper()
	s := memory.NewStore(opts...)
	t.Cleanup(s.Close)
	return s
}

func newTestLoop(t *testing.T) *eventloop.Loop {
	t.Helper()
	l := eventloop.New()
	go l.Run()
	t.Cleanup(l.Stop)
	return l
}

func seed(t *testing.T, store port.DocumentStore, path string, data map[string]any) {
	t.Helper()
	require.NoError(t, store.Set(context.Background(), path, data))
}

// seedFamily writes mom (superadmin), big (older sibling), kid (younger
// sibling allowed to reach mom) and grandma (other).
func seedFamily(t *testing.T, store port.DocumentStore) {
	seed(t, store, "users/mom", map[string]any{"name": "Mom", "role": "superadmin"})
	seed(t, store, "users/big", map[string]any{"name": "Big", "role": "older-sibling"})
	seed(t, store, "users/kid", map[string]any{
		"name":      "Kid",
		"role":      "younger-sibling",
		"approvals": map[string]any{"contacts": []any{"mom"}},
	})
	seed(t, store, "users/grandma", map[string]any{"name": "Grandma", "role": "other"})
}

type fixedClock struct {
	nanos atomic.Int64
}

func newFixedClock(t time.Time) *fixedClock {
	c := &fixedClock{}
	c.Set(t)
	return c
}

func (c *fixedClock) Now() time.Time {
	return time.Unix(0, c.nanos.Load()).UTC()
}

func (c *fixedClock) Set(t time.Time) {
	c.nanos.Store(t.UnixNano())
}

type fakeTrack struct {
	id      string
	kind    port.MediaKind
	enabled atomic.Bool
}

func (t *fakeTrack) ID() string              { return t.id }
func (t *fakeTrack) Kind() port.MediaKind    { return t.kind }
func (t *fakeTrack) Enabled() bool           { return t.enabled.Load() }
func (t *fakeTrack) SetEnabled(enabled bool) { t.enabled.Store(enabled) }

type fakeStream struct {
	id      string
	tracks  []*fakeTrack
	stopped atomic.Int32
}

func (s *fakeStream) ID() string { return s.id }

func (s *fakeStream) Tracks() []port.LocalTrack {
	out := make([]port.LocalTrack, len(s.tracks))
	for i, t := range s.tracks {
		out[i] = t
	}
	return out
}

func (s *fakeStream) Stop() { s.stopped.Add(1) }

func (s *fakeStream) Stopped() bool { return s.stopped.Load() > 0 }

type fakeMedia struct {
	mu      sync.Mutex
	err     error
	streams []*fakeStream
}

func (m *fakeMedia) GetUserMedia(_ context.Context, c port.MediaConstraints) (port.LocalStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	s := &fakeStream{id: "stream"}
	if c.Audio {
		t := &fakeTrack{id: "mic", kind: port.KindAudio}
		t.enabled.Store(true)
		s.tracks = append(s.tracks, t)
	}
	if c.Video {
		t := &fakeTrack{id: "cam", kind: port.KindVideo}
		t.enabled.Store(true)
		s.tracks = append(s.tracks, t)
	}
	m.streams = append(m.streams, s)
	return s, nil
}

func (m *fakeMedia) last() *fakeStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.streams) == 0 {
		return nil
	}
	return m.streams[len(m.streams)-1]
}

func (m *fakeMedia) acquired() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.streams)
}

type fakePeer struct {
	mu          sync.Mutex
	name        string
	stream      port.LocalStream
	local       *domain.SessionDescription
	remote      *domain.SessionDescription
	candidates  []domain.ICECandidate
	onCandidate func(domain.ICECandidate)
	onTrack     func(port.RemoteTrack)
	closed      bool
}

func (p *fakePeer) AddStream(s port.LocalStream) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stream = s
	return nil
}

func (p *fakePeer) CreateOffer() (domain.SessionDescription, error) {
	return domain.NewSessionDescription(domain.SDPOffer, "offer from "+p.name), nil
}

func (p *fakePeer) CreateAnswer() (domain.SessionDescription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remote == nil {
		return domain.SessionDescription{}, errors.New("no remote description")
	}
	return domain.NewSessionDescription(domain.SDPAnswer, "answer from "+p.name), nil
}

func (p *fakePeer) SetLocalDescription(d domain.SessionDescription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.local = &d
	return nil
}

func (p *fakePeer) SetRemoteDescription(d domain.SessionDescription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.remote = &d
	return nil
}

func (p *fakePeer) AddICECandidate(c domain.ICECandidate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remote == nil {
		return errors.New("candidate before remote description")
	}
	p.candidates = append(p.candidates, c)
	return nil
}

func (p *fakePeer) OnICECandidate(fn func(domain.ICECandidate)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onCandidate = fn
}

func (p *fakePeer) OnTrack(fn func(port.RemoteTrack)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onTrack = fn
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePeer) emitCandidate(c domain.ICECandidate) {
	p.mu.Lock()
	fn := p.onCandidate
	p.mu.Unlock()
	fn(c)
}

func (p *fakePeer) emitTrack(t port.RemoteTrack) {
	p.mu.Lock()
	fn := p.onTrack
	p.mu.Unlock()
	fn(t)
}

func (p *fakePeer) remoteDescription() *domain.SessionDescription {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remote
}

func (p *fakePeer) received() []domain.ICECandidate {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.ICECandidate(nil), p.candidates...)
}

func (p *fakePeer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type fakePeers struct {
	mu    sync.Mutex
	name  string
	peers []*fakePeer
}

func (f *fakePeers) NewPeerConnection() (port.PeerConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &fakePeer{name: f.name}
	f.peers = append(f.peers, p)
	return p, nil
}

func (f *fakePeers) last() *fakePeer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.peers) == 0 {
		return nil
	}
	return f.peers[len(f.peers)-1]
}

type fakeRemoteTrack struct {
	kind port.MediaKind
}

func (t fakeRemoteTrack) ID() string           { return "remote-" + string(t.kind) }
func (t fakeRemoteTrack) StreamID() string     { return "remote" }
func (t fakeRemoteTrack) Kind() port.MediaKind { return t.kind }

type recordingNotifier struct {
	mu    sync.Mutex
	items []domain.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, item domain.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, item)
}

func (n *recordingNotifier) count(kind domain.NotificationKind) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, item := range n.items {
		if item.Kind == kind {
			c++
		}
	}
	return c
}

type fakeLimiter struct {
	mu       sync.Mutex
	blocked  bool
	err      error
	failures int
	resets   int
}

func (l *fakeLimiter) Allow(context.Context, string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.blocked, l.err
}

func (l *fakeLimiter) Failure(context.Context, string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures++
	return nil
}

func (l *fakeLimiter) Reset(context.Context, string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resets++
	return nil
}

type fakePusher struct {
	mu    sync.Mutex
	calls []pushed
}

type pushed struct {
	user domain.User
	n    domain.Notification
}

func (p *fakePusher) Push(_ context.Context, user domain.User, n domain.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, pushed{user: user, n: n})
	return nil
}

func (p *fakePusher) pushes() []pushed {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]pushed(nil), p.calls...)
}
