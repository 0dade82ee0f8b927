package service

import (
	"sync"

	"github.com/matej-benes/mos-family-c/internal/core/port"
)

// RemoteStream collects inbound tracks as they attach. Renderers bind to
// the stream once and read Tracks as it grows.
type RemoteStream struct {
	mu     sync.RWMutex
	tracks []port.RemoteTrack
}

func NewRemoteStream() *RemoteStream {
	return &RemoteStream{}
}

func (s *RemoteStream) Tracks() []port.RemoteTrack {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]port.RemoteTrack, len(s.tracks))
	copy(out, s.tracks)
	return out
}

func (s *RemoteStream) add(t port.RemoteTrack) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracks = append(s.tracks, t)
}
