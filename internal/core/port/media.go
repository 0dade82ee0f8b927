package port

import (
	"context"

	"github.com/matej-benes/mos-family-c/internal/core/domain"
)

type MediaKind string

const (
	KindAudio MediaKind = "audio"
	KindVideo MediaKind = "video"
)

type MediaConstraints struct {
	Audio bool
	Video bool
}

var AudioVideo = MediaConstraints{Audio: true, Video: true}

// MediaDevices opens capture devices. GetUserMedia wraps
// domain.ErrMediaAccess when devices are denied or unavailable.
type MediaDevices interface {
	GetUserMedia(ctx context.Context, c MediaConstraints) (LocalStream, error)
}

type LocalTrack interface {
	ID() string
	Kind() MediaKind
	Enabled() bool
	SetEnabled(enabled bool)
}

// LocalStream owns device handles until Stop is called. Stop is idempotent.
type LocalStream interface {
	ID() string
	Tracks() []LocalTrack
	Stop()
}

type RemoteTrack interface {
	ID() string
	StreamID() string
	Kind() MediaKind
}

// PeerConnection is one side of a peer-to-peer media session. Callbacks may
// fire on any goroutine.
type PeerConnection interface {
	AddStream(s LocalStream) error
	CreateOffer() (domain.SessionDescription, error)
	CreateAnswer() (domain.SessionDescription, error)
	SetLocalDescription(d domain.SessionDescription) error
	SetRemoteDescription(d domain.SessionDescription) error
	AddICECandidate(c domain.ICECandidate) error
	OnICECandidate(fn func(domain.ICECandidate))
	OnTrack(fn func(RemoteTrack))
	Close() error
}

type PeerFactory interface {
	NewPeerConnection() (PeerConnection, error)
}
